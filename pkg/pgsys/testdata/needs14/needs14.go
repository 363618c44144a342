// Package needs14 uses a declaration that only the PostgreSQL 14 binding
// module carries.
package needs14

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

var DefaultMethod = pgsys.TOAST_LZ4_COMPRESSION_ID
