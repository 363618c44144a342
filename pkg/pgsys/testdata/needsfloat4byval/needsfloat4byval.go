// Package needsfloat4byval depends on FLOAT4PASSBYVAL, which the host
// headers dropped in PostgreSQL 13.
package needsfloat4byval

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

const Float4ByVal = pgsys.FLOAT4PASSBYVAL
