//go:build pg14

package pgbackend

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

const warningClientOnly = pgsys.WARNING_CLIENT_ONLY
