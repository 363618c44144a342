//go:build pg13 || pg14

package pgbackend

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

func backtrace(e *pgsys.ErrorData) string {
	return goString(e.Backtrace)
}
