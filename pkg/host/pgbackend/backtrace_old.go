//go:build !pg13 && !pg14

package pgbackend

import "github.com/woxQAQ/pgxbridge/pkg/pgsys"

func backtrace(*pgsys.ErrorData) string {
	return ""
}
