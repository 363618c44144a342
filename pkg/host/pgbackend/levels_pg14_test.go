//go:build pg14

package pgbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func TestClientOnlyWarning(t *testing.T) {
	assert.Equal(t, int32(pgsys.WARNING_CLIENT_ONLY), Elevel(host.WarningClientOnly))
	assert.Equal(t, host.WarningClientOnly, LevelOf(pgsys.WARNING_CLIENT_ONLY))
	assert.Equal(t, int32(21), Elevel(host.Error))
}

func TestBacktraceCopied(t *testing.T) {
	e := &pgsys.ErrorData{Elevel: pgsys.ERROR, Message: cstr("x"), Backtrace: cstr("0x1 main")}
	assert.Equal(t, "0x1 main", ConvertError(e).Backtrace)
}
