package pgbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func cstr(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func TestConvertError(t *testing.T) {
	e := &pgsys.ErrorData{
		Elevel:     pgsys.ERROR,
		Sqlerrcode: host.DivisionByZero.Pack(),
		Message:    cstr("division by zero"),
		Hint:       cstr("check the divisor"),
		Filename:   cstr("int.c"),
		Lineno:     842,
		Funcname:   cstr("int4div"),
	}
	got := ConvertError(e)
	assert.Equal(t, host.Error, got.Level)
	assert.Equal(t, host.DivisionByZero, got.SQLState)
	assert.Equal(t, "division_by_zero", got.Category())
	assert.Equal(t, "division by zero", got.Message)
	assert.Equal(t, "check the divisor", got.Hint)
	assert.Empty(t, got.Detail)
	assert.Equal(t, "int.c", got.Filename)
	assert.Equal(t, 842, got.Lineno)
	assert.Equal(t, "int4div", got.Funcname)
}

func TestElevelRoundTrip(t *testing.T) {
	for _, l := range []host.Level{
		host.Debug5, host.Debug1, host.Log, host.Info, host.Notice,
		host.Warning, host.Error, host.Fatal, host.Panic,
	} {
		assert.Equal(t, l, LevelOf(Elevel(l)), l.String())
	}
	assert.Equal(t, int32(pgsys.ERROR), Elevel(host.Error))
	assert.Equal(t, host.Panic, LevelOf(pgsys.PANIC+5))
	assert.Equal(t, host.Debug5, LevelOf(1))
}

func TestGoStringNil(t *testing.T) {
	assert.Empty(t, goString(nil))
	assert.Equal(t, "abc", goString(cstr("abc")))
}
