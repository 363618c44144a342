package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStatePack(t *testing.T) {
	tbl := []struct {
		state SQLState
		want  int32
	}{
		{InternalError, 2600},
		{DivisionByZero, 33816706},
		{SuccessfulCompletion, 0},
	}
	for _, tt := range tbl {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Pack())
			assert.Equal(t, tt.state, UnpackSQLState(tt.want))
		})
	}
}

func TestSQLStatePackInvalid(t *testing.T) {
	assert.Equal(t, InternalError.Pack(), SQLState("22").Pack())
	assert.Equal(t, InternalError.Pack(), SQLState("22a12").Pack())
}

func TestSQLStateCondition(t *testing.T) {
	assert.Equal(t, "division_by_zero", DivisionByZero.Condition())
	assert.Equal(t, "internal_error", InternalError.Condition())
	assert.Equal(t, "ZZ999", SQLState("ZZ999").Condition())
	assert.Equal(t, SQLState("22"), DivisionByZero.Class())
}

func TestLookupCondition(t *testing.T) {
	s, err := LookupCondition("division_by_zero")
	require.NoError(t, err)
	assert.Equal(t, DivisionByZero, s)

	// shared names resolve to the data exception
	s, err = LookupCondition("string_data_right_truncation")
	require.NoError(t, err)
	assert.Equal(t, StringDataRightTruncation, s)
	s, err = LookupCondition("null_value_not_allowed")
	require.NoError(t, err)
	assert.Equal(t, NullValueNotAllowed, s)

	_, err = LookupCondition("no_such_condition")
	assert.Error(t, err)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "NOTICE", Notice.String())
	assert.Equal(t, "LEVEL(99)", Level(99).String())
	assert.True(t, Error.Aborts())
	assert.True(t, Fatal.Aborts())
	assert.False(t, Warning.Aborts())
	assert.False(t, WarningClientOnly.Aborts())
}

func TestErrorDataString(t *testing.T) {
	e := &ErrorData{
		Level:    Error,
		SQLState: DivisionByZero,
		Message:  "division by zero",
		Detail:   "d",
		Hint:     "h",
		Context:  "c",
	}
	assert.Equal(t, "ERROR: division by zero (SQLSTATE 22012)\nDETAIL: d\nHINT: h\nCONTEXT: c", e.String())
	assert.Equal(t, "division_by_zero", e.Category())

	c := e.Clone()
	c.Message = "changed"
	assert.Equal(t, "division by zero", e.Message)

	var nilData *ErrorData
	assert.Nil(t, nilData.Clone())
}

func TestErrorf(t *testing.T) {
	e := Errorf(InvalidParameterValue, "bad value %d", 7)
	assert.Equal(t, Error, e.Level)
	assert.Equal(t, InvalidParameterValue, e.SQLState)
	assert.Equal(t, "bad value 7", e.Message)
}
