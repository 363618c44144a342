package guard

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/host/sim"
)

func setup(t *testing.T) (*sim.Backend, *Guard) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := sim.New(logger)
	t.Cleanup(b.Close)
	return b, New(b, logger)
}

func divide(b *sim.Backend, x, y int32) int32 {
	if y == 0 {
		b.Ereport(host.Errorf(host.DivisionByZero, "division by zero"))
	}
	return x / y
}

func TestCallInterceptsHostError(t *testing.T) {
	b, g := setup(t)

	edata := b.Exec(func() {
		before := b.CurrentMemoryContext()
		err := g.Call(func() error {
			b.SwitchMemoryContext(b.TopMemoryContext())
			b.PushErrorContext(func() string { return "in divide" })
			divide(b, 1, 0)
			return nil
		})

		var he *HostError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, "division_by_zero", he.Category())
		assert.Equal(t, host.DivisionByZero, he.SQLState())
		assert.Equal(t, "in divide", he.Data.Context)
		assert.True(t, IsCategory(err, "division_by_zero"))
		assert.EqualError(t, err, "division by zero (SQLSTATE 22012)")

		assert.Equal(t, before, b.CurrentMemoryContext())
		assert.Equal(t, 1, b.RecoveryDepth())
		assert.Equal(t, 0, b.ErrorDepth())
		assert.Equal(t, 0, b.ErrorContextDepth())
	})
	assert.Nil(t, edata)
	assert.False(t, b.Crashed())
}

func TestCallNormalReturn(t *testing.T) {
	b, g := setup(t)
	b.Exec(func() {
		v, err := CallValue(g, func() (int32, error) {
			return divide(b, 10, 2), nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(5), v)
		assert.Equal(t, 1, b.RecoveryDepth())

		sentinel := errors.New("plain")
		err = g.Call(func() error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, b.RecoveryDepth())
	})
}

func TestNearestGuardWins(t *testing.T) {
	b, g := setup(t)
	b.Exec(func() {
		var inner error
		outer := g.Call(func() error {
			inner = g.Call(func() error {
				divide(b, 1, 0)
				return nil
			})
			return nil
		})
		assert.NoError(t, outer)
		assert.True(t, IsCategory(inner, "division_by_zero"))
		assert.Equal(t, 1, b.RecoveryDepth())
	})
}

func TestNestedGuardsAtEveryDepth(t *testing.T) {
	for depth := 1; depth <= 6; depth++ {
		for fail := 0; fail < depth; fail++ {
			t.Run(fmt.Sprintf("depth=%d/fail=%d", depth, fail), func(t *testing.T) {
				b, g := setup(t)
				b.Exec(func() {
					results := make([]error, depth)
					var nest func(level int) error
					nest = func(level int) error {
						if level == depth {
							return nil
						}
						results[level] = g.Call(func() error {
							if level == fail {
								divide(b, 1, 0)
							}
							return nest(level + 1)
						})
						return nil
					}
					nest(0)
					for i, err := range results {
						if i == fail {
							assert.True(t, IsCategory(err, "division_by_zero"), "level %d", i)
						} else {
							assert.NoError(t, err, "level %d", i)
						}
					}
					assert.Equal(t, 1, b.RecoveryDepth())
				})
				assert.False(t, b.Crashed())
			})
		}
	}
}

func TestGoPanicPassesCallToCallback(t *testing.T) {
	b, g := setup(t)
	var callErr error
	edata := b.Exec(func() {
		b.InvokeCallback(func() *host.ErrorData {
			return g.Callback(func() error {
				callErr = g.Call(func() error {
					var m map[string]int
					m["x"] = 1
					return nil
				})
				return nil
			})
		})
	})
	assert.Nil(t, callErr)
	require.NotNil(t, edata)
	assert.Equal(t, host.InternalError, edata.SQLState)
	assert.Contains(t, edata.Message, "panic in extension code")
	assert.False(t, b.Crashed())
	assert.Equal(t, 0, b.RecoveryDepth())
}

func TestSafeFaultSeenByHostCleanup(t *testing.T) {
	b, g := setup(t)
	var caught *host.ErrorData
	edata := b.Exec(func() {
		b.Try(func() {
			b.InvokeCallback(func() *host.ErrorData {
				return g.Callback(func() error {
					var p *int
					_ = *p
					return nil
				})
			})
		}, func(e *host.ErrorData) {
			caught = e
		})
	})
	assert.Nil(t, edata)
	require.NotNil(t, caught)
	assert.Equal(t, "internal_error", caught.Category())
	assert.False(t, b.Crashed())
}

func TestCallbackReraisesHostError(t *testing.T) {
	b, g := setup(t)
	edata := b.Exec(func() {
		b.InvokeCallback(func() *host.ErrorData {
			return g.Callback(func() error {
				return g.Call(func() error {
					divide(b, 1, 0)
					return nil
				})
			})
		})
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.DivisionByZero, edata.SQLState)
	assert.Equal(t, "division by zero", edata.Message)
}

type limitError struct{}

func (limitError) Error() string            { return "too many widgets" }
func (limitError) SQLState() host.SQLState { return host.ProgramLimitExceeded }

func TestCallbackErrorMapping(t *testing.T) {
	_, g := setup(t)

	tbl := []struct {
		name string
		err  error
		want host.SQLState
	}{
		{"plain", errors.New("oops"), host.InternalError},
		{"categorized", limitError{}, host.ProgramLimitExceeded},
		{"wrapped categorized", fmt.Errorf("ctx: %w", limitError{}), host.ProgramLimitExceeded},
		{"host error", &HostError{Data: &host.ErrorData{Level: host.Notice, SQLState: host.DivisionByZero, Message: "x"}}, host.DivisionByZero},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			edata := g.Callback(func() error { return tt.err })
			require.NotNil(t, edata)
			assert.Equal(t, tt.want, edata.SQLState)
			assert.Equal(t, host.Error, edata.Level)
		})
	}
	assert.Nil(t, g.Callback(func() error { return nil }))
}

func TestCallbackStopsUnguardedAbort(t *testing.T) {
	b, g := setup(t)
	b.Exec(func() {
		edata := g.Callback(func() error {
			divide(b, 1, 0)
			return nil
		})
		require.NotNil(t, edata)
		assert.Equal(t, host.DivisionByZero, edata.SQLState)
		assert.Equal(t, 1, b.RecoveryDepth())
		assert.Equal(t, 0, b.ErrorDepth())
	})
}

func TestFatalIsNotIntercepted(t *testing.T) {
	b, g := setup(t)
	var callErr error
	edata := b.Exec(func() {
		callErr = g.Call(func() error {
			g.Raise(&host.ErrorData{Level: host.Fatal, SQLState: "57P01", Message: "terminating connection"})
			return nil
		})
	})
	assert.Nil(t, callErr)
	require.NotNil(t, edata)
	assert.Equal(t, host.Fatal, edata.Level)
	assert.True(t, b.Terminated())
}

func TestFatalThroughHostTry(t *testing.T) {
	b, g := setup(t)
	var callErr error
	caught := false
	edata := b.Exec(func() {
		callErr = g.Call(func() error {
			b.Try(func() {
				g.Raise(&host.ErrorData{Level: host.Fatal, SQLState: "57P01", Message: "terminating connection"})
			}, func(*host.ErrorData) { caught = true })
			return nil
		})
	})
	assert.Nil(t, callErr)
	assert.False(t, caught, "FATAL skips inner host handlers")
	require.NotNil(t, edata)
	assert.Equal(t, host.Fatal, edata.Level)
	assert.Equal(t, "terminating connection", edata.Message)
	assert.False(t, b.Crashed())
	assert.True(t, b.Terminated())
	assert.Zero(t, b.RecoveryDepth())
}

func TestErrorThroughHostTryRethrow(t *testing.T) {
	b, g := setup(t)
	edata := b.Exec(func() {
		err := g.Call(func() error {
			b.Try(func() {
				g.Errorf(host.DivisionByZero, "division by zero")
			}, nil)
			return nil
		})
		assert.True(t, IsCategory(err, "division_by_zero"))
	})
	assert.Nil(t, edata)
	assert.False(t, b.Crashed())
}

func TestGoPanicThroughHostTry(t *testing.T) {
	b, g := setup(t)
	edata := b.Exec(func() {
		_ = g.Call(func() error {
			b.Try(func() { panic("boom") }, nil)
			return nil
		})
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.Panic, edata.Level)
	assert.Contains(t, edata.Message, "boom")
	assert.NotContains(t, edata.Message, "out of order")
	assert.True(t, b.Crashed())
	assert.Zero(t, b.RecoveryDepth())
}

func TestErrorfRaises(t *testing.T) {
	b, g := setup(t)
	b.Exec(func() {
		err := g.Call(func() error {
			g.Errorf(host.InvalidParameterValue, "value %d out of range", 42)
			return nil
		})
		assert.True(t, IsCategory(err, "invalid_parameter_value"))
		assert.Contains(t, err.Error(), "value 42 out of range")
	})
}
