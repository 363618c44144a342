package guard

import (
	"errors"
	"fmt"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// HostError is a host-signaled error intercepted at a guard. It carries
// the complete error record, so it can be raised again unchanged.
type HostError struct {
	Data *host.ErrorData
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s (SQLSTATE %s)", e.Data.Message, e.Data.SQLState)
}

// SQLState returns the error's SQLSTATE.
func (e *HostError) SQLState() host.SQLState {
	return e.Data.SQLState
}

// Category returns the condition name, e.g. "division_by_zero".
func (e *HostError) Category() string {
	return e.Data.Category()
}

// Categorized is implemented by errors that know which SQLSTATE they
// should be raised with when they reach the host.
type Categorized interface {
	error
	SQLState() host.SQLState
}

// IsCategory reports whether err carries the named condition.
func IsCategory(err error, name string) bool {
	var c Categorized
	if !errors.As(err, &c) {
		return false
	}
	return c.SQLState().Condition() == name
}

// PanicError is a Go panic converted at a callback boundary.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in extension code: %v", e.Value)
}

// SQLState reports panics as internal errors.
func (e *PanicError) SQLState() host.SQLState {
	return host.InternalError
}

// toErrorData maps a safe-code error to the record raised in the host.
func toErrorData(err error) *host.ErrorData {
	var he *HostError
	if errors.As(err, &he) {
		e := he.Data.Clone()
		if !e.Level.Aborts() {
			e.Level = host.Error
		}
		return e
	}
	state := host.InternalError
	var c Categorized
	if errors.As(err, &c) {
		state = c.SQLState()
	}
	return &host.ErrorData{
		Level:    host.Error,
		SQLState: state,
		Message:  err.Error(),
	}
}
