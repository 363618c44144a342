package pgext

import (
	"fmt"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// UndefinedFunctionError occurs when the host calls a function that was
// never registered with the runtime.
type UndefinedFunctionError struct {
	Name string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("function %s is not registered with the Go runtime", e.Name)
}

func (e *UndefinedFunctionError) SQLState() host.SQLState {
	return host.UndefinedFunction
}

// ArgumentCountError occurs when the host passes a different number of
// arguments than the function declares.
type ArgumentCountError struct {
	Function string
	Want     int
	Got      int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("function %s takes %d arguments, called with %d", e.Function, e.Want, e.Got)
}

func (e *ArgumentCountError) SQLState() host.SQLState {
	return host.ExternalRoutineInvocation
}

// RegistrationError occurs when a function definition is rejected.
type RegistrationError struct {
	Function string
	Reason   string
}

func (e *RegistrationError) Error() string {
	if e.Function == "" {
		return "cannot register function: " + e.Reason
	}
	return fmt.Sprintf("cannot register function %s: %s", e.Function, e.Reason)
}
