package synth

import "fmt"

// Error occurs when a version's bindings cannot be rendered. Symbol names
// the host declaration or correction at fault.
type Error struct {
	Version int
	Symbol  string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("host %d: %s: %s", e.Version, e.Symbol, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
