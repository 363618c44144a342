package datum

import (
	"fmt"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// CodecError occurs when a value cannot be converted between its Go and
// host representations.
type CodecError struct {
	Op    string // "encode" or "decode"
	Type  string
	State host.SQLState
	Msg   string
	Err   error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot %s %s: %s: %v", e.Op, e.Type, e.Msg, e.Err)
	}
	return fmt.Sprintf("cannot %s %s: %s", e.Op, e.Type, e.Msg)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// SQLState lets the boundary guard report the error under its own
// condition instead of internal_error.
func (e *CodecError) SQLState() host.SQLState {
	if e.State == "" {
		return host.InternalError
	}
	return e.State
}

func mismatch(td *TypeDescriptor, v any) *CodecError {
	return &CodecError{
		Op:    "encode",
		Type:  td.Name,
		State: host.DatatypeMismatch,
		Msg:   fmt.Sprintf("unsupported Go type %T", v),
	}
}

func outOfRange(td *TypeDescriptor, v any) *CodecError {
	return &CodecError{
		Op:    "encode",
		Type:  td.Name,
		State: host.NumericValueOutOfRange,
		Msg:   fmt.Sprintf("value %v out of range", v),
	}
}

func corrupted(td *TypeDescriptor, format string, args ...any) *CodecError {
	name := "varlena"
	if td != nil {
		name = td.Name
	}
	return &CodecError{
		Op:    "decode",
		Type:  name,
		State: host.DataCorrupted,
		Msg:   fmt.Sprintf(format, args...),
	}
}
