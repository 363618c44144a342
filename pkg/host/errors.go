package host

import (
	"fmt"
	"strings"
)

// Level is a host message severity. The numeric values of the host's
// elevels differ between major versions, so backends translate Level
// through the selected binding module.
type Level int

const (
	Debug5 Level = iota
	Debug4
	Debug3
	Debug2
	Debug1
	Log
	LogServerOnly
	Info
	Notice
	Warning
	WarningClientOnly
	Error
	Fatal
	Panic
)

var levelNames = [...]string{
	Debug5:            "DEBUG5",
	Debug4:            "DEBUG4",
	Debug3:            "DEBUG3",
	Debug2:            "DEBUG2",
	Debug1:            "DEBUG1",
	Log:               "LOG",
	LogServerOnly:     "LOG_SERVER_ONLY",
	Info:              "INFO",
	Notice:            "NOTICE",
	Warning:           "WARNING",
	WarningClientOnly: "WARNING_CLIENT_ONLY",
	Error:             "ERROR",
	Fatal:             "FATAL",
	Panic:             "PANIC",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Aborts reports whether raising a message at this level abandons the
// current call stack instead of returning to the caller.
func (l Level) Aborts() bool {
	return l >= Error
}

// ErrorData is the Go copy of a host error record. It is detached from
// host memory, so it stays valid after the error state has been flushed.
type ErrorData struct {
	Level    Level
	SQLState SQLState
	Message  string
	Detail   string
	Hint     string
	Context  string

	// Source location of the ereport call, if the host recorded one.
	Filename string
	Lineno   int
	Funcname string

	// Backtrace is only filled by hosts that collect one (13 and newer).
	Backtrace string
}

// Category returns the condition name of the error's SQLSTATE, e.g.
// "division_by_zero".
func (e *ErrorData) Category() string {
	return e.SQLState.Condition()
}

func (e *ErrorData) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Level, e.Message)
	if e.SQLState != "" {
		fmt.Fprintf(&b, " (SQLSTATE %s)", e.SQLState)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "\nDETAIL: %s", e.Detail)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "\nHINT: %s", e.Hint)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, "\nCONTEXT: %s", e.Context)
	}
	return b.String()
}

// Clone returns a copy of e.
func (e *ErrorData) Clone() *ErrorData {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Errorf builds an ERROR-level record with the given condition.
func Errorf(state SQLState, format string, args ...any) *ErrorData {
	return &ErrorData{
		Level:    Error,
		SQLState: state,
		Message:  fmt.Sprintf(format, args...),
	}
}

// RecoveryPoint is the host-side half of a boundary frame: the place an
// abrupt transfer lands. It records the host state that has to be
// restored when a transfer terminates here.
type RecoveryPoint struct {
	Prev *RecoveryPoint

	// Snapshot taken when the point was registered.
	MemoryContext    MemoryContext
	ErrorDepth       int
	ContextCallbacks int

	// Depth is the number of points below this one.
	Depth int
}

// Abort is the panic value that carries an abrupt transfer through Go
// frames. It always names the recovery point it must terminate at;
// intermediate frames let it pass.
type Abort struct {
	Target *RecoveryPoint
	Data   *ErrorData
}

func (a *Abort) String() string {
	if a.Data == nil {
		return "host abort"
	}
	return "host abort: " + a.Data.Message
}
