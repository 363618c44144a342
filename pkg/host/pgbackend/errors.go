// Package pgbackend implements host.Backend inside a real server process.
//
// Every call into the server goes through a C shim that catches an error
// with sigsetjmp right around the call, so a longjmp never unwinds Go
// frames. The shim hands back a copy of the error and the backend turns
// it into a *host.Abort panic aimed at the nearest Go recovery point.
//
// The backend itself needs the pgext and cgo build tags. The conversion
// helpers in this file only need a version tag.
package pgbackend

import (
	"unsafe"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

var elevels = []struct {
	level  host.Level
	elevel int32
}{
	{host.Debug5, pgsys.DEBUG5},
	{host.Debug4, pgsys.DEBUG4},
	{host.Debug3, pgsys.DEBUG3},
	{host.Debug2, pgsys.DEBUG2},
	{host.Debug1, pgsys.DEBUG1},
	{host.Log, pgsys.LOG},
	{host.LogServerOnly, pgsys.LOG_SERVER_ONLY},
	{host.Info, pgsys.INFO},
	{host.Notice, pgsys.NOTICE},
	{host.Warning, pgsys.WARNING},
	{host.WarningClientOnly, warningClientOnly},
	{host.Error, pgsys.ERROR},
	{host.Fatal, pgsys.FATAL},
	{host.Panic, pgsys.PANIC},
}

// Elevel returns the numeric elevel of l in the compiled host version.
func Elevel(l host.Level) int32 {
	for _, e := range elevels {
		if e.level == l {
			return e.elevel
		}
	}
	return pgsys.ERROR
}

// LevelOf maps a numeric elevel back. Values between known levels round
// down; anything past PANIC is PANIC.
func LevelOf(elevel int32) host.Level {
	if elevel > pgsys.PANIC {
		return host.Panic
	}
	out := host.Debug5
	for _, e := range elevels {
		if e.elevel == elevel {
			return e.level
		}
		if e.elevel < elevel {
			out = e.level
		}
	}
	return out
}

// ConvertError copies a host ErrorData into Go memory.
func ConvertError(e *pgsys.ErrorData) *host.ErrorData {
	return &host.ErrorData{
		Level:     LevelOf(e.Elevel),
		SQLState:  host.UnpackSQLState(e.Sqlerrcode),
		Message:   goString(e.Message),
		Detail:    goString(e.Detail),
		Hint:      goString(e.Hint),
		Context:   goString(e.Context),
		Filename:  goString(e.Filename),
		Lineno:    int(e.Lineno),
		Funcname:  goString(e.Funcname),
		Backtrace: backtrace(e),
	}
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
