//go:build pgext && cgo

package pgext

/*
#include <stdlib.h>

#include "trampoline.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/host/pgbackend"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the runtime the server's calls are dispatched to.
// Extensions register their functions with it from init.
func Default() *Runtime {
	defaultOnce.Do(func() {
		// the server collects stderr into its log
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		defaultRuntime = NewRuntime(pgbackend.New(logger), logger)
	})
	return defaultRuntime
}

// pgxbridgeInvoke is called by pgxbridge_call. It must return normally:
// a failure is written to out and raised by the C caller once no Go
// frame is left on the stack.
//
//export pgxbridgeInvoke
func pgxbridgeInvoke(name *C.char, fcinfo unsafe.Pointer, out *C.pgx_call_error) C.uintptr_t {
	d, edata := Default().InvokeFcinfo(C.GoString(name), (*pgsys.FunctionCallInfoBaseData)(fcinfo))
	if edata != nil {
		fillError(out, edata)
		return 0
	}
	return C.uintptr_t(d)
}

func fillError(out *C.pgx_call_error, edata *host.ErrorData) {
	level := edata.Level
	if !level.Aborts() {
		level = host.Error
	}
	state := edata.SQLState
	if !state.Valid() {
		state = host.InternalError
	}
	out.elevel = C.int(pgbackend.Elevel(level))
	out.sqlerrcode = C.int(state.Pack())
	out.message = C.CString(edata.Message)
	out.detail = optString(edata.Detail)
	out.hint = optString(edata.Hint)
	out.context = optString(edata.Context)
}

func optString(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}
