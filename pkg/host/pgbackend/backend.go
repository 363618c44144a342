//go:build pgext && cgo

package pgbackend

/*
#include <stdlib.h>

#include "shim.h"
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
	"github.com/woxQAQ/pgxbridge/pkg/tupdesc"
)

// ALLOCSET_DEFAULT_SIZES
const (
	allocSetMinSize       = 0
	allocSetInitBlockSize = 8 * 1024
	allocSetMaxBlockSize  = 8 * 1024 * 1024
)

// Backend drives the server the extension is loaded into. There is one
// per process; it must only be used from the backend's main thread.
type Backend struct {
	logger   *zap.Logger
	recovery *host.RecoveryPoint
}

var (
	_ host.Backend       = (*Backend)(nil)
	_ tupdesc.RefCounter = (*Backend)(nil)
)

func New(logger *zap.Logger) *Backend {
	return &Backend{logger: logger.With(zap.String("component", "host-pg"))}
}

func toPg(cxt host.MemoryContext) pgsys.MemoryContext {
	return (*pgsys.MemoryContextData)(unsafe.Pointer(cxt))
}

func fromPg(cxt pgsys.MemoryContext) host.MemoryContext {
	return host.MemoryContext(uintptr(unsafe.Pointer(cxt)))
}

// check turns an error caught by a shim into an abort.
func (b *Backend) check(edata *pgsys.ErrorData) {
	if edata == nil {
		return
	}
	e := ConvertError(edata)
	C.pgx_free_error_data((*C.ErrorData)(unsafe.Pointer(edata)))
	b.abort(e)
}

func (b *Backend) abort(e *host.ErrorData) {
	target := b.recovery
	if e.Level >= host.Fatal {
		for target != nil && target.Prev != nil {
			target = target.Prev
		}
	}
	if target == nil {
		// nothing on the Go side can take it; the panic will cross a C
		// frame and take the process down
		b.logger.Error("host error outside any recovery point", zap.String("error", e.String()))
		panic(fmt.Sprintf("pgbackend: unguarded host error: %s", e))
	}
	panic(&host.Abort{Target: target, Data: e})
}

func (b *Backend) CurrentMemoryContext() host.MemoryContext {
	return fromPg(pgsys.CurrentMemoryContext())
}

func (b *Backend) SwitchMemoryContext(cxt host.MemoryContext) host.MemoryContext {
	prev := pgsys.CurrentMemoryContext()
	pgsys.SetCurrentMemoryContext(toPg(cxt))
	return fromPg(prev)
}

func (b *Backend) TopMemoryContext() host.MemoryContext {
	return fromPg(pgsys.TopMemoryContext())
}

func (b *Backend) TransactionContext() host.MemoryContext {
	return fromPg(pgsys.TopTransactionContext())
}

// CreateMemoryContext creates an AllocSet child of parent. The server
// keeps the name pointer, so it is copied into parent first.
func (b *Backend) CreateMemoryContext(parent host.MemoryContext, name string) host.MemoryContext {
	p, edata := pgsys.MemoryContextAlloc(toPg(parent), pgsys.Size(len(name)+1))
	b.check(edata)
	buf := unsafe.Slice((*byte)(p), len(name)+1)
	copy(buf, name)
	buf[len(name)] = 0

	cxt, edata := pgsys.AllocSetContextCreate(toPg(parent), (*byte)(p),
		allocSetMinSize, allocSetInitBlockSize, allocSetMaxBlockSize)
	b.check(edata)
	return fromPg(cxt)
}

func (b *Backend) DeleteMemoryContext(cxt host.MemoryContext) {
	b.check(pgsys.MemoryContextDelete(toPg(cxt)))
}

func (b *Backend) ResetMemoryContext(cxt host.MemoryContext) {
	b.check(pgsys.MemoryContextReset(toPg(cxt)))
}

// RegisterResetCallback allocates a MemoryContextCallback in cxt whose
// argument is a cgo handle for fn.
func (b *Backend) RegisterResetCallback(cxt host.MemoryContext, fn func()) {
	const ptrSize = unsafe.Sizeof(uintptr(0))
	cb, edata := pgsys.MemoryContextAlloc(toPg(cxt), pgsys.Size(3*ptrSize))
	b.check(edata)

	h := cgo.NewHandle(fn)
	slots := unsafe.Slice((*uintptr)(cb), 3)
	slots[0] = uintptr(C.pgx_reset_trampoline_addr())
	slots[1] = uintptr(h)
	slots[2] = 0
	if edata := pgsys.MemoryContextRegisterResetCallback(toPg(cxt), cb); edata != nil {
		h.Delete()
		b.check(edata)
	}
}

func (b *Backend) MemoryContextName(cxt host.MemoryContext) string {
	return goString(toPg(cxt).Name)
}

func (b *Backend) Alloc(cxt host.MemoryContext, size uintptr) unsafe.Pointer {
	p, edata := pgsys.MemoryContextAlloc(toPg(cxt), pgsys.Size(size))
	b.check(edata)
	return p
}

func (b *Backend) Free(ptr unsafe.Pointer) {
	b.check(pgsys.Pfree(ptr))
}

func (b *Backend) Detoast(ptr unsafe.Pointer) unsafe.Pointer {
	out, edata := pgsys.PgDetoastDatum(ptr)
	b.check(edata)
	return out
}

func (b *Backend) DecrTupleDescRefCount(td pgsys.TupleDesc) {
	edata := C.pgx_decr_tupdesc_refcount((C.TupleDesc)(unsafe.Pointer(td)))
	b.check((*pgsys.ErrorData)(unsafe.Pointer(edata)))
}

// PushRecoveryPoint only records Go-side state: each shim catches its
// own host errors, so no sigsetjmp is needed here.
func (b *Backend) PushRecoveryPoint() *host.RecoveryPoint {
	rp := &host.RecoveryPoint{
		Prev:          b.recovery,
		MemoryContext: b.CurrentMemoryContext(),
	}
	if b.recovery != nil {
		rp.Depth = b.recovery.Depth + 1
	}
	b.recovery = rp
	return rp
}

func (b *Backend) PopRecoveryPoint(rp *host.RecoveryPoint) {
	if b.recovery != rp {
		panic("pgbackend: recovery point stack out of order")
	}
	b.recovery = rp.Prev
}

// Recover restores the active context. The shim has already restored the
// server's exception and error context stacks and flushed its error
// state.
func (b *Backend) Recover(rp *host.RecoveryPoint) {
	b.recovery = rp.Prev
	pgsys.SetCurrentMemoryContext(toPg(rp.MemoryContext))
}

func (b *Backend) RecoveryPoint() *host.RecoveryPoint {
	return b.recovery
}

// Ereport sends messages below ERROR through the server's reporting
// path. Errors are carried to the nearest recovery point as an abort;
// the C entry point re-raises them in the server once Go frames are gone.
func (b *Backend) Ereport(edata *host.ErrorData) {
	if edata.Level.Aborts() {
		b.abort(edata.Clone())
	}
	msg := C.CString(edata.Message)
	defer C.free(unsafe.Pointer(msg))
	var detail, hint *C.char
	if edata.Detail != "" {
		detail = C.CString(edata.Detail)
		defer C.free(unsafe.Pointer(detail))
	}
	if edata.Hint != "" {
		hint = C.CString(edata.Hint)
		defer C.free(unsafe.Pointer(hint))
	}
	state := edata.SQLState
	if state == "" {
		state = host.SuccessfulCompletion
	}
	out := C.pgx_report(C.int(Elevel(edata.Level)), C.int(state.Pack()), msg, detail, hint)
	b.check((*pgsys.ErrorData)(unsafe.Pointer(out)))
}
