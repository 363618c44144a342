// Package host describes the database backend that extension code runs
// inside: its allocation contexts, its error records and the recovery
// points its abrupt error transfer lands on.
//
// Two implementations exist. pkg/host/sim models the backend in Go for
// tests and tooling; pkg/host/pgbackend (build tag pgext, cgo) drives a
// real server process.
package host

import "unsafe"

// MemoryContext is an opaque handle to a host allocation context.
type MemoryContext uintptr

// InvalidContext is the zero handle.
const InvalidContext MemoryContext = 0

// Backend is the host runtime as seen from Go. Implementations are not
// safe for concurrent use: a backend serves one connection and every
// operation is strictly nested.
type Backend interface {
	// CurrentMemoryContext returns the active allocation context.
	CurrentMemoryContext() MemoryContext
	// SwitchMemoryContext makes cxt active and returns the previous one.
	// It never allocates.
	SwitchMemoryContext(cxt MemoryContext) MemoryContext
	// TopMemoryContext returns the root of the context tree.
	TopMemoryContext() MemoryContext
	// TransactionContext returns the context reset at transaction end.
	TransactionContext() MemoryContext

	CreateMemoryContext(parent MemoryContext, name string) MemoryContext
	DeleteMemoryContext(cxt MemoryContext)
	ResetMemoryContext(cxt MemoryContext)
	// RegisterResetCallback arranges for fn to run when cxt is reset or
	// deleted. Callbacks run most recently registered first.
	RegisterResetCallback(cxt MemoryContext, fn func())
	MemoryContextName(cxt MemoryContext) string

	// Alloc returns size bytes of host memory attributed to cxt, aligned
	// to the platform's maximum alignment. Host memory is outside the Go
	// heap; it is released when cxt is reset or deleted.
	Alloc(cxt MemoryContext, size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)

	// Detoast fetches an out-of-line varlena and returns an in-line copy
	// allocated in the current context. The copy may still be compressed.
	Detoast(ptr unsafe.Pointer) unsafe.Pointer

	// PushRecoveryPoint registers a new innermost recovery point.
	PushRecoveryPoint() *RecoveryPoint
	// PopRecoveryPoint deregisters rp after a normal exit. rp must be the
	// innermost point.
	PopRecoveryPoint(rp *RecoveryPoint)
	// Recover terminates an abrupt transfer at rp: it rewinds the error
	// stack, the error context callback stack and the active context to
	// the snapshot in rp, and deregisters rp and everything above it.
	Recover(rp *RecoveryPoint)
	// RecoveryPoint returns the innermost registered point, or nil.
	RecoveryPoint() *RecoveryPoint

	// Ereport emits a message. Below Error it returns; at Error and
	// above it performs an abrupt transfer and does not return.
	Ereport(edata *ErrorData)
}
