// Package memctx runs Go code with a chosen host allocation context
// active.
//
// Values handed out through a Scope live in host memory owned by the
// scope's context. They are valid only while the function the scope was
// passed to runs; keeping one past that point is a contract violation
// that is not checked at runtime.
package memctx

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// Bridge switches the active context of one backend.
type Bridge struct {
	backend host.Backend
	logger  *zap.Logger
}

// New returns a bridge for backend.
func New(backend host.Backend, logger *zap.Logger) *Bridge {
	return &Bridge{
		backend: backend,
		logger:  logger.With(zap.String("component", "memctx")),
	}
}

// With makes cxt active for the duration of fn. The previously active
// context is restored on every exit: normal return, error, Go panic and
// host abort.
func (b *Bridge) With(cxt host.MemoryContext, fn func(Scope) error) error {
	prev := b.backend.SwitchMemoryContext(cxt)
	defer b.backend.SwitchMemoryContext(prev)
	return fn(Scope{backend: b.backend, cxt: cxt})
}

// Transient runs fn in a new child of parent that is deleted when fn
// exits. Everything fn allocates through its scope is released with it.
func (b *Bridge) Transient(parent host.MemoryContext, name string, fn func(Scope) error) error {
	cxt := b.backend.CreateMemoryContext(parent, name)
	defer func() {
		b.backend.DeleteMemoryContext(cxt)
		b.logger.Debug("transient context released", zap.String("name", name))
	}()
	return b.With(cxt, fn)
}

// Current returns a scope over the context that is active right now.
func (b *Bridge) Current() Scope {
	return Scope{backend: b.backend, cxt: b.backend.CurrentMemoryContext()}
}

// Scope allocates in one context. It is a value; copying it is cheap.
type Scope struct {
	backend host.Backend
	cxt     host.MemoryContext
}

// Context returns the scope's context.
func (s Scope) Context() host.MemoryContext {
	return s.cxt
}

// Alloc returns size bytes of host memory. The contents are unspecified.
func (s Scope) Alloc(size uintptr) unsafe.Pointer {
	return s.backend.Alloc(s.cxt, size)
}

// AllocZeroed returns size zeroed bytes of host memory.
func (s Scope) AllocZeroed(size uintptr) unsafe.Pointer {
	p := s.backend.Alloc(s.cxt, size)
	clear(unsafe.Slice((*byte)(p), size))
	return p
}

// Bytes returns a slice over n freshly allocated bytes.
func (s Scope) Bytes(n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(s.Alloc(uintptr(n))), n)
}

// CopyBytes copies data into host memory.
func (s Scope) CopyBytes(data []byte) unsafe.Pointer {
	p := s.Alloc(uintptr(len(data)))
	copy(unsafe.Slice((*byte)(p), len(data)), data)
	return p
}

// CString copies str into host memory with a terminating NUL.
func (s Scope) CString(str string) unsafe.Pointer {
	p := s.Alloc(uintptr(len(str) + 1))
	buf := unsafe.Slice((*byte)(p), len(str)+1)
	copy(buf, str)
	buf[len(str)] = 0
	return p
}

// OnReset runs fn when the scope's context is reset or deleted.
func (s Scope) OnReset(fn func()) {
	s.backend.RegisterResetCallback(s.cxt, fn)
}

// Free releases a chunk early. Most code lets the context release it.
func (s Scope) Free(p unsafe.Pointer) {
	s.backend.Free(p)
}

// NewValue allocates a zeroed T in host memory. T must not contain Go
// pointers.
func NewValue[T any](s Scope) *T {
	var zero T
	return (*T)(s.AllocZeroed(unsafe.Sizeof(zero)))
}
