// Package sim is an in-process model of the database backend. It keeps the
// parts of the host that the bridge interacts with: a tree of arena
// allocation contexts backed by memory outside the Go heap, the stack of
// recovery points, the error data stack and the error context callbacks.
//
// Abrupt transfers are modelled as panics carrying *host.Abort. Functions
// named after host entry points (Exec, Try, InvokeCallback) stand in for
// host C frames: a Go panic that is not an Abort reaching one of them is
// recorded as a crash, which is the failure the boundary guard exists to
// prevent.
package sim

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// errorDataStackSize mirrors ERRORDATA_STACK_SIZE.
const errorDataStackSize = 5

// Backend is a simulated host. It is not safe for concurrent use.
type Backend struct {
	logger   *zap.Logger
	pageSize int

	contexts    map[host.MemoryContext]*memoryContext
	chunks      map[uintptr]*memoryContext
	nextContext uintptr
	top         *memoryContext
	xact        *memoryContext
	current     host.MemoryContext

	recovery   *host.RecoveryPoint
	errorStack []*host.ErrorData
	errCtx     []func() string

	notices    []*host.ErrorData
	crashed    bool
	terminated bool

	toast       map[uint32][]byte
	nextValueID uint32
}

var _ host.Backend = (*Backend)(nil)

// New creates a backend with a top context and a transaction context,
// the transaction context active.
func New(logger *zap.Logger) *Backend {
	b := &Backend{
		logger:   logger.With(zap.String("component", "host-sim")),
		pageSize: unix.Getpagesize(),
		contexts: make(map[host.MemoryContext]*memoryContext),
		chunks:   make(map[uintptr]*memoryContext),
		toast:    make(map[uint32][]byte),
	}
	b.top = b.newContext(nil, topContextName)
	b.xact = b.newContext(b.top, xactContextName)
	b.current = b.xact.id
	return b
}

// Close releases all host memory.
func (b *Backend) Close() {
	b.current = b.top.id
	b.reset(b.top)
	b.logger.Debug("backend closed")
}

// Crash is the panic value Exec reports when a Go panic reached a host
// frame.
type Crash struct {
	Value any
}

func (c *Crash) Error() string {
	return fmt.Sprintf("go panic crossed a host frame: %v", c.Value)
}

// hostFrame runs fn as if it were called from host C code. Aborts pass
// through, as a longjmp passes through C frames. Anything else is a crash.
func (b *Backend) hostFrame(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case *host.Abort, *Crash:
				panic(r)
			default:
				b.crashed = true
				b.logger.Error("go panic reached a host frame", zap.Any("panic", r))
				panic(&Crash{Value: r})
			}
		}
	}()
	fn()
}

// Exec runs fn as a top-level command: inside a transaction, below the
// outermost recovery point. An error aborts the transaction and is
// returned; the transaction context is reset either way.
func (b *Backend) Exec(fn func()) (edata *host.ErrorData) {
	b.current = b.xact.id
	rp := b.PushRecoveryPoint()

	defer func() {
		r := recover()
		switch v := r.(type) {
		case nil:
			b.PopRecoveryPoint(rp)
		case *host.Abort:
			if v.Target != rp {
				b.crashed = true
				edata = &host.ErrorData{Level: host.Panic, SQLState: host.InternalError,
					Message: "abort targeted an unregistered recovery point"}
			} else {
				edata = v.Data
				if edata.Level >= host.Fatal {
					b.terminated = true
				}
			}
			b.Recover(rp)
			b.errorStack = b.errorStack[:0]
		case *Crash:
			b.Recover(rp)
			b.errorStack = b.errorStack[:0]
			edata = &host.ErrorData{Level: host.Panic, SQLState: host.InternalError, Message: v.Error()}
		default:
			panic(r)
		}
		b.current = b.top.id
		b.reset(b.xact)
		b.current = b.xact.id
	}()

	b.hostFrame(fn)
	return nil
}

// Try is the host's PG_TRY/PG_CATCH. catch runs with the error state
// rewound; a nil catch re-throws.
func (b *Backend) Try(body func(), catch func(edata *host.ErrorData)) {
	rp := b.PushRecoveryPoint()
	var caught *host.Abort
	func() {
		defer func() {
			if r := recover(); r != nil {
				if a, ok := r.(*host.Abort); ok && a.Target == rp {
					caught = a
					return
				}
				panic(r)
			}
		}()
		b.hostFrame(body)
	}()
	if caught == nil {
		b.PopRecoveryPoint(rp)
		return
	}
	b.Recover(rp)
	if catch == nil {
		b.ReThrow(caught.Data)
		return
	}
	b.hostFrame(func() { catch(caught.Data) })
}

// InvokeCallback is a host frame calling into Go code through a function
// manager trampoline. A returned error record is raised from here.
func (b *Backend) InvokeCallback(fn func() *host.ErrorData) {
	b.hostFrame(func() {
		if edata := fn(); edata != nil {
			b.ReThrow(edata)
		}
	})
}

// Crashed reports whether a Go panic ever reached a host frame.
func (b *Backend) Crashed() bool { return b.crashed }

// Terminated reports whether a FATAL error ended the session.
func (b *Backend) Terminated() bool { return b.terminated }

// Notices returns messages reported below ERROR, oldest first.
func (b *Backend) Notices() []*host.ErrorData { return b.notices }

// ErrorDepth returns the number of entries on the error data stack.
func (b *Backend) ErrorDepth() int { return len(b.errorStack) }

// RecoveryDepth returns the number of registered recovery points.
func (b *Backend) RecoveryDepth() int {
	if b.recovery == nil {
		return 0
	}
	return b.recovery.Depth + 1
}

// ErrorContextDepth returns the number of installed error context callbacks.
func (b *Backend) ErrorContextDepth() int { return len(b.errCtx) }

// LiveContexts returns the number of contexts that have not been deleted.
func (b *Backend) LiveContexts() int { return len(b.contexts) }

// ContextExists reports whether cxt has not been deleted.
func (b *Backend) ContextExists(cxt host.MemoryContext) bool {
	_, ok := b.contexts[cxt]
	return ok
}

// Allocated returns the bytes currently attributed to cxt.
func (b *Backend) Allocated(cxt host.MemoryContext) uintptr {
	if c, ok := b.contexts[cxt]; ok {
		return c.allocated
	}
	return 0
}
