// Package guard wraps every crossing between Go and the host.
//
// Call wraps Go calling into the host. It registers a recovery point,
// and an abrupt transfer aimed at that point comes back as a *HostError
// with the host's error state rewound. Callback wraps the host calling
// into Go. It is the last Go frame before host frames, so nothing may
// unwind past it: Go panics, returned errors and aborts aimed further out
// all become an error record that the host frame raises with its own
// mechanism.
//
// Guards nest. An abort always names its target point, and a guard only
// intercepts aborts aimed at its own point, so resolution is always to
// the nearest enclosing guard.
package guard

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// Guard installs boundary frames on one backend.
type Guard struct {
	backend host.Backend
	logger  *zap.Logger
}

// New returns a guard for backend.
func New(backend host.Backend, logger *zap.Logger) *Guard {
	return &Guard{
		backend: backend,
		logger:  logger.With(zap.String("component", "guard")),
	}
}

// Backend returns the guarded backend.
func (g *Guard) Backend() host.Backend {
	return g.backend
}

// Call runs fn, which may call into the host, behind a fresh recovery
// point. A host error raised inside fn and not intercepted by a nested
// guard is returned as *HostError. Errors returned by fn pass through.
// Go panics are not host errors: the point is deregistered and the panic
// continues to the enclosing Callback. An abort aimed further out passes
// through untouched.
func (g *Guard) Call(fn func() error) (err error) {
	rp := g.backend.PushRecoveryPoint()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		a, ok := r.(*host.Abort)
		if !ok {
			g.popThrough(rp)
			panic(r)
		}
		if a.Target != rp {
			// Host frames inside fn may still have points registered
			// above rp. Recover at the target drops them all, rp included.
			panic(r)
		}
		g.backend.Recover(rp)
		g.logger.Debug("host error intercepted",
			zap.String("sqlstate", string(a.Data.SQLState)),
			zap.String("message", a.Data.Message),
			zap.Int("depth", rp.Depth),
		)
		err = &HostError{Data: a.Data.Clone()}
	}()

	err = fn()
	g.backend.PopRecoveryPoint(rp)
	return err
}

// popThrough deregisters rp together with any point a host frame inside
// fn left registered above it. It does nothing if rp is already gone.
func (g *Guard) popThrough(rp *host.RecoveryPoint) {
	for p := g.backend.RecoveryPoint(); p != nil; p = p.Prev {
		if p != rp {
			continue
		}
		for top := g.backend.RecoveryPoint(); top != rp; top = g.backend.RecoveryPoint() {
			g.backend.PopRecoveryPoint(top)
		}
		g.backend.PopRecoveryPoint(rp)
		return
	}
}

// CallValue is Call for functions that produce a value.
func CallValue[T any](g *Guard, fn func() (T, error)) (T, error) {
	var v T
	err := g.Call(func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}

// Callback runs fn on behalf of a host frame and returns the error record
// the host frame must raise, or nil. Nothing fn does unwinds past
// Callback:
//   - a returned *HostError is re-raised with its original record,
//   - a returned Categorized error keeps its SQLSTATE,
//   - other returned errors and Go panics become internal_error,
//   - an abort fn did not intercept terminates here, host state rewound.
func (g *Guard) Callback(fn func() error) (edata *host.ErrorData) {
	rp := g.backend.PushRecoveryPoint()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		g.backend.Recover(rp)
		if a, ok := r.(*host.Abort); ok {
			edata = a.Data.Clone()
			return
		}
		perr := &PanicError{Value: r, Stack: debug.Stack()}
		g.logger.Error("panic in extension code",
			zap.Any("panic", r),
			zap.ByteString("stack", perr.Stack),
		)
		edata = toErrorData(perr)
	}()

	err := fn()
	g.backend.PopRecoveryPoint(rp)
	if err != nil {
		return toErrorData(err)
	}
	return nil
}

// Raise raises edata in the host. At Error and above it does not return.
func (g *Guard) Raise(edata *host.ErrorData) {
	g.backend.Ereport(edata)
}

// Errorf raises an ERROR with the given condition. It does not return.
func (g *Guard) Errorf(state host.SQLState, format string, args ...any) {
	g.backend.Ereport(host.Errorf(state, format, args...))
}
