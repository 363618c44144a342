package sim

import (
	"strings"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// PushRecoveryPoint registers a new innermost recovery point.
func (b *Backend) PushRecoveryPoint() *host.RecoveryPoint {
	rp := &host.RecoveryPoint{
		Prev:             b.recovery,
		MemoryContext:    b.current,
		ErrorDepth:       len(b.errorStack),
		ContextCallbacks: len(b.errCtx),
	}
	if b.recovery != nil {
		rp.Depth = b.recovery.Depth + 1
	}
	b.recovery = rp
	return rp
}

// PopRecoveryPoint deregisters rp on a normal exit. Like PG_END_TRY it
// also restores the error context callback stack.
func (b *Backend) PopRecoveryPoint(rp *host.RecoveryPoint) {
	if b.recovery != rp {
		b.crashed = true
		panic("recovery point stack out of order")
	}
	b.recovery = rp.Prev
	b.errCtx = b.errCtx[:rp.ContextCallbacks]
}

// Recover rewinds host state to the snapshot taken when rp was pushed and
// deregisters rp together with any point above it.
func (b *Backend) Recover(rp *host.RecoveryPoint) {
	b.recovery = rp.Prev
	if _, ok := b.contexts[rp.MemoryContext]; ok {
		b.current = rp.MemoryContext
	} else {
		b.current = b.top.id
	}
	if len(b.errorStack) > rp.ErrorDepth {
		b.errorStack = b.errorStack[:rp.ErrorDepth]
	}
	if len(b.errCtx) > rp.ContextCallbacks {
		b.errCtx = b.errCtx[:rp.ContextCallbacks]
	}
}

// RecoveryPoint returns the innermost registered point.
func (b *Backend) RecoveryPoint() *host.RecoveryPoint {
	return b.recovery
}

// PushErrorContext installs a callback whose text is attached to errors
// raised while it is installed.
func (b *Backend) PushErrorContext(fn func() string) {
	b.errCtx = append(b.errCtx, fn)
}

// PopErrorContext removes the innermost error context callback.
func (b *Backend) PopErrorContext() {
	if len(b.errCtx) > 0 {
		b.errCtx = b.errCtx[:len(b.errCtx)-1]
	}
}

// Ereport emits edata. Messages below ERROR are recorded and logged; ERROR
// transfers to the innermost recovery point, FATAL and PANIC to the
// outermost one.
func (b *Backend) Ereport(edata *host.ErrorData) {
	e := edata.Clone()
	if e.SQLState == "" {
		if e.Level.Aborts() {
			e.SQLState = host.InternalError
		} else {
			e.SQLState = host.SuccessfulCompletion
		}
	}
	if e.Context == "" && len(b.errCtx) > 0 {
		lines := make([]string, 0, len(b.errCtx))
		for i := len(b.errCtx) - 1; i >= 0; i-- {
			lines = append(lines, b.errCtx[i]())
		}
		e.Context = strings.Join(lines, "\n")
	}

	if !e.Level.Aborts() {
		b.report(e)
		return
	}
	b.throw(e)
}

// ReThrow raises edata again from the current frame, as PG_RE_THROW and
// ReThrowError do.
func (b *Backend) ReThrow(edata *host.ErrorData) {
	e := edata.Clone()
	if !e.Level.Aborts() {
		e.Level = host.Error
	}
	b.throw(e)
}

func (b *Backend) throw(e *host.ErrorData) {
	if len(b.errorStack) >= errorDataStackSize {
		b.crashed = true
		b.errorStack = b.errorStack[:0]
		e = &host.ErrorData{Level: host.Panic, SQLState: host.InternalError, Message: "ERRORDATA_STACK_SIZE exceeded"}
	}
	b.errorStack = append(b.errorStack, e)

	target := b.recovery
	if e.Level >= host.Fatal {
		for target != nil && target.Prev != nil {
			target = target.Prev
		}
	}
	if target == nil {
		b.terminated = true
		b.logger.Error("error raised with no recovery point", zap.String("message", e.Message))
		panic(&Crash{Value: e.String()})
	}
	b.logger.Debug("abrupt transfer",
		zap.Stringer("level", e.Level),
		zap.String("sqlstate", string(e.SQLState)),
		zap.String("message", e.Message),
		zap.Int("target_depth", target.Depth),
	)
	panic(&host.Abort{Target: target, Data: e})
}

func (b *Backend) report(e *host.ErrorData) {
	b.notices = append(b.notices, e)
	fields := []zap.Field{
		zap.String("sqlstate", string(e.SQLState)),
		zap.String("detail", e.Detail),
	}
	switch {
	case e.Level <= host.Debug1:
		b.logger.Debug(e.Message, fields...)
	case e.Level == host.Warning || e.Level == host.WarningClientOnly:
		b.logger.Warn(e.Message, fields...)
	default:
		b.logger.Info(e.Message, fields...)
	}
}
