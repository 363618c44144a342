package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

const hostModuleName = "pgx"

// Guest log levels accepted by log_message.
const (
	guestDebug uint32 = iota
	guestInfo
	guestNotice
	guestWarning
)

// Reporter receives guest messages below ERROR.
type Reporter func(level host.Level, msg string)

// callState is attached to the context of one guest call. Host functions
// find the caller's reporter in it and leave a raised error there.
type callState struct {
	report Reporter
	raised *GuestError
}

type callStateKey struct{}

func withCallState(ctx context.Context, s *callState) context.Context {
	return context.WithValue(ctx, callStateKey{}, s)
}

func callStateFrom(ctx context.Context) *callState {
	s, _ := ctx.Value(callStateKey{}).(*callState)
	return s
}

// hostFunctions implements the pgx host module.
type hostFunctions struct {
	logger *zap.Logger
	debug  bool
}

func newHostFunctions(logger *zap.Logger, debug bool) *hostFunctions {
	return &hostFunctions{
		logger: logger.With(zap.String("component", "wasm-host")),
		debug:  debug,
	}
}

func (h *hostFunctions) instantiate(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export("log_message").
		NewFunctionBuilder().
		WithFunc(h.raiseError).
		WithParameterNames("code_ptr", "code_len", "msg_ptr", "msg_len").
		Export("raise_error").
		Instantiate(ctx)
	return err
}

func guestLevel(level uint32) host.Level {
	switch level {
	case guestDebug:
		return host.Debug1
	case guestInfo:
		return host.Info
	case guestNotice:
		return host.Notice
	}
	return host.Warning
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = notice, 3 = warning
func (h *hostFunctions) logMessage(ctx context.Context, mod api.Module, level, ptr, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		panic(&HostFunctionError{
			FunctionName: "log_message",
			Err:          &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: errors.New("out of bounds")},
		})
	}

	lvl := guestLevel(level)
	if h.debug {
		h.logger.Debug("guest message",
			zap.String("module", mod.Name()),
			zap.Stringer("level", lvl),
			zap.ByteString("message", msg),
		)
	}
	if s := callStateFrom(ctx); s != nil && s.report != nil {
		s.report(lvl, string(msg))
	}
}

// raiseError is called by Wasm modules to fail the current call with a
// SQLSTATE. It does not return to the guest.
// Signature: raise_error(code_ptr, code_len, msg_ptr, msg_len)
func (h *hostFunctions) raiseError(ctx context.Context, mod api.Module, codePtr, codeLen, msgPtr, msgLen uint32) {
	mem := mod.Memory()
	code, ok := mem.Read(codePtr, codeLen)
	if !ok {
		panic(&HostFunctionError{
			FunctionName: "raise_error",
			Err:          &MemoryAccessError{Operation: "read", Address: codePtr, Length: codeLen, Err: errors.New("out of bounds")},
		})
	}
	msg, ok := mem.Read(msgPtr, msgLen)
	if !ok {
		panic(&HostFunctionError{
			FunctionName: "raise_error",
			Err:          &MemoryAccessError{Operation: "read", Address: msgPtr, Length: msgLen, Err: errors.New("out of bounds")},
		})
	}

	gerr := &GuestError{Code: host.SQLState(code), Message: string(msg)}
	if s := callStateFrom(ctx); s != nil {
		s.raised = gerr
	}
	panic(gerr)
}
