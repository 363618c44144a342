package wasm

import (
	"fmt"
	"time"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

// Errors that reach a host function call report a SQLSTATE, so the
// boundary guard raises them under their own condition.

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotFoundError occurs when a module is not in cache
type ModuleNotFoundError struct {
	ModuleName string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' not found in cache", e.ModuleName)
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

func (e *FunctionNotFoundError) SQLState() host.SQLState {
	return host.UndefinedFunction
}

// SignatureError occurs when an export's wasm signature does not match
// the host types it is bound to.
type SignatureError struct {
	FunctionName string
	Want         string
	Got          string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("export '%s' has signature %s, binding needs %s", e.FunctionName, e.Got, e.Want)
}

func (e *SignatureError) SQLState() host.SQLState {
	return host.DatatypeMismatch
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

func (e *MemoryAccessError) SQLState() host.SQLState {
	return host.ExternalRoutineException
}

// HostFunctionError occurs when host function execution fails
type HostFunctionError struct {
	FunctionName string
	Err          error
}

func (e *HostFunctionError) Error() string {
	return fmt.Sprintf("host function '%s' failed: %v", e.FunctionName, e.Err)
}

func (e *HostFunctionError) Unwrap() error {
	return e.Err
}

func (e *HostFunctionError) SQLState() host.SQLState {
	return host.ExternalRoutineException
}

// TrapError occurs when guest code traps: unreachable, division by zero,
// out of bounds access and the like.
type TrapError struct {
	ModuleName   string
	FunctionName string
	Err          error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("wasm function '%s' in module '%s' trapped: %v", e.FunctionName, e.ModuleName, e.Err)
}

func (e *TrapError) Unwrap() error {
	return e.Err
}

func (e *TrapError) SQLState() host.SQLState {
	return host.ExternalRoutineException
}

// GuestError is an error the guest raised through raise_error.
type GuestError struct {
	Code    host.SQLState
	Message string
}

func (e *GuestError) Error() string {
	return e.Message
}

// SQLState returns the code the guest chose. Malformed codes become
// raise_exception.
func (e *GuestError) SQLState() host.SQLState {
	if !e.Code.Valid() {
		return host.RaiseException
	}
	return e.Code
}

// TimeoutError occurs when Wasm execution times out
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Wasm execution timed out after %v", e.Duration)
}

func (e *TimeoutError) SQLState() host.SQLState {
	return host.QueryCanceled
}

// InstanceLimitError occurs when MaxInstances instances are live.
type InstanceLimitError struct {
	Limit int
}

func (e *InstanceLimitError) Error() string {
	return fmt.Sprintf("instance limit of %d reached", e.Limit)
}

func (e *InstanceLimitError) SQLState() host.SQLState {
	return host.ProgramLimitExceeded
}

// UnsupportedTypeError occurs when a host type has no wasm lowering.
type UnsupportedTypeError struct {
	FunctionName string
	Type         string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("export '%s': type %s cannot cross into wasm", e.FunctionName, e.Type)
}

func (e *UnsupportedTypeError) SQLState() host.SQLState {
	return host.FeatureNotSupported
}
