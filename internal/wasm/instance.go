package wasm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger

	mu     sync.Mutex
	shared map[string]*Instance // key: module name
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
		shared:  make(map[string]*Instance),
	}
}

// Shared returns the instance bindings of moduleName share, creating it
// on first use and again after it was closed by a timeout.
func (m *InstanceManager) Shared(ctx context.Context, moduleName string, exports []string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.shared[moduleName]; ok && !inst.Closed() {
		return inst, nil
	}
	inst, err := m.Instantiate(ctx, &InstanceConfig{ModuleName: moduleName, Exports: exports})
	if err != nil {
		return nil, err
	}
	m.shared[moduleName] = inst
	return inst, nil
}

// Release closes the shared instance of moduleName, if any.
func (m *InstanceManager) Release(ctx context.Context, moduleName string) error {
	m.mu.Lock()
	inst, ok := m.shared[moduleName]
	delete(m.shared, moduleName)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return inst.Close(ctx)
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string

	// Exports the instance must provide.
	Exports []string
}

// Instance represents an instantiated Wasm module. Guest code is single
// threaded, so calls on one instance are serialized.
type Instance struct {
	mu      sync.Mutex
	module  api.Module
	runtime *Runtime

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	closeOnce sync.Once
}

// Instantiate creates a new instance from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}
	for _, name := range config.Exports {
		if _, ok := compiled.Export(name); !ok {
			return nil, &FunctionNotFoundError{ModuleName: config.ModuleName, FunctionName: name}
		}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	if err := m.runtime.reserveInstance(); err != nil {
		return nil, err
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	// No start functions: extension modules are libraries.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		m.runtime.releaseInstance()
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   make(map[string]api.Function, len(config.Exports)),
	}
	for _, name := range config.Exports {
		instance.exports[name] = module.ExportedFunction(name)
	}
	m.runtime.storeInstance(instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// Memory returns the instance's memory helper.
func (i *Instance) Memory() *Memory {
	return NewMemory(i.module)
}

// Function returns an exported function.
func (i *Instance) Function(name string) (api.Function, error) {
	if fn, ok := i.exports[name]; ok {
		return fn, nil
	}
	if fn := i.module.ExportedFunction(name); fn != nil {
		return fn, nil
	}
	return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
}

// Call invokes an export. Guest messages go to report. A trap, a
// raise_error and a timeout come back as *TrapError, *GuestError and
// *TimeoutError.
func (i *Instance) Call(ctx context.Context, name string, report Reporter, params ...uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.call(ctx, name, report, params...)
}

func (i *Instance) call(ctx context.Context, name string, report Reporter, params ...uint64) ([]uint64, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}

	timeout := i.runtime.config.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	state := &callState{report: report}

	results, err := fn.Call(withCallState(ctx, state), params...)
	if err == nil {
		return results, nil
	}

	// a closed module cannot be called again
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		i.runtime.logger.Warn("guest call interrupted, instance closed",
			zap.String("instance_id", i.ID),
			zap.String("function", name),
			zap.Uint32("exit_code", exit.ExitCode()),
		)
		i.forget(ctx)
		if exit.ExitCode() == sys.ExitCodeDeadlineExceeded || exit.ExitCode() == sys.ExitCodeContextCanceled {
			return nil, &TimeoutError{Duration: timeout}
		}
	}
	if state.raised != nil {
		return nil, state.raised
	}
	var gerr *GuestError
	if errors.As(err, &gerr) {
		return nil, gerr
	}
	var herr *HostFunctionError
	if errors.As(err, &herr) {
		return nil, herr
	}
	return nil, &TrapError{ModuleName: i.Name, FunctionName: name, Err: err}
}

// Closed reports whether the instance can no longer be called.
func (i *Instance) Closed() bool {
	_, ok := i.runtime.GetInstance(i.ID)
	return !ok
}

func (i *Instance) forget(ctx context.Context) {
	i.closeOnce.Do(func() {
		_ = i.module.Close(context.WithoutCancel(ctx))
		i.runtime.deleteInstance(i.ID)
	})
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	i.closeOnce.Do(func() {
		err = i.module.Close(ctx)
		i.runtime.deleteInstance(i.ID)
	})
	return err
}
