package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/api/catalog"
	"github.com/woxQAQ/pgxbridge/internal/config"
	"github.com/woxQAQ/pgxbridge/internal/wasm"
	"github.com/woxQAQ/pgxbridge/pkg/pgext"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Manager manages extension lifecycle and exposes extension functions
// through a function runtime.
type Manager struct {
	cfg         *config.Config
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	functions   *pgext.Runtime
	hostMajor   int
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new extension manager registering into functions.
func NewManager(
	cfg *config.Config,
	runtime *wasm.Runtime,
	functions *pgext.Runtime,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, logger),
		functions:   functions,
		hostMajor:   pgsys.PgMajor,
		logger:      logger.With(zap.String("component", "extension-manager")),
	}
}

// Start creates the Wasm runtime described by cfg.Wasm and loads every
// extension under cfg.ExtensionPaths into functions. Extensions that fail
// are reported in the error; the manager is returned with the rest.
func Start(ctx context.Context, cfg *config.Config, functions *pgext.Runtime, logger *zap.Logger) (*Manager, error) {
	runtime, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
		Timeout:      cfg.Wasm.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	m := NewManager(cfg, runtime, functions, logger)
	return m, m.LoadAll(ctx)
}

// LoadAll discovers and loads all extensions from the configured paths.
// Extensions that fail to load or register are skipped; their errors are
// returned together once the rest are loaded.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("extensions already loaded")
	}

	m.logger.Info("Loading extensions",
		zap.Strings("paths", m.cfg.ExtensionPaths),
		zap.Int("host_version", m.hostMajor),
	)

	exts, loadErrs, err := m.loader.DiscoverExtensions(ctx, m.cfg.ExtensionPaths)
	if err != nil {
		var none *NoExtensionsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No extensions found in configured paths",
				zap.Strings("paths", m.cfg.ExtensionPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	var result *multierror.Error
	for _, err := range loadErrs {
		result = multierror.Append(result, err)
	}

	count := 0
	for _, ext := range exts {
		if err := m.install(ctx, ext); err != nil {
			m.logger.Error("Failed to install extension",
				zap.String("name", ext.Name()),
				zap.Error(err),
			)
			result = multierror.Append(result, err)
			continue
		}
		count++
	}

	m.loaded = true

	m.logger.Info("Extensions loaded",
		zap.Int("count", count),
		zap.Int("failed", len(exts)-count+len(loadErrs)),
	)

	return result.ErrorOrNil()
}

// install registers ext and every function it declares, or nothing.
func (m *Manager) install(ctx context.Context, ext *Extension) error {
	if !ext.SupportsHost(m.hostMajor) {
		return &UnsupportedHostError{
			ExtensionName: ext.Name(),
			HostVersion:   m.hostMajor,
			Supported:     ext.Manifest.HostVersions,
		}
	}

	fns := make([]*pgext.Function, 0, len(ext.Manifest.Functions))
	for i := range ext.Manifest.Functions {
		fn, err := m.function(ext, &ext.Manifest.Functions[i])
		if err != nil {
			return &LoadError{ExtensionName: ext.Name(), Err: err}
		}
		fns = append(fns, fn)
	}

	if err := m.registry.Register(ext); err != nil {
		return err
	}
	for i, fn := range fns {
		if err := m.functions.Register(fn); err != nil {
			for _, done := range fns[:i] {
				m.functions.Unregister(done.QualifiedName())
			}
			m.registry.Unregister(ext.Name())
			return &LoadError{ExtensionName: ext.Name(), Err: err}
		}
	}
	return nil
}

func (m *Manager) function(ext *Extension, fm *FunctionManifest) (*pgext.Function, error) {
	args, err := fm.ArgTypes()
	if err != nil {
		return nil, err
	}
	returns, err := fm.ReturnType()
	if err != nil {
		return nil, err
	}
	binding, err := m.instanceMgr.Bind(ext.Name(), wasm.FunctionSpec{
		Export:  fm.ExportName(),
		Args:    args,
		Returns: returns,
	})
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fm.QualifiedName(), err)
	}
	schema := fm.Schema
	if schema == "" {
		schema = pgext.DefaultSchema
	}
	return &pgext.Function{
		Name:       fm.Name,
		Schema:     schema,
		Args:       args,
		Returns:    returns,
		Strict:     true,
		Volatility: catalog.Volatility(fm.Volatility),
		Impl:       binding.Impl(),
		Source:     ext.Name(),
	}, nil
}

// GetExtension retrieves an extension by name.
func (m *Manager) GetExtension(name string) (*Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{ExtensionName: name}
	}

	return ext, nil
}

// FindFunction returns the extension providing a qualified function.
func (m *Manager) FindFunction(qualified string) (*Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ext, ok := m.registry.LookupFunction(qualified)
	if !ok {
		return nil, fmt.Errorf("no extension provides function '%s'", qualified)
	}
	return ext, nil
}

// Unload removes an extension's functions and closes its instance.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext, ok := m.registry.Get(name)
	if !ok {
		return &NotFoundError{ExtensionName: name}
	}
	for _, fn := range ext.Functions() {
		m.functions.Unregister(fn)
	}
	m.registry.Unregister(name)
	return m.instanceMgr.Release(ctx, name)
}

// Shutdown gracefully shuts down all extensions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down extension manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Extension manager shutdown complete")
	return nil
}

// Registry returns the extension registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether extensions have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
