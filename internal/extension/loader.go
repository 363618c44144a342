package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/internal/wasm"
)

// Loader handles loading extensions from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new extension loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "extension-loader")),
	}
}

// LoadExtension loads a single extension from a directory. The module is
// compiled under the extension's name.
func (l *Loader) LoadExtension(ctx context.Context, dir string) (*Extension, error) {
	l.logger.Debug("Loading extension", zap.String("dir", dir))

	// Parse manifest
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading extension",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Ints("host_versions", manifest.HostVersions),
	)

	// Compile Wasm module (cached by name, recompiled when the bytes change)
	data, err := os.ReadFile(manifest.WasmPath())
	if err != nil {
		return nil, &LoadError{ExtensionName: manifest.Name, Err: err}
	}
	compiled, err := l.moduleLoader.LoadModuleFromMemory(ctx, manifest.Name, data)
	if err != nil {
		return nil, &LoadError{
			ExtensionName: manifest.Name,
			Err:           err,
		}
	}

	// Create extension instance
	ext := &Extension{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Extension loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Int("functions", len(manifest.Functions)),
	)

	return ext, nil
}

// DiscoverExtensions loads every subdirectory of paths as an extension.
// Directories that fail to load are logged and returned in errs.
func (l *Loader) DiscoverExtensions(ctx context.Context, paths []string) (exts []*Extension, errs []error, err error) {
	for _, basePath := range paths {
		l.logger.Debug("Scanning extension directory", zap.String("path", basePath))

		// Read subdirectories
		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Extension path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			// Try to load each subdirectory as an extension
			dir := filepath.Join(basePath, entry.Name())

			ext, err := l.LoadExtension(ctx, dir)
			if err != nil {
				l.logger.Error("Failed to load extension",
					zap.String("dir", dir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			exts = append(exts, ext)
		}
	}

	// Partial failure is logged; the loaded extensions are still returned
	if len(exts) > 0 && len(errs) > 0 {
		l.logger.Warn("Some extensions failed to load",
			zap.Int("loaded", len(exts)),
			zap.Int("failed", len(errs)),
		)
	}

	// Nothing found at all is an error
	if len(exts) == 0 && len(errs) == 0 {
		return nil, nil, &NoExtensionsFoundError{Paths: paths}
	}

	return exts, errs, nil
}
