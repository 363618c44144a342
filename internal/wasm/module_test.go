package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/internal/wasm/wasmtest"
)

func TestLoadModuleFromMemory(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loader := NewModuleLoader(runtime, zaptest.NewLogger(t))

	module, err := loader.LoadModuleFromMemory(ctx, "sample", wasmtest.Sample())
	if err != nil {
		t.Fatalf("Failed to load module: %v", err)
	}
	if module.Name != "sample" {
		t.Errorf("Module name = %s, want 'sample'", module.Name)
	}
	if _, ok := module.Export("add"); !ok {
		t.Error("Export 'add' not found")
	}

	// Same bytes hit the cache.
	module2, err := loader.LoadModuleFromMemory(ctx, "sample", wasmtest.Sample())
	if err != nil {
		t.Fatalf("Failed to load module from cache: %v", err)
	}
	if module2 != module {
		t.Error("Cache should return the same module instance")
	}

	// Different bytes under the same name recompile.
	module3, err := loader.LoadModuleFromMemory(ctx, "sample", wasmtest.Minimal())
	if err != nil {
		t.Fatalf("Failed to reload module: %v", err)
	}
	if module3 == module {
		t.Error("Changed module should be recompiled")
	}
	if _, ok := module3.Export("echo"); ok {
		t.Error("Recompiled module still exports 'echo'")
	}
}

func TestModuleLoaderFileSource(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loader := NewModuleLoader(runtime, zaptest.NewLogger(t))

	path := filepath.Join(t.TempDir(), "minimal.wasm")
	if err := os.WriteFile(path, wasmtest.Minimal(), 0o644); err != nil {
		t.Fatal(err)
	}

	module, err := loader.LoadModuleFromFile(ctx, path)
	if err != nil {
		t.Fatalf("Failed to load module: %v", err)
	}
	if module.SizeBytes != int64(len(wasmtest.Minimal())) {
		t.Errorf("SizeBytes = %d, want %d", module.SizeBytes, len(wasmtest.Minimal()))
	}

	if _, err := loader.LoadModuleFromFile(ctx, filepath.Join(t.TempDir(), "missing.wasm")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCompilationError(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loader := NewModuleLoader(runtime, zaptest.NewLogger(t))

	_, err := loader.LoadModuleFromMemory(ctx, "garbage", []byte("not wasm"))
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected CompilationError, got %v", err)
	}
	if compErr.ModuleName != "garbage" {
		t.Errorf("ModuleName = %s, want 'garbage'", compErr.ModuleName)
	}
}

func TestForeignImportRejected(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	loader := NewModuleLoader(runtime, zaptest.NewLogger(t))

	m := &wasmtest.Module{
		Imports: []wasmtest.Import{{Module: "env", Name: "syscall", Type: wasmtest.FuncType{}}},
	}
	_, err := loader.LoadModuleFromMemory(ctx, "foreign", m.Build())
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected CompilationError, got %v", err)
	}
	if _, ok := runtime.GetCompiledModule("foreign"); ok {
		t.Error("Rejected module should not be cached")
	}
}
