package wasm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestRuntime(t *testing.T, config *RuntimeConfig) *Runtime {
	t.Helper()
	runtime, err := NewRuntime(context.Background(), zaptest.NewLogger(t), config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() {
		if err := runtime.Close(context.Background()); err != nil {
			t.Errorf("Failed to close runtime: %v", err)
		}
	})
	return runtime
}

func TestNewRuntime(t *testing.T) {
	runtime := newTestRuntime(t, nil)

	if runtime.IsClosed() {
		t.Error("New runtime reports closed")
	}
	if runtime.Config().Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want default 5s", runtime.Config().Timeout)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	runtime, err := NewRuntime(ctx, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if !runtime.IsClosed() {
		t.Error("Runtime should be closed")
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 256 {
		t.Errorf("Default memory pages = %d, want 256", config.MemoryPages)
	}
	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}
	if config.MaxInstances != 100 {
		t.Errorf("Default max instances = %d, want 100", config.MaxInstances)
	}
}

func TestRuntimeWithCacheDir(t *testing.T) {
	dir := t.TempDir()
	runtime := newTestRuntime(t, &RuntimeConfig{
		MemoryPages:  16,
		CacheDir:     dir,
		MaxInstances: 1,
	})

	if runtime.cache == nil {
		t.Fatal("Compilation cache not configured")
	}
	if runtime.Config().CacheDir != dir {
		t.Errorf("CacheDir = %q, want %q", runtime.Config().CacheDir, dir)
	}
}
