package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgxgen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Default log level mismatch: got %s, want info", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.Versions, SupportedVersions) {
		t.Errorf("Default versions mismatch: got %v, want %v", cfg.Versions, SupportedVersions)
	}
	if cfg.Platform != "linux/amd64" {
		t.Errorf("Default platform mismatch: got %s", cfg.Platform)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Default parallelism mismatch: got %d, want 4", cfg.Parallelism)
	}
	if cfg.Wasm.MemoryPages != 256 {
		t.Errorf("Default memory pages mismatch: got %d, want 256", cfg.Wasm.MemoryPages)
	}
	if cfg.Wasm.Timeout() != 5*time.Second {
		t.Errorf("Default timeout mismatch: got %v", cfg.Wasm.Timeout())
	}
	if len(cfg.ExtensionPaths) != 1 || cfg.ExtensionPaths[0] != "./extensions" {
		t.Errorf("Default extension paths mismatch: got %v", cfg.ExtensionPaths)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
versions: [13, 14]
platform: linux/arm64
include_dirs:
  "14": [/opt/pg14/include/server, /opt/pg14/include]
wasm:
  memory_pages: 32
  execution_timeout: 1
probe:
  dsn: postgres://localhost/postgres
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Log level mismatch: got %s, want debug", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.Versions, []int{13, 14}) {
		t.Errorf("Versions mismatch: got %v", cfg.Versions)
	}
	if cfg.Platform != "linux/arm64" {
		t.Errorf("Platform mismatch: got %s", cfg.Platform)
	}
	if cfg.Wasm.MemoryPages != 32 {
		t.Errorf("Memory pages mismatch: got %d", cfg.Wasm.MemoryPages)
	}
	if cfg.Probe.DSN != "postgres://localhost/postgres" {
		t.Errorf("DSN mismatch: got %s", cfg.Probe.DSN)
	}

	want := []string{"/opt/pg14/include/server", "/opt/pg14/include"}
	if got := cfg.VersionIncludeDirs(14); !reflect.DeepEqual(got, want) {
		t.Errorf("VersionIncludeDirs(14) = %v, want %v", got, want)
	}
	if got := cfg.VersionIncludeDirs(13); !reflect.DeepEqual(got, []string{"/usr/include/postgresql/13/server"}) {
		t.Errorf("VersionIncludeDirs(13) = %v", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PGXGEN_LOG_LEVEL", "warn")
	t.Setenv("PGXGEN_WASM_MAX_INSTANCES", "7")

	cfg, err := Load(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Log level mismatch: got %s, want warn", cfg.LogLevel)
	}
	if cfg.Wasm.MaxInstances != 7 {
		t.Errorf("Max instances mismatch: got %d, want 7", cfg.Wasm.MaxInstances)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown version", "versions: [9]\n"},
		{"duplicate version", "versions: [14, 14]\n"},
		{"bad include key", "include_dirs:\n  \"15\": [/x]\n"},
		{"zero parallelism", "parallelism: 0\n"},
		{"invalid yaml", "versions: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Load() should fail for %s", tt.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
