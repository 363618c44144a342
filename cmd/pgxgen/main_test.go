package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testConfig(t *testing.T) (options, string) {
	t.Helper()
	color.NoColor = true

	abs := func(parts ...string) string {
		p, err := filepath.Abs(filepath.Join(parts...))
		require.NoError(t, err)
		return p
	}
	headers := abs("..", "..", "internal", "introspect", "testdata")
	dirs := make(map[string][]string)
	for _, v := range []int{12, 13, 14} {
		dirs[fmt.Sprint(v)] = []string{filepath.Join(headers, fmt.Sprintf("pg%d", v)), filepath.Join(headers, "common")}
	}

	tmp := t.TempDir()
	out := filepath.Join(tmp, "pgsys")
	cfg := map[string]any{
		"log_level":    "error",
		"versions":     []int{12, 13, 14},
		"platform":     "linux/amd64",
		"allowlist":    filepath.Join(headers, "allowlist.yaml"),
		"corrections":  abs("..", "..", "internal", "synth", "testdata", "corrections.yaml"),
		"include_dirs": dirs,
		"output_dir":   out,
		"cache_dir":    "",
		"parallelism":  2,
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(tmp, "pgxgen.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return options{Config: path}, out
}

func TestGenerateThenCheck(t *testing.T) {
	opts, out := testConfig(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, run(ctx, opts, "generate", &buf))
	assert.Contains(t, buf.String(), "wrote pg14.go")
	assert.FileExists(t, filepath.Join(out, "pg14.go"))
	assert.FileExists(t, filepath.Join(out, "select_none.go"))

	opts.Generate.Check = true
	buf.Reset()
	require.NoError(t, run(ctx, opts, "generate", &buf))
	assert.Empty(t, buf.String())

	require.NoError(t, os.WriteFile(filepath.Join(out, "pg13.go"), []byte("package pgsys\n"), 0o644))
	buf.Reset()
	err := run(ctx, opts, "generate", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of date")
	assert.Contains(t, buf.String(), "stale: pg13.go")
}

func TestInspect(t *testing.T) {
	opts, _ := testConfig(t)
	ctx := context.Background()

	var buf bytes.Buffer
	opts.Inspect.Version = 14
	require.NoError(t, run(ctx, opts, "inspect", &buf))
	var desc struct {
		Version  int    `yaml:"version"`
		Platform string `yaml:"platform"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &desc))
	assert.Equal(t, 14, desc.Version)
	assert.Equal(t, "linux/amd64", desc.Platform)

	buf.Reset()
	opts.Inspect.Report = true
	require.NoError(t, run(ctx, opts, "inspect", &buf))
	assert.Contains(t, buf.String(), "versions: [12 13 14]")

	opts.Inspect.Version, opts.Inspect.Report = 0, false
	assert.Error(t, run(ctx, opts, "inspect", &buf))
}

func TestProbeNeedsDSN(t *testing.T) {
	opts, _ := testConfig(t)
	opts.Probe.Version = 14
	err := run(context.Background(), opts, "probe", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dsn")
}

func TestBadConfig(t *testing.T) {
	err := run(context.Background(), options{Config: filepath.Join(t.TempDir(), "missing.yaml")}, "generate", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
