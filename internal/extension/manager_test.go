package extension

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/api/catalog"
	"github.com/woxQAQ/pgxbridge/internal/config"
	"github.com/woxQAQ/pgxbridge/internal/wasm"
	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/host/sim"
	"github.com/woxQAQ/pgxbridge/pkg/pgext"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func newTestManager(t *testing.T, paths ...string) (*Manager, *pgext.Runtime, *sim.Backend) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := sim.New(logger)
	t.Cleanup(b.Close)
	functions := pgext.NewRuntime(b, logger)
	return NewManager(testConfig(paths...), newTestRuntime(t), functions, logger), functions, b
}

func otherHostVersion() int {
	if pgsys.PgMajor == 10 {
		return 11
	}
	return 10
}

func TestManagerLoadAll(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "mathx", sampleManifest("mathx"))
	manager, functions, b := newTestManager(t, base)

	if manager.IsLoaded() {
		t.Error("Manager should not be loaded initially")
	}
	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
	if err := manager.LoadAll(context.Background()); err == nil {
		t.Error("Second LoadAll() should fail")
	}

	fn, ok := functions.Lookup("mathx_add")
	if !ok {
		t.Fatal("mathx_add not registered")
	}
	if !fn.Strict || fn.Source != "mathx" || fn.Volatility != catalog.Immutable {
		t.Errorf("Unexpected registration %+v", fn)
	}
	if fn, ok := functions.Lookup("util.mathx_len"); !ok || fn.Volatility != catalog.Volatile {
		t.Errorf("util.mathx_len not registered with default volatility")
	}
	if ext, err := manager.FindFunction("public.mathx_add"); err != nil || ext.Name() != "mathx" {
		t.Errorf("FindFunction() = %v, %v", ext, err)
	}

	edata := b.Exec(func() {
		a, _ := functions.Codec().Encode(int32(40), datum.TypeInt4)
		c, _ := functions.Codec().Encode(int32(2), datum.TypeInt4)
		d, isNull, edata := functions.Invoke("mathx_add", []pgsys.Datum{a, c}, []bool{false, false})
		if edata != nil || isNull {
			t.Fatalf("mathx_add failed: %+v", edata)
		}
		if got := pgsys.DatumGetInt32(d); got != 42 {
			t.Errorf("mathx_add = %d, want 42", got)
		}

		s, _ := functions.Codec().Encode("four", datum.TypeText)
		d, _, edata = functions.Invoke("util.mathx_len", []pgsys.Datum{s}, []bool{false})
		if edata != nil || pgsys.DatumGetInt32(d) != 4 {
			t.Errorf("util.mathx_len = %d, %+v", pgsys.DatumGetInt32(d), edata)
		}
	})
	if edata != nil {
		t.Fatalf("Statement failed: %+v", edata)
	}

	cat := functions.Catalog()
	if info, ok := cat.Function("util", "mathx_len"); !ok || info.Source != "mathx" {
		t.Errorf("Catalog entry for util.mathx_len = %+v", info)
	}
}

func TestStartFromConfig(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "mathx", sampleManifest("mathx"))
	logger := zaptest.NewLogger(t)
	b := sim.New(logger)
	t.Cleanup(b.Close)
	functions := pgext.NewRuntime(b, logger)

	cfg := testConfig(base)
	cfg.Wasm = config.WasmConfig{MemoryPages: 32, MaxInstances: 2, ExecutionTimeout: 1}
	manager, err := Start(context.Background(), cfg, functions, logger)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
	rc := manager.runtime.Config()
	if rc.MemoryPages != 32 || rc.MaxInstances != 2 || rc.Timeout != time.Second {
		t.Errorf("Runtime not configured from cfg.Wasm: %+v", rc)
	}
	if _, ok := functions.Lookup("mathx_add"); !ok {
		t.Error("mathx_add not registered")
	}
}

func TestManagerNoExtensions(t *testing.T) {
	manager, _, _ := newTestManager(t, t.TempDir())

	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() with no extensions should succeed, got %v", err)
	}
	if manager.Registry().Count() != 0 {
		t.Errorf("Count() = %d, want 0", manager.Registry().Count())
	}
}

func TestManagerRejectsOtherHostVersion(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "good", sampleManifest("good"))
	old := strings.Replace(sampleManifest("old"),
		fmt.Sprintf("host_versions: [%d]", pgsys.PgMajor),
		fmt.Sprintf("host_versions: [%d]", otherHostVersion()), 1)
	writeExtension(t, base, "old", old)
	manager, functions, _ := newTestManager(t, base)

	err := manager.LoadAll(context.Background())
	var unsupported *UnsupportedHostError
	if !asError(err, &unsupported) {
		t.Fatalf("Expected UnsupportedHostError, got %v", err)
	}
	if unsupported.ExtensionName != "old" || unsupported.HostVersion != pgsys.PgMajor {
		t.Errorf("Unexpected error %+v", unsupported)
	}
	if _, err := manager.GetExtension("old"); err == nil {
		t.Error("Unsupported extension was registered")
	}
	if _, ok := functions.Lookup("old_add"); ok {
		t.Error("Function of unsupported extension was registered")
	}
	if _, err := manager.GetExtension("good"); err != nil {
		t.Errorf("Supported extension not loaded: %v", err)
	}
}

func TestManagerBadExportInstallsNothing(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "typo", strings.Replace(sampleManifest("typo"), "export: text_len", "export: text_length", 1))
	manager, functions, _ := newTestManager(t, base)

	err := manager.LoadAll(context.Background())
	var notFound *wasm.FunctionNotFoundError
	if !asError(err, &notFound) {
		t.Fatalf("Expected FunctionNotFoundError, got %v", err)
	}
	if len(functions.Functions()) != 0 {
		t.Errorf("Partially installed: %d functions registered", len(functions.Functions()))
	}
	if manager.Registry().Count() != 0 {
		t.Error("Extension with a bad export was registered")
	}
}

func TestManagerFunctionTakenByHostCode(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "dup", sampleManifest("dup"))
	manager, functions, _ := newTestManager(t, base)
	functions.MustRegister(&pgext.Function{
		Name:    "dup_len",
		Schema:  "util",
		Returns: datum.TypeInt4,
		Impl:    func(*pgext.Call, []any) (any, error) { return int32(0), nil },
	})

	if err := manager.LoadAll(context.Background()); err == nil {
		t.Fatal("LoadAll() should report the clash")
	}
	if _, ok := functions.Lookup("dup_add"); ok {
		t.Error("dup_add left registered after a failed install")
	}
	if manager.Registry().Count() != 0 {
		t.Error("Extension left in the registry after a failed install")
	}
}

func TestManagerUnload(t *testing.T) {
	base := t.TempDir()
	writeExtension(t, base, "mathx", sampleManifest("mathx"))
	manager, functions, _ := newTestManager(t, base)
	ctx := context.Background()

	if err := manager.LoadAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := manager.Unload(ctx, "mathx"); err != nil {
		t.Fatalf("Unload() failed: %v", err)
	}
	if _, ok := functions.Lookup("mathx_add"); ok {
		t.Error("mathx_add still registered")
	}
	if _, err := manager.GetExtension("mathx"); err == nil {
		t.Error("Extension still registered")
	}
	if err := manager.Unload(ctx, "mathx"); err == nil {
		t.Error("Unloading twice should fail")
	}
	if err := manager.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}
