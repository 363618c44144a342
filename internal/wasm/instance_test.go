package wasm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/internal/wasm/wasmtest"
	"github.com/woxQAQ/pgxbridge/pkg/host"
)

type message struct {
	level host.Level
	text  string
}

func loadSample(t *testing.T, config *RuntimeConfig) (*Runtime, *InstanceManager) {
	t.Helper()
	runtime := newTestRuntime(t, config)
	logger := zaptest.NewLogger(t)
	if _, err := NewModuleLoader(runtime, logger).LoadModuleFromMemory(context.Background(), "sample", wasmtest.Sample()); err != nil {
		t.Fatalf("Failed to load sample: %v", err)
	}
	return runtime, NewInstanceManager(runtime, logger)
}

func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	runtime, manager := loadSample(t, nil)

	inst, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample", Exports: []string{"add", "alloc"}})
	if err != nil {
		t.Fatalf("Failed to instantiate: %v", err)
	}
	if len(inst.ID) != 36 {
		t.Errorf("Instance ID %q is not a UUID", inst.ID)
	}
	if got, ok := runtime.GetInstance(inst.ID); !ok || got != inst {
		t.Error("Instance not tracked by runtime")
	}
	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount = %d, want 1", runtime.InstanceCount())
	}

	res, err := inst.Call(ctx, "add", nil, api.EncodeI32(40), api.EncodeI32(2))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if got := api.DecodeI32(res[0]); got != 42 {
		t.Errorf("add = %d, want 42", got)
	}

	if err := inst.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !inst.Closed() || runtime.InstanceCount() != 0 {
		t.Error("Closed instance still tracked")
	}
}

func TestInstantiateErrors(t *testing.T) {
	ctx := context.Background()
	_, manager := loadSample(t, nil)

	_, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "nope"})
	var notFound *ModuleNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ModuleNotFoundError, got %v", err)
	}

	_, err = manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample", Exports: []string{"parse"}})
	var fnErr *FunctionNotFoundError
	if !errors.As(err, &fnErr) {
		t.Fatalf("Expected FunctionNotFoundError, got %v", err)
	}
	if fnErr.FunctionName != "parse" || fnErr.SQLState() != host.UndefinedFunction {
		t.Errorf("Unexpected error %+v", fnErr)
	}
}

func TestInstanceLimit(t *testing.T) {
	ctx := context.Background()
	config := DefaultRuntimeConfig()
	config.MaxInstances = 1
	runtime, manager := loadSample(t, config)

	first, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	var limitErr *InstanceLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected InstanceLimitError, got %v", err)
	}
	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount = %d after rejected instantiate, want 1", runtime.InstanceCount())
	}

	if err := first.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"}); err != nil {
		t.Errorf("Instantiate after close failed: %v", err)
	}
}

func TestGuestTrap(t *testing.T) {
	ctx := context.Background()
	_, manager := loadSample(t, nil)
	inst, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = inst.Call(ctx, "div", nil, api.EncodeI32(1), api.EncodeI32(0))
	var trap *TrapError
	if !errors.As(err, &trap) {
		t.Fatalf("Expected TrapError, got %v", err)
	}
	if trap.SQLState() != host.ExternalRoutineException {
		t.Errorf("SQLState = %s, want %s", trap.SQLState(), host.ExternalRoutineException)
	}
	if !strings.Contains(trap.Error(), "divide by zero") {
		t.Errorf("Trap message %q does not name the fault", trap.Error())
	}

	// A trap leaves the instance usable.
	res, err := inst.Call(ctx, "div", nil, api.EncodeI32(9), api.EncodeI32(3))
	if err != nil {
		t.Fatalf("div after trap failed: %v", err)
	}
	if api.DecodeI32(res[0]) != 3 {
		t.Errorf("div = %d, want 3", api.DecodeI32(res[0]))
	}
}

func TestGuestRaiseError(t *testing.T) {
	ctx := context.Background()
	_, manager := loadSample(t, nil)
	inst, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = inst.Call(ctx, "fail", nil)
	var gerr *GuestError
	if !errors.As(err, &gerr) {
		t.Fatalf("Expected GuestError, got %v", err)
	}
	if gerr.SQLState() != host.DivisionByZero {
		t.Errorf("SQLState = %s, want %s", gerr.SQLState(), host.DivisionByZero)
	}
	if gerr.Message != wasmtest.SampleErrorMessage {
		t.Errorf("Message = %q", gerr.Message)
	}

	bad := &GuestError{Code: "oops", Message: "x"}
	if bad.SQLState() != host.RaiseException {
		t.Errorf("Malformed code maps to %s, want %s", bad.SQLState(), host.RaiseException)
	}
}

func TestGuestLogMessage(t *testing.T) {
	ctx := context.Background()
	_, manager := loadSample(t, &RuntimeConfig{MemoryPages: 16, DebugEnabled: true, MaxInstances: 4})
	inst, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	if err != nil {
		t.Fatal(err)
	}

	var got []message
	report := func(level host.Level, msg string) {
		got = append(got, message{level, msg})
	}
	if _, err := inst.Call(ctx, "note", report); err != nil {
		t.Fatalf("note failed: %v", err)
	}
	if len(got) != 1 || got[0].level != host.Notice || got[0].text != wasmtest.SampleNotice {
		t.Errorf("Reported %+v", got)
	}

	_, err = inst.Call(ctx, "bad_log", report)
	var herr *HostFunctionError
	if !errors.As(err, &herr) {
		t.Fatalf("Expected HostFunctionError, got %v", err)
	}
	var merr *MemoryAccessError
	if !errors.As(herr, &merr) || merr.Address != 0x7fff0000 {
		t.Errorf("Expected MemoryAccessError at 0x7fff0000, got %v", herr.Err)
	}
}

func TestGuestLevels(t *testing.T) {
	cases := map[uint32]host.Level{
		0:  host.Debug1,
		1:  host.Info,
		2:  host.Notice,
		3:  host.Warning,
		99: host.Warning,
	}
	for in, want := range cases {
		if got := guestLevel(in); got != want {
			t.Errorf("guestLevel(%d) = %s, want %s", in, got, want)
		}
	}
}

func TestTimeoutClosesInstance(t *testing.T) {
	ctx := context.Background()
	config := DefaultRuntimeConfig()
	config.Timeout = 50 * time.Millisecond
	runtime, manager := loadSample(t, config)

	inst, err := manager.Shared(ctx, "sample", []string{"spin"})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = inst.Call(ctx, "spin", nil)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TimeoutError, got %v", err)
	}
	if timeout.SQLState() != host.QueryCanceled {
		t.Errorf("SQLState = %s, want %s", timeout.SQLState(), host.QueryCanceled)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Timeout took %v", elapsed)
	}
	if !inst.Closed() || runtime.InstanceCount() != 0 {
		t.Error("Interrupted instance should be closed")
	}

	again, err := manager.Shared(ctx, "sample", []string{"spin"})
	if err != nil {
		t.Fatal(err)
	}
	if again == inst {
		t.Error("Shared should replace a closed instance")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, manager := loadSample(t, nil)
	inst, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "sample"})
	if err != nil {
		t.Fatal(err)
	}
	mem := inst.Memory()

	ptr, n, err := mem.WriteString(ctx, "select 1")
	if err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if ptr < 1024 || n != 8 {
		t.Errorf("WriteString = (%d, %d)", ptr, n)
	}
	s, ok := mem.ReadString(ptr, n)
	if !ok || s != "select 1" {
		t.Errorf("ReadString = %q, %v", s, ok)
	}

	ptr2, _, err := mem.WriteBytes(ctx, []byte{'a', 0, 'b'})
	if err != nil {
		t.Fatal(err)
	}
	if ptr2 != ptr+n {
		t.Errorf("Second allocation at %d, want %d", ptr2, ptr+n)
	}
	if s, _ := mem.ReadString(ptr2, 3); s != "a" {
		t.Errorf("ReadString stops at NUL, got %q", s)
	}
	if _, ok := mem.ReadBytes(1<<20, 4); ok {
		t.Error("Out of bounds read succeeded")
	}
}

func TestMemoryWithoutAlloc(t *testing.T) {
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)
	logger := zaptest.NewLogger(t)
	loader := NewModuleLoader(runtime, logger)
	instances := NewInstanceManager(runtime, logger)

	add := wasmtest.Func{
		Export: "add",
		Type:   wasmtest.FuncType{Params: []wasmtest.ValType{wasmtest.I32, wasmtest.I32}, Results: []wasmtest.ValType{wasmtest.I32}},
		Body:   wasmtest.Code(wasmtest.LocalGet(0), wasmtest.LocalGet(1), wasmtest.OpI32Add),
	}
	withMemory := (&wasmtest.Module{MemoryPages: 1, Funcs: []wasmtest.Func{add}}).Build()

	for _, tc := range []struct {
		name string
		wasm []byte
		op   string
	}{
		{"nomem", wasmtest.Minimal(), "write"},
		{"noalloc", withMemory, "alloc"},
	} {
		if _, err := loader.LoadModuleFromMemory(ctx, tc.name, tc.wasm); err != nil {
			t.Fatal(err)
		}
		inst, err := instances.Instantiate(ctx, &InstanceConfig{ModuleName: tc.name})
		if err != nil {
			t.Fatal(err)
		}

		_, _, err = inst.Memory().WriteString(ctx, "x")
		var merr *MemoryAccessError
		if !errors.As(err, &merr) {
			t.Fatalf("%s: expected MemoryAccessError, got %v", tc.name, err)
		}
		if merr.Operation != tc.op {
			t.Errorf("%s: operation = %q, want %q", tc.name, merr.Operation, tc.op)
		}
	}
}
