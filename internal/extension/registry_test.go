package extension

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func fakeExtension(name string, functions ...string) *Extension {
	m := &Manifest{Name: name, Version: "1.0.0"}
	for _, fn := range functions {
		m.Functions = append(m.Functions, FunctionManifest{Name: fn, Returns: "int4"})
	}
	return &Extension{Manifest: m}
}

func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry(zaptest.NewLogger(t))

	if err := registry.Register(fakeExtension("a", "f", "g")); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}

	ext, ok := registry.Get("a")
	if !ok || ext.Name() != "a" {
		t.Fatal("Get() did not return the registered extension")
	}
	if ext, ok := registry.LookupFunction("public.g"); !ok || ext.Name() != "a" {
		t.Error("LookupFunction() did not find public.g")
	}
	if _, ok := registry.LookupFunction("public.h"); ok {
		t.Error("LookupFunction() found an undeclared function")
	}
}

func TestRegistryDuplicates(t *testing.T) {
	registry := NewRegistry(zaptest.NewLogger(t))
	if err := registry.Register(fakeExtension("a", "f")); err != nil {
		t.Fatal(err)
	}

	err := registry.Register(fakeExtension("a", "other"))
	if _, ok := err.(*AlreadyRegisteredError); !ok {
		t.Errorf("expected AlreadyRegisteredError, got %T", err)
	}

	err = registry.Register(fakeExtension("b", "x", "f"))
	conflict, ok := err.(*FunctionConflictError)
	if !ok {
		t.Fatalf("expected FunctionConflictError, got %T", err)
	}
	if conflict.Owner != "a" || conflict.Other != "b" || conflict.Function != "public.f" {
		t.Errorf("Unexpected conflict %+v", conflict)
	}
	// a failed registration leaves nothing behind
	if _, ok := registry.LookupFunction("public.x"); ok {
		t.Error("Conflicting extension partially registered")
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
}

func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry(zaptest.NewLogger(t))
	_ = registry.Register(fakeExtension("b", "g"))
	_ = registry.Register(fakeExtension("a", "f"))

	list := registry.List()
	if len(list) != 2 || list[0].Name() != "a" || list[1].Name() != "b" {
		t.Errorf("List() not sorted by name")
	}

	registry.Unregister("a")
	registry.Unregister("missing")
	if _, ok := registry.Get("a"); ok {
		t.Error("Unregistered extension still present")
	}
	if _, ok := registry.LookupFunction("public.f"); ok {
		t.Error("Function of unregistered extension still indexed")
	}
	if err := registry.Register(fakeExtension("c", "f")); err != nil {
		t.Errorf("Function name not released: %v", err)
	}
}
