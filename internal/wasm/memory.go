package wasm

import (
	"bytes"
	"context"
	"errors"
	"reflect"

	"github.com/tetratelabs/wazero/api"
)

// allocExport is the guest function the host calls to reserve memory for
// arguments: alloc(size i32) i32.
const allocExport = "alloc"

// Memory provides bounds-checked access to an instance's linear memory.
// Guest memory is separate from host memory; values are always copied
// across.
type Memory struct {
	module api.Module
	mem    api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	m := &Memory{module: module}
	// Memory returns a typed nil for modules that define none.
	if mem := module.Memory(); mem != nil && !reflect.ValueOf(mem).IsNil() {
		m.mem = mem
	}
	return m
}

// ReadString reads a null-terminated string from Wasm memory.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.ReadBytes(ptr, maxLen)
	if !ok {
		return "", false
	}
	if end := bytes.IndexByte(buf, 0); end >= 0 {
		buf = buf[:end]
	}
	return string(buf), true
}

// ReadBytes returns a copy of length bytes at ptr.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return bytes.Clone(buf), true
}

// WriteBytes reserves guest memory through the guest's alloc export and
// copies data into it.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	n := uint32(len(data))
	if m.mem == nil {
		return 0, 0, &MemoryAccessError{Operation: "write", Length: n, Err: errors.New("module has no memory")}
	}
	alloc := m.module.ExportedFunction(allocExport)
	if alloc == nil {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: n,
			Err: &FunctionNotFoundError{ModuleName: m.module.Name(), FunctionName: allocExport}}
	}
	res, err := alloc.Call(ctx, api.EncodeU32(n))
	if err != nil {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: n, Err: err}
	}
	ptr := api.DecodeU32(res[0])
	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: n, Err: errors.New("out of bounds")}
	}
	return ptr, n, nil
}

// WriteString writes a string to Wasm memory.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	return m.WriteBytes(ctx, []byte(s))
}
