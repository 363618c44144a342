// Package wasmtest assembles small WebAssembly modules for tests.
package wasmtest

import (
	"encoding/binary"
	"math"
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

// Opcodes used by the fixtures.
const (
	OpUnreachable  byte = 0x00
	OpLoop         byte = 0x03
	OpBr           byte = 0x0c
	OpEnd          byte = 0x0b
	OpCall         byte = 0x10
	OpDrop         byte = 0x1a
	OpLocalGet     byte = 0x20
	OpGlobalGet    byte = 0x23
	OpGlobalSet    byte = 0x24
	OpI32Const     byte = 0x41
	OpI64Const     byte = 0x42
	OpF64Const     byte = 0x44
	OpI32Add       byte = 0x6a
	OpI32DivS      byte = 0x6d
	OpI64Add       byte = 0x7c
	OpI64Or        byte = 0x84
	OpI64Shl       byte = 0x86
	OpF64Mul       byte = 0xa2
	OpI64ExtendI32 byte = 0xad // i64.extend_i32_u
	OpBlockEmpty   byte = 0x40
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is an imported function.
type Import struct {
	Module string
	Name   string
	Type   FuncType
}

// Func is a defined function. Its index follows the imports. Export is
// the export name, empty for none. Body is the instruction sequence
// without the final end.
type Func struct {
	Export string
	Type   FuncType
	Locals []ValType
	Body   []byte
}

// Global is a mutable i32 global.
type Global struct {
	Init int32
}

// Data is an active data segment in memory 0.
type Data struct {
	Offset int32
	Bytes  []byte
}

// Module describes a module to assemble.
type Module struct {
	Imports []Import
	Funcs   []Func
	Globals []Global
	// MemoryPages is the initial size of memory 0; zero means no memory.
	MemoryPages  uint32
	ExportMemory bool
	Data         []Data
}

// Code concatenates opcodes and encoded immediates.
func Code(parts ...any) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			out = append(out, v)
		case []byte:
			out = append(out, v...)
		default:
			panic("wasmtest: Code takes byte or []byte")
		}
	}
	return out
}

func LocalGet(i uint32) []byte  { return append([]byte{OpLocalGet}, u32(i)...) }
func GlobalGet(i uint32) []byte { return append([]byte{OpGlobalGet}, u32(i)...) }
func GlobalSet(i uint32) []byte { return append([]byte{OpGlobalSet}, u32(i)...) }
func Call(i uint32) []byte      { return append([]byte{OpCall}, u32(i)...) }
func I32Const(v int32) []byte   { return append([]byte{OpI32Const}, s64(int64(v))...) }
func I64Const(v int64) []byte   { return append([]byte{OpI64Const}, s64(v)...) }

func F64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{OpF64Const}, math.Float64bits(v))
}

// Build assembles the binary module.
func (m *Module) Build() []byte {
	var types []FuncType
	typeIndex := func(ft FuncType) uint32 {
		for i, t := range types {
			if sameType(t, ft) {
				return uint32(i)
			}
		}
		types = append(types, ft)
		return uint32(len(types) - 1)
	}

	var imports, funcs, exports, code []byte
	var nImports, nExports uint32
	for _, im := range m.Imports {
		imports = append(imports, name(im.Module)...)
		imports = append(imports, name(im.Name)...)
		imports = append(imports, 0x00)
		imports = append(imports, u32(typeIndex(im.Type))...)
		nImports++
	}
	for i, f := range m.Funcs {
		funcs = append(funcs, u32(typeIndex(f.Type))...)
		if f.Export != "" {
			exports = append(exports, name(f.Export)...)
			exports = append(exports, 0x00)
			exports = append(exports, u32(nImports+uint32(i))...)
			nExports++
		}
		var body []byte
		body = append(body, u32(uint32(len(f.Locals)))...)
		for _, l := range f.Locals {
			body = append(body, 0x01, byte(l))
		}
		body = append(body, f.Body...)
		body = append(body, OpEnd)
		code = append(code, u32(uint32(len(body)))...)
		code = append(code, body...)
	}
	if m.MemoryPages > 0 && m.ExportMemory {
		exports = append(exports, name("memory")...)
		exports = append(exports, 0x02, 0x00)
		nExports++
	}

	var typeSec []byte
	for _, t := range types {
		typeSec = append(typeSec, 0x60)
		typeSec = append(typeSec, valTypes(t.Params)...)
		typeSec = append(typeSec, valTypes(t.Results)...)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = section(out, 1, uint32(len(types)), typeSec)
	if nImports > 0 {
		out = section(out, 2, nImports, imports)
	}
	if len(m.Funcs) > 0 {
		out = section(out, 3, uint32(len(m.Funcs)), funcs)
	}
	if m.MemoryPages > 0 {
		out = section(out, 5, 1, append([]byte{0x00}, u32(m.MemoryPages)...))
	}
	if len(m.Globals) > 0 {
		var g []byte
		for _, gl := range m.Globals {
			g = append(g, byte(I32), 0x01)
			g = append(g, I32Const(gl.Init)...)
			g = append(g, OpEnd)
		}
		out = section(out, 6, uint32(len(m.Globals)), g)
	}
	if nExports > 0 {
		out = section(out, 7, nExports, exports)
	}
	if len(m.Funcs) > 0 {
		out = section(out, 10, uint32(len(m.Funcs)), code)
	}
	if len(m.Data) > 0 {
		var d []byte
		for _, seg := range m.Data {
			d = append(d, 0x00)
			d = append(d, I32Const(seg.Offset)...)
			d = append(d, OpEnd)
			d = append(d, u32(uint32(len(seg.Bytes)))...)
			d = append(d, seg.Bytes...)
		}
		out = section(out, 11, uint32(len(m.Data)), d)
	}
	return out
}

func section(out []byte, id byte, count uint32, contents []byte) []byte {
	body := append(u32(count), contents...)
	out = append(out, id)
	out = append(out, u32(uint32(len(body)))...)
	return append(out, body...)
}

func sameType(a, b FuncType) bool {
	return string(valTypes(a.Params)) == string(valTypes(b.Params)) &&
		string(valTypes(a.Results)) == string(valTypes(b.Results))
}

func valTypes(ts []ValType) []byte {
	out := u32(uint32(len(ts)))
	for _, t := range ts {
		out = append(out, byte(t))
	}
	return out
}

func name(s string) []byte {
	return append(u32(uint32(len(s))), s...)
}

func u32(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func s64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
