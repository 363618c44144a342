package wasm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgext"
)

// Calling convention
//
// Fixed width values are passed as wasm numbers: bool, "char", int2,
// int4 and oid as i32, int8 as i64, float4 as f32 and float8 as f64.
// text, varchar, bpchar, json and bytea arguments are copied into memory
// reserved with the guest's alloc export and passed as (ptr, len). Such
// results are returned as one i64, ptr<<32 | len. void returns nothing.

// FunctionSpec binds a guest export to host types.
type FunctionSpec struct {
	Export  string
	Args    []*datum.TypeDescriptor
	Returns *datum.TypeDescriptor
}

func lowerType(export string, td *datum.TypeDescriptor, result bool) ([]api.ValueType, error) {
	switch td.Kind {
	case datum.KindBool, datum.KindChar, datum.KindInt2, datum.KindInt4, datum.KindOid:
		return []api.ValueType{api.ValueTypeI32}, nil
	case datum.KindInt8:
		return []api.ValueType{api.ValueTypeI64}, nil
	case datum.KindFloat4:
		return []api.ValueType{api.ValueTypeF32}, nil
	case datum.KindFloat8:
		return []api.ValueType{api.ValueTypeF64}, nil
	case datum.KindText, datum.KindVarchar, datum.KindBpchar, datum.KindJSON, datum.KindBytea:
		if result {
			return []api.ValueType{api.ValueTypeI64}, nil
		}
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case datum.KindVoid:
		if result {
			return nil, nil
		}
	}
	return nil, &UnsupportedTypeError{FunctionName: export, Type: td.Name}
}

// signature returns the wasm signature spec lowers to and whether any
// argument goes through guest memory.
func (s *FunctionSpec) signature() (params, results []api.ValueType, usesMemory bool, err error) {
	for _, td := range s.Args {
		vt, err := lowerType(s.Export, td, false)
		if err != nil {
			return nil, nil, false, err
		}
		params = append(params, vt...)
		usesMemory = usesMemory || td.IsVarlena()
	}
	results, err = lowerType(s.Export, s.Returns, true)
	return params, results, usesMemory, err
}

func formatSignature(params, results []api.ValueType) string {
	name := func(ts []api.ValueType) string {
		names := make([]string, len(ts))
		for i, t := range ts {
			names[i] = api.ValueTypeName(t)
		}
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", name(params), name(results))
}

func sameTypes(a, b []api.ValueType) bool {
	return string(a) == string(b)
}

// Binding calls one guest export with host-typed arguments.
type Binding struct {
	manager *InstanceManager
	module  string
	spec    FunctionSpec
	exports []string
}

// Bind checks that the export exists with the signature spec lowers to.
func (m *InstanceManager) Bind(moduleName string, spec FunctionSpec) (*Binding, error) {
	compiled, ok := m.runtime.GetCompiledModule(moduleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: moduleName}
	}
	params, results, usesMemory, err := spec.signature()
	if err != nil {
		return nil, err
	}

	def, ok := compiled.Export(spec.Export)
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: spec.Export}
	}
	if !sameTypes(def.ParamTypes(), params) || !sameTypes(def.ResultTypes(), results) {
		return nil, &SignatureError{
			FunctionName: spec.Export,
			Want:         formatSignature(params, results),
			Got:          formatSignature(def.ParamTypes(), def.ResultTypes()),
		}
	}

	exports := []string{spec.Export}
	if usesMemory {
		alloc, ok := compiled.Export(allocExport)
		if !ok {
			return nil, &FunctionNotFoundError{ModuleName: moduleName, FunctionName: allocExport}
		}
		i32 := []api.ValueType{api.ValueTypeI32}
		if !sameTypes(alloc.ParamTypes(), i32) || !sameTypes(alloc.ResultTypes(), i32) {
			return nil, &SignatureError{
				FunctionName: allocExport,
				Want:         formatSignature(i32, i32),
				Got:          formatSignature(alloc.ParamTypes(), alloc.ResultTypes()),
			}
		}
		exports = append(exports, allocExport)
	}

	return &Binding{manager: m, module: moduleName, spec: spec, exports: exports}, nil
}

// Call runs the export with args, which hold the Go values of the host
// arguments in declaration order. Null arguments are not allowed.
func (b *Binding) Call(ctx context.Context, report Reporter, args []any) (any, error) {
	if len(args) != len(b.spec.Args) {
		return nil, fmt.Errorf("export '%s' takes %d arguments, got %d", b.spec.Export, len(b.spec.Args), len(args))
	}
	inst, err := b.manager.Shared(ctx, b.module, b.exports)
	if err != nil {
		return nil, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	mem := inst.Memory()
	params := make([]uint64, 0, len(args)+2)
	for i, v := range args {
		td := b.spec.Args[i]
		if v == nil {
			return nil, fmt.Errorf("export '%s': argument %d is null", b.spec.Export, i+1)
		}
		if td.IsVarlena() {
			var data []byte
			switch x := v.(type) {
			case string:
				data = []byte(x)
			case []byte:
				data = x
			default:
				return nil, &UnsupportedTypeError{FunctionName: b.spec.Export, Type: fmt.Sprintf("%s (%T)", td.Name, v)}
			}
			ptr, n, err := mem.WriteBytes(ctx, data)
			if err != nil {
				return nil, err
			}
			params = append(params, api.EncodeU32(ptr), api.EncodeU32(n))
			continue
		}
		p, err := lowerValue(b.spec.Export, td, v)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	results, err := inst.call(ctx, b.spec.Export, report, params...)
	if err != nil {
		return nil, err
	}
	return b.liftResult(mem, results)
}

// lowerValue encodes v for a parameter of type td. v must have the Go type
// the codec decodes td to.
func lowerValue(export string, td *datum.TypeDescriptor, v any) (uint64, error) {
	switch td.Kind {
	case datum.KindBool:
		if x, ok := v.(bool); ok {
			if x {
				return api.EncodeI32(1), nil
			}
			return api.EncodeI32(0), nil
		}
	case datum.KindChar:
		if x, ok := v.(int8); ok {
			return api.EncodeI32(int32(x)), nil
		}
	case datum.KindInt2:
		if x, ok := v.(int16); ok {
			return api.EncodeI32(int32(x)), nil
		}
	case datum.KindInt4:
		if x, ok := v.(int32); ok {
			return api.EncodeI32(x), nil
		}
	case datum.KindOid:
		if x, ok := v.(uint32); ok {
			return api.EncodeU32(x), nil
		}
	case datum.KindInt8:
		if x, ok := v.(int64); ok {
			return api.EncodeI64(x), nil
		}
	case datum.KindFloat4:
		if x, ok := v.(float32); ok {
			return api.EncodeF32(x), nil
		}
	case datum.KindFloat8:
		if x, ok := v.(float64); ok {
			return api.EncodeF64(x), nil
		}
	}
	return 0, &UnsupportedTypeError{FunctionName: export, Type: fmt.Sprintf("%s (%T)", td.Name, v)}
}

func (b *Binding) liftResult(mem *Memory, results []uint64) (any, error) {
	td := b.spec.Returns
	if td.Kind == datum.KindVoid {
		return nil, nil
	}
	r := results[0]
	switch td.Kind {
	case datum.KindBool:
		return api.DecodeI32(r) != 0, nil
	case datum.KindChar:
		return int8(api.DecodeI32(r)), nil
	case datum.KindInt2:
		return int16(api.DecodeI32(r)), nil
	case datum.KindInt4:
		return api.DecodeI32(r), nil
	case datum.KindOid:
		return api.DecodeU32(r), nil
	case datum.KindInt8:
		return int64(r), nil
	case datum.KindFloat4:
		return api.DecodeF32(r), nil
	case datum.KindFloat8:
		return api.DecodeF64(r), nil
	}

	ptr, n := uint32(r>>32), uint32(r)
	data, ok := mem.ReadBytes(ptr, n)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: n, Err: fmt.Errorf("result of '%s' out of bounds", b.spec.Export)}
	}
	if td.Kind == datum.KindBytea {
		return data, nil
	}
	return string(data), nil
}

// Impl adapts the binding to a host function implementation. Guest
// messages are reported through the call.
func (b *Binding) Impl() pgext.Impl {
	return func(call *pgext.Call, args []any) (any, error) {
		report := func(level host.Level, msg string) {
			if err := call.Report(level, msg); err != nil {
				b.manager.logger.Warn("guest message dropped", zap.Error(err))
			}
		}
		return b.Call(call.Context(), report, args)
	}
}
