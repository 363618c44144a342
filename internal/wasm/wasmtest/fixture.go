package wasmtest

// Messages stored in the sample module's data segment.
const (
	SampleErrorCode    = "22012"
	SampleErrorMessage = "division by zero"
	SampleNotice       = "hello from guest"
)

var (
	logMessageType = FuncType{Params: []ValType{I32, I32, I32}}
	raiseErrorType = FuncType{Params: []ValType{I32, I32, I32, I32}}
)

// Sample returns a module importing the host's pgx functions and
// exporting:
//
//	alloc(size i32) i32         bump allocator
//	add(a, b i32) i32
//	div(a, b i32) i32           traps on division by zero
//	add64(a, b i64) i64
//	scale(x f64) f64            x * 2
//	echo(ptr, len i32) i64      returns its argument as ptr<<32 | len
//	text_len(ptr, len i32) i32
//	spin() i32                  never returns
//	fail() i32                  raise_error("22012", "division by zero")
//	note() i32                  log_message(notice, "hello from guest"), returns 1
//	bad_log() i32               log_message with an out of range pointer
func Sample() []byte {
	const (
		logMessage = 0
		raiseError = 1
	)
	m := &Module{
		Imports: []Import{
			{Module: "pgx", Name: "log_message", Type: logMessageType},
			{Module: "pgx", Name: "raise_error", Type: raiseErrorType},
		},
		Globals:      []Global{{Init: 1024}},
		MemoryPages:  1,
		ExportMemory: true,
		Data: []Data{
			{Offset: 16, Bytes: []byte(SampleErrorCode)},
			{Offset: 32, Bytes: []byte(SampleErrorMessage)},
			{Offset: 64, Bytes: []byte(SampleNotice)},
		},
		Funcs: []Func{
			{
				Export: "alloc",
				Type:   FuncType{Params: []ValType{I32}, Results: []ValType{I32}},
				Body:   Code(GlobalGet(0), GlobalGet(0), LocalGet(0), OpI32Add, GlobalSet(0)),
			},
			{
				Export: "add",
				Type:   FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}},
				Body:   Code(LocalGet(0), LocalGet(1), OpI32Add),
			},
			{
				Export: "div",
				Type:   FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}},
				Body:   Code(LocalGet(0), LocalGet(1), OpI32DivS),
			},
			{
				Export: "add64",
				Type:   FuncType{Params: []ValType{I64, I64}, Results: []ValType{I64}},
				Body:   Code(LocalGet(0), LocalGet(1), OpI64Add),
			},
			{
				Export: "scale",
				Type:   FuncType{Params: []ValType{F64}, Results: []ValType{F64}},
				Body:   Code(LocalGet(0), F64Const(2), OpF64Mul),
			},
			{
				Export: "echo",
				Type:   FuncType{Params: []ValType{I32, I32}, Results: []ValType{I64}},
				Body: Code(
					LocalGet(0), OpI64ExtendI32, I64Const(32), OpI64Shl,
					LocalGet(1), OpI64ExtendI32, OpI64Or,
				),
			},
			{
				Export: "text_len",
				Type:   FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}},
				Body:   LocalGet(1),
			},
			{
				Export: "spin",
				Type:   FuncType{Results: []ValType{I32}},
				Body:   Code(OpLoop, OpBlockEmpty, OpBr, byte(0), OpEnd, OpUnreachable),
			},
			{
				Export: "fail",
				Type:   FuncType{Results: []ValType{I32}},
				Body: Code(
					I32Const(16), I32Const(int32(len(SampleErrorCode))),
					I32Const(32), I32Const(int32(len(SampleErrorMessage))),
					Call(raiseError), I32Const(0),
				),
			},
			{
				Export: "note",
				Type:   FuncType{Results: []ValType{I32}},
				Body: Code(
					I32Const(2), I32Const(64), I32Const(int32(len(SampleNotice))),
					Call(logMessage), I32Const(1),
				),
			},
			{
				Export: "bad_log",
				Type:   FuncType{Results: []ValType{I32}},
				Body: Code(
					I32Const(2), I32Const(0x7fff0000), I32Const(16),
					Call(logMessage), I32Const(1),
				),
			},
		},
	}
	return m.Build()
}

// Minimal returns a module with no imports exporting add(a, b i32) i32
// and no memory.
func Minimal() []byte {
	m := &Module{
		Funcs: []Func{{
			Export: "add",
			Type:   FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}},
			Body:   Code(LocalGet(0), LocalGet(1), OpI32Add),
		}},
	}
	return m.Build()
}
