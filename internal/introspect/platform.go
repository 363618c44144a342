package introspect

import (
	"fmt"
	"sort"
	"strings"
)

// Platform describes the C ABI headers are laid out for. Only little
// endian SysV-like targets are modeled.
type Platform struct {
	GOOS   string
	GOARCH string

	PointerSize     int64
	LongSize        int64
	Int64Align      int64 // long long and int64_t inside structs
	DoubleAlign     int64
	LongDoubleSize  int64
	LongDoubleAlign int64
	MaxAlign        int64
	CharSigned      bool
}

var platforms = map[string]Platform{
	"linux/amd64": {
		GOOS: "linux", GOARCH: "amd64",
		PointerSize: 8, LongSize: 8, Int64Align: 8, DoubleAlign: 8,
		LongDoubleSize: 16, LongDoubleAlign: 16, MaxAlign: 8, CharSigned: true,
	},
	"linux/arm64": {
		GOOS: "linux", GOARCH: "arm64",
		PointerSize: 8, LongSize: 8, Int64Align: 8, DoubleAlign: 8,
		LongDoubleSize: 16, LongDoubleAlign: 16, MaxAlign: 8, CharSigned: false,
	},
	"darwin/arm64": {
		GOOS: "darwin", GOARCH: "arm64",
		PointerSize: 8, LongSize: 8, Int64Align: 8, DoubleAlign: 8,
		LongDoubleSize: 8, LongDoubleAlign: 8, MaxAlign: 8, CharSigned: true,
	},
	"linux/386": {
		GOOS: "linux", GOARCH: "386",
		PointerSize: 4, LongSize: 4, Int64Align: 4, DoubleAlign: 4,
		LongDoubleSize: 12, LongDoubleAlign: 4, MaxAlign: 4, CharSigned: true,
	},
}

// ParsePlatform looks up a GOOS/GOARCH pair.
func ParsePlatform(s string) (Platform, error) {
	p, ok := platforms[s]
	if !ok {
		return Platform{}, fmt.Errorf("unsupported platform %q (supported: %s)", s, strings.Join(Platforms(), ", "))
	}
	return p, nil
}

// Platforms lists the supported platforms.
func Platforms() []string {
	out := make([]string, 0, len(platforms))
	for k := range platforms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p Platform) String() string {
	return p.GOOS + "/" + p.GOARCH
}

// predefines returns the compiler and pg_config macros that follow the
// platform, as #define bodies.
func (p Platform) predefines() []string {
	defs := []string{
		"__STDC__ 1",
		"__STDC_VERSION__ 201112L",
		"__GNUC__ 4",
		"__GNUC_MINOR__ 2",
		"__CHAR_BIT__ 8",
		"__SIZEOF_INT__ 4",
		"__SIZEOF_LONG_LONG__ 8",
		"__ORDER_LITTLE_ENDIAN__ 1234",
		"__ORDER_BIG_ENDIAN__ 4321",
		"__BYTE_ORDER__ __ORDER_LITTLE_ENDIAN__",
		fmt.Sprintf("__SIZEOF_POINTER__ %d", p.PointerSize),
		fmt.Sprintf("__SIZEOF_LONG__ %d", p.LongSize),
		fmt.Sprintf("SIZEOF_VOID_P %d", p.PointerSize),
		fmt.Sprintf("SIZEOF_SIZE_T %d", p.PointerSize),
		fmt.Sprintf("SIZEOF_LONG %d", p.LongSize),
		"SIZEOF_BOOL 1",
		"ALIGNOF_SHORT 2",
		"ALIGNOF_INT 4",
		fmt.Sprintf("ALIGNOF_LONG %d", p.LongSize),
		fmt.Sprintf("ALIGNOF_DOUBLE %d", p.DoubleAlign),
		fmt.Sprintf("MAXIMUM_ALIGNOF %d", p.MaxAlign),
	}
	switch p.GOOS {
	case "linux":
		defs = append(defs, "__linux__ 1", "__linux 1", "__unix__ 1")
	case "darwin":
		defs = append(defs, "__APPLE__ 1", "__MACH__ 1")
	}
	switch p.GOARCH {
	case "amd64":
		defs = append(defs, "__x86_64__ 1", "__amd64__ 1")
	case "arm64":
		defs = append(defs, "__aarch64__ 1", "__arm64__ 1")
	case "386":
		defs = append(defs, "__i386__ 1", "__i386 1")
	}
	if p.PointerSize == 8 {
		defs = append(defs, "__LP64__ 1", "_LP64 1", "HAVE_LONG_INT_64 1")
	} else {
		defs = append(defs, "HAVE_LONG_LONG_INT_64 1", fmt.Sprintf("ALIGNOF_LONG_LONG_INT %d", p.Int64Align))
	}
	if !p.CharSigned {
		defs = append(defs, "__CHAR_UNSIGNED__ 1")
	}
	return defs
}

// builtinMacros stand in for the system headers that are skipped.
func (p Platform) builtinMacros() []string {
	long := "L"
	if p.LongSize == 4 {
		long = "LL"
	}
	sizeMax := "0xffffffffffffffffUL"
	if p.PointerSize == 4 {
		sizeMax = "0xffffffffU"
	}
	longMax, ulongMax := "0x7fffffffffffffffL", "0xffffffffffffffffUL"
	if p.LongSize == 4 {
		longMax, ulongMax = "0x7fffffffL", "0xffffffffUL"
	}
	return []string{
		"NULL ((void *) 0)",
		"true 1",
		"false 0",
		"bool _Bool",
		"__bool_true_false_are_defined 1",
		"CHAR_BIT 8",
		"SCHAR_MIN (-128)",
		"SCHAR_MAX 127",
		"UCHAR_MAX 255",
		"SHRT_MIN (-32768)",
		"SHRT_MAX 32767",
		"USHRT_MAX 65535",
		"INT_MIN (-2147483647 - 1)",
		"INT_MAX 2147483647",
		"UINT_MAX 4294967295U",
		"LONG_MAX " + longMax,
		"LONG_MIN (-LONG_MAX - 1L)",
		"ULONG_MAX " + ulongMax,
		"LLONG_MAX 9223372036854775807LL",
		"LLONG_MIN (-LLONG_MAX - 1LL)",
		"ULLONG_MAX 18446744073709551615ULL",
		"SIZE_MAX " + sizeMax,
		"INT8_MIN (-128)",
		"INT8_MAX 127",
		"UINT8_MAX 255",
		"INT16_MIN (-32768)",
		"INT16_MAX 32767",
		"UINT16_MAX 65535",
		"INT32_MIN (-2147483647 - 1)",
		"INT32_MAX 2147483647",
		"UINT32_MAX 4294967295U",
		"INT64_MIN (-INT64_MAX - 1)",
		"INT64_MAX 9223372036854775807" + long,
		"UINT64_MAX 18446744073709551615U" + long,
	}
}

// Scalar returns the size and alignment of a C arithmetic type.
func (p Platform) Scalar(name string) (size, align int64, ok bool) {
	switch strings.TrimPrefix(name, "unsigned ") {
	case "char", "signed char", "_Bool":
		return 1, 1, true
	case "short":
		return 2, 2, true
	case "int", "float":
		return 4, 4, true
	case "long":
		return p.LongSize, p.LongSize, true
	case "long long":
		return 8, p.Int64Align, true
	case "__int128":
		return 16, 16, true
	case "double":
		return 8, p.DoubleAlign, true
	case "long double":
		return p.LongDoubleSize, p.LongDoubleAlign, true
	}
	return 0, 0, false
}

// Builtin returns the definition of a typedef from the system headers
// that are skipped.
func (p Platform) Builtin(name string) (*Type, bool) {
	t, ok := p.builtinTypedefs()[name]
	return t, ok
}

// builtinTypedefs are the typedefs of skipped system headers.
func (p Platform) builtinTypedefs() map[string]*Type {
	word := "unsigned long"
	sword := "long"
	if p.PointerSize == 4 {
		word, sword = "unsigned int", "int"
	}
	int64Name, uint64Name := "long", "unsigned long"
	if p.LongSize == 4 {
		int64Name, uint64Name = "long long", "unsigned long long"
	}
	opaque := func(name string) *Type { return &Type{Kind: KindStruct, Name: name} }
	return map[string]*Type{
		"size_t":             intType(word),
		"ssize_t":            intType(sword),
		"ptrdiff_t":          intType(sword),
		"intptr_t":           intType(sword),
		"uintptr_t":          intType(word),
		"int8_t":             intType("signed char"),
		"uint8_t":            intType("unsigned char"),
		"int16_t":            intType("short"),
		"uint16_t":           intType("unsigned short"),
		"int32_t":            intType("int"),
		"uint32_t":           intType("unsigned int"),
		"int64_t":            intType(int64Name),
		"uint64_t":           intType(uint64Name),
		"intmax_t":           intType(int64Name),
		"uintmax_t":          intType(uint64Name),
		"wchar_t":            intType("int"),
		"pid_t":              intType("int"),
		"uid_t":              intType("unsigned int"),
		"gid_t":              intType("unsigned int"),
		"mode_t":             intType("unsigned int"),
		"socklen_t":          intType("unsigned int"),
		"off_t":              intType(int64Name),
		"time_t":             intType(sword),
		"pthread_t":          intType(word),
		"sig_atomic_t":       intType("int"),
		"va_list":            {Kind: KindPointer, Elem: &Type{Kind: KindVoid, Name: "void"}},
		"__builtin_va_list":  {Kind: KindPointer, Elem: &Type{Kind: KindVoid, Name: "void"}},
		"FILE":               opaque("FILE"),
		"jmp_buf":            opaque("jmp_buf"),
		"sigjmp_buf":         opaque("sigjmp_buf"),
		"pthread_mutex_t":    opaque("pthread_mutex_t"),
		"locale_t":           {Kind: KindPointer, Elem: opaque("__locale_struct")},
		"__int128_t":         intType("__int128"),
		"__uint128_t":        intType("unsigned __int128"),
	}
}
