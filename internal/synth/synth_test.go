package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

var headerRoot = filepath.Join("..", "introspect", "testdata")

func testAllowlist(t *testing.T) *introspect.Allowlist {
	t.Helper()
	allow, err := introspect.LoadAllowlist(filepath.Join(headerRoot, "allowlist.yaml"))
	require.NoError(t, err)
	return allow
}

func testCorrections(t *testing.T) *Corrections {
	t.Helper()
	fix, err := LoadCorrections(filepath.Join("testdata", "corrections.yaml"))
	require.NoError(t, err)
	return fix
}

func describe(t *testing.T, versions ...int) map[int]*introspect.Description {
	t.Helper()
	in := introspect.New(testAllowlist(t), zaptest.NewLogger(t))
	descs, err := in.RunAll(context.Background(), versions, func(v int) []string {
		return []string{filepath.Join(headerRoot, "pg"+strconv.Itoa(v)), filepath.Join(headerRoot, "common")}
	})
	require.NoError(t, err)
	return descs
}

func generate(t *testing.T, fix *Corrections, versions ...int) (*Result, error) {
	t.Helper()
	s := New(testAllowlist(t), fix, zaptest.NewLogger(t))
	return s.Generate(context.Background(), describe(t, versions...))
}

func source(t *testing.T, res *Result, name string) string {
	t.Helper()
	f, ok := res.File(name)
	require.True(t, ok, "no file %s", name)
	return string(f.Source)
}

func TestGenerateRendersVersionFiles(t *testing.T) {
	res, err := generate(t, testCorrections(t), 12, 13, 14)
	require.NoError(t, err)

	var names []string
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"pg12.go", "pg12_cgo.go", "pg13.go", "pg13_cgo.go", "pg14.go", "pg14_cgo.go", "select_none.go"}, names)

	pg14 := source(t, res, "pg14.go")
	assert.True(t, strings.HasPrefix(pg14,
		"// Code generated by pgxgen from PostgreSQL 14.11 headers (linux/amd64). DO NOT EDIT.\n//go:build pg14\n\npackage pgsys\n"))
	assert.Contains(t, pg14, "\"reflect\"")
	assert.Contains(t, pg14, "\"unsafe\"")
	assert.Regexp(t, `PgMajor\s+= 14\n`, pg14)
	assert.Regexp(t, `PG_VERSION_NUM\s+= 140011\n`, pg14)
	assert.Regexp(t, `PG_MAJORVERSION = "14"\n`, pg14)
	assert.Regexp(t, `FLOAT8PASSBYVAL\s+= true\n`, pg14)
	assert.Regexp(t, `WARNING_CLIENT_ONLY\s+= 20\n`, pg14)
	assert.Regexp(t, `\tERROR\s+= 21\n`, pg14)
	assert.Regexp(t, `FATAL\s+= 22\n`, pg14)
	assert.Regexp(t, `VARATT_SHORT_MAX\s+= 0x7F\n`, pg14)
	assert.Regexp(t, `VARLENA_EXTSIZE_MASK\s+= 1073741823\n`, pg14)
	assert.Regexp(t, `LP_DEAD\s+uint32 = 3\n`, pg14)

	assert.Regexp(t, `Datum\s+= uintptr\n`, pg14)
	assert.Regexp(t, `RegProcedure\s+= Oid\n`, pg14)
	assert.Regexp(t, `AttrNumber\s+= int16\n`, pg14)
	assert.Regexp(t, `FunctionCallInfo = \*FunctionCallInfoBaseData\n`, pg14)
	assert.Regexp(t, `MemoryContext\s+= unsafe.Pointer\n`, pg14)

	assert.Contains(t, pg14, "type Vartag_external int32\n")
	assert.Regexp(t, `VARTAG_ONDISK\s+Vartag_external = 18\n`, pg14)

	assert.Contains(t, pg14, "func DatumGetBool(d Datum) bool { return d != 0 }\n")
	assert.Contains(t, pg14, "func PG_GETARG_DATUM(fcinfo *FunctionCallInfoBaseData, n int) Datum {\n\treturn FcinfoArg(fcinfo, n).Value\n}\n")

	pg13 := source(t, res, "pg13.go")
	assert.Regexp(t, `\tERROR\s+= 20\n`, pg13)
	assert.NotContains(t, pg13, "WARNING_CLIENT_ONLY")
	assert.NotContains(t, pg13, "VARLENA_EXTSIZE_MASK")
}

func TestGenerateInsertsPadding(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)
	pg14 := source(t, res, "pg14.go")

	assert.Regexp(t, `Lineno\s+int32\n\s+_\s+\[4\]byte\n\s+Funcname\s+\*byte\n`, pg14)
	assert.Regexp(t, `Isnull bool\n\s+_\s+\[7\]byte\n}`, pg14)
	assert.Regexp(t, `FnStats\s+uint8\n\s+_\s+\[7\]byte\n\s+FnExtra\s+unsafe.Pointer\n`, pg14)
	assert.Regexp(t, `Isnull\s+bool\n\s+_\s+\[1\]byte\n\s+Nargs\s+int16\n}`, pg14)
	assert.Regexp(t, `Flinfo\s+\*FmgrInfo\n`, pg14)
	assert.Regexp(t, `AssocContext\s+unsafe.Pointer\n`, pg14)
}

func TestGenerateBitfieldAccessors(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)
	pg14 := source(t, res, "pg14.go")

	assert.Contains(t, pg14, "type ItemIdData struct {\n\tBits0 uint32\n}\n")
	assert.Contains(t, pg14, "func (x *ItemIdData) LpOff() uint32 {\n\treturn x.Bits0 & 0x7fff\n}\n")
	assert.Contains(t, pg14, "func (x *ItemIdData) LpFlags() uint32 {\n\treturn x.Bits0 >> 15 & 0x3\n}\n")
	assert.Contains(t, pg14, "func (x *ItemIdData) SetLpLen(v uint32) {\n")
	assert.Contains(t, pg14, `{CName: "lp_flags", Offset: 0, Size: 4, BitOffset: 15, BitWidth: 2},`)
}

func TestGenerateNestedAndFlexibleStructs(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)
	pg14 := source(t, res, "pg14.go")

	assert.Contains(t, pg14, "// Varattrib_4b_va_compressed is the va_compressed arm of varattrib_4b.\ntype Varattrib_4b_va_compressed struct {\n")
	assert.Contains(t, pg14, "// FunctionCallInfoBaseData is followed in memory by args, a flexible\n// array of NullableDatum. Use FcinfoArg.\ntype FunctionCallInfoBaseData struct {\n")
	assert.Contains(t, pg14, `{Name: "Varattrib_4b_va_compressed", CName: "varattrib_4b.va_compressed", Size: 8, Align: 4, GoType: reflect.TypeFor[Varattrib_4b_va_compressed](), Fields: []FieldLayout{`)
	assert.Contains(t, pg14, `{CName: "args", Offset: 32, Size: 0},`)
	assert.Contains(t, pg14, `{CName: "isnull", GoName: "Isnull", Offset: 28, Size: 1},`)
	assert.NotContains(t, pg14, "Args ")
}

func TestGenerateVersionExclusiveCapabilities(t *testing.T) {
	res, err := generate(t, testCorrections(t), 12, 13, 14)
	require.NoError(t, err)

	assert.NotContains(t, source(t, res, "pg12.go"), "Backtrace")
	assert.Regexp(t, `Backtrace\s+\*byte\n`, source(t, res, "pg13.go"))
	assert.Regexp(t, `VaExtsize\s+int32\n`, source(t, res, "pg13.go"))
	assert.Regexp(t, `VaExtinfo\s+uint32\n`, source(t, res, "pg14.go"))
	assert.Contains(t, source(t, res, "pg13.go"), "return uint32(e.VaExtsize)")
	assert.Contains(t, source(t, res, "pg14.go"), "return e.VaExtinfo & VARLENA_EXTSIZE_MASK")

	r := res.Report
	assert.Equal(t, []int{12, 13, 14}, r.Versions)

	bt, ok := r.Lookup("ErrorData.Backtrace")
	require.True(t, ok)
	assert.Equal(t, []int{13, 14}, bt.Versions)
	assert.Equal(t, 13, bt.Since)
	assert.Equal(t, "field", bt.Kind)

	wco, ok := r.Lookup("WARNING_CLIENT_ONLY")
	require.True(t, ok)
	assert.Equal(t, []int{14}, wco.Versions)
	assert.Equal(t, "constant WARNING_CLIENT_ONLY: only in 14", wco.String())

	_, ok = r.Lookup("ErrorData")
	assert.False(t, ok)
	_, ok = r.Lookup("VARATT_EXTERNAL_GET_EXTSIZE")
	assert.False(t, ok)

	assert.Contains(t, r.Explain("WARNING_CLIENT_ONLY", 13), "pg14")
	assert.Empty(t, r.Explain("WARNING_CLIENT_ONLY", 14))
	assert.Empty(t, r.Explain("ErrorData", 12))
}

func TestGenerateCgoWrappers(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)
	src := source(t, res, "pg14_cgo.go")

	assert.True(t, strings.HasPrefix(src, "// Code generated by pgxgen from PostgreSQL 14.11 headers (linux/amd64). DO NOT EDIT.\n//go:build pgext && cgo && pg14\n"))
	assert.Contains(t, src, "#include \"postgres.h\"\n#include \"fmgr.h\"\n#include \"storage/itemid.h\"\n")
	assert.Contains(t, src, "#define PGX_GUARD_BEGIN")
	assert.Contains(t, src, "static ErrorData *pgx_palloc(Size size, void **result)\n{\n\tPGX_GUARD_BEGIN\n\t*result = palloc(size);\n\tPGX_GUARD_END\n}\n")
	assert.Contains(t, src, "static ErrorData *pgx_pfree(void *pointer)\n")
	assert.Contains(t, src, "static ErrorData *pgx_CopyErrorData(ErrorData **result)\n")
	assert.Contains(t, src, "static MemoryContext pgx_get_CurrentMemoryContext(void) { return CurrentMemoryContext; }\n")
	assert.Contains(t, src, "static void pgx_set_CurrentMemoryContext(MemoryContext v) { CurrentMemoryContext = v; }\n")
	assert.Contains(t, src, "\tsizeof(((varattrib_4b *) 0)->va_compressed),\n")
	assert.Contains(t, src, "\toffsetof(varattrib_4b, va_compressed.va_tcinfo) - offsetof(varattrib_4b, va_compressed),\n")
	assert.Contains(t, src, "\tsizeof(ItemIdData),\n\tsizeof(Pg_magic_struct),\n")
	assert.Contains(t, src, "import \"C\"")

	assert.Contains(t, src, "func Palloc(size Size) (unsafe.Pointer, *ErrorData) {\n\tvar result unsafe.Pointer\n\tedata := C.pgx_palloc(C.Size(size), &result)\n\treturn result, (*ErrorData)(unsafe.Pointer(edata))\n}\n")
	assert.Contains(t, src, "func Pfree(pointer unsafe.Pointer) *ErrorData {\n\tedata := C.pgx_pfree(pointer)\n")
	assert.Contains(t, src, "C.pgx_MemoryContextAlloc(C.MemoryContext(unsafe.Pointer(context)), C.Size(size), &result)")
	assert.Contains(t, src, "return (*ErrorData)(unsafe.Pointer(result)), (*ErrorData)(unsafe.Pointer(edata))")
	assert.Contains(t, src, "func CurrentMemoryContext() MemoryContext {\n\treturn MemoryContext(unsafe.Pointer(C.pgx_get_CurrentMemoryContext()))\n}\n")
	assert.Contains(t, src, "C.pgx_set_CurrentMemoryContext(C.MemoryContext(unsafe.Pointer(v)))")
	assert.Contains(t, src, "func CStructLayouts() []StructLayout {")
}

func TestGenerateIsDeterministic(t *testing.T) {
	fix := testCorrections(t)
	a, err := generate(t, fix, 12, 13, 14)
	require.NoError(t, err)
	b, err := generate(t, fix, 12, 13, 14)
	require.NoError(t, err)

	assert.Equal(t, a.Manifest, b.Manifest)
	require.Len(t, b.Files, len(a.Files))
	for i := range a.Files {
		assert.Equal(t, string(a.Files[i].Source), string(b.Files[i].Source), a.Files[i].Name)
	}
	lines := strings.Split(strings.TrimSuffix(string(a.Manifest), "\n"), "\n")
	require.Len(t, lines, len(a.Files))
	assert.Regexp(t, `^[0-9a-f]{32}  pg12\.go$`, lines[0])
	assert.Regexp(t, `^[0-9a-f]{32}  select_none\.go$`, lines[len(lines)-1])
}

func TestGenerateKeepsSuccessfulVersions(t *testing.T) {
	t.Run("body missing for one version", func(t *testing.T) {
		fix := testCorrections(t)
		for i := range fix.Macros {
			if fix.Macros[i].Name == "PG_GETARG_DATUM" {
				fix.Macros[i].Bodies[0].Since = 13
			}
		}
		res, err := generate(t, fix, 12, 13, 14)
		require.Error(t, err)

		var serr *Error
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, 12, serr.Version)
		assert.Equal(t, "PG_GETARG_DATUM", serr.Symbol)
		assert.Contains(t, err.Error(), "host 12: PG_GETARG_DATUM")

		_, ok := res.File("pg12.go")
		assert.False(t, ok)
		_, ok = res.File("pg13.go")
		assert.True(t, ok)
		_, ok = res.File("select_none.go")
		assert.True(t, ok)
		assert.Equal(t, []int{13, 14}, res.Report.Versions)
	})

	t.Run("required macro without correction", func(t *testing.T) {
		fix := testCorrections(t)
		var kept []MacroFix
		for _, m := range fix.Macros {
			if m.Name != "PG_GETARG_DATUM" {
				kept = append(kept, m)
			}
		}
		fix.Macros = kept
		res, err := generate(t, fix, 13, 14)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no linkable symbol and no correction")
		assert.Len(t, res.Files, 1)
	})
}

func TestResultWriteAndStale(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)

	dir := t.TempDir()
	stale, err := res.Stale(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"pg14.go", "pg14_cgo.go", "select_none.go", ManifestName}, stale)

	require.NoError(t, res.Write(dir))
	stale, err = res.Stale(dir)
	require.NoError(t, err)
	assert.Empty(t, stale)

	sum, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, res.Manifest, sum)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pg14.go"), []byte("package pgsys\n"), 0o644))
	stale, err = res.Stale(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"pg14.go"}, stale)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temporary file %s left behind", e.Name())
	}
}

func TestSelectNone(t *testing.T) {
	res, err := generate(t, testCorrections(t), 14)
	require.NoError(t, err)
	src := source(t, res, "select_none.go")

	assert.True(t, strings.HasPrefix(src, "// Code generated by pgxgen. DO NOT EDIT.\n//go:build !pg12 && !pg13 && !pg14\n\npackage pgsys\n"))
	assert.Contains(t, src, "Build with exactly one of -tags pg12,")
	assert.Contains(t, src, "var _ = pgsys_requires_exactly_one_of_the_build_tags_pg12_pg13_pg14\n")
}

func TestGenerateCanceled(t *testing.T) {
	descs := describe(t, 14)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(testAllowlist(t), testCorrections(t), zaptest.NewLogger(t)).Generate(ctx, descs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := res.File("pg14.go")
	assert.False(t, ok)
}
