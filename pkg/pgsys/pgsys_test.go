package pgsys

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutsMatchGoTypes(t *testing.T) {
	for _, l := range Layouts() {
		t.Run(l.Name, func(t *testing.T) {
			require.NotNil(t, l.GoType)
			assert.Equal(t, l.Size, l.GoType.Size(), "sizeof(%s)", l.CName)
			assert.Equal(t, l.Align, uintptr(l.GoType.Align()), "alignof(%s)", l.CName)
			for _, f := range l.Fields {
				if f.GoName == "" {
					assert.True(t, f.BitWidth > 0 || f.Offset == l.Size,
						"%s.%s has no Go field and is not a trailing flexible member", l.CName, f.CName)
					continue
				}
				sf, ok := l.GoType.FieldByName(f.GoName)
				require.True(t, ok, "%s has no field %s", l.Name, f.GoName)
				assert.Equal(t, f.Offset, sf.Offset, "offsetof(%s, %s)", l.CName, f.CName)
				assert.Equal(t, f.Size, sf.Type.Size(), "sizeof(%s.%s)", l.CName, f.CName)
			}
		})
	}
}

var expectedSizes = map[int]map[string]uintptr{
	10: {"ErrorData": 184, "MemoryContextData": 64, "FormData_pg_attribute": 108, "TupleDescData": 40, "FunctionCallInfoBaseData": 936, "Pg_magic_struct": 28},
	11: {"ErrorData": 184, "MemoryContextData": 72, "FormData_pg_attribute": 112, "TupleDescData": 32, "FunctionCallInfoBaseData": 936, "Pg_magic_struct": 28},
	12: {"ErrorData": 184, "MemoryContextData": 72, "FormData_pg_attribute": 112, "TupleDescData": 24, "FunctionCallInfoBaseData": 32, "Pg_magic_struct": 28},
	13: {"ErrorData": 192, "MemoryContextData": 80, "FormData_pg_attribute": 112, "TupleDescData": 24, "FunctionCallInfoBaseData": 32, "Pg_magic_struct": 24},
	14: {"ErrorData": 192, "MemoryContextData": 80, "FormData_pg_attribute": 112, "TupleDescData": 24, "FunctionCallInfoBaseData": 32, "Pg_magic_struct": 24},
}

func TestVersionSizes(t *testing.T) {
	want, ok := expectedSizes[PgMajor]
	require.True(t, ok, "no expectations for %d", PgMajor)
	for name, size := range want {
		l, ok := LookupLayout(name)
		require.True(t, ok, name)
		assert.Equal(t, size, l.Size, name)
	}
	assert.Equal(t, uintptr(64), unsafe.Sizeof(NameData{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(Varatt_external{}))
}

func TestVersionConstants(t *testing.T) {
	assert.Equal(t, PgMajor, PG_VERSION_NUM/10000)
	assert.Equal(t, FATAL, ERROR+1)
	assert.Equal(t, PANIC, FATAL+1)
	assert.Less(t, WARNING, ERROR)
	if PgMajor >= 14 {
		assert.Equal(t, 21, ERROR)
	} else {
		assert.Equal(t, 20, ERROR)
	}
	assert.Equal(t, 100, FUNC_MAX_ARGS)
	assert.Equal(t, 64, NAMEDATALEN)
}

func TestLookupLayout(t *testing.T) {
	l, ok := LookupLayout("ErrorData")
	require.True(t, ok)
	f, ok := l.Field("message")
	require.True(t, ok)
	assert.Equal(t, uintptr(64), f.Offset)
	assert.Equal(t, "Message", f.GoName)

	_, ok = l.Field("nope")
	assert.False(t, ok)
	_, ok = LookupLayout("Nope")
	assert.False(t, ok)
}

func buffer(n int) unsafe.Pointer {
	buf := make([]uint64, (n+7)/8)
	return unsafe.Pointer(&buf[0])
}

func TestVarlenaHeaders(t *testing.T) {
	t.Run("4B", func(t *testing.T) {
		p := buffer(16)
		SET_VARSIZE(p, VARHDRSZ+5)
		copy(unsafe.Slice((*byte)(VARDATA(p)), 5), "hello")
		assert.True(t, VARATT_IS_4B_U(p))
		assert.False(t, VARATT_IS_EXTENDED(p))
		assert.Equal(t, uint32(9), VARSIZE_ANY(p))
		assert.Equal(t, uint32(5), VARSIZE_ANY_EXHDR(p))
		assert.Equal(t, "hello", string(unsafe.Slice((*byte)(VARDATA_ANY(p)), 5)))
		assert.Equal(t, byte(9<<2), *(*byte)(p))
	})
	t.Run("1B", func(t *testing.T) {
		p := buffer(8)
		SET_VARSIZE_SHORT(p, VARHDRSZ_SHORT+3)
		copy(unsafe.Slice((*byte)(VARDATA_SHORT(p)), 3), "abc")
		assert.Equal(t, byte(0x09), *(*byte)(p))
		assert.True(t, VARATT_IS_SHORT(p))
		assert.True(t, VARATT_IS_EXTENDED(p))
		assert.False(t, VARATT_IS_EXTERNAL(p))
		assert.Equal(t, uint32(4), VARSIZE_ANY(p))
		assert.Equal(t, uint32(3), VARSIZE_ANY_EXHDR(p))
		assert.Equal(t, "abc", string(unsafe.Slice((*byte)(VARDATA_ANY(p)), 3)))
	})
	t.Run("external", func(t *testing.T) {
		p := buffer(24)
		SET_VARTAG_EXTERNAL(p, VARTAG_ONDISK)
		assert.True(t, VARATT_IS_EXTERNAL_ONDISK(p))
		assert.False(t, VARATT_IS_EXTERNAL_INDIRECT(p))
		assert.False(t, VARATT_IS_EXTERNAL_EXPANDED(p))
		assert.Equal(t, uint32(18), VARSIZE_ANY(p))
		assert.Equal(t, uint32(16), VARSIZE_ANY_EXHDR(p))

		SET_VARTAG_EXTERNAL(p, VARTAG_EXPANDED_RW)
		assert.True(t, VARATT_IS_EXTERNAL_EXPANDED(p))
		assert.Equal(t, uint32(10), VARSIZE_EXTERNAL(p))
		assert.Equal(t, uint32(0), VARTAG_SIZE(0x7f))
	})
	t.Run("compressed", func(t *testing.T) {
		p := buffer(16)
		SET_VARSIZE_COMPRESSED(p, 12)
		assert.True(t, VARATT_IS_COMPRESSED(p))
		assert.True(t, VARATT_IS_4B(p))
		assert.False(t, VARATT_IS_4B_U(p))
		assert.Equal(t, uint32(12), VARSIZE(p))
	})
	t.Run("pad byte", func(t *testing.T) {
		p := buffer(8)
		assert.False(t, VARATT_NOT_PAD_BYTE(p))
	})
}

func TestDatumConversions(t *testing.T) {
	assert.Equal(t, int32(-7), DatumGetInt32(Int32GetDatum(-7)))
	assert.Equal(t, int16(-300), DatumGetInt16(Int16GetDatum(-300)))
	assert.Equal(t, int64(-1<<40), DatumGetInt64(Int64GetDatum(-1<<40)))
	assert.Equal(t, uint32(0xdeadbeef), DatumGetUInt32(UInt32GetDatum(0xdeadbeef)))
	assert.Equal(t, Oid(2950), DatumGetObjectId(ObjectIdGetDatum(UUIDOID)))
	assert.Equal(t, float32(1.5), DatumGetFloat4(Float4GetDatum(1.5)))
	assert.Equal(t, 2.25, DatumGetFloat8(Float8GetDatum(2.25)))
	assert.Equal(t, ^Datum(0), CharGetDatum(-1))
	assert.Equal(t, int8(-1), DatumGetChar(CharGetDatum(-1)))
	assert.True(t, DatumGetBool(BoolGetDatum(true)))
	assert.Equal(t, Datum(0), BoolGetDatum(false))

	var x int
	p := unsafe.Pointer(&x)
	assert.Equal(t, p, DatumGetPointer(PointerGetDatum(p)))
}

func TestItemIdBitfields(t *testing.T) {
	var id ItemIdData
	id.SetLpOff(0x1234)
	id.SetLpFlags(LP_NORMAL)
	id.SetLpLen(100)
	assert.Equal(t, uint32(0x1234|1<<15|100<<17), id.Bits0)
	assert.Equal(t, uint32(0x1234), id.LpOff())
	assert.Equal(t, uint32(LP_NORMAL), id.LpFlags())
	assert.Equal(t, uint32(100), id.LpLen())

	id.SetLpOff(0xffff)
	assert.Equal(t, uint32(0x7fff), id.LpOff())
	assert.Equal(t, uint32(LP_NORMAL), id.LpFlags(), "neighbouring fields keep their value")
	assert.Equal(t, uint32(100), id.LpLen())
}

func TestTupleDescAttr(t *testing.T) {
	const natts = 3
	td := (*TupleDescData)(buffer(int(TupleDescSize(natts))))
	TupleDescInit(td, natts)
	assert.Equal(t, int32(natts), td.Natts)
	assert.Equal(t, int32(-1), td.Tdrefcount)
	assert.Equal(t, RECORDOID, td.Tdtypeid)

	end := uintptr(unsafe.Pointer(td)) + TupleDescSize(natts)
	for i := 0; i < natts; i++ {
		a := TupleDescAttr(td, i)
		a.Attnum = int16(i + 1)
		a.Atttypid = INT4OID
		assert.LessOrEqual(t, uintptr(unsafe.Pointer(a))+unsafe.Sizeof(*a), end)
	}
	for i := 0; i < natts; i++ {
		assert.Equal(t, int16(i+1), TupleDescAttr(td, i).Attnum)
	}
}

func TestFunctionCallInfoArgs(t *testing.T) {
	const nargs = 3
	fcinfo := (*FunctionCallInfoBaseData)(buffer(int(SizeForFunctionCallInfo(nargs))))
	fcinfo.Nargs = nargs
	FcinfoSetArg(fcinfo, 0, Int32GetDatum(42), false)
	FcinfoSetArg(fcinfo, 1, 0, true)
	FcinfoSetArg(fcinfo, 2, BoolGetDatum(true), false)

	assert.Equal(t, nargs, PG_NARGS(fcinfo))
	assert.Equal(t, int32(42), DatumGetInt32(PG_GETARG_DATUM(fcinfo, 0)))
	assert.True(t, PG_ARGISNULL(fcinfo, 1))
	assert.False(t, PG_ARGISNULL(fcinfo, 2))
	assert.True(t, DatumGetBool(PG_GETARG_DATUM(fcinfo, 2)))
}

func TestModuleMagic(t *testing.T) {
	m := PG_MODULE_MAGIC_DATA()
	assert.Equal(t, int32(unsafe.Sizeof(m)), m.Len)
	assert.Equal(t, int32(PG_VERSION_NUM/100), m.Version)
	assert.Equal(t, int32(FUNC_MAX_ARGS), m.Funcmaxargs)
	assert.Equal(t, int32(NAMEDATALEN), m.Namedatalen)
}

func TestMaxAlign(t *testing.T) {
	assert.Equal(t, uintptr(0), MAXALIGN(0))
	assert.Equal(t, uintptr(8), MAXALIGN(1))
	assert.Equal(t, uintptr(112), MAXALIGN(108))
}
