package synth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

func TestNames(t *testing.T) {
	assert.Equal(t, "NameData", typeName("nameData"))
	assert.Equal(t, "Varattrib_4b_va_4byte", typeName("varattrib_4b.va_4byte"))
	assert.Equal(t, "Pg_magic_struct", typeName("Pg_magic_struct"))
	assert.Equal(t, "Private", typeName("__private"))

	assert.Equal(t, "FnAddr", camel("fn_addr"))
	assert.Equal(t, "IsReset", camel("isReset"))
	assert.Equal(t, "SqlerrcodeX", camel("sqlerrcode_x"))
	assert.Equal(t, "X", camel("_"))

	assert.Equal(t, "a2", paramName("", 2))
	assert.Equal(t, "type_", paramName("type", 0))
	assert.Equal(t, "result_", paramName("result", 0))
	assert.Equal(t, "size", paramName("size", 0))

	renames := map[string]string{"tupleDesc": "TupleDescData"}
	assert.Equal(t, "TupleDescData", stable(renames, "tupleDesc"))
	assert.Equal(t, "NameData", stable(renames, "NameData"))
}

func TestWrap(t *testing.T) {
	assert.Equal(t, []string{"one two", "three"}, wrap("one two three", 8))
	assert.Equal(t, []string{"averyveryverylongword", "x"}, wrap("averyveryverylongword x", 8))
	assert.Empty(t, wrap("  ", 10))
}

func TestConstValue(t *testing.T) {
	tests := []struct {
		name string
		c    introspect.Constant
		want string
	}{
		{"hex literal kept", introspect.Constant{Kind: introspect.ConstInt, Int: 127, Literal: "0x7F"}, "0x7F"},
		{"suffix dropped", introspect.Constant{Kind: introspect.ConstInt, Int: 1, Literal: "1U", Unsigned: true}, "1"},
		{"computed", introspect.Constant{Kind: introspect.ConstInt, Int: 22}, "22"},
		{"negative", introspect.Constant{Kind: introspect.ConstInt, Int: -1, Literal: "-1"}, "-1"},
		{"unsigned", introspect.Constant{Kind: introspect.ConstInt, Int: -1, Unsigned: true}, "18446744073709551615"},
		{"bool", introspect.Constant{Kind: introspect.ConstBool, Int: 1}, "true"},
		{"string", introspect.Constant{Kind: introspect.ConstString, Text: "14"}, `"14"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := constValue(&tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fmt.Sprintf("%#v", code))
		})
	}

	_, err := constValue(&introspect.Constant{Kind: "float"})
	assert.Error(t, err)
}

func TestParseCorrections(t *testing.T) {
	c, err := ParseCorrections([]byte(`
macros:
  - name: VARATT_EXTERNAL_GET_EXTSIZE
    bodies:
      - until: 13
        go: |
          func VARATT_EXTERNAL_GET_EXTSIZE(e *Varatt_external) uint32 { return uint32(e.VaExtsize) }
      - since: 14
        go: |
          func VARATT_EXTERNAL_GET_EXTSIZE(e *Varatt_external) uint32 { return e.VaExtinfo & VARLENA_EXTSIZE_MASK }
`))
	require.NoError(t, err)
	require.Len(t, c.Macros, 1)
	m := c.Macros[0]

	body, ok := m.For(12)
	require.True(t, ok)
	assert.Contains(t, body, "uint32(e.VaExtsize)")
	body, ok = m.For(14)
	require.True(t, ok)
	assert.Contains(t, body, "VARLENA_EXTSIZE_MASK")
	assert.NotContains(t, body, "\n")

	fix, ok := c.covering("VARATT_EXTERNAL_GET_EXTSIZE")
	assert.True(t, ok)
	assert.Equal(t, m.Name, fix.Name)
	_, ok = c.covering("VARSIZE")
	assert.False(t, ok)

	for _, tt := range []struct{ doc, msg string }{
		{"macros: [{bodies: [{go: x}]}]", "without a name"},
		{"macros: [{name: A, bodies: [{go: x}]}, {name: A}]", "declared twice"},
		{"macros: [{name: A, bodies: [{since: 14, until: 12, go: x}]}]", "covers no version"},
		{"macros: [{name: A, bodies: [{go: '  '}]}]", "is empty"},
		{"macros: {", "failed to parse"},
	} {
		_, err := ParseCorrections([]byte(tt.doc))
		require.Error(t, err, tt.doc)
		assert.Contains(t, err.Error(), tt.msg, tt.doc)
	}
}

func TestReport(t *testing.T) {
	r := buildReport(map[int]map[string]string{
		12: {"ErrorData": "struct", "ErrorData.Funcname": "field"},
		13: {"ErrorData": "struct", "ErrorData.Funcname": "field", "ErrorData.Backtrace": "field"},
		14: {"ErrorData": "struct", "ErrorData.Backtrace": "field", "WARNING_CLIENT_ONLY": "constant"},
	})
	assert.Equal(t, []int{12, 13, 14}, r.Versions)

	var names []string
	for _, c := range r.Partial {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ErrorData.Backtrace", "ErrorData.Funcname", "WARNING_CLIENT_ONLY"}, names)

	fn, ok := r.Lookup("ErrorData.Funcname")
	require.True(t, ok)
	assert.Equal(t, 12, fn.Since)
	assert.Equal(t, "field ErrorData.Funcname: only in 12, 13", fn.String())
	assert.Equal(t, "ErrorData.Funcname is not declared for host 14; it needs one of the tags pg12, pg13", r.Explain("ErrorData.Funcname", 14))
	assert.Empty(t, r.Explain("Missing", 14))
}
