package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseVolatility(t *testing.T) {
	for in, want := range map[string]Volatility{
		"":          Volatile,
		"immutable": Immutable,
		" Stable ":  Stable,
		"VOLATILE":  Volatile,
	} {
		got, err := ParseVolatility(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVolatility("leakproof")
	assert.Error(t, err)
}

func TestSignatureAndLookup(t *testing.T) {
	c := &Catalog{
		HostVersion: 14,
		Functions: []FunctionInfo{{
			Name:       "add_one",
			Schema:     "public",
			Args:       []FunctionArg{{Name: "x", Type: "int4"}, {Type: "text"}},
			ReturnType: "int4",
			Volatility: Immutable,
			Symbol:     "pgxbridge_call",
		}},
		Types: []TypeInfo{{Name: "int4", Oid: 23, Len: 4, ByVal: true, Align: "i", Category: "N"}},
	}

	f, ok := c.Function("public", "add_one")
	require.True(t, ok)
	assert.Equal(t, "public.add_one(int4, text)", f.Signature())

	_, ok = c.Function("other", "add_one")
	assert.False(t, ok)

	ti, ok := c.Type("int4")
	require.True(t, ok)
	assert.Equal(t, "N", ti.Category)
}

func TestYAMLFieldNames(t *testing.T) {
	out, err := yaml.Marshal(&Catalog{
		HostVersion: 13,
		Functions:   []FunctionInfo{{Name: "f", Schema: "s", ReturnType: "void", Volatility: Volatile}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "host_version: 13")
	assert.Contains(t, string(out), "returns: void")
	assert.NotContains(t, string(out), "args:")
}
