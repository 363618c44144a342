package introspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprTokens(t *testing.T, src string) []token {
	t.Helper()
	toks, err := lex("expr", src)
	require.NoError(t, err)
	return stripNewlines(toks)
}

func TestEvalTokens(t *testing.T) {
	tests := []struct {
		expr     string
		want     int64
		unsigned bool
	}{
		{"1 + 2 * 3", 7, false},
		{"(1 + 2) * 3", 9, false},
		{"(1 << 4) | 1", 17, false},
		{"-1 < 0", 1, false},
		{"-1 < 0u", 0, false},
		{"10 / 3", 3, false},
		{"-7 % 3", -1, false},
		{"0 ? 1 / 0 : 2", 2, false},
		{"1 || 1 / 0", 1, false},
		{"0 && 1 / 0", 0, false},
		{"0x7F", 127, false},
		{"0x7Fu", 127, true},
		{"010", 8, false},
		{"0b101", 5, false},
		{"18446744073709551615ULL", -1, true},
		{"'A'", 65, false},
		{"'\\n'", 10, false},
		{"!0 + !5", 1, false},
		{"~0 & 0xff", 255, false},
		{"1, 2", 2, false},
		{"3 > 2 == 1", 1, false},
		{"(1 ? 2 : 3) ? 4 : 5", 4, false},
		{"100000L * 100000L", 10000000000, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := evalTokens(exprTokens(t, tt.expr), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.v)
			assert.Equal(t, tt.unsigned, v.unsigned)
		})
	}
}

func TestEvalTokensErrors(t *testing.T) {
	for _, expr := range []string{
		"1 / 0",
		"1 % 0",
		"1.5",
		"1e3",
		"1 << 64",
		"(1",
		"1 2",
		"sizeof(int)", // needs a type oracle
		"unknown",
		"",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := evalTokens(exprTokens(t, expr), nil)
			assert.Error(t, err)
		})
	}
}

func TestEvalTokensWithTypes(t *testing.T) {
	p, _ := parseSource(t, `
typedef unsigned short uint16;
typedef struct pair { char a; long b; } pair;
enum { SEVEN = 7 };
`)
	tests := []struct {
		expr     string
		want     int64
		unsigned bool
	}{
		{"sizeof(pair)", 16, true},
		{"sizeof(long) * 2", 16, true},
		{"sizeof(char *)", 8, true},
		{"offsetof(pair, b)", 8, true},
		{"(uint16) 70000", 70000 - 65536, false},
		{"(signed char) 200", -56, false},
		{"(unsigned int) -1", 0xFFFFFFFF, true},
		{"(_Bool) 5", 1, false},
		{"SEVEN * 2", 14, false},
		{"((pair *) 0) == 0", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := evalTokens(exprTokens(t, tt.expr), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.v)
			assert.Equal(t, tt.unsigned, v.unsigned)
		})
	}
}
