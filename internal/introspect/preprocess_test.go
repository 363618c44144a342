package introspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLex(t *testing.T) {
	toks, err := lex("t.h", "a/* c\nc */b // x\n#define X(y) L\"s\" 'q' 1.5e+3 <<= ...\\\n z\n")
	require.NoError(t, err)

	var texts []string
	for _, tk := range toks {
		texts = append(texts, tk.text)
	}
	assert.Equal(t, []string{"a", "b", "\n", "#", "define", "X", "(", "y", ")", `L"s"`, "'q'", "1.5e+3", "<<=", "...", "z", "\n"}, texts)
	assert.Equal(t, 2, toks[1].line)
	assert.True(t, toks[1].space)
	assert.Equal(t, tString, toks[9].kind)

	_, err = lex("t.h", "/* open")
	assert.Error(t, err)
	_, err = lex("t.h", "\"open\n")
	assert.Error(t, err)
}

func TestMacroExpansion(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "object-like",
			src:  "#define N 4\nint a[N];",
			want: "int a[4];",
		},
		{
			name: "function-like with nested parentheses",
			src:  "#define ADD(a, b) ((a) + (b))\nint x = ADD(f(1, 2), 3);",
			want: "int x = ((f(1, 2)) + (3));",
		},
		{
			name: "self reference is not expanded again",
			src:  "#define foo foo + 1\nint foo;",
			want: "int foo + 1;",
		},
		{
			name: "stringize",
			src:  "#define STR(x) #x\nconst char *s = STR(a  +  \"b\");",
			want: `const char *s = "a + \"b\"";`,
		},
		{
			name: "paste",
			src:  "#define CAT(a, b) a##b\nint CAT(foo, 12);",
			want: "int foo12;",
		},
		{
			name: "arguments are expanded before substitution",
			src:  "#define N 4\n#define ID(x) x\nint a[ID(N)];",
			want: "int a[4];",
		},
		{
			name: "pasted operands are not expanded",
			src:  "#define N 4\n#define CAT(a, b) a##b\nint CAT(N, x);",
			want: "int Nx;",
		},
		{
			name: "variadic",
			src:  "#define CALL(f, ...) f(__VA_ARGS__)\nCALL(g, 1, 2);",
			want: "g(1, 2);",
		},
		{
			name: "comma swallowed before empty variadic arguments",
			src:  "#define LOG(fmt, ...) log(fmt, ##__VA_ARGS__)\nLOG(\"x\");",
			want: `log("x");`,
		},
		{
			name: "function-like name without arguments",
			src:  "#define F(x) x\nint F;",
			want: "int F;",
		},
		{
			name: "conditional groups",
			src:  "#define A 2\n#if A > 1 && defined(A)\nint yes;\n#elif 1\nint no1;\n#else\nint no2;\n#endif\n#ifndef A\nint no3;\n#endif",
			want: "int yes;",
		},
		{
			name: "inactive groups are not evaluated",
			src:  "#if 0\n#if UNDEFINED_THING\n#error unreachable\n#endif\n#endif\nint ok;",
			want: "int ok;",
		},
		{
			name: "undef",
			src:  "#define X 1\n#undef X\nint X;",
			want: "int X;",
		},
		{
			name: "identical redefinition",
			src:  "#define X (1 + 2)\n#define X (1 + 2)\nint y = X;",
			want: "int y = (1 + 2);",
		},
		{
			name: "predefined macros win",
			src:  "#define INT_MAX 7\n#undef INT_MAX\nint m = INT_MAX;",
			want: "int m = 2147483647;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pp := parseSource(t, tt.src)
			assert.Equal(t, tt.want, joinTokens(pp.out))
		})
	}
}

func TestIncludes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"top.h":         "#include \"sub/inner.h\"\n#include \"sub/inner.h\"\n#include <stdio.h>\nint top;",
		"sub/inner.h":   "#pragma once\n#include \"sibling.h\"\nint inner;",
		"sub/sibling.h": "#if __has_include(\"top.h\") && !__has_include(<nope.h>)\nint sibling;\n#endif",
	})
	pp := newPreprocessor(14, []string{dir}, nil, zaptest.NewLogger(t))
	require.NoError(t, pp.includeTop("top.h"))
	assert.Equal(t, "int sibling;int inner;int top;", joinTokens(pp.out))

	var rels []string
	for _, f := range pp.files {
		rels = append(rels, f.Rel)
	}
	assert.Equal(t, []string{"top.h", "sub/inner.h", "sub/sibling.h"}, rels)
}
