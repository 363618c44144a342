package introspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// parseSource preprocesses and parses src as header t.h for linux/amd64.
func parseSource(t *testing.T, src string) (*parser, *preprocessor) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.h"), []byte(src), 0o644))

	logger := zaptest.NewLogger(t)
	plat := platforms["linux/amd64"]
	pp := newPreprocessor(14, []string{dir}, map[string]bool{}, logger)
	for _, def := range plat.builtinMacros() {
		require.NoError(t, pp.predefine(originBuiltin, def))
	}
	require.NoError(t, pp.includeTop("t.h"))

	p := newParser(14, plat, pp.out, logger)
	p.parse()
	for _, s := range p.structs {
		_ = p.layout.layoutStruct(s)
	}
	return p, pp
}

func structOf(t *testing.T, p *parser, key string) *Struct {
	t.Helper()
	s, ok := p.structs[key]
	require.True(t, ok, "no %s", key)
	require.False(t, s.Incomplete, "%s is incomplete", key)
	return s
}

func offsets(s *Struct) map[string]int64 {
	out := make(map[string]int64)
	for _, f := range s.Fields {
		out[f.Name] = f.Offset
	}
	return out
}

func TestLayoutRules(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		key     string
		size    int64
		align   int64
		offsets map[string]int64
	}{
		{
			name:    "natural alignment",
			src:     "struct s { char c; long l; short h; };",
			key:     "struct s",
			size:    24,
			align:   8,
			offsets: map[string]int64{"c": 0, "l": 8, "h": 16},
		},
		{
			name:    "packed",
			src:     "struct s { char c; int i; } __attribute__((packed));",
			key:     "struct s",
			size:    5,
			align:   1,
			offsets: map[string]int64{"c": 0, "i": 1},
		},
		{
			name:    "aligned member",
			src:     "struct s { char c; int i __attribute__((aligned(16))); };",
			key:     "struct s",
			size:    32,
			align:   16,
			offsets: map[string]int64{"c": 0, "i": 16},
		},
		{
			name:    "union",
			src:     "union u { char c[13]; int i; double d; };",
			key:     "union u",
			size:    16,
			align:   8,
			offsets: map[string]int64{"c": 0, "i": 0, "d": 0},
		},
		{
			name:    "flexible array member",
			src:     "struct s { int n; double d[]; };",
			key:     "struct s",
			size:    8,
			align:   8,
			offsets: map[string]int64{"n": 0, "d": 8},
		},
		{
			name:    "two dimensional array",
			src:     "struct s { short m[3][5]; char tail; };",
			key:     "struct s",
			size:    32,
			align:   2,
			offsets: map[string]int64{"m": 0, "tail": 30},
		},
		{
			name:    "enum as int",
			src:     "enum e { A, B }; struct s { char c; enum e v; };",
			key:     "struct s",
			size:    8,
			align:   4,
			offsets: map[string]int64{"c": 0, "v": 4},
		},
		{
			name:    "array length from sizeof",
			src:     "typedef struct { long a; int b; } inner; struct s { char buf[sizeof(inner)]; };",
			key:     "struct s",
			size:    16,
			align:   1,
			offsets: map[string]int64{"buf": 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := parseSource(t, tt.src)
			s := structOf(t, p, tt.key)
			assert.Equal(t, tt.size, s.Size)
			assert.Equal(t, tt.align, s.Align)
			assert.Equal(t, tt.offsets, offsets(s))
		})
	}
}

func TestBitfieldPacking(t *testing.T) {
	p, _ := parseSource(t, `
struct s {
	unsigned char a:3;
	unsigned char b:6;
	unsigned int c:10;
	unsigned int :0;
	unsigned short d:4;
	unsigned int e:30;
};`)
	s := structOf(t, p, "struct s")

	type pos struct{ off, bit int64 }
	got := map[string]pos{}
	for _, f := range s.Fields {
		if f.Name != "" {
			got[f.Name] = pos{f.Offset, f.BitOffset}
		}
	}
	assert.Equal(t, map[string]pos{
		"a": {0, 0},
		"b": {1, 0},  // does not fit in the rest of the first byte
		"c": {0, 14}, // shares the int unit starting at byte 0
		"d": {4, 0},  // after the zero-width field
		"e": {8, 0},
	}, got)
	assert.Equal(t, int64(12), s.Size)
	assert.Equal(t, int64(4), s.Align)
}

func TestAnonymousMembers(t *testing.T) {
	p, _ := parseSource(t, `
typedef struct outer {
	int tag;
	union {
		long l;
		struct { int lo; int hi; } pair;
	};
} outer;
enum { OFF_HI = __builtin_offsetof(outer, pair.hi) };
`)
	s := structOf(t, p, "struct outer")
	assert.Equal(t, int64(16), s.Size)
	assert.Equal(t, "outer", s.Typedef)

	v, ok := p.enumVals["OFF_HI"]
	require.True(t, ok)
	assert.Equal(t, int64(12), v)
}

func TestNestedStructNames(t *testing.T) {
	p, _ := parseSource(t, `
typedef union {
	struct { unsigned int header; char data[]; } four;
	struct { unsigned char header; char data[]; } one;
} varattrib;
`)
	_, ok := p.structs["union varattrib"]
	assert.True(t, ok)
	four := structOf(t, p, "struct varattrib.four")
	assert.Equal(t, int64(4), four.Size)
	one := structOf(t, p, "struct varattrib.one")
	assert.Equal(t, int64(1), offsets(one)["data"])
}

func TestDeclarators(t *testing.T) {
	p, _ := parseSource(t, `
typedef int (*handler)(void *arg, const char *fmt, ...);
typedef char *names[4];
typedef void (*(*factory)(int))(long);
extern int counters[8];
extern const char *const labels[];
static inline int twice(int x) { return x * 2; }
int plain(int, char **);
`)
	h := p.typedefs["handler"].Type
	require.Equal(t, KindPointer, h.Kind)
	require.Equal(t, KindFunc, h.Elem.Kind)
	assert.True(t, h.Elem.Variadic)
	assert.Len(t, h.Elem.Params, 2)

	n := p.typedefs["names"].Type
	assert.Equal(t, KindArray, n.Kind)
	assert.Equal(t, int64(4), n.Len)
	assert.Equal(t, KindPointer, n.Elem.Kind)

	f := p.typedefs["factory"].Type
	require.Equal(t, KindPointer, f.Kind)
	require.Equal(t, KindFunc, f.Elem.Kind)
	ret := f.Elem.Elem
	require.Equal(t, KindPointer, ret.Kind)
	assert.Equal(t, KindFunc, ret.Elem.Kind)

	assert.Equal(t, int64(8), p.globals["counters"].Type.Len)
	assert.Equal(t, int64(-1), p.globals["labels"].Type.Len)

	assert.True(t, p.functions["twice"].Inline)
	plain := p.functions["plain"]
	assert.False(t, plain.Inline)
	require.Len(t, plain.Params, 2)
	assert.Equal(t, "char * *", plain.Params[1].Type.String())
}

func TestParserSkipsWhatItCannotRead(t *testing.T) {
	p, _ := parseSource(t, `
int before;
this is not C at all;
static inline void body(void) { weird { nested } stuff; }
struct after { int x; };
`)
	assert.Equal(t, 1, p.skipped)
	_, ok := p.globals["before"]
	assert.False(t, ok) // not extern
	structOf(t, p, "struct after")
	assert.True(t, p.functions["body"].Inline)
}

func TestEnumValues(t *testing.T) {
	p, _ := parseSource(t, `
#define BASE 10
enum color { RED = BASE, GREEN, BLUE = GREEN << 2, WIDE = 0x100000000 };
typedef enum { X = -1, Y } small;
`)
	assert.Equal(t, int64(10), p.enumVals["RED"])
	assert.Equal(t, int64(11), p.enumVals["GREEN"])
	assert.Equal(t, int64(44), p.enumVals["BLUE"])
	assert.Equal(t, int64(8), p.enums["color"].Size)
	assert.Equal(t, int64(0), p.enumVals["Y"])
	_, ok := p.enums["small"]
	assert.True(t, ok)
}

func TestSelfContainingStructIsIncomplete(t *testing.T) {
	p, _ := parseSource(t, "struct loop { int x; struct loop inner; }; struct ok { struct loop *next; };")
	assert.True(t, p.structs["struct loop"].Incomplete)
	structOf(t, p, "struct ok")
}
