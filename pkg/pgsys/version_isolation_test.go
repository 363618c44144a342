package pgsys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

// load type-checks patterns with the given build tags and returns every
// error reported for them or their dependencies.
func load(t *testing.T, tags string, patterns ...string) []string {
	t.Helper()
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo | packages.NeedImports | packages.NeedDeps,
		Dir:        ".",
		BuildFlags: []string{"-tags=" + tags},
	}
	pkgs, err := packages.Load(cfg, patterns...)
	require.NoError(t, err)

	var errs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			errs = append(errs, e.Msg)
		}
	})
	return errs
}

func TestVersionIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checks the package under every version tag")
	}

	tbl := []struct {
		tags    string
		pattern string
		wantErr string
	}{
		{"pg14", "./testdata/needs14", ""},
		{"pg13", "./testdata/needs14", "TOAST_LZ4_COMPRESSION_ID"},
		{"pg10", "./testdata/needs14", "TOAST_LZ4_COMPRESSION_ID"},
		{"pg12", "./testdata/needsfloat4byval", ""},
		{"pg13", "./testdata/needsfloat4byval", "FLOAT4PASSBYVAL"},
		{"", ".", "pgsys_requires_exactly_one_of_the_build_tags"},
		{"pg13,pg14", ".", "redeclared"},
	}
	for _, tt := range tbl {
		t.Run(tt.tags+"/"+tt.pattern, func(t *testing.T) {
			errs := load(t, tt.tags, tt.pattern)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			joined := strings.Join(errs, "\n")
			assert.Contains(t, joined, tt.wantErr)
		})
	}
}

func TestEveryVersionCompiles(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checks the package under every version tag")
	}
	for _, tag := range []string{"pg10", "pg11", "pg12", "pg13", "pg14"} {
		t.Run(tag, func(t *testing.T) {
			assert.Empty(t, load(t, tag, "."))
		})
	}
}
