package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

func cint(name string) *introspect.Type {
	return &introspect.Type{Kind: introspect.KindInt, Name: name}
}

func ptr(elem *introspect.Type) *introspect.Type {
	return &introspect.Type{Kind: introspect.KindPointer, Elem: elem}
}

func testGen(t *testing.T, platform string, structs []*introspect.Struct, emit ...string) *gen {
	t.Helper()
	desc := &introspect.Description{Version: 14, Platform: platform, Structs: structs}
	fix := &Corrections{}
	for _, name := range emit {
		fix.Structs = append(fix.Structs, StructSpec{Name: name})
	}
	g, err := newGen(14, desc, introspect.AllowlistEntry{}, fix, zaptest.NewLogger(t))
	require.NoError(t, err)
	return g
}

func TestLayoutPadsToHostOffsets(t *testing.T) {
	s := &introspect.Struct{Name: "pair", Typedef: "Pair", Size: 16, Align: 8, Fields: []*introspect.Field{
		{Name: "tag", Type: cint("int"), Offset: 0, Size: 4},
		{Name: "ptr", Type: ptr(cint("char")), Offset: 8, Size: 8},
	}}
	g := testGen(t, "linux/amd64", []*introspect.Struct{s}, "Pair")

	gs, err := g.layout(s)
	require.NoError(t, err)
	require.Len(t, gs.fields, 3)
	assert.Equal(t, "Tag", gs.fields[0].name)
	assert.Equal(t, "_", gs.fields[1].name)
	assert.Equal(t, "[4]byte", gs.fields[1].typ.spell)
	assert.Equal(t, "*byte", gs.fields[2].typ.spell)
	assert.EqualValues(t, 8, gs.align)
}

func TestLayoutRejectsUnrepresentableStructs(t *testing.T) {
	tests := []struct {
		name   string
		s      *introspect.Struct
		errMsg string
	}{
		{
			name: "overlap",
			s: &introspect.Struct{Name: "bad", Size: 8, Align: 4, Fields: []*introspect.Field{
				{Name: "a", Type: cint("int"), Offset: 0, Size: 4},
				{Name: "b", Type: cint("int"), Offset: 2, Size: 4},
			}},
			errMsg: "overlaps the previous member",
		},
		{
			name: "misaligned",
			s: &introspect.Struct{Name: "bad", Size: 12, Align: 4, Packed: true, Fields: []*introspect.Field{
				{Name: "a", Type: cint("int"), Offset: 0, Size: 4},
				{Name: "b", Type: cint("long"), Offset: 4, Size: 8},
			}},
			errMsg: "is not aligned to 8",
		},
		{
			name: "past the end",
			s: &introspect.Struct{Name: "bad", Size: 4, Align: 4, Fields: []*introspect.Field{
				{Name: "a", Type: cint("long"), Offset: 0, Size: 8},
			}},
			errMsg: "past its size 4",
		},
		{
			name: "long double",
			s: &introspect.Struct{Name: "bad", Size: 16, Align: 16, Fields: []*introspect.Field{
				{Name: "a", Type: &introspect.Type{Kind: introspect.KindFloat, Name: "long double"}, Offset: 0, Size: 16},
			}},
			errMsg: "alignment 16 cannot be expressed in Go",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGen(t, "linux/amd64", []*introspect.Struct{tt.s}, "bad")
			_, err := g.layout(tt.s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			_, cached := g.layouts[tt.s]
			assert.False(t, cached)
		})
	}
}

func TestLayoutMapsMostAlignedUnionMember(t *testing.T) {
	u := &introspect.Struct{Name: "either", Union: true, Size: 8, Align: 8, Fields: []*introspect.Field{
		{Name: "small", Type: cint("short"), Size: 2},
		{Name: "big", Type: cint("long"), Size: 8},
		{Name: "bytes", Type: &introspect.Type{Kind: introspect.KindArray, Elem: cint("char"), Len: 8}, Size: 8},
	}}
	g := testGen(t, "linux/amd64", []*introspect.Struct{u}, "either")

	gs, err := g.layout(u)
	require.NoError(t, err)
	assert.Equal(t, "big", gs.member)
	require.Len(t, gs.fields, 1)
	assert.Equal(t, "Big", gs.fields[0].name)
	assert.Equal(t, "int64", gs.fields[0].typ.spell)

	doc, err := g.structDoc(gs)
	require.NoError(t, err)
	assert.Equal(t, "Either is a union; only its big member is mapped.", doc)
}

func TestLayoutGroupsBitfieldsIntoUnits(t *testing.T) {
	s := &introspect.Struct{Name: "flags", Size: 8, Align: 4, Fields: []*introspect.Field{
		{Name: "kind", Type: cint("unsigned int"), Offset: 0, Size: 4, Bitfield: true, BitOffset: 0, BitWidth: 3},
		{Name: "", Type: cint("unsigned int"), Offset: 0, Size: 4, Bitfield: true, BitOffset: 3, BitWidth: 5},
		{Name: "has_nulls", Type: cint("unsigned int"), Offset: 0, Size: 4, Bitfield: true, BitOffset: 8, BitWidth: 1},
		{Name: "count", Type: cint("int"), Offset: 4, Size: 4},
	}}
	g := testGen(t, "linux/amd64", []*introspect.Struct{s}, "flags")

	gs, err := g.layout(s)
	require.NoError(t, err)
	require.Len(t, gs.units, 1)
	u := gs.units[0]
	assert.Equal(t, "Bits0", u.field)
	assert.Equal(t, "uint32", u.typ.spell)
	assert.Equal(t, []bitField{{name: "Kind", shift: 0, width: 3}, {name: "HasNulls", shift: 8, width: 1}}, u.bits)
	require.Len(t, gs.fields, 2)
	assert.Equal(t, "Count", gs.fields[1].name)
}

func TestPointerMapping(t *testing.T) {
	node := &introspect.Struct{Name: "node", Size: 8, Align: 8, Fields: []*introspect.Field{
		{Name: "next", Type: ptr(&introspect.Type{Kind: introspect.KindStruct, Name: "node"}), Size: 8},
	}}
	hidden := &introspect.Struct{Name: "hidden", Size: 4, Align: 4, Fields: []*introspect.Field{
		{Name: "x", Type: cint("int"), Size: 4},
	}}
	g := testGen(t, "linux/386", []*introspect.Struct{node, hidden}, "node")

	tests := []struct {
		name string
		elem *introspect.Type
		want string
	}{
		{"char", cint("char"), "*byte"},
		{"unsigned char", cint("unsigned char"), "*byte"},
		{"emitted struct", &introspect.Type{Kind: introspect.KindStruct, Name: "node"}, "*Node"},
		{"struct not emitted", &introspect.Type{Kind: introspect.KindStruct, Name: "hidden"}, "unsafe.Pointer"},
		{"int", cint("int"), "unsafe.Pointer"},
		{"void", &introspect.Type{Kind: introspect.KindVoid}, "unsafe.Pointer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt := g.pointerType(tt.elem)
			assert.Equal(t, tt.want, gt.spell)
			assert.EqualValues(t, 4, gt.size)
			assert.True(t, gt.pointer)
		})
	}
}

func TestOpaqueBytesKeepsAlignment(t *testing.T) {
	amd64 := testGen(t, "linux/amd64", nil)
	i386 := testGen(t, "linux/386", nil)

	tests := []struct {
		name        string
		g           *gen
		size, align int64
		spell       string
		wantAlign   int64
	}{
		{"bytes", amd64, 3, 1, "[3]byte", 1},
		{"words", amd64, 8, 4, "[2]uint32", 4},
		{"quads", amd64, 16, 8, "[2]uint64", 8},
		{"quads on 386", i386, 16, 8, "[2]uint64", 4},
		{"odd size", amd64, 6, 4, "[6]byte", 1},
		{"align 16", amd64, 16, 16, "[16]byte", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt := tt.g.opaqueBytes(tt.size, tt.align)
			assert.Equal(t, tt.spell, gt.spell)
			assert.Equal(t, tt.wantAlign, gt.align)
			assert.Equal(t, tt.size, gt.size)
		})
	}
}
