package synth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

// goType is the Go rendering of a C type together with the size and
// alignment Go gives it.
type goType struct {
	code  func() *jen.Statement
	spell string
	size  int64
	align int64

	pointer bool // pointer shaped: converted through unsafe.Pointer
	star    bool // spelled *T
	opaque  bool // unsafe.Pointer
}

func scalarType(name string, size, align int64) goType {
	return goType{code: func() *jen.Statement { return jen.Id(name) }, spell: name, size: size, align: align}
}

func unsafePointer(size int64) goType {
	return goType{
		code:    func() *jen.Statement { return jen.Qual("unsafe", "Pointer") },
		spell:   "unsafe.Pointer",
		size:    size,
		align:   size,
		pointer: true,
		opaque:  true,
	}
}

func pointerTo(name string, size int64) goType {
	return goType{
		code:    func() *jen.Statement { return jen.Op("*").Id(name) },
		spell:   "*" + name,
		size:    size,
		align:   size,
		pointer: true,
		star:    true,
	}
}

// opaqueBytes stands in for a by-value type that has no Go declaration.
// The element type keeps the alignment.
func (g *gen) opaqueBytes(size, align int64) goType {
	elem, esize := "byte", int64(1)
	switch align {
	case 2:
		elem, esize = "uint16", 2
	case 4:
		elem, esize = "uint32", 4
	case 8:
		elem, esize = "uint64", 8
		align = g.plat.Int64Align
	default:
		align = 1
	}
	if align < 1 || size%esize != 0 {
		elem, esize, align = "byte", 1, 1
	}
	n := size / esize
	return goType{
		code:  func() *jen.Statement { return jen.Index(jen.Lit(int(n))).Id(elem) },
		spell: "[" + strconv.FormatInt(n, 10) + "]" + elem,
		size:  size,
		align: align,
	}
}

func uintType(size, align int64) goType {
	return scalarType("uint"+strconv.FormatInt(size*8, 10), size, align)
}

// goType maps t. In signatures pointer aliases keep their names.
func (g *gen) goType(t *introspect.Type, sig bool) (goType, error) {
	switch t.Kind {
	case introspect.KindTypedef:
		return g.typedefType(t.Name, sig)

	case introspect.KindBool:
		return scalarType("bool", 1, 1), nil

	case introspect.KindInt:
		size, align, ok := g.plat.Scalar(t.Name)
		if !ok {
			return goType{}, fmt.Errorf("unknown scalar type %q", t.Name)
		}
		switch t.Name {
		case "char":
			return scalarType("byte", 1, 1), nil
		case "signed char":
			return scalarType("int8", 1, 1), nil
		case "unsigned char":
			return scalarType("uint8", 1, 1), nil
		}
		if size > 8 {
			return g.opaqueBytes(size, align), nil
		}
		prefix := "int"
		if strings.HasPrefix(t.Name, "unsigned") {
			prefix = "uint"
		}
		return scalarType(prefix+strconv.FormatInt(size*8, 10), size, align), nil

	case introspect.KindFloat:
		size, align, ok := g.plat.Scalar(t.Name)
		if !ok {
			return goType{}, fmt.Errorf("unknown scalar type %q", t.Name)
		}
		switch t.Name {
		case "float":
			return scalarType("float32", size, align), nil
		case "double":
			return scalarType("float64", size, align), nil
		}
		return g.opaqueBytes(size, align), nil

	case introspect.KindEnum:
		size := int64(4)
		if e, ok := g.desc.Enum(t.Name); ok {
			size = e.Size
		}
		if name, ok := g.enums[t.Name]; ok {
			return scalarType(name, size, size), nil
		}
		return scalarType("int"+strconv.FormatInt(size*8, 10), size, size), nil

	case introspect.KindPointer:
		return g.pointerType(t.Elem), nil

	case introspect.KindArray:
		if t.Len < 0 {
			return goType{}, fmt.Errorf("flexible array %s outside a struct tail", t)
		}
		elem, err := g.goType(t.Elem, false)
		if err != nil {
			return goType{}, err
		}
		return goType{
			code:  func() *jen.Statement { return jen.Index(jen.Lit(int(t.Len))).Add(elem.code()) },
			spell: "[" + strconv.FormatInt(t.Len, 10) + "]" + elem.spell,
			size:  elem.size * t.Len,
			align: elem.align,
		}, nil

	case introspect.KindStruct, introspect.KindUnion:
		s, ok := g.desc.Struct(t.Name)
		if !ok || s.Incomplete {
			return goType{}, fmt.Errorf("%s %s is not defined", t.Kind, t.Name)
		}
		if g.emits(s) {
			gs, err := g.layout(s)
			if err != nil {
				return goType{}, err
			}
			return scalarType(gs.name, s.Size, gs.align), nil
		}
		return g.opaqueBytes(s.Size, s.Align), nil
	}
	return goType{}, fmt.Errorf("type %s has no Go form", t)
}

func (g *gen) typedefType(name string, sig bool) (goType, error) {
	if g.fix.scalarAlias(name) || sig && g.fix.alias(name) {
		under, err := g.resolveTypedef(name, false)
		if err != nil {
			return goType{}, err
		}
		under.code = func() *jen.Statement { return jen.Id(name) }
		under.spell = name
		under.star = false
		under.opaque = false
		return under, nil
	}
	return g.resolveTypedef(name, sig)
}

func (g *gen) resolveTypedef(name string, sig bool) (goType, error) {
	switch name {
	case "size_t", "uintptr_t":
		return scalarType("uintptr", g.plat.PointerSize, g.plat.PointerSize), nil
	case "ssize_t", "intptr_t", "ptrdiff_t":
		return scalarType("int", g.plat.PointerSize, g.plat.PointerSize), nil
	}
	if td, ok := g.desc.Typedef(name); ok {
		return g.goType(td.Type, sig)
	}
	if b, ok := g.plat.Builtin(name); ok {
		return g.goType(b, sig)
	}
	return goType{}, fmt.Errorf("typedef %s is not defined", name)
}

// pointerType maps a pointer to elem: pointers to characters become
// *byte, pointers to generated structs and scalar aliases keep their
// type, anything else is an unsafe.Pointer.
func (g *gen) pointerType(elem *introspect.Type) goType {
	size := g.plat.PointerSize
	if elem.Kind == introspect.KindTypedef && g.fix.scalarAlias(elem.Name) {
		return pointerTo(elem.Name, size)
	}
	r := g.resolve(elem)
	switch r.Kind {
	case introspect.KindInt:
		if r.Name == "char" || r.Name == "signed char" || r.Name == "unsigned char" {
			return pointerTo("byte", size)
		}
	case introspect.KindStruct, introspect.KindUnion:
		if s, ok := g.desc.Struct(r.Name); ok && g.emits(s) {
			return pointerTo(g.structName(s), size)
		}
	}
	return unsafePointer(size)
}

// resolve follows typedefs down to a non-typedef type.
func (g *gen) resolve(t *introspect.Type) *introspect.Type {
	for i := 0; t != nil && t.Kind == introspect.KindTypedef && i < 64; i++ {
		if td, ok := g.desc.Typedef(t.Name); ok {
			t = td.Type
			continue
		}
		if b, ok := g.plat.Builtin(t.Name); ok {
			t = b
			continue
		}
		break
	}
	return t
}

// goStruct is the Go declaration of one host struct.
type goStruct struct {
	src   *introspect.Struct
	name  string
	align int64

	fields []goField
	units  []bitUnit
	flex   *introspect.Field
	member string // the union member that is mapped
}

type goField struct {
	name  string // _ for padding
	typ   goType
	cname string
}

type bitUnit struct {
	field string
	typ   goType
	bits  []bitField
}

type bitField struct {
	name  string // accessor
	shift int64
	width int64
}

type placed struct {
	off   int64
	field goField
}

// layout builds the Go declaration of s, inserting explicit padding
// wherever the host offset is past the end of the previous member.
func (g *gen) layout(s *introspect.Struct) (*goStruct, error) {
	if gs, ok := g.layouts[s]; ok {
		if gs == nil {
			return nil, fmt.Errorf("%s contains itself", s.CName())
		}
		return gs, nil
	}
	g.layouts[s] = nil

	gs := &goStruct{src: s, name: g.structName(s)}
	items, err := g.members(s, gs)
	if err != nil {
		delete(g.layouts, s)
		return nil, err
	}

	var (
		off    int64
		align  int64 = 1
		fields []goField
		pad    = func(n int64) {
			fields = append(fields, goField{name: "_", typ: g.opaqueBytes(n, 1)})
		}
	)
	for _, it := range items {
		if it.off < off {
			delete(g.layouts, s)
			return nil, fmt.Errorf("%s.%s at offset %d overlaps the previous member", s.CName(), it.field.cname, it.off)
		}
		if it.off > off {
			pad(it.off - off)
			off = it.off
		}
		if it.field.typ.align > 1 && off%it.field.typ.align != 0 {
			delete(g.layouts, s)
			return nil, fmt.Errorf("%s.%s at offset %d is not aligned to %d", s.CName(), it.field.cname, off, it.field.typ.align)
		}
		fields = append(fields, it.field)
		off += it.field.typ.size
		align = max(align, it.field.typ.align)
	}
	if off > s.Size {
		delete(g.layouts, s)
		return nil, fmt.Errorf("%s: members end at %d past its size %d", s.CName(), off, s.Size)
	}
	if off < s.Size {
		pad(s.Size - off)
	}
	if align != s.Align {
		delete(g.layouts, s)
		return nil, fmt.Errorf("%s: alignment %d cannot be expressed in Go (members give %d)", s.CName(), s.Align, align)
	}
	gs.fields, gs.align = fields, align
	g.layouts[s] = gs
	return gs, nil
}

func (g *gen) members(s *introspect.Struct, gs *goStruct) ([]placed, error) {
	if s.Union {
		var best *introspect.Field
		var bestType goType
		for _, f := range s.Fields {
			if f.Name == "" || f.Bitfield || f.Flexible {
				continue
			}
			t, err := g.goType(f.Type, false)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.CName(), f.Name, err)
			}
			if best == nil || t.align > bestType.align {
				best, bestType = f, t
			}
		}
		if best == nil {
			return nil, nil
		}
		gs.member = best.Name
		return []placed{{0, goField{name: g.fieldName(s, best.Name), typ: bestType, cname: best.Name}}}, nil
	}

	var items []placed
	for i := 0; i < len(s.Fields); i++ {
		f := s.Fields[i]
		switch {
		case f.Flexible:
			gs.flex = f
		case f.Bitfield:
			if f.BitWidth == 0 {
				continue
			}
			start, end := f.Offset, f.Offset+f.Size
			group := []*introspect.Field{f}
			for i+1 < len(s.Fields) {
				n := s.Fields[i+1]
				if !n.Bitfield || n.BitWidth == 0 || n.Offset >= end {
					break
				}
				end = max(end, n.Offset+n.Size)
				group = append(group, n)
				i++
			}
			span := end - start
			if span != 1 && span != 2 && span != 4 && span != 8 {
				return nil, fmt.Errorf("%s.%s: bit-field unit of %d bytes", s.CName(), f.Name, span)
			}
			ualign := span
			if span == 8 {
				ualign = g.plat.Int64Align
			}
			unit := bitUnit{field: "Bits" + strconv.Itoa(len(gs.units)), typ: uintType(span, ualign)}
			for _, b := range group {
				if b.Name == "" {
					continue
				}
				unit.bits = append(unit.bits, bitField{
					name:  g.fieldName(s, b.Name),
					shift: (b.Offset-start)*8 + b.BitOffset,
					width: b.BitWidth,
				})
			}
			gs.units = append(gs.units, unit)
			items = append(items, placed{start, goField{name: unit.field, typ: unit.typ}})
		case f.Name == "":
			t, err := g.anonymous(f)
			if err != nil {
				return nil, fmt.Errorf("%s: anonymous member: %w", s.CName(), err)
			}
			items = append(items, placed{f.Offset, goField{name: "_", typ: t}})
		default:
			t, err := g.goType(f.Type, false)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.CName(), f.Name, err)
			}
			items = append(items, placed{f.Offset, goField{name: g.fieldName(s, f.Name), typ: t, cname: f.Name}})
		}
	}
	return items, nil
}

func (g *gen) anonymous(f *introspect.Field) (goType, error) {
	r := g.resolve(f.Type)
	if s, ok := g.desc.Struct(r.Name); ok {
		return g.opaqueBytes(s.Size, s.Align), nil
	}
	return g.opaqueBytes(f.Size, 1), nil
}

func (g *gen) structName(s *introspect.Struct) string {
	for _, n := range []string{s.Typedef, s.Name} {
		if to, ok := g.desc.Renames[n]; ok && n != "" {
			return typeName(to)
		}
	}
	if s.Typedef != "" {
		return typeName(s.Typedef)
	}
	return typeName(s.Name)
}

func (g *gen) fieldName(s *introspect.Struct, field string) string {
	for _, n := range []string{s.Typedef, s.Name} {
		if to, ok := g.desc.Renames[n+"."+field]; ok && n != "" {
			return camel(to)
		}
	}
	return camel(field)
}

// cname is how the layout table names s: its C spelling, or the member
// path for a struct defined inside another.
func cname(s *introspect.Struct) string {
	if strings.Contains(s.Name, ".") {
		return s.Name
	}
	return s.CName()
}
