package introspect

import "sort"

// Kind classifies a C type.
type Kind string

const (
	KindVoid    Kind = "void"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindBool    Kind = "bool"
	KindPointer Kind = "pointer"
	KindArray   Kind = "array"
	KindStruct  Kind = "struct"
	KindUnion   Kind = "union"
	KindEnum    Kind = "enum"
	KindTypedef Kind = "typedef"
	KindFunc    Kind = "func"
)

// Type is a C type as written. Struct, union, enum and typedef types refer
// to their definition by name. Size and Align are filled in by layout
// where the type is complete.
type Type struct {
	Kind     Kind    `cbor:"kind" yaml:"kind"`
	Name     string  `cbor:"name,omitempty" yaml:"name,omitempty"`
	Elem     *Type   `cbor:"elem,omitempty" yaml:"elem,omitempty"`
	Len      int64   `cbor:"len,omitempty" yaml:"len,omitempty"` // arrays; -1 for a flexible array member
	Params   []Param `cbor:"params,omitempty" yaml:"params,omitempty"`
	Variadic bool    `cbor:"variadic,omitempty" yaml:"variadic,omitempty"`
	Signed   bool    `cbor:"signed,omitempty" yaml:"signed,omitempty"`
	Const    bool    `cbor:"const,omitempty" yaml:"const,omitempty"`
	Size     int64   `cbor:"size,omitempty" yaml:"size,omitempty"`
	Align    int64   `cbor:"align,omitempty" yaml:"align,omitempty"`
}

// String renders the type in C-like notation.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindPointer:
		return t.Elem.String() + " *"
	case KindArray:
		if t.Len < 0 {
			return t.Elem.String() + "[]"
		}
		return t.Elem.String() + "[" + itoa(t.Len) + "]"
	case KindStruct, KindUnion, KindEnum:
		return string(t.Kind) + " " + t.Name
	case KindFunc:
		s := t.Elem.String() + " ("
		for i, p := range t.Params {
			if i > 0 {
				s += ", "
			}
			s += p.Type.String()
		}
		if t.Variadic {
			s += ", ..."
		}
		return s + ")"
	}
	return t.Name
}

// Param is a function parameter. Name may be empty.
type Param struct {
	Name string `cbor:"name,omitempty" yaml:"name,omitempty"`
	Type *Type  `cbor:"type" yaml:"type"`
}

// Field is one struct or union member.
type Field struct {
	Name   string `cbor:"name" yaml:"name"`
	Type   *Type  `cbor:"type" yaml:"type"`
	Offset int64  `cbor:"offset" yaml:"offset"` // storage unit offset for bitfields
	Size   int64  `cbor:"size" yaml:"size"`

	Bitfield  bool  `cbor:"bitfield,omitempty" yaml:"bitfield,omitempty"`
	BitOffset int64 `cbor:"bit_offset,omitempty" yaml:"bit_offset,omitempty"`
	BitWidth  int64 `cbor:"bit_width,omitempty" yaml:"bit_width,omitempty"`
	Flexible  bool  `cbor:"flexible,omitempty" yaml:"flexible,omitempty"`

	align int64 // from an aligned attribute
}

// Struct is a complete struct or union definition. Name is the tag, or
// the typedef name for an anonymous definition, or Parent.member for one
// defined inline.
type Struct struct {
	Name    string   `cbor:"name" yaml:"name"`
	Typedef string   `cbor:"typedef,omitempty" yaml:"typedef,omitempty"`
	Union   bool     `cbor:"union,omitempty" yaml:"union,omitempty"`
	Size    int64    `cbor:"size" yaml:"size"`
	Align   int64    `cbor:"align" yaml:"align"`
	Packed  bool     `cbor:"packed,omitempty" yaml:"packed,omitempty"`
	Fields  []*Field `cbor:"fields" yaml:"fields"`
	Header  string   `cbor:"header" yaml:"header"`

	// Incomplete is set when layout failed for a struct nothing required
	// uses by value.
	Incomplete bool `cbor:"incomplete,omitempty" yaml:"incomplete,omitempty"`

	minAlign int64
}

// CName is how C code names the type.
func (s *Struct) CName() string {
	if s.Typedef != "" {
		return s.Typedef
	}
	if s.Union {
		return "union " + s.Name
	}
	return "struct " + s.Name
}

// Field returns the member called name.
func (s *Struct) Field(name string) (*Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Enum is an enumeration with its constant values.
type Enum struct {
	Name   string      `cbor:"name" yaml:"name"`
	Values []EnumValue `cbor:"values" yaml:"values"`
	Size   int64       `cbor:"size" yaml:"size"`
	Header string      `cbor:"header" yaml:"header"`
}

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string `cbor:"name" yaml:"name"`
	Value int64  `cbor:"value" yaml:"value"`
}

// Typedef names a type.
type Typedef struct {
	Name   string `cbor:"name" yaml:"name"`
	Type   *Type  `cbor:"type" yaml:"type"`
	Header string `cbor:"header" yaml:"header"`
}

// Function is a function declaration. Inline functions have no linkable
// symbol.
type Function struct {
	Name     string  `cbor:"name" yaml:"name"`
	Result   *Type   `cbor:"result" yaml:"result"`
	Params   []Param `cbor:"params,omitempty" yaml:"params,omitempty"`
	Variadic bool    `cbor:"variadic,omitempty" yaml:"variadic,omitempty"`
	CallConv string  `cbor:"callconv" yaml:"callconv"`
	Inline   bool    `cbor:"inline,omitempty" yaml:"inline,omitempty"`
	Header   string  `cbor:"header" yaml:"header"`
}

// Global is an extern variable.
type Global struct {
	Name   string `cbor:"name" yaml:"name"`
	Type   *Type  `cbor:"type" yaml:"type"`
	Header string `cbor:"header" yaml:"header"`
}

// ConstKind classifies a constant.
type ConstKind string

const (
	ConstInt    ConstKind = "int"
	ConstBool   ConstKind = "bool"
	ConstString ConstKind = "string"
)

// Constant is an object-like macro that evaluates to a constant.
type Constant struct {
	Name     string    `cbor:"name" yaml:"name"`
	Kind     ConstKind `cbor:"kind" yaml:"kind"`
	Int      int64     `cbor:"int,omitempty" yaml:"int,omitempty"`
	Unsigned bool      `cbor:"unsigned,omitempty" yaml:"unsigned,omitempty"`
	Text     string    `cbor:"text,omitempty" yaml:"text,omitempty"`
	Literal  string    `cbor:"literal,omitempty" yaml:"literal,omitempty"` // spelling of a single-literal body
	Header   string    `cbor:"header" yaml:"header"`
}

// Macro is a function-like macro. It has no linkable symbol.
type Macro struct {
	Name     string   `cbor:"name" yaml:"name"`
	Params   []string `cbor:"params,omitempty" yaml:"params,omitempty"`
	Variadic bool     `cbor:"variadic,omitempty" yaml:"variadic,omitempty"`
	Body     string   `cbor:"body" yaml:"body"`
	Header   string   `cbor:"header" yaml:"header"`
}

// Description is the structural description of one host version's
// allow-listed headers on one platform. Every list is sorted by name.
type Description struct {
	Version    int    `cbor:"version" yaml:"version"`
	VersionNum int    `cbor:"version_num" yaml:"version_num"`
	Release    string `cbor:"release,omitempty" yaml:"release,omitempty"` // PG_VERSION
	Platform   string `cbor:"platform" yaml:"platform"`

	Headers   []string    `cbor:"headers" yaml:"headers"`
	Structs   []*Struct   `cbor:"structs" yaml:"structs"`
	Enums     []*Enum     `cbor:"enums" yaml:"enums"`
	Typedefs  []*Typedef  `cbor:"typedefs" yaml:"typedefs"`
	Functions []*Function `cbor:"functions" yaml:"functions"`
	Globals   []*Global   `cbor:"globals" yaml:"globals"`
	Constants []*Constant `cbor:"constants" yaml:"constants"`
	Macros    []*Macro    `cbor:"macros" yaml:"macros"`

	// Renames maps host names to the names generated code uses.
	Renames map[string]string `cbor:"renames,omitempty" yaml:"renames,omitempty"`
}

// Struct finds a struct by name or typedef name.
func (d *Description) Struct(name string) (*Struct, bool) {
	for _, s := range d.Structs {
		if s.Name == name || s.Typedef == name {
			return s, true
		}
	}
	return nil, false
}

// Enum finds an enum by name.
func (d *Description) Enum(name string) (*Enum, bool) {
	i := sort.Search(len(d.Enums), func(i int) bool { return d.Enums[i].Name >= name })
	if i < len(d.Enums) && d.Enums[i].Name == name {
		return d.Enums[i], true
	}
	return nil, false
}

// Typedef finds a typedef by name.
func (d *Description) Typedef(name string) (*Typedef, bool) {
	i := sort.Search(len(d.Typedefs), func(i int) bool { return d.Typedefs[i].Name >= name })
	if i < len(d.Typedefs) && d.Typedefs[i].Name == name {
		return d.Typedefs[i], true
	}
	return nil, false
}

// Function finds a function by name.
func (d *Description) Function(name string) (*Function, bool) {
	i := sort.Search(len(d.Functions), func(i int) bool { return d.Functions[i].Name >= name })
	if i < len(d.Functions) && d.Functions[i].Name == name {
		return d.Functions[i], true
	}
	return nil, false
}

// Global finds an extern variable by name.
func (d *Description) Global(name string) (*Global, bool) {
	i := sort.Search(len(d.Globals), func(i int) bool { return d.Globals[i].Name >= name })
	if i < len(d.Globals) && d.Globals[i].Name == name {
		return d.Globals[i], true
	}
	return nil, false
}

// Constant finds a constant by name.
func (d *Description) Constant(name string) (*Constant, bool) {
	i := sort.Search(len(d.Constants), func(i int) bool { return d.Constants[i].Name >= name })
	if i < len(d.Constants) && d.Constants[i].Name == name {
		return d.Constants[i], true
	}
	return nil, false
}

// Macro finds a function-like macro by name.
func (d *Description) Macro(name string) (*Macro, bool) {
	i := sort.Search(len(d.Macros), func(i int) bool { return d.Macros[i].Name >= name })
	if i < len(d.Macros) && d.Macros[i].Name == name {
		return d.Macros[i], true
	}
	return nil, false
}

// Has reports whether name is declared in any form.
func (d *Description) Has(name string) bool {
	if _, ok := d.Struct(name); ok {
		return true
	}
	if _, ok := d.Enum(name); ok {
		return true
	}
	if _, ok := d.Typedef(name); ok {
		return true
	}
	if _, ok := d.Function(name); ok {
		return true
	}
	if _, ok := d.Global(name); ok {
		return true
	}
	if _, ok := d.Constant(name); ok {
		return true
	}
	if _, ok := d.Macro(name); ok {
		return true
	}
	for _, e := range d.Enums {
		for _, v := range e.Values {
			if v.Name == name {
				return true
			}
		}
	}
	return false
}

func (d *Description) sort() {
	sort.Strings(d.Headers)
	sort.Slice(d.Structs, func(i, j int) bool { return d.Structs[i].Name < d.Structs[j].Name })
	sort.Slice(d.Enums, func(i, j int) bool { return d.Enums[i].Name < d.Enums[j].Name })
	sort.Slice(d.Typedefs, func(i, j int) bool { return d.Typedefs[i].Name < d.Typedefs[j].Name })
	sort.Slice(d.Functions, func(i, j int) bool { return d.Functions[i].Name < d.Functions[j].Name })
	sort.Slice(d.Globals, func(i, j int) bool { return d.Globals[i].Name < d.Globals[j].Name })
	sort.Slice(d.Constants, func(i, j int) bool { return d.Constants[i].Name < d.Constants[j].Name })
	sort.Slice(d.Macros, func(i, j int) bool { return d.Macros[i].Name < d.Macros[j].Name })
}

func intType(name string) *Type {
	return &Type{Kind: KindInt, Name: name}
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var b [20]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
