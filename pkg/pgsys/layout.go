package pgsys

import "reflect"

// FieldLayout is the host compiler's view of one struct member.
type FieldLayout struct {
	CName  string
	GoName string // empty for members reached through accessors
	Offset uintptr
	Size   uintptr

	// Bitfield members only. Offset is then the storage unit's offset.
	BitOffset uint8
	BitWidth  uint8
}

// StructLayout records the introspected layout of one host struct next
// to the Go type generated for it.
type StructLayout struct {
	Name   string
	CName  string
	Size   uintptr
	Align  uintptr
	Fields []FieldLayout
	GoType reflect.Type
}

// Layouts returns the layout table of the selected version.
func Layouts() []StructLayout {
	return structLayouts
}

// LookupLayout returns the layout of the named Go type.
func LookupLayout(name string) (StructLayout, bool) {
	for _, l := range structLayouts {
		if l.Name == name {
			return l, true
		}
	}
	return StructLayout{}, false
}

// Field returns the member with the given C name.
func (l StructLayout) Field(cname string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.CName == cname {
			return f, true
		}
	}
	return FieldLayout{}, false
}
