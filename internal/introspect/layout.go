package introspect

import (
	"fmt"
	"strings"
)

// incompleteError reports a type whose size is not known: a struct that
// was only declared, or a typedef from a header that was not read.
type incompleteError struct {
	Name string
}

func (e *incompleteError) Error() string {
	return e.Name + " is an incomplete type"
}

// layouter computes sizes, alignments and member offsets with the
// SysV rules of the target platform.
type layouter struct {
	p    *parser
	plat Platform
	done map[*Struct]error
	busy map[*Struct]bool
}

func newLayouter(p *parser) *layouter {
	return &layouter{
		p:    p,
		plat: p.plat,
		done: make(map[*Struct]error),
		busy: make(map[*Struct]bool),
	}
}

// resolve follows typedefs. A typedef that was never declared is
// returned as is.
func (l *layouter) resolve(t *Type) *Type {
	for i := 0; t != nil && t.Kind == KindTypedef && i < 64; i++ {
		if td, ok := l.p.typedefs[t.Name]; ok {
			t = td.Type
			continue
		}
		if b, ok := l.p.builtins[t.Name]; ok {
			t = b
			continue
		}
		break
	}
	return t
}

func (l *layouter) signed(t *Type) bool {
	t = l.resolve(t)
	switch t.Kind {
	case KindEnum:
		return true
	case KindInt:
		if t.Name == "char" {
			return l.plat.CharSigned
		}
		return !strings.HasPrefix(t.Name, "unsigned")
	}
	return false
}

func (l *layouter) sizeAlign(t *Type) (int64, int64, error) {
	r := l.resolve(t)
	switch r.Kind {
	case KindInt, KindFloat, KindBool:
		if size, align, ok := l.plat.Scalar(r.Name); ok {
			return size, align, nil
		}
		return 0, 0, fmt.Errorf("unknown scalar type %q", r.Name)
	case KindPointer:
		return l.plat.PointerSize, l.plat.PointerSize, nil
	case KindEnum:
		if e, ok := l.p.enums[r.Name]; ok {
			return e.Size, e.Size, nil
		}
		return 4, 4, nil
	case KindArray:
		size, align, err := l.sizeAlign(r.Elem)
		if err != nil {
			return 0, 0, err
		}
		if r.Len < 0 {
			return 0, align, nil
		}
		return size * r.Len, align, nil
	case KindStruct, KindUnion:
		s, err := l.lookup(r)
		if err != nil {
			return 0, 0, err
		}
		if err := l.layoutStruct(s); err != nil {
			return 0, 0, err
		}
		return s.Size, s.Align, nil
	case KindTypedef:
		return 0, 0, &incompleteError{Name: r.Name}
	case KindVoid:
		return 0, 0, fmt.Errorf("void has no size")
	case KindFunc:
		return 0, 0, fmt.Errorf("function type %s has no size", r)
	}
	return 0, 0, fmt.Errorf("unknown type kind %q", r.Kind)
}

func (l *layouter) lookup(t *Type) (*Struct, error) {
	s, ok := l.p.structs[structKey(t.Kind == KindUnion, t.Name)]
	if !ok {
		return nil, &incompleteError{Name: string(t.Kind) + " " + t.Name}
	}
	return s, nil
}

// layoutStruct computes s once. A struct that contains itself by value
// is incomplete.
func (l *layouter) layoutStruct(s *Struct) error {
	if err, ok := l.done[s]; ok {
		return err
	}
	if l.busy[s] {
		return &incompleteError{Name: s.CName()}
	}
	l.busy[s] = true
	err := l.compute(s)
	delete(l.busy, s)
	l.done[s] = err
	s.Incomplete = err != nil
	return err
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}

func (l *layouter) compute(s *Struct) error {
	var (
		bit   int64 // next free bit
		size  int64 // unions
		align int64 = 1
	)
	for i, f := range s.Fields {
		fsize, falign, err := l.sizeAlign(f.Type)
		if err != nil {
			return err
		}
		if s.Packed {
			falign = 1
		}
		falign = max(falign, f.align)

		if f.Flexible && (i != len(s.Fields)-1 || s.Union) {
			return fmt.Errorf("%s: flexible array member %s is not last", s.CName(), f.Name)
		}

		if f.Bitfield {
			if f.BitWidth < 0 || f.BitWidth > fsize*8 {
				return fmt.Errorf("%s: bit-field %s is wider than its type", s.CName(), f.Name)
			}
			f.Size = fsize
			if s.Union {
				f.Offset, f.BitOffset = 0, 0
				size = max(size, fsize)
				if f.Name != "" {
					align = max(align, falign)
				}
				continue
			}
			if f.BitWidth == 0 {
				bit = alignUp(bit, falign*8)
				f.Offset, f.BitOffset = bit/8, 0
				continue
			}
			unit := falign * 8
			start := bit / unit * unit
			if !s.Packed && bit+f.BitWidth > start+fsize*8 {
				bit = alignUp(bit, unit)
				start = bit
			}
			f.Offset, f.BitOffset = start/8, bit-start
			bit += f.BitWidth
			if f.Name != "" {
				align = max(align, falign)
			}
			continue
		}

		f.Size = fsize
		align = max(align, falign)
		if s.Union {
			f.Offset = 0
			size = max(size, fsize)
			continue
		}
		off := alignUp((bit+7)/8, falign)
		f.Offset = off
		bit = (off + fsize) * 8
	}
	align = max(align, s.minAlign)
	if !s.Union {
		size = (bit + 7) / 8
	}
	s.Align = align
	s.Size = alignUp(size, align)
	return nil
}

// member finds name in s, looking through anonymous members. The offset
// is relative to s.
func (l *layouter) member(s *Struct, name string) (*Field, int64, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, f.Offset, true
		}
		if f.Name != "" || f.Bitfield {
			continue
		}
		inner, err := l.lookup(l.resolve(f.Type))
		if err != nil || l.layoutStruct(inner) != nil {
			continue
		}
		if g, off, ok := l.member(inner, name); ok {
			return g, f.Offset + off, true
		}
	}
	return nil, 0, false
}

func (l *layouter) offsetOf(t *Type, path []string) (int64, error) {
	var total int64
	cur := t
	for _, name := range path {
		r := l.resolve(cur)
		if r.Kind != KindStruct && r.Kind != KindUnion {
			return 0, fmt.Errorf("offsetof: %s is not a struct", r)
		}
		s, err := l.lookup(r)
		if err != nil {
			return 0, err
		}
		if err := l.layoutStruct(s); err != nil {
			return 0, err
		}
		f, off, ok := l.member(s, name)
		if !ok {
			return 0, fmt.Errorf("offsetof: %s has no member %s", s.CName(), name)
		}
		if f.Bitfield {
			return 0, fmt.Errorf("offsetof: %s.%s is a bit-field", s.CName(), name)
		}
		total += off
		cur = f.Type
	}
	return total, nil
}

// byValue returns the structs and undeclared typedefs t contains by
// value, pointers excluded.
func (l *layouter) byValue(t *Type) []*Type {
	r := l.resolve(t)
	switch r.Kind {
	case KindArray:
		return l.byValue(r.Elem)
	case KindStruct, KindUnion, KindTypedef:
		return []*Type{r}
	}
	return nil
}
