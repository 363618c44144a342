// Package tupdesc wraps host tuple descriptors.
//
// The in-memory descriptor layout changed in 11 (attributes moved from a
// pointer array to an inline array), so attributes are always reached
// through pgsys.TupleDescAttr.
package tupdesc

import (
	"iter"
	"unsafe"

	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

type releaseMode int

const (
	releaseNone releaseMode = iota
	releaseRef
	releaseFree
)

// RefCounter is implemented by backends that track descriptor reference
// counts themselves. Without it, Release adjusts tdrefcount directly and
// frees the descriptor when the count drops to zero.
type RefCounter interface {
	DecrTupleDescRefCount(td pgsys.TupleDesc)
}

// TupleDesc is a host tuple descriptor and the duty to release it.
type TupleDesc struct {
	backend  host.Backend
	ptr      pgsys.TupleDesc
	mode     releaseMode
	released bool
}

// FromHost wraps a descriptor handed out by the host with a pin on it.
// Release drops the pin.
func FromHost(b host.Backend, ptr pgsys.TupleDesc) *TupleDesc {
	return &TupleDesc{backend: b, ptr: ptr, mode: releaseRef}
}

// FromCopy wraps a private copy. Release frees it.
func FromCopy(b host.Backend, ptr pgsys.TupleDesc) *TupleDesc {
	return &TupleDesc{backend: b, ptr: ptr, mode: releaseFree}
}

// Borrowed wraps a descriptor owned by something else, such as a
// relation. Release does nothing.
func Borrowed(b host.Backend, ptr pgsys.TupleDesc) *TupleDesc {
	return &TupleDesc{backend: b, ptr: ptr}
}

// Ptr returns the host descriptor.
func (t *TupleDesc) Ptr() pgsys.TupleDesc {
	return t.ptr
}

func (t *TupleDesc) Len() int {
	return int(t.ptr.Natts)
}

// Oid is the composite type the descriptor describes, or RECORDOID.
func (t *TupleDesc) Oid() pgsys.Oid {
	return t.ptr.Tdtypeid
}

func (t *TupleDesc) Typmod() int32 {
	return t.ptr.Tdtypmod
}

// Get returns the i'th attribute, counting from zero.
func (t *TupleDesc) Get(i int) (Attribute, bool) {
	if i < 0 || i >= t.Len() {
		return Attribute{}, false
	}
	return newAttribute(pgsys.TupleDescAttr(t.ptr, i)), true
}

// Attributes iterates over every attribute, dropped ones included.
func (t *TupleDesc) Attributes() iter.Seq2[int, Attribute] {
	return func(yield func(int, Attribute) bool) {
		for i := 0; i < t.Len(); i++ {
			if !yield(i, newAttribute(pgsys.TupleDescAttr(t.ptr, i))) {
				return
			}
		}
	}
}

// Release gives up the descriptor. It is safe to call more than once.
func (t *TupleDesc) Release() {
	if t.released {
		return
	}
	t.released = true

	switch t.mode {
	case releaseRef:
		// negative counts mark descriptors that are not refcounted
		if t.ptr.Tdrefcount < 0 {
			return
		}
		if rc, ok := t.backend.(RefCounter); ok {
			rc.DecrTupleDescRefCount(t.ptr)
			return
		}
		t.ptr.Tdrefcount--
		if t.ptr.Tdrefcount == 0 {
			t.backend.Free(unsafe.Pointer(t.ptr))
		}
	case releaseFree:
		t.backend.Free(unsafe.Pointer(t.ptr))
	}
}

// Copy duplicates t into the current memory context, without
// constraints, the way the host's CreateTupleDescCopy does.
func (t *TupleDesc) Copy() *TupleDesc {
	n := t.Len()
	dst := allocate(t.backend, n)
	for i := 0; i < n; i++ {
		a := pgsys.TupleDescAttr(dst, i)
		*a = *pgsys.TupleDescAttr(t.ptr, i)
		a.Attnotnull = false
		a.Atthasdef = false
	}
	dst.Tdtypeid = t.ptr.Tdtypeid
	dst.Tdtypmod = t.ptr.Tdtypmod
	return FromCopy(t.backend, dst)
}

func allocate(b host.Backend, natts int) pgsys.TupleDesc {
	size := pgsys.TupleDescSize(natts)
	p := b.Alloc(b.CurrentMemoryContext(), size)
	clear(unsafe.Slice((*byte)(p), size))
	td := (*pgsys.TupleDescData)(p)
	pgsys.TupleDescInit(td, natts)
	return td
}

// Column describes one attribute for Build.
type Column struct {
	Name    string
	Type    *datum.TypeDescriptor
	Typmod  int32 // 0 means none
	NotNull bool
}

// Build creates a record descriptor in the current memory context.
func Build(b host.Backend, cols ...Column) *TupleDesc {
	td := allocate(b, len(cols))
	for i, c := range cols {
		a := pgsys.TupleDescAttr(td, i)
		name := c.Name
		if len(name) >= pgsys.NAMEDATALEN {
			name = name[:pgsys.NAMEDATALEN-1]
		}
		copy(a.Attname.Data[:], name)
		a.Attnum = int16(i + 1)
		a.Atttypid = c.Type.Oid
		a.Atttypmod = -1
		if c.Typmod != 0 {
			a.Atttypmod = c.Typmod
		}
		a.Attlen = c.Type.Len
		a.Attbyval = c.Type.ByVal
		a.Attalign = c.Type.Align
		a.Attstorage = 'p'
		if c.Type.IsVarlena() {
			a.Attstorage = 'x'
		}
		a.Attcacheoff = -1
		a.Attnotnull = c.NotNull
		a.Attislocal = true
	}
	return FromCopy(b, td)
}
