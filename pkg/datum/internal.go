package datum

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Internal is an "internal" typed argument or result, such as an
// aggregate's transition state. Go values cannot live in host memory, so
// the Datum is a small host allocation used as a handle into a Go-side
// table. The entry is dropped when the context owning the handle is reset
// or deleted.
type Internal struct {
	codec *Codec
	datum pgsys.Datum
}

// NewInternal returns an uninitialized Internal, which encodes as NULL.
func (c *Codec) NewInternal() *Internal {
	return &Internal{codec: c}
}

// Initialized reports whether the handle refers to a live value.
func (i *Internal) Initialized() bool {
	if i.datum == 0 {
		return false
	}
	_, ok := i.codec.internals[uintptr(i.datum)]
	return ok
}

// Datum returns the handle and whether it is null.
func (i *Internal) Datum() (pgsys.Datum, bool) {
	if !i.Initialized() {
		return 0, true
	}
	return i.datum, false
}

func (i *Internal) load() (any, bool) {
	if i.datum == 0 {
		return nil, false
	}
	v, ok := i.codec.internals[uintptr(i.datum)]
	return v, ok
}

// store binds v to the handle, creating the handle in the current memory
// context if there is none yet.
func (i *Internal) store(v any) {
	c := i.codec
	if _, ok := i.load(); ok {
		c.internals[uintptr(i.datum)] = v
		return
	}
	cxt := c.backend.CurrentMemoryContext()
	p := c.backend.Alloc(cxt, unsafe.Sizeof(uint64(0)))
	*(*uint64)(p) = internalMagic
	key := uintptr(p)
	c.internals[key] = v
	c.backend.RegisterResetCallback(cxt, func() {
		delete(c.internals, key)
	})
	c.logger.Debug("created internal value",
		zap.String("context", c.backend.MemoryContextName(cxt)),
		zap.String("type", fmt.Sprintf("%T", v)))
	i.datum = pgsys.PointerGetDatum(p)
}

const internalMagic = 0x696e_7465_726e_616c

// InternalOf is a typed view of an Internal. The methods panic with a
// *CodecError if the handle holds a value of another type.
type InternalOf[T any] struct {
	*Internal
}

// As returns a typed view of i.
func As[T any](i *Internal) InternalOf[T] {
	return InternalOf[T]{i}
}

func (i InternalOf[T]) typed() (*T, bool) {
	v, ok := i.load()
	if !ok {
		return nil, false
	}
	p, ok := v.(*T)
	if !ok {
		panic(&CodecError{
			Op:    "decode",
			Type:  "internal",
			State: host.DatatypeMismatch,
			Msg:   fmt.Sprintf("holds %T, not %T", v, p),
		})
	}
	return p, true
}

// Get returns a pointer to the held value, or false if uninitialized.
func (i InternalOf[T]) Get() (*T, bool) {
	return i.typed()
}

// Insert replaces the held value and returns the previous one, if any.
func (i InternalOf[T]) Insert(v T) (T, bool) {
	var old T
	p, had := i.typed()
	if had {
		old = *p
		*p = v
		return old, true
	}
	i.store(&v)
	return old, false
}

// GetOrInsert returns the held value, inserting v first if there is none.
func (i InternalOf[T]) GetOrInsert(v T) *T {
	return i.GetOrInsertWith(func() T { return v })
}

// GetOrInsertDefault returns the held value, inserting the zero T first
// if there is none.
func (i InternalOf[T]) GetOrInsertDefault() *T {
	return i.GetOrInsertWith(func() T {
		var zero T
		return zero
	})
}

// GetOrInsertWith returns the held value, inserting fn() first if there
// is none.
func (i InternalOf[T]) GetOrInsertWith(fn func() T) *T {
	if p, ok := i.typed(); ok {
		return p
	}
	p := new(T)
	*p = fn()
	i.store(p)
	return p
}
