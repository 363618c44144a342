package memctx

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/pkg/guard"
	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/host/sim"
)

func setup(t *testing.T) (*sim.Backend, *Bridge, *guard.Guard) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := sim.New(logger)
	t.Cleanup(b.Close)
	return b, New(b, logger), guard.New(b, logger)
}

func TestWithRestoresOnReturn(t *testing.T) {
	b, br, _ := setup(t)
	before := b.CurrentMemoryContext()
	other := b.CreateMemoryContext(b.TopMemoryContext(), "other")

	err := br.With(other, func(s Scope) error {
		assert.Equal(t, other, b.CurrentMemoryContext())
		assert.Equal(t, other, s.Context())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, before, b.CurrentMemoryContext())

	sentinel := errors.New("fail")
	err = br.With(other, func(Scope) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, before, b.CurrentMemoryContext())
}

func TestWithRestoresOnPanic(t *testing.T) {
	b, br, _ := setup(t)
	before := b.CurrentMemoryContext()
	other := b.CreateMemoryContext(b.TopMemoryContext(), "other")

	assert.Panics(t, func() {
		_ = br.With(other, func(Scope) error { panic("boom") })
	})
	assert.Equal(t, before, b.CurrentMemoryContext())
}

// Every nesting depth and every abort position: after all scopes exit the
// active context is the one active before the first entry.
func TestNestingWithAbortAtAnyDepth(t *testing.T) {
	const maxDepth = 5
	for depth := 1; depth <= maxDepth; depth++ {
		for abortAt := -1; abortAt < depth; abortAt++ {
			t.Run(fmt.Sprintf("depth=%d/abort=%d", depth, abortAt), func(t *testing.T) {
				b, br, g := setup(t)
				b.Exec(func() {
					before := b.CurrentMemoryContext()
					cxts := make([]host.MemoryContext, depth)
					for i := range cxts {
						cxts[i] = b.CreateMemoryContext(b.TopMemoryContext(), fmt.Sprintf("level%d", i))
					}

					var enter func(level int) error
					enter = func(level int) error {
						if level == depth {
							return nil
						}
						return br.With(cxts[level], func(s Scope) error {
							s.Alloc(32)
							if level == abortAt {
								b.Ereport(host.Errorf(host.DivisionByZero, "division by zero"))
							}
							return enter(level + 1)
						})
					}

					err := g.Call(func() error { return enter(0) })
					if abortAt >= 0 {
						assert.True(t, guard.IsCategory(err, "division_by_zero"))
					} else {
						assert.NoError(t, err)
					}
					assert.Equal(t, before, b.CurrentMemoryContext())
				})
				assert.False(t, b.Crashed())
			})
		}
	}
}

func TestTransientReleasesMemory(t *testing.T) {
	b, br, _ := setup(t)
	live := b.LiveContexts()
	var cxt host.MemoryContext
	var released bool

	err := br.Transient(b.TopMemoryContext(), "scratch", func(s Scope) error {
		cxt = s.Context()
		s.Alloc(1024)
		s.OnReset(func() { released = true })
		assert.Equal(t, live+1, b.LiveContexts())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, b.ContextExists(cxt))
	assert.Equal(t, live, b.LiveContexts())
}

func TestTransientReleasedOnAbort(t *testing.T) {
	b, br, g := setup(t)
	live := b.LiveContexts()
	b.Exec(func() {
		err := g.Call(func() error {
			return br.Transient(b.TopMemoryContext(), "scratch", func(s Scope) error {
				s.Alloc(64)
				b.Ereport(host.Errorf(host.OutOfMemory, "out of memory"))
				return nil
			})
		})
		assert.True(t, guard.IsCategory(err, "out_of_memory"))
	})
	assert.Equal(t, live, b.LiveContexts())
	assert.False(t, b.Crashed())
}

func TestScopeAllocations(t *testing.T) {
	b, br, _ := setup(t)
	err := br.With(b.TransactionContext(), func(s Scope) error {
		p := s.CString("hello")
		assert.Equal(t, []byte("hello\x00"), unsafe.Slice((*byte)(p), 6))

		q := s.CopyBytes([]byte{1, 2, 3})
		assert.Equal(t, []byte{1, 2, 3}, unsafe.Slice((*byte)(q), 3))

		z := s.AllocZeroed(16)
		assert.Equal(t, make([]byte, 16), unsafe.Slice((*byte)(z), 16))

		buf := s.Bytes(4)
		assert.Len(t, buf, 4)
		assert.Nil(t, s.Bytes(0))

		s.Free(q)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, b.Allocated(b.TransactionContext()), uintptr(0))
}

func TestNewValueZeroed(t *testing.T) {
	b, br, _ := setup(t)
	type pair struct{ A, B int64 }
	err := br.With(b.TransactionContext(), func(s Scope) error {
		v := NewValue[pair](s)
		assert.Equal(t, pair{}, *v)
		v.A, v.B = 1, 2
		assert.Equal(t, int64(3), v.A+v.B)
		assert.Zero(t, uintptr(unsafe.Pointer(v))%unsafe.Alignof(*v))
		return nil
	})
	require.NoError(t, err)
}

func TestCurrentScope(t *testing.T) {
	b, br, _ := setup(t)
	assert.Equal(t, b.CurrentMemoryContext(), br.Current().Context())
}
