package tupdesc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/host/sim"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func newBackend(t *testing.T) *sim.Backend {
	t.Helper()
	b := sim.New(zaptest.NewLogger(t))
	t.Cleanup(b.Close)
	return b
}

func sample(b *sim.Backend) *TupleDesc {
	return Build(b,
		Column{Name: "id", Type: datum.TypeInt8, NotNull: true},
		Column{Name: "label", Type: datum.TypeVarchar, Typmod: 36},
		Column{Name: "created", Type: datum.TypeTimestampTz},
	)
}

func TestBuildAndGet(t *testing.T) {
	b := newBackend(t)
	td := sample(b)
	defer td.Release()

	assert.Equal(t, 3, td.Len())
	assert.Equal(t, pgsys.Oid(pgsys.RECORDOID), td.Oid())
	assert.Equal(t, int32(-1), td.Typmod())

	id, ok := td.Get(0)
	require.True(t, ok)
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, int16(1), id.Num)
	assert.Equal(t, pgsys.Oid(pgsys.INT8OID), id.TypeOid)
	assert.True(t, id.NotNull)
	assert.Equal(t, int32(-1), id.Typmod)
	typ, ok := id.Type()
	require.True(t, ok)
	assert.Same(t, datum.TypeInt8, typ)

	label, ok := td.Get(1)
	require.True(t, ok)
	assert.Equal(t, int32(36), label.Typmod)
	assert.Equal(t, int16(-1), label.Len)
	assert.Equal(t, byte('x'), label.Form.Attstorage)

	_, ok = td.Get(3)
	assert.False(t, ok)
	_, ok = td.Get(-1)
	assert.False(t, ok)
}

func TestAttributesIterates(t *testing.T) {
	b := newBackend(t)
	td := sample(b)
	defer td.Release()

	var names []string
	for i, a := range td.Attributes() {
		assert.Equal(t, int16(i+1), a.Num)
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"id", "label", "created"}, names)

	// early exit
	n := 0
	for range td.Attributes() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestLongNamesTruncated(t *testing.T) {
	b := newBackend(t)
	td := Build(b, Column{Name: strings.Repeat("n", 100), Type: datum.TypeText})
	defer td.Release()

	a, ok := td.Get(0)
	require.True(t, ok)
	assert.Len(t, a.Name, pgsys.NAMEDATALEN-1)
}

func TestCopyIsIndependent(t *testing.T) {
	b := newBackend(t)
	td := sample(b)
	cp := td.Copy()

	orig, _ := td.Get(1)
	orig.Form.Atttypmod = 99

	got, ok := cp.Get(1)
	require.True(t, ok)
	assert.Equal(t, "label", got.Name)
	assert.Equal(t, int32(36), got.Typmod)

	id, _ := cp.Get(0)
	assert.False(t, id.NotNull, "copies drop constraints")

	cxt := b.CurrentMemoryContext()
	before := b.Allocated(cxt)
	cp.Release()
	assert.Less(t, b.Allocated(cxt), before)
	td.Release()
}

func TestFromHostDropsPin(t *testing.T) {
	b := newBackend(t)
	built := sample(b)
	ptr := built.Ptr()
	ptr.Tdrefcount = 2

	td := FromHost(b, ptr)
	td.Release()
	assert.Equal(t, int32(1), ptr.Tdrefcount)
	td.Release()
	assert.Equal(t, int32(1), ptr.Tdrefcount, "release is idempotent")

	cxt := b.CurrentMemoryContext()
	before := b.Allocated(cxt)
	FromHost(b, ptr).Release()
	assert.Less(t, b.Allocated(cxt), before, "last pin frees")
}

func TestFromHostIgnoresUncounted(t *testing.T) {
	b := newBackend(t)
	built := sample(b)
	defer built.Release()

	td := FromHost(b, built.Ptr())
	td.Release()
	assert.Equal(t, int32(-1), built.Ptr().Tdrefcount)
}

type countingBackend struct {
	*sim.Backend
	calls int
}

func (c *countingBackend) DecrTupleDescRefCount(pgsys.TupleDesc) { c.calls++ }

func TestFromHostUsesRefCounter(t *testing.T) {
	b := &countingBackend{Backend: newBackend(t)}
	built := Build(b, Column{Name: "x", Type: datum.TypeInt4})
	defer built.Release()
	built.Ptr().Tdrefcount = 1

	FromHost(b, built.Ptr()).Release()
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, int32(1), built.Ptr().Tdrefcount)
}

func TestBorrowedNeverReleases(t *testing.T) {
	b := newBackend(t)
	built := sample(b)
	defer built.Release()

	cxt := b.CurrentMemoryContext()
	before := b.Allocated(cxt)
	Borrowed(b, built.Ptr()).Release()
	assert.Equal(t, before, b.Allocated(cxt))
}
