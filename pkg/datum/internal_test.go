package datum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/woxQAQ/pgxbridge/pkg/host/sim"
)

type sumState struct {
	Count int
	Total int64
}

func TestInternalAccumulates(t *testing.T) {
	b, c := setup(t)
	agg := b.CreateMemoryContext(b.TopMemoryContext(), "aggregate")
	prev := b.SwitchMemoryContext(agg)
	defer b.SwitchMemoryContext(prev)

	i := c.NewInternal()
	assert.False(t, i.Initialized())
	d, isNull := i.Datum()
	assert.True(t, isNull)
	assert.Zero(t, d)

	// transition calls pass the state back and forth as a Datum
	for _, v := range []int64{3, 4, 5} {
		raw, err := c.Decode(d, isNull, TypeInternal)
		require.NoError(t, err)
		cur, ok := raw.(*Internal)
		if !ok {
			cur = c.NewInternal()
		}
		st := As[sumState](cur).GetOrInsertDefault()
		st.Count++
		st.Total += v

		d, err = c.Encode(cur, TypeInternal)
		require.NoError(t, err)
		isNull = false
	}

	raw, err := c.Decode(d, false, TypeInternal)
	require.NoError(t, err)
	st, ok := As[sumState](raw.(*Internal)).Get()
	require.True(t, ok)
	assert.Equal(t, sumState{Count: 3, Total: 12}, *st)

	b.ResetMemoryContext(agg)
	assert.False(t, raw.(*Internal).Initialized())
	assert.Empty(t, c.internals)
}

func TestInternalInsert(t *testing.T) {
	_, c := setup(t)
	i := As[string](c.NewInternal())

	old, had := i.Insert("first")
	assert.False(t, had)
	assert.Empty(t, old)

	old, had = i.Insert("second")
	assert.True(t, had)
	assert.Equal(t, "first", old)

	assert.Equal(t, "second", *i.GetOrInsert("ignored"))
	assert.Equal(t, "second", *i.GetOrInsertWith(func() string {
		t.Fatal("constructor called for initialized value")
		return ""
	}))
}

func TestInternalGetUninitialized(t *testing.T) {
	_, c := setup(t)
	p, ok := As[int](c.NewInternal()).Get()
	assert.False(t, ok)
	assert.Nil(t, p)

	assert.Equal(t, 42, *As[int](c.NewInternal()).GetOrInsertWith(func() int { return 42 }))
}

func TestInternalTypeMismatchPanics(t *testing.T) {
	_, c := setup(t)
	i := c.NewInternal()
	As[int](i).Insert(1)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*CodecError)
		require.True(t, ok)
		assert.Contains(t, err.Error(), "holds *int, not *string")
	}()
	As[string](i).Get()
}

func TestCodecLogsComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := sim.New(zap.New(core))
	t.Cleanup(b.Close)
	c := NewCodec(b, zap.New(core))

	As[sumState](c.NewInternal()).GetOrInsertDefault()
	entries := logs.FilterMessage("created internal value").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "datum", entries[0].ContextMap()["component"])
	assert.Empty(t, entries[0].LoggerName)
}
