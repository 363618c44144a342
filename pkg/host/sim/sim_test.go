package sim

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(zaptest.NewLogger(t))
	t.Cleanup(b.Close)
	return b
}

func TestAllocAlignedAndZeroed(t *testing.T) {
	b := newBackend(t)
	cxt := b.CurrentMemoryContext()

	for _, size := range []uintptr{1, 3, 8, 13, 100, 20000} {
		p := b.Alloc(cxt, size)
		require.NotNil(t, p)
		assert.Zero(t, uintptr(p)%maxAlign, "size %d", size)
		buf := unsafe.Slice((*byte)(p), size)
		for _, c := range buf {
			require.Zero(t, c)
		}
		buf[size-1] = 0xff
	}
	assert.Greater(t, b.Allocated(cxt), uintptr(20000))
}

func TestResetRunsCallbacksAndChildren(t *testing.T) {
	b := newBackend(t)
	parent := b.CreateMemoryContext(b.TopMemoryContext(), "parent")
	child := b.CreateMemoryContext(parent, "child")
	b.Alloc(child, 64)

	var order []string
	b.RegisterResetCallback(parent, func() { order = append(order, "first") })
	b.RegisterResetCallback(parent, func() { order = append(order, "second") })
	b.RegisterResetCallback(child, func() { order = append(order, "child") })

	b.ResetMemoryContext(parent)
	assert.Equal(t, []string{"second", "first", "child"}, order)
	assert.False(t, b.ContextExists(child))
	assert.True(t, b.ContextExists(parent))
	assert.Zero(t, b.Allocated(parent))

	// callbacks are one-shot
	b.ResetMemoryContext(parent)
	assert.Len(t, order, 3)
}

func TestDeleteActiveContextIsError(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		b.DeleteMemoryContext(b.CurrentMemoryContext())
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.InternalError, edata.SQLState)
	assert.Contains(t, edata.Message, "active memory context")
}

func TestFreeInvalidPointer(t *testing.T) {
	b := newBackend(t)
	var x int64
	edata := b.Exec(func() {
		b.Free(unsafe.Pointer(&x))
	})
	require.NotNil(t, edata)
	assert.Contains(t, edata.Message, "pfree called with invalid pointer")

	edata = b.Exec(func() {
		p := b.Alloc(b.CurrentMemoryContext(), 16)
		b.Free(p)
	})
	assert.Nil(t, edata)
}

func TestExecErrorRewindsState(t *testing.T) {
	b := newBackend(t)
	before := b.CurrentMemoryContext()
	edata := b.Exec(func() {
		b.PushErrorContext(func() string { return "while testing" })
		b.SwitchMemoryContext(b.TopMemoryContext())
		b.Ereport(host.Errorf(host.DivisionByZero, "division by zero"))
	})
	require.NotNil(t, edata)

	assert.Equal(t, "division_by_zero", edata.Category())
	assert.Equal(t, "while testing", edata.Context)
	assert.Equal(t, 0, b.RecoveryDepth())
	assert.Equal(t, 0, b.ErrorDepth())
	assert.Equal(t, 0, b.ErrorContextDepth())
	assert.Equal(t, before, b.CurrentMemoryContext())
	assert.False(t, b.Crashed())
}

func TestExecResetsTransactionContext(t *testing.T) {
	b := newBackend(t)
	var freed bool
	edata := b.Exec(func() {
		b.Alloc(b.CurrentMemoryContext(), 128)
		b.RegisterResetCallback(b.CurrentMemoryContext(), func() { freed = true })
	})
	assert.Nil(t, edata)
	assert.True(t, freed)
	assert.Zero(t, b.Allocated(b.TransactionContext()))
}

func TestNoticeReturns(t *testing.T) {
	b := newBackend(t)
	reached := false
	edata := b.Exec(func() {
		b.Ereport(&host.ErrorData{Level: host.Notice, Message: "just saying"})
		reached = true
	})
	assert.Nil(t, edata)
	assert.True(t, reached)
	require.Len(t, b.Notices(), 1)
	assert.Equal(t, "just saying", b.Notices()[0].Message)
}

func TestTryCatch(t *testing.T) {
	b := newBackend(t)
	var caught *host.ErrorData
	edata := b.Exec(func() {
		b.Try(func() {
			b.Ereport(host.Errorf(host.DivisionByZero, "division by zero"))
		}, func(e *host.ErrorData) {
			caught = e
		})
	})
	assert.Nil(t, edata)
	require.NotNil(t, caught)
	assert.Equal(t, host.DivisionByZero, caught.SQLState)
	assert.Equal(t, 0, b.ErrorDepth())
}

func TestTryRethrow(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		b.Try(func() {
			b.Ereport(host.Errorf(host.DivisionByZero, "division by zero"))
		}, nil)
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.DivisionByZero, edata.SQLState)
}

func TestFatalSkipsInnerPoints(t *testing.T) {
	b := newBackend(t)
	innerCaught := false
	edata := b.Exec(func() {
		b.Try(func() {
			b.Ereport(&host.ErrorData{Level: host.Fatal, SQLState: "57P01", Message: "terminating connection"})
		}, func(*host.ErrorData) { innerCaught = true })
	})
	require.NotNil(t, edata)
	assert.False(t, innerCaught)
	assert.True(t, b.Terminated())
	assert.Equal(t, "admin_shutdown", edata.Category())
}

func TestGoPanicInHostFrameIsCrash(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		b.InvokeCallback(func() *host.ErrorData {
			panic("boom")
		})
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.Panic, edata.Level)
	assert.True(t, b.Crashed())
}

func TestInvokeCallbackRaisesReturnedError(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		b.InvokeCallback(func() *host.ErrorData {
			return host.Errorf(host.InvalidParameterValue, "bad")
		})
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.InvalidParameterValue, edata.SQLState)
	assert.False(t, b.Crashed())
}

func TestErrorDataStackOverflow(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		for i := 0; i < errorDataStackSize; i++ {
			b.errorStack = append(b.errorStack, &host.ErrorData{Level: host.Error})
		}
		b.Ereport(host.Errorf(host.InternalError, "one too many"))
	})
	require.NotNil(t, edata)
	assert.Equal(t, "ERRORDATA_STACK_SIZE exceeded", edata.Message)
	assert.Equal(t, host.Panic, edata.Level)
	assert.True(t, b.Crashed())
	assert.Equal(t, 0, b.ErrorDepth())
}

func TestToastRoundTrip(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		image := []byte{0x10, 0, 0, 0, 'a', 'b', 'c', 'd'}
		ptr := b.StoreExternal(image, uint32(len(image)))
		hdr := unsafe.Slice((*byte)(ptr), 2)
		assert.Equal(t, byte(0x01), hdr[0])
		assert.Equal(t, byte(vartagOnDisk), hdr[1])

		out := b.Detoast(ptr)
		assert.Equal(t, image, unsafe.Slice((*byte)(out), len(image)))
	})
	assert.Nil(t, edata)
}

func TestDetoastRejectsInline(t *testing.T) {
	b := newBackend(t)
	edata := b.Exec(func() {
		p := b.Alloc(b.CurrentMemoryContext(), 20)
		b.Detoast(p)
	})
	require.NotNil(t, edata)
	assert.Equal(t, host.DataCorrupted, edata.SQLState)
}
