//go:build pg14

package datum

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func TestLZ4RoundTrip(t *testing.T) {
	_, c := setup(t)
	in := strings.Repeat("lz4 compressed payload ", 100)

	d, err := c.EncodeCompressed(in, TypeText, LZ4)
	require.NoError(t, err)
	p := pgsys.DatumGetPointer(d)
	require.True(t, pgsys.VARATT_IS_COMPRESSED(p))
	assert.Equal(t, pgsys.TOAST_LZ4_COMPRESSION_ID, pgsys.VARDATA_COMPRESSED_GET_COMPRESS_METHOD(p))
	assert.Equal(t, uint32(len(in)), pgsys.VARDATA_COMPRESSED_GET_EXTSIZE(p))

	v, err := c.Decode(d, false, TypeText)
	require.NoError(t, err)
	assert.Equal(t, in, v)
}

func TestPGLZMethodBits(t *testing.T) {
	_, c := setup(t)
	d, err := c.EncodeCompressed(strings.Repeat("x", 1000), TypeBytea, PGLZ)
	require.NoError(t, err)
	assert.Equal(t, pgsys.TOAST_PGLZ_COMPRESSION_ID, pgsys.VARDATA_COMPRESSED_GET_COMPRESS_METHOD(pgsys.DatumGetPointer(d)))
}

func TestLZ4Corrupt(t *testing.T) {
	b, c := setup(t)
	p := b.Alloc(b.CurrentMemoryContext(), 16)
	pgsys.SET_VARSIZE_COMPRESSED(p, 12)
	setCompressedHeader(p, 64, LZ4)
	copy(unsafe.Slice((*byte)(unsafe.Add(p, pgsys.VARHDRSZ_COMPRESSED)), 4), []byte{0xf0, 0xff, 0xff, 0xff})

	_, err := c.Decode(pgsys.PointerGetDatum(p), false, TypeText)
	requireCodecError(t, err, host.DataCorrupted)
}

func TestInvalidCompressionMethod(t *testing.T) {
	b, c := setup(t)
	p := b.Alloc(b.CurrentMemoryContext(), 16)
	pgsys.SET_VARSIZE_COMPRESSED(p, 12)
	pgsys.TOAST_COMPRESS_SET_SIZE_AND_COMPRESS_METHOD(p, 10, pgsys.TOAST_INVALID_COMPRESSION_ID)

	_, err := c.Decode(pgsys.PointerGetDatum(p), false, TypeText)
	requireCodecError(t, err, host.DataCorrupted)
}
