//go:build pg14

package pgsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressionMethodBits(t *testing.T) {
	p := buffer(16)
	SET_VARSIZE_COMPRESSED(p, 16)
	TOAST_COMPRESS_SET_SIZE_AND_COMPRESS_METHOD(p, 1000, TOAST_LZ4_COMPRESSION_ID)
	assert.Equal(t, uint32(1000), VARDATA_COMPRESSED_GET_EXTSIZE(p))
	assert.Equal(t, TOAST_LZ4_COMPRESSION_ID, VARDATA_COMPRESSED_GET_COMPRESS_METHOD(p))

	e := Varatt_external{VaRawsize: 4004, VaExtinfo: 100 | uint32(TOAST_PGLZ_COMPRESSION_ID)<<VARLENA_EXTSIZE_BITS}
	assert.Equal(t, uint32(100), VARATT_EXTERNAL_GET_EXTSIZE(&e))
	assert.True(t, VARATT_EXTERNAL_IS_COMPRESSED(&e))
}

func TestErrorDataHasBacktrace(t *testing.T) {
	l, _ := LookupLayout("ErrorData")
	f, ok := l.Field("backtrace")
	assert.True(t, ok)
	assert.Equal(t, "Backtrace", f.GoName)
}
