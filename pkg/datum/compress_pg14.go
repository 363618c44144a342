//go:build pg14

package datum

import (
	"unsafe"

	"github.com/pierrec/lz4/v4"

	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

func decompress(p unsafe.Pointer) ([]byte, error) {
	src, raw, err := compressedPayload(p)
	if err != nil {
		return nil, err
	}
	switch method := pgsys.VARDATA_COMPRESSED_GET_COMPRESS_METHOD(p); method {
	case pgsys.TOAST_PGLZ_COMPRESSION_ID:
		out, err := pglzDecompress(src, raw)
		if err != nil {
			return nil, corrupted(nil, "%v", err)
		}
		return out, nil
	case pgsys.TOAST_LZ4_COMPRESSION_ID:
		out := make([]byte, raw)
		n, err := lz4.UncompressBlock(src, out)
		if err != nil {
			return nil, corrupted(nil, "compressed lz4 data is corrupt: %v", err)
		}
		if n != raw {
			return nil, corrupted(nil, "compressed lz4 data is corrupt: got %d bytes, want %d", n, raw)
		}
		return out, nil
	default:
		return nil, corrupted(nil, "invalid compression method id %d", method)
	}
}

func compress(raw []byte, method Compression) ([]byte, bool, error) {
	switch method {
	case PGLZ:
		out, ok := pglzCompress(raw)
		return out, ok, nil
	case LZ4:
		out := make([]byte, lz4.CompressBlockBound(len(raw)))
		var c lz4.Compressor
		n, err := c.CompressBlock(raw, out)
		if err != nil {
			return nil, false, err
		}
		// zero means incompressible
		if n == 0 || n >= len(raw) {
			return nil, false, nil
		}
		return out[:n], true, nil
	}
	return nil, false, unknownMethod(method)
}

func setCompressedHeader(p unsafe.Pointer, rawSize uint32, method Compression) {
	id := pgsys.TOAST_PGLZ_COMPRESSION_ID
	if method == LZ4 {
		id = pgsys.TOAST_LZ4_COMPRESSION_ID
	}
	pgsys.TOAST_COMPRESS_SET_SIZE_AND_COMPRESS_METHOD(p, rawSize, id)
}
