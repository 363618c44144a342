//go:build !pg14

package datum

import (
	"unsafe"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Before 14 every compressed varlena is pglz and the header holds the
// raw size alone.

func decompress(p unsafe.Pointer) ([]byte, error) {
	src, raw, err := compressedPayload(p)
	if err != nil {
		return nil, err
	}
	out, err := pglzDecompress(src, raw)
	if err != nil {
		return nil, corrupted(nil, "%v", err)
	}
	return out, nil
}

func compress(raw []byte, method Compression) ([]byte, bool, error) {
	switch method {
	case PGLZ:
		out, ok := pglzCompress(raw)
		return out, ok, nil
	case LZ4:
		return nil, false, &CodecError{
			Op:    "encode",
			Type:  "varlena",
			State: host.FeatureNotSupported,
			Msg:   "compression method lz4 not supported",
		}
	}
	return nil, false, unknownMethod(method)
}

func setCompressedHeader(p unsafe.Pointer, rawSize uint32, _ Compression) {
	pgsys.TOAST_COMPRESS_SET_RAWSIZE(p, rawSize)
}
