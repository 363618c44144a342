package datum

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Compression names a varlena compression method.
type Compression int

const (
	PGLZ Compression = iota
	LZ4
)

func (m Compression) String() string {
	switch m {
	case PGLZ:
		return "pglz"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("Compression(%d)", int(m))
}

// ParseCompression maps a default_toast_compression style name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "pglz":
		return PGLZ, nil
	case "lz4":
		return LZ4, nil
	}
	return 0, fmt.Errorf("invalid compression method %q", name)
}

func unknownMethod(m Compression) error {
	return &CodecError{
		Op:    "encode",
		Type:  "varlena",
		State: host.InvalidParameterValue,
		Msg:   fmt.Sprintf("unknown compression method %s", m),
	}
}

// maxIndirection bounds pointer chasing. An indirect pointer may refer to
// an on-disk or expanded value, never to another indirect one.
const maxIndirection = 3

// compressedPayload returns the compressed bytes after the 4B_C header and
// the raw size the header promises.
func compressedPayload(p unsafe.Pointer) ([]byte, int, error) {
	size := pgsys.VARSIZE_4B(p)
	if size < pgsys.VARHDRSZ_COMPRESSED {
		return nil, 0, corrupted(nil, "compressed varlena of %d bytes is shorter than its header", size)
	}
	raw := int(pgsys.VARDATA_COMPRESSED_GET_EXTSIZE(p))
	src := unsafe.Slice((*byte)(unsafe.Add(p, pgsys.VARHDRSZ_COMPRESSED)), size-pgsys.VARHDRSZ_COMPRESSED)
	return src, raw, nil
}

// payload copies the data bytes of the varlena at p into Go memory,
// fetching out-of-line values and undoing compression first.
func (c *Codec) payload(p unsafe.Pointer, td *TypeDescriptor) ([]byte, error) {
	return c.payloadDepth(p, td, 0)
}

func (c *Codec) payloadDepth(p unsafe.Pointer, td *TypeDescriptor, depth int) ([]byte, error) {
	if p == nil {
		return nil, corrupted(td, "null pointer datum")
	}
	if depth > maxIndirection {
		return nil, corrupted(td, "varlena indirection deeper than %d", maxIndirection)
	}

	switch {
	case pgsys.VARATT_IS_EXTERNAL(p):
		tag := pgsys.VARTAG_1B_E(p)
		switch {
		case pgsys.VARATT_IS_EXTERNAL_INDIRECT(p):
			// the pointer after the tag is not aligned in tuples
			var ind pgsys.Varatt_indirect
			copy(unsafe.Slice((*byte)(unsafe.Pointer(&ind)), unsafe.Sizeof(ind)),
				unsafe.Slice((*byte)(pgsys.VARDATA_EXTERNAL(p)), unsafe.Sizeof(ind)))
			return c.payloadDepth(ind.Pointer, td, depth+1)
		case pgsys.VARATT_IS_EXTERNAL_ONDISK(p), pgsys.VARATT_IS_EXTERNAL_EXPANDED(p):
			c.logger.Debug("fetching external value", zap.Stringer("type", td), zap.Uint8("tag", tag))
			flat := c.backend.Detoast(p)
			out, err := c.payloadDepth(flat, td, depth+1)
			c.backend.Free(flat)
			return out, err
		}
		return nil, corrupted(td, "unrecognized external varlena tag %d", tag)

	case pgsys.VARATT_IS_COMPRESSED(p):
		return decompress(p)

	case pgsys.VARATT_IS_SHORT(p):
		n := pgsys.VARSIZE_1B(p)
		if n < pgsys.VARHDRSZ_SHORT {
			return nil, corrupted(td, "short varlena length %d", n)
		}
		return copyOut(pgsys.VARDATA_SHORT(p), n-pgsys.VARHDRSZ_SHORT), nil
	}

	n := pgsys.VARSIZE_4B(p)
	if n < pgsys.VARHDRSZ {
		return nil, corrupted(td, "varlena length %d", n)
	}
	return copyOut(pgsys.VARDATA(p), n-pgsys.VARHDRSZ), nil
}

func copyOut(p unsafe.Pointer, n uint32) []byte {
	out := make([]byte, n)
	if n > 0 {
		copy(out, unsafe.Slice((*byte)(p), n))
	}
	return out
}

// newVarlena allocates a 4B varlena holding data in the current context.
func (c *Codec) newVarlena(data []byte) unsafe.Pointer {
	n := uint32(len(data)) + pgsys.VARHDRSZ
	p := c.backend.Alloc(c.backend.CurrentMemoryContext(), uintptr(n))
	pgsys.SET_VARSIZE(p, n)
	if len(data) > 0 {
		copy(unsafe.Slice((*byte)(pgsys.VARDATA(p)), len(data)), data)
	}
	return p
}

// newCompressedVarlena stores data compressed with method, or plain when
// the method cannot shrink it.
func (c *Codec) newCompressedVarlena(data []byte, method Compression) (unsafe.Pointer, error) {
	comp, ok, err := compress(data, method)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Debug("value not compressible, storing plain",
			zap.Stringer("method", method), zap.Int("size", len(data)))
		return c.newVarlena(data), nil
	}
	n := uint32(len(comp)) + pgsys.VARHDRSZ_COMPRESSED
	p := c.backend.Alloc(c.backend.CurrentMemoryContext(), uintptr(n))
	pgsys.SET_VARSIZE_COMPRESSED(p, n)
	setCompressedHeader(p, uint32(len(data)), method)
	copy(unsafe.Slice((*byte)(unsafe.Add(p, pgsys.VARHDRSZ_COMPRESSED)), len(comp)), comp)
	return p, nil
}

// Image returns a copy of the complete varlena at d, header included, as
// it would be written to disk.
func Image(d pgsys.Datum) []byte {
	p := pgsys.DatumGetPointer(d)
	return copyOut(p, pgsys.VARSIZE_ANY(p))
}
