package sim

import (
	"encoding/binary"
	"unsafe"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

const (
	vartagOnDisk   = 18
	externalHdrLen = 2
	externalLen    = 16
	simToastRelID  = 16385
)

// StoreExternal moves a varlena image into the simulated toast table and
// returns an on-disk TOAST pointer to it, allocated in the current context.
// The image is stored as given, so a compressed image stays compressed.
func (b *Backend) StoreExternal(image []byte, rawSize uint32) unsafe.Pointer {
	b.nextValueID++
	id := b.nextValueID
	b.toast[id] = append([]byte(nil), image...)

	ptr := b.Alloc(b.current, externalHdrLen+externalLen)
	buf := unsafe.Slice((*byte)(ptr), externalHdrLen+externalLen)
	buf[0] = 0x01
	buf[1] = vartagOnDisk
	binary.LittleEndian.PutUint32(buf[2:], rawSize)
	binary.LittleEndian.PutUint32(buf[6:], uint32(len(image)-4))
	binary.LittleEndian.PutUint32(buf[10:], id)
	binary.LittleEndian.PutUint32(buf[14:], simToastRelID)
	return ptr
}

// Detoast fetches the value an on-disk TOAST pointer refers to.
func (b *Backend) Detoast(ptr unsafe.Pointer) unsafe.Pointer {
	hdr := unsafe.Slice((*byte)(ptr), externalHdrLen+externalLen)
	if hdr[0] != 0x01 || hdr[1] != vartagOnDisk {
		b.Ereport(host.Errorf(host.DataCorrupted, "unexpected varlena tag 0x%02x/%d in detoast", hdr[0], hdr[1]))
	}
	id := binary.LittleEndian.Uint32(hdr[10:])
	image, ok := b.toast[id]
	if !ok {
		b.Ereport(host.Errorf(host.DataCorrupted, "missing chunk number 0 for toast value %d in pg_toast_%d", id, simToastRelID))
	}
	out := b.Alloc(b.current, uintptr(len(image)))
	copy(unsafe.Slice((*byte)(out), len(image)), image)
	return out
}
