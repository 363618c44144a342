package datum

import "errors"

var errPglzCorrupt = errors.New("compressed pglz data is corrupt")

const (
	pglzMinMatch   = 3
	pglzMaxMatch   = 273
	pglzMaxOffset  = 4095
	pglzMinInput   = 32
	pglzHashSize   = 4096
	pglzMinCompPct = 25
)

// pglzDecompress expands src, which must decode to exactly rawSize bytes.
//
// The stream is a sequence of groups: one control byte, then eight items.
// A clear control bit is a literal byte. A set bit is a two or three byte
// back reference: the low nibble of the first byte is length-3 (15 means
// a third byte adds to 18), the high nibble and the second byte are the
// offset.
func pglzDecompress(src []byte, rawSize int) ([]byte, error) {
	dst := make([]byte, 0, rawSize)
	sp := 0
	for sp < len(src) && len(dst) < rawSize {
		ctrl := src[sp]
		sp++
		for bit := 0; bit < 8 && sp < len(src) && len(dst) < rawSize; bit++ {
			if ctrl&1 == 0 {
				dst = append(dst, src[sp])
				sp++
				ctrl >>= 1
				continue
			}
			if sp+1 >= len(src) {
				return nil, errPglzCorrupt
			}
			n := int(src[sp]&0x0f) + pglzMinMatch
			off := int(src[sp]&0xf0)<<4 | int(src[sp+1])
			sp += 2
			if n == 18 {
				if sp >= len(src) {
					return nil, errPglzCorrupt
				}
				n += int(src[sp])
				sp++
			}
			if off == 0 || off > len(dst) {
				return nil, errPglzCorrupt
			}
			n = min(n, rawSize-len(dst))
			from := len(dst) - off
			for i := 0; i < n; i++ {
				dst = append(dst, dst[from+i])
			}
			ctrl >>= 1
		}
	}
	if len(dst) != rawSize || sp != len(src) {
		return nil, errPglzCorrupt
	}
	return dst, nil
}

func pglzHash(b []byte) int {
	return (int(b[0])<<8 ^ int(b[1])<<4 ^ int(b[2])) & (pglzHashSize - 1)
}

// pglzCompress compresses src with a greedy single-candidate matcher. It
// reports false when src is too short or does not shrink by at least a
// quarter, in which case the value is stored uncompressed.
func pglzCompress(src []byte) ([]byte, bool) {
	if len(src) < pglzMinInput {
		return nil, false
	}
	limit := len(src) * (100 - pglzMinCompPct) / 100

	var table [pglzHashSize]int
	for i := range table {
		table[i] = -1
	}
	remember := func(pos int) {
		if pos+pglzMinMatch <= len(src) {
			table[pglzHash(src[pos:])] = pos
		}
	}

	out := make([]byte, 0, limit+4)
	ctrlPos, ctrlBit := 0, 8
	for ip := 0; ip < len(src); {
		if ctrlBit == 8 {
			ctrlPos = len(out)
			out = append(out, 0)
			ctrlBit = 0
		}

		n, off := 0, 0
		if ip+pglzMinMatch <= len(src) {
			if cand := table[pglzHash(src[ip:])]; cand >= 0 && ip-cand <= pglzMaxOffset {
				for n < pglzMaxMatch && ip+n < len(src) && src[cand+n] == src[ip+n] {
					n++
				}
				off = ip - cand
			}
		}

		if n >= pglzMinMatch {
			out[ctrlPos] |= 1 << ctrlBit
			if n >= 18 {
				out = append(out, byte(off>>4)&0xf0|0x0f, byte(off), byte(n-18))
			} else {
				out = append(out, byte(off>>4)&0xf0|byte(n-pglzMinMatch), byte(off))
			}
			for k := 0; k < n; k++ {
				remember(ip + k)
			}
			ip += n
		} else {
			remember(ip)
			out = append(out, src[ip])
			ip++
		}
		ctrlBit++

		if len(out) > limit {
			return nil, false
		}
	}
	return out, true
}
