package wasmtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEB128(t *testing.T) {
	assert.Equal(t, []byte{0x00}, u32(0))
	assert.Equal(t, []byte{0xe5, 0x8e, 0x26}, u32(624485))
	assert.Equal(t, []byte{0x7f}, s64(-1))
	assert.Equal(t, []byte{0xc0, 0xbb, 0x78}, s64(-123456))
	assert.Equal(t, []byte{0x80, 0x01}, s64(128))
	assert.Equal(t, []byte{0x3f}, s64(63))
	assert.Equal(t, []byte{0xc0, 0x00}, s64(64))
}

func TestMinimalModule(t *testing.T) {
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type
		0x03, 0x02, 0x01, 0x00, // function
		0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00, // export
		0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // code
	}
	assert.Equal(t, want, Minimal())
}
