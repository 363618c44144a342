package datum

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPglzDecompressKnownStream(t *testing.T) {
	// three literals then a back reference of length 9 at offset 3
	src := []byte{0x08, 'a', 'b', 'c', 0x06, 0x03}
	out, err := pglzDecompress(src, 12)
	require.NoError(t, err)
	assert.Equal(t, "abcabcabcabc", string(out))
}

func TestPglzDecompressLongMatch(t *testing.T) {
	// length 18 + 7 via the extension byte
	src := []byte{0x02, 'z', 0x0f, 0x01, 0x07}
	out, err := pglzDecompress(src, 26)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("z", 26), string(out))
}

func TestPglzDecompressCorrupt(t *testing.T) {
	cases := map[string]struct {
		src []byte
		raw int
	}{
		"offset before start": {[]byte{0x01, 0x00, 0x05}, 3},
		"zero offset":         {[]byte{0x02, 'a', 0x00, 0x00}, 4},
		"truncated tag":       {[]byte{0x02, 'a', 0x00}, 4},
		"short output":        {[]byte{0x00, 'a', 'b'}, 5},
		"trailing input":      {[]byte{0x00, 'a', 'b', 'c'}, 2},
		"missing length byte": {[]byte{0x02, 'a', 0x0f, 0x01}, 30},
	}
	for name, tc := range cases {
		_, err := pglzDecompress(tc.src, tc.raw)
		assert.ErrorIs(t, err, errPglzCorrupt, name)
	}
}

func TestPglzRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"select", "from", "where", "tuple", "datum", "varlena"}
	var sentence strings.Builder
	for sentence.Len() < 20000 {
		sentence.WriteString(words[rng.Intn(len(words))])
		sentence.WriteByte(' ')
	}

	inputs := map[string][]byte{
		"run":      bytes.Repeat([]byte{'x'}, 5000),
		"pattern":  bytes.Repeat([]byte("0123456789"), 300),
		"words":    []byte(sentence.String()),
		"far":      append(append(bytes.Repeat([]byte("head"), 20), make([]byte, 5000)...), bytes.Repeat([]byte("head"), 20)...),
		"boundary": bytes.Repeat([]byte("ab"), 16),
	}
	for name, in := range inputs {
		comp, ok := pglzCompress(in)
		require.True(t, ok, name)
		assert.Less(t, len(comp), len(in), name)
		out, err := pglzDecompress(comp, len(in))
		require.NoError(t, err, name)
		assert.Equal(t, in, out, name)
	}
}

func TestPglzRefusesPoorInput(t *testing.T) {
	_, ok := pglzCompress([]byte("too short"))
	assert.False(t, ok)

	random := make([]byte, 4096)
	rand.New(rand.NewSource(3)).Read(random)
	_, ok = pglzCompress(random)
	assert.False(t, ok)
}
