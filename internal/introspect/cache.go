package introspect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

// cacheFormat changes whenever the encoded description changes shape.
const cacheFormat = 3

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("introspect: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type cacheKey struct {
	Format      int            `cbor:"format"`
	Version     int            `cbor:"version"`
	Platform    string         `cbor:"platform"`
	Entry       AllowlistEntry `cbor:"entry"`
	IncludeDirs []string       `cbor:"include_dirs"`
}

type cachedHeader struct {
	Path string   `cbor:"path"`
	Sum  [16]byte `cbor:"sum"`
}

type cacheRecord struct {
	Headers []cachedHeader `cbor:"headers"`
	Desc    *Description   `cbor:"desc"`
}

// cache stores descriptions as canonical CBOR. A record is keyed by the
// inputs known before reading and carries the hash of every header read,
// which load checks again.
type cache struct {
	dir string
}

func (c *cache) path(key cacheKey) (string, error) {
	data, err := cborEncMode.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := xxh3.Hash128(data).Bytes()
	return filepath.Join(c.dir, fmt.Sprintf("pg%d-%s.cbor", key.Version, hex.EncodeToString(sum[:]))), nil
}

// load returns the cached description, or nil when there is none or a
// header changed since it was stored.
func (c *cache) load(key cacheKey) (*Description, error) {
	if c == nil || c.dir == "" {
		return nil, nil
	}
	p, err := c.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	var rec cacheRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		// a damaged record is a miss
		return nil, nil
	}
	for _, h := range rec.Headers {
		cur, err := os.ReadFile(h.Path)
		if err != nil || xxh3.Hash128(cur).Bytes() != h.Sum {
			return nil, nil
		}
	}
	return rec.Desc, nil
}

func (c *cache) store(key cacheKey, files []headerFile, desc *Description) error {
	if c == nil || c.dir == "" {
		return nil
	}
	p, err := c.path(key)
	if err != nil {
		return err
	}
	rec := cacheRecord{Desc: desc}
	for _, f := range files {
		rec.Headers = append(rec.Headers, cachedHeader{Path: f.Abs, Sum: f.Sum.Bytes()})
	}
	data, err := cborEncMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode description: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return os.Rename(tmp, p)
}

// EncodeDescription returns the canonical CBOR encoding of d. Equal
// descriptions encode to equal bytes.
func EncodeDescription(d *Description) ([]byte, error) {
	return cborEncMode.Marshal(d)
}
