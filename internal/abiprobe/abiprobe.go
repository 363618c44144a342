// Package abiprobe compares the ABI settings of a running host with the
// ones the bindings were generated for.
package abiprobe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

// Settings are the host values that fix the ABI of a build.
type Settings struct {
	VersionNum          int `yaml:"version_num"`
	MaxFunctionArgs     int `yaml:"max_function_args"`
	MaxIndexKeys        int `yaml:"max_index_keys"`
	MaxIdentifierLength int `yaml:"max_identifier_length"`
	BlockSize           int `yaml:"block_size"`
}

// Major returns the major version. Minor releases of one major share the
// ABI.
func (s Settings) Major() int {
	return s.VersionNum / 10000
}

// FromDescription derives the settings the headers of desc compile in.
func FromDescription(desc *introspect.Description) (Settings, error) {
	s := Settings{VersionNum: desc.VersionNum}
	for _, c := range []struct {
		name string
		dst  *int
		adj  int
	}{
		{"FUNC_MAX_ARGS", &s.MaxFunctionArgs, 0},
		{"INDEX_MAX_KEYS", &s.MaxIndexKeys, 0},
		{"NAMEDATALEN", &s.MaxIdentifierLength, -1},
		{"BLCKSZ", &s.BlockSize, 0},
	} {
		k, ok := desc.Constant(c.name)
		if !ok || k.Kind != introspect.ConstInt {
			return Settings{}, fmt.Errorf("host %d: description has no integer constant %s", desc.Version, c.name)
		}
		*c.dst = int(k.Int) + c.adj
	}
	return s, nil
}

// Mismatch is one setting that differs.
type Mismatch struct {
	Setting string
	Want    int
	Have    int
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s is %d, bindings expect %d", m.Setting, m.Have, m.Want)
}

// ABIMismatchError occurs when the host does not have the ABI the
// bindings were generated for.
type ABIMismatchError struct {
	Mismatches []Mismatch
}

func (e *ABIMismatchError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return "host ABI mismatch: " + strings.Join(parts, "; ")
}

// Compare lists the settings of have that differ from want. Versions
// are compared by major only.
func Compare(want, have Settings) []Mismatch {
	var out []Mismatch
	add := func(name string, w, h int) {
		if w != h {
			out = append(out, Mismatch{Setting: name, Want: w, Have: h})
		}
	}
	add("major version", want.Major(), have.Major())
	add("max_function_args", want.MaxFunctionArgs, have.MaxFunctionArgs)
	add("max_index_keys", want.MaxIndexKeys, have.MaxIndexKeys)
	add("max_identifier_length", want.MaxIdentifierLength, have.MaxIdentifierLength)
	add("block_size", want.BlockSize, have.BlockSize)
	return out
}

const settingsQuery = `SELECT
	current_setting('server_version_num')::int,
	current_setting('max_function_args')::int,
	current_setting('max_index_keys')::int,
	current_setting('max_identifier_length')::int,
	current_setting('block_size')::int`

// Prober reads settings from a live host.
type Prober struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the host at dsn and checks that it answers within
// timeout.
func Open(ctx context.Context, dsn string, timeout time.Duration, logger *zap.Logger) (*Prober, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open host connection: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach host: %w", err)
	}
	return &Prober{db: db, logger: logger.With(zap.String("component", "abiprobe"))}, nil
}

// Close closes the connection.
func (p *Prober) Close() error {
	return p.db.Close()
}

// Read returns the host's settings.
func (p *Prober) Read(ctx context.Context) (Settings, error) {
	var s Settings
	err := p.db.QueryRowContext(ctx, settingsQuery).Scan(
		&s.VersionNum, &s.MaxFunctionArgs, &s.MaxIndexKeys, &s.MaxIdentifierLength, &s.BlockSize)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read host settings: %w", err)
	}
	p.logger.Debug("host settings read",
		zap.Int("version_num", s.VersionNum),
		zap.Int("max_function_args", s.MaxFunctionArgs),
		zap.Int("block_size", s.BlockSize))
	return s, nil
}

// Check reads the host's settings and compares them with want. A
// difference is an *ABIMismatchError; the settings read are returned
// either way.
func (p *Prober) Check(ctx context.Context, want Settings) (Settings, error) {
	have, err := p.Read(ctx)
	if err != nil {
		return Settings{}, err
	}
	if m := Compare(want, have); len(m) > 0 {
		p.logger.Warn("host ABI mismatch", zap.Int("mismatches", len(m)))
		return have, &ABIMismatchError{Mismatches: m}
	}
	p.logger.Info("host ABI matches", zap.Int("version_num", have.VersionNum))
	return have, nil
}
