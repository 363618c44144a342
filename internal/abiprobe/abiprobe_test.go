package abiprobe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

var pg14 = Settings{VersionNum: 140011, MaxFunctionArgs: 100, MaxIndexKeys: 32, MaxIdentifierLength: 63, BlockSize: 8192}

func TestCompare(t *testing.T) {
	same := pg14
	same.VersionNum = 140020
	assert.Empty(t, Compare(pg14, same), "minor releases share the ABI")

	have := pg14
	have.VersionNum = 130014
	have.BlockSize = 32768
	m := Compare(pg14, have)
	require.Len(t, m, 2)
	assert.Equal(t, Mismatch{Setting: "major version", Want: 14, Have: 13}, m[0])
	assert.Equal(t, Mismatch{Setting: "block_size", Want: 8192, Have: 32768}, m[1])

	err := &ABIMismatchError{Mismatches: m}
	assert.Equal(t, "host ABI mismatch: major version is 13, bindings expect 14; block_size is 32768, bindings expect 8192", err.Error())
}

func TestFromDescription(t *testing.T) {
	desc := &introspect.Description{
		Version:    14,
		VersionNum: 140011,
		Constants: []*introspect.Constant{
			{Name: "BLCKSZ", Kind: introspect.ConstInt, Int: 8192},
			{Name: "FUNC_MAX_ARGS", Kind: introspect.ConstInt, Int: 100},
			{Name: "INDEX_MAX_KEYS", Kind: introspect.ConstInt, Int: 32},
			{Name: "NAMEDATALEN", Kind: introspect.ConstInt, Int: 64},
		},
	}
	s, err := FromDescription(desc)
	require.NoError(t, err)
	assert.Equal(t, pg14, s)
	assert.Equal(t, 14, s.Major())

	desc.Constants = desc.Constants[:2]
	_, err = FromDescription(desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INDEX_MAX_KEYS")
}

func TestProbeLiveHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14",
		ExposedPorts: []string{"5432/tcp"},
		Env:          map[string]string{"POSTGRES_PASSWORD": "password"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%d/postgres?sslmode=disable", host, port.Int())

	p, err := Open(ctx, dsn, 10*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	have, err := p.Check(ctx, pg14)
	require.NoError(t, err)
	assert.Equal(t, 14, have.Major())
	assert.Equal(t, 8192, have.BlockSize)

	want := pg14
	want.VersionNum = 130014
	_, err = p.Check(ctx, want)
	var mismatch *ABIMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Len(t, mismatch.Mismatches, 1)
	assert.Equal(t, "major version", mismatch.Mismatches[0].Setting)
}
