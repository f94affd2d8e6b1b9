package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory(t *testing.T) {
	st, err := Open(DefaultConfig())
	require.NoError(t, err)
	defer st.Close()

	_, ok := st.(*Memory)
	assert.True(t, ok, "expected memory store, got %T", st)
}

func TestOpenRedisIsLazy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "REDIS"
	cfg.Addr = "127.0.0.1:1"

	st, err := Open(cfg)
	require.NoError(t, err)
	defer st.Close()

	_, ok := st.(*Redis)
	assert.True(t, ok, "expected redis store, got %T", st)
}

func TestOpenUnknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "cassandra"

	_, err := Open(cfg)
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestBackends(t *testing.T) {
	assert.Equal(t, []string{"memory", "redis", "etcd"}, Backends())
}
