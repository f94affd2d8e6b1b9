package worker

import (
	"bytes"
	"context"
	"testing"
	"time"

	"kvstress/internal/logger"
	"kvstress/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWriterPool(t *testing.T, st store.Writer, n int, buf *bytes.Buffer) *Pool {
	t.Helper()
	gen := testGenerator(t)
	l := logger.New(buf, logger.LevelInfo)
	drivers := make([]Driver, n)
	for i := range n {
		drivers[i] = NewWriter(i, st, Config{Generator: gen, Picker: NewHotPicker(100, int64(i)), Logger: l})
	}
	return NewPool(l, drivers...)
}

func TestPoolStartStop(t *testing.T) {
	buf := &bytes.Buffer{}
	st := store.NewMemory()
	pool := newWriterPool(t, st, 4, buf)

	pool.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, pool.StopAndWait())

	assert.Equal(t, 4, pool.Size())
	assert.Contains(t, buf.String(), "Writer 0 started")
	assert.Contains(t, buf.String(), "Writer 3 started")

	counts := pool.Counts()
	require.Len(t, counts, 4)
	var sum uint64
	for _, c := range counts {
		assert.Positive(t, c)
		sum += c
	}
	assert.Equal(t, sum, pool.Sum())
	assert.Equal(t, sum, pool.MergedLatency().Count())
	assert.Equal(t, counts[0], pool.FirstLatency().Count())
}

func TestPoolCountsFrozenAfterJoin(t *testing.T) {
	pool := newWriterPool(t, store.NewMemory(), 3, &bytes.Buffer{})
	pool.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.StopAndWait())

	before := pool.Counts()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, pool.Counts())

	// Stopping again is harmless
	pool.Stop()
	require.NoError(t, pool.Wait())
	assert.Equal(t, before, pool.Counts())
}

func TestPoolFailureClosesDone(t *testing.T) {
	st := store.NewMemory()
	pool := newWriterPool(t, st, 2, &bytes.Buffer{})
	pool.Start(context.Background())

	st.Suspend()

	select {
	case <-pool.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected Done to close after a worker failure")
	}

	err := pool.StopAndWait()
	require.ErrorIs(t, err, store.ErrSuspended)
}

func TestPoolContextCancelClosesDone(t *testing.T) {
	pool := newWriterPool(t, store.NewMemory(), 1, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()

	select {
	case <-pool.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close after cancel")
	}
	require.NoError(t, pool.StopAndWait())
}

func TestEmptyPool(t *testing.T) {
	pool := NewPool(nil)
	require.NoError(t, pool.Wait())

	pool.Start(context.Background())
	require.NoError(t, pool.StopAndWait())
	assert.Zero(t, pool.Sum())
	assert.Empty(t, pool.Counts())
	assert.Zero(t, pool.FirstLatency().Count())
	assert.Zero(t, pool.MergedLatency().Count())
}
