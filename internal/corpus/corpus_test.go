package corpus

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "alpha line that is long enough for a key prefix\n\nbeta line that is long enough for a key prefix\r\ngamma\n"

func TestNewEmpty(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestNewCopiesInput(t *testing.T) {
	in := []string{"a", "b"}
	c, err := New(in)
	require.NoError(t, err)

	in[0] = "mutated"
	assert.Equal(t, "a", c.Line(0))

	out := c.Lines()
	out[1] = "mutated"
	assert.Equal(t, "b", c.Line(1))
}

func TestLineWraps(t *testing.T) {
	c, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "a", c.Line(0))
	assert.Equal(t, "c", c.Line(2))
	assert.Equal(t, "a", c.Line(3))
	assert.Equal(t, "b", c.Line(1_000_000_000_000))
}

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, "beta line that is long enough for a key prefix", c.Line(1))
	assert.Equal(t, "gamma", c.Line(2))
}

func TestReadOnlyBlankLines(t *testing.T) {
	_, err := Read(strings.NewReader("\n\n\n"))
	require.ErrorIs(t, err, ErrEmpty)
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "seed.txt")
	require.NoError(t, os.WriteFile(plain, []byte(sample), 0o644))

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	gzPath := filepath.Join(dir, "seed.txt.gz")
	require.NoError(t, os.WriteFile(gzPath, gzBuf.Bytes(), 0o644))

	var zBuf bytes.Buffer
	zw, err := zstd.NewWriter(&zBuf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	zPath := filepath.Join(dir, "seed.txt.zst")
	require.NoError(t, os.WriteFile(zPath, zBuf.Bytes(), 0o644))

	for _, path := range []string{plain, gzPath, zPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			c, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 3, c.Len())
			assert.Equal(t, "gamma", c.Line(2))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestSyntheticDeterministic(t *testing.T) {
	a, err := Synthetic(10, 64, 42)
	require.NoError(t, err)
	b, err := Synthetic(10, 64, 42)
	require.NoError(t, err)
	c, err := Synthetic(10, 64, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Lines(), b.Lines())
	assert.NotEqual(t, a.Lines(), c.Lines())
	for _, line := range a.Lines() {
		assert.Len(t, line, 64)
	}
}

func TestSyntheticInvalid(t *testing.T) {
	_, err := Synthetic(0, 64, 1)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Synthetic(5, 0, 1)
	require.Error(t, err)
}
