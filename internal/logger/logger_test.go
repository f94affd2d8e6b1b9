package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		min     Level
		present []string
		absent  []string
	}{
		{LevelDebug, []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}, nil},
		{LevelInfo, []string{"[INFO]", "[WARN]", "[ERROR]"}, []string{"[DEBUG]"}},
		{LevelWarn, []string{"[WARN]", "[ERROR]"}, []string{"[DEBUG]", "[INFO]"}},
		{LevelError, []string{"[ERROR]"}, []string{"[DEBUG]", "[INFO]", "[WARN]"}},
	}

	for _, tc := range cases {
		t.Run(tc.min.String(), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tc.min)

			l.Debug("reader-1", "d")
			l.Info("reader-1", "i")
			l.Warn("reader-1", "w")
			l.Error("reader-1", "e")

			out := buf.String()
			for _, s := range tc.present {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.absent {
				assert.NotContains(t, out, s)
			}
			assert.Contains(t, out, "[reader-1]")
		})
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)

	l.Info("", "hidden")
	l.SetLevel(LevelInfo)
	l.Info("", "writeCount=%d rate=%.2f per ms", 1200, 3.5)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "writeCount=1200 rate=3.50 per ms")
}

func TestOrchestratorLinesHaveNoID(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo).Info("", ">>> populate")

	assert.Contains(t, buf.String(), ">>> populate")
	assert.NotContains(t, buf.String(), "[]")
}

func TestErrorCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Warn("", "plain")
	assert.NotContains(t, buf.String(), "TestErrorCarriesStack")

	l.Error("", "boom")
	assert.Contains(t, buf.String(), "TestErrorCarriesStack")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
