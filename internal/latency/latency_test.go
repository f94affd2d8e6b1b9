package latency

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	lines []string
}

func (c *captureSink) Info(_ string, format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

// assertNear は HDR ヒストグラムの有効数字2桁の誤差を許容して比較する
func assertNear(t *testing.T, want, got time.Duration) {
	t.Helper()
	assert.InEpsilon(t, float64(want), float64(got), 0.01, "want %v got %v", want, got)
}

func TestEmptyStats(t *testing.T) {
	s := New()
	assert.Zero(t, s.Count())
	assert.Zero(t, s.Mean())
	assert.Zero(t, s.Quantile(0.99))

	sink := &captureSink{}
	s.Print(sink)
	require.Len(t, sink.lines, 1)
	assert.Contains(t, sink.lines[0], "no samples")
}

func TestRecord(t *testing.T) {
	s := New()
	s.Record(2 * time.Millisecond)
	s.Record(40 * time.Microsecond)
	s.Record(6 * time.Millisecond)
	s.Record(-time.Second)

	assert.Equal(t, uint64(4), s.Count())
	assert.Equal(t, time.Duration(0), s.Min())
	assert.Equal(t, 6*time.Millisecond, s.Max())
	assert.Equal(t, (8*time.Millisecond+40*time.Microsecond)/4, s.Mean())
}

func TestQuantile(t *testing.T) {
	s := New()
	for range 90 {
		s.Record(80 * time.Microsecond)
	}
	for range 10 {
		s.Record(3 * time.Millisecond)
	}

	assertNear(t, 80*time.Microsecond, s.Quantile(0.5))
	assertNear(t, 80*time.Microsecond, s.Quantile(0.85))
	assert.Equal(t, 3*time.Millisecond, s.Quantile(0.99))
	assert.Equal(t, 3*time.Millisecond, s.Quantile(1))
	assert.Equal(t, 80*time.Microsecond, s.Quantile(0))
}

func TestQuantileAboveOneSecond(t *testing.T) {
	s := New()
	for range 100 {
		s.Record(1100 * time.Millisecond)
	}
	s.Record(5 * time.Second)

	assertNear(t, 1100*time.Millisecond, s.Quantile(0.5))
	assertNear(t, 1100*time.Millisecond, s.Quantile(0.9))
	assert.Equal(t, 5*time.Second, s.Quantile(1))
}

func TestRecordBeyondMaxLatency(t *testing.T) {
	s := New()
	s.Record(2 * MaxLatency)

	assert.Equal(t, 2*MaxLatency, s.Max())
	assertNear(t, MaxLatency, s.Quantile(0.5))
}

func TestMerge(t *testing.T) {
	a := New()
	a.Record(1 * time.Millisecond)
	a.Record(3 * time.Millisecond)

	b := New()
	b.Record(500 * time.Microsecond)
	b.Record(9 * time.Millisecond)

	merged := New()
	merged.Merge(a)
	merged.Merge(b)
	merged.Merge(nil)
	merged.Merge(New())

	assert.Equal(t, uint64(4), merged.Count())
	assert.Equal(t, 500*time.Microsecond, merged.Min())
	assert.Equal(t, 9*time.Millisecond, merged.Max())
	assert.Equal(t, a.Sum()+b.Sum(), merged.Sum())
	assertNear(t, 1*time.Millisecond, merged.Quantile(0.5))
	assert.Equal(t, 9*time.Millisecond, merged.Quantile(1))

	// 元の Stats は変わらない
	assert.Equal(t, uint64(2), a.Count())
	assert.Equal(t, 3*time.Millisecond, a.Quantile(1))
}

func TestPrint(t *testing.T) {
	s := New()
	s.Record(70 * time.Microsecond)
	s.Record(2 * time.Second)

	sink := &captureSink{}
	s.Print(sink)

	require.Len(t, sink.lines, 2)
	out := strings.Join(sink.lines, "\n")
	assert.Contains(t, out, "count=2 min=70µs max=2s")
	assert.Contains(t, out, "p99.9=2s")
	assert.Contains(t, s.String(), "count=2")
}
