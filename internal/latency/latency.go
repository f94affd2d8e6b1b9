package latency

import (
	"fmt"
	"time"

	"github.com/codahale/hdrhistogram"
)

const (
	sigFigs    = 2
	minLatency = time.Nanosecond
	// MaxLatency を超えるサンプルは MaxLatency として記録される
	MaxLatency = time.Minute
)

// Sink は Print の出力先
type Sink interface {
	Info(id string, format string, args ...any)
}

// Stats は操作ごとのレイテンシを集計する。
// 単一のワーカーが所有する前提で、並行利用は安全ではない。
// 分位点は HDR ヒストグラムから求め、件数・合計・最小・最大は正確な値を保持する。
type Stats struct {
	hist  *hdrhistogram.Histogram
	count uint64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// New は空の Stats を返す
func New() *Stats {
	return &Stats{
		hist: hdrhistogram.New(minLatency.Nanoseconds(), MaxLatency.Nanoseconds(), sigFigs),
	}
}

// Record はサンプルを1件記録する（負の値は0として扱う）
func (s *Stats) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.sum += d

	v := d
	if v < minLatency {
		v = minLatency
	} else if v > MaxLatency {
		v = MaxLatency
	}
	// 範囲内に丸めているので失敗しない
	_ = s.hist.RecordValue(v.Nanoseconds())
}

// Merge は other の内容を s に加算する
func (s *Stats) Merge(other *Stats) {
	if other == nil || other.count == 0 {
		return
	}
	if s.count == 0 || other.min < s.min {
		s.min = other.min
	}
	if other.max > s.max {
		s.max = other.max
	}
	s.count += other.count
	s.sum += other.sum
	s.hist.Merge(other.hist)
}

// Count はサンプル数を返す
func (s *Stats) Count() uint64 { return s.count }

// Min は最小値を返す
func (s *Stats) Min() time.Duration { return s.min }

// Max は最大値を返す
func (s *Stats) Max() time.Duration { return s.max }

// Sum は合計を返す
func (s *Stats) Sum() time.Duration { return s.sum }

// Mean は平均を返す
func (s *Stats) Mean() time.Duration {
	if s.count == 0 {
		return 0
	}
	return s.sum / time.Duration(s.count)
}

// Quantile は q (0..1) 分位点の値を返す。精度は有効数字2桁。
func (s *Stats) Quantile(q float64) time.Duration {
	if s.count == 0 {
		return 0
	}
	q = min(max(q, 0), 1)
	v := time.Duration(s.hist.ValueAtQuantile(q * 100))
	return min(max(v, s.min), s.max)
}

// Print は集計結果を人が読める形で sink に出力する
func (s *Stats) Print(sink Sink) {
	if s.count == 0 {
		sink.Info("", "latency: no samples")
		return
	}

	sink.Info("", "latency: count=%d min=%v max=%v mean=%v",
		s.count, s.min, s.max, s.Mean().Round(time.Microsecond))
	sink.Info("", "latency: p50=%v p90=%v p99=%v p99.9=%v",
		s.Quantile(0.50), s.Quantile(0.90), s.Quantile(0.99), s.Quantile(0.999))
}

// String は1行の要約を返す
func (s *Stats) String() string {
	return fmt.Sprintf("count=%d min=%v max=%v mean=%v p99=%v",
		s.count, s.min, s.max, s.Mean(), s.Quantile(0.99))
}
