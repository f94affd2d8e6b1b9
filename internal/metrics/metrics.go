package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kvstress/internal/latency"
)

const namespace = "kvstress"

// op ラベル
const (
	OpWrite = "write"
	OpRead  = "read"
)

// Collector はオーケストレータから供給されるメトリクスを保持する。
// ワーカーのホットパスからは呼ばれない。nil の Collector は何もしない。
type Collector struct {
	registry *prometheus.Registry

	ops        *prometheus.CounterVec
	integrity  *prometheus.CounterVec
	validated  prometheus.Counter
	phases     *prometheus.CounterVec
	phaseTime  *prometheus.GaugeVec
	phaseRate  *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	activeRuns prometheus.Gauge
}

// New は専用レジストリを持つ Collector を作成する
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations completed by workers, sampled at heartbeats and phase ends",
		}, []string{"op"}),
		integrity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_failures_total",
			Help:      "Reads that returned a wrong value (mismatch) or no value (missing)",
		}, []string{"kind"}),
		validated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validated_keys_total",
			Help:      "Keys checked by validation passes",
		}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phases_total",
			Help:      "Phases finished, by outcome",
		}, []string{"phase", "result"}),
		phaseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_elapsed_seconds",
			Help:      "Wall-clock duration of the last run of each phase",
		}, []string{"phase"}),
		phaseRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_rate_per_ms",
			Help:      "Total operation rate of the last run of each phase",
		}, []string{"phase", "op"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Latency summary of the last eval phase",
		}, []string{"op", "stat"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Phases currently executing",
		}),
	}

	c.registry.MustRegister(
		c.ops, c.integrity, c.validated, c.phases,
		c.phaseTime, c.phaseRate, c.latency, c.activeRuns,
	)
	return c
}

// Registry はレジストリを返す
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は /metrics 用のハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// AddOps は操作数を加算する
func (c *Collector) AddOps(op string, n uint64) {
	if c == nil || n == 0 {
		return
	}
	c.ops.WithLabelValues(op).Add(float64(n))
}

// AddIntegrity は不一致・欠損の件数を加算する
func (c *Collector) AddIntegrity(kind string, n uint64) {
	if c == nil || n == 0 {
		return
	}
	c.integrity.WithLabelValues(kind).Add(float64(n))
}

// AddValidated は検証済みキー数を加算する
func (c *Collector) AddValidated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.validated.Add(float64(n))
}

// PhaseStarted はフェーズ開始を記録する
func (c *Collector) PhaseStarted() {
	if c == nil {
		return
	}
	c.activeRuns.Inc()
}

// PhaseFinished はフェーズ終了を記録する
func (c *Collector) PhaseFinished(phase string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.activeRuns.Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.phases.WithLabelValues(phase, result).Inc()
	c.phaseTime.WithLabelValues(phase).Set(elapsed.Seconds())
}

// SetRate はフェーズの合計レートを設定する
func (c *Collector) SetRate(phase, op string, perMs float64) {
	if c == nil {
		return
	}
	c.phaseRate.WithLabelValues(phase, op).Set(perMs)
}

// ObserveLatency はレイテンシ集計をゲージに反映する
func (c *Collector) ObserveLatency(op string, s *latency.Stats) {
	if c == nil || s == nil || s.Count() == 0 {
		return
	}
	c.latency.WithLabelValues(op, "min").Set(s.Min().Seconds())
	c.latency.WithLabelValues(op, "mean").Set(s.Mean().Seconds())
	c.latency.WithLabelValues(op, "p50").Set(s.Quantile(0.50).Seconds())
	c.latency.WithLabelValues(op, "p99").Set(s.Quantile(0.99).Seconds())
	c.latency.WithLabelValues(op, "max").Set(s.Max().Seconds())
}
