package scenario

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"kvstress/internal/latency"
)

// OpReport は1種類のワーカー群の集計
type OpReport struct {
	Counts    []uint64       // ワーカーごとの操作数
	Rates     []float64      // ワーカーごとのレート (ops/ms)
	Total     uint64         // 合計操作数
	TotalRate float64        // 合計レート (ops/ms)
	Latency   *latency.Stats // 出力対象のレイテンシ
}

// PhaseReport は populate と eval フェーズの結果
type PhaseReport struct {
	Phase      string
	Elapsed    time.Duration
	Write      *OpReport // 書き込みがないフェーズでは nil
	Read       *OpReport // 読み込みがないフェーズでは nil
	Mismatches uint64    // check & write で検出した不一致
	Missing    uint64    // check & write で検出した欠損
}

// ValidationReport は validate の結果
type ValidationReport struct {
	Checked    int
	Total      int
	Mismatches int
	Missing    int
	Elapsed    time.Duration
	Truncated  bool // 時間切れで打ち切った
}

// Clean は不一致も欠損もなかったかを返す
func (v *ValidationReport) Clean() bool {
	return v.Mismatches == 0 && v.Missing == 0
}

// elapsedMillis は経過時間をミリ秒で返す。1ms 未満は小数で扱う。
func elapsedMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// rate は count/elapsedMs を小数2桁に丸める
func rate(count uint64, elapsed time.Duration) float64 {
	ms := elapsedMillis(elapsed)
	if ms <= 0 {
		return 0
	}
	return math.Round(float64(count)/ms*100) / 100
}

// newOpReport はカウンタから集計を作る。合計レートは合計数から計算する。
func newOpReport(counts []uint64, elapsed time.Duration, stats *latency.Stats) *OpReport {
	r := &OpReport{
		Counts:  counts,
		Rates:   make([]float64, len(counts)),
		Latency: stats,
	}
	for i, c := range counts {
		r.Rates[i] = rate(c, elapsed)
		r.Total += c
	}
	r.TotalRate = rate(r.Total, elapsed)
	return r
}

// Result は Run の実行結果
type Result struct {
	ScenarioName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration

	KeyCount    int
	HitKeyCount int
	Readers     int
	Writers     int

	Phases      []*PhaseReport
	Validations []*ValidationReport

	FailedPhase string
	Err         error
}

// OK はすべてのフェーズが成功し、検証が clean だったかを返す
func (r *Result) OK() bool {
	if r.Err != nil {
		return false
	}
	for _, v := range r.Validations {
		if !v.Clean() {
			return false
		}
	}
	return true
}

func (r *Result) addPhase(p *PhaseReport) {
	if p != nil {
		r.Phases = append(r.Phases, p)
	}
}

func (r *Result) addValidation(v *ValidationReport) {
	if v != nil {
		r.Validations = append(r.Validations, v)
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
================================================================================
                         RUN REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Keys:           %s (hot %s)
  Readers:        %d
  Writers:        %d

PHASES
------
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		humanize.Comma(int64(r.KeyCount)),
		humanize.Comma(int64(r.HitKeyCount)),
		r.Readers,
		r.Writers,
	)

	for _, p := range r.Phases {
		fmt.Fprintf(&b, "  %-16s %v\n", p.Phase+":", p.Elapsed.Round(time.Millisecond))
		writeOps(&b, "writes", p.Write)
		writeOps(&b, "reads", p.Read)
		if p.Mismatches > 0 || p.Missing > 0 {
			fmt.Fprintf(&b, "    %-12s mismatches=%d missing=%d\n", "check:", p.Mismatches, p.Missing)
		}
	}

	b.WriteString("\nVALIDATION\n----------\n")
	for i, v := range r.Validations {
		status := "OK"
		switch {
		case !v.Clean():
			status = fmt.Sprintf("FAILED (mismatches=%d missing=%d)", v.Mismatches, v.Missing)
		case v.Truncated:
			status = "OK (truncated)"
		}
		fmt.Fprintf(&b, "  #%d  %s/%s in %v  %s\n", i+1,
			humanize.Comma(int64(v.Checked)), humanize.Comma(int64(v.Total)),
			v.Elapsed.Round(time.Millisecond), status)
	}

	if r.Err != nil {
		fmt.Fprintf(&b, "\nFAILURE\n-------\n  Phase:  %s\n  Error:  %v\n", r.FailedPhase, r.Err)
	}

	b.WriteString("\n================================================================================")
	return b.String()
}

func writeOps(b *strings.Builder, label string, op *OpReport) {
	if op == nil {
		return
	}
	fmt.Fprintf(b, "    %-12s %s total, %.2f per ms", label+":", humanize.Comma(int64(op.Total)), op.TotalRate)
	if op.Latency != nil && op.Latency.Count() > 0 {
		fmt.Fprintf(b, ", p99 %v", op.Latency.Quantile(0.99))
	}
	b.WriteString("\n")
}
