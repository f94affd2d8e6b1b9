package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kvstress/internal/events"
	"kvstress/internal/latency"
	"kvstress/internal/metrics"
	"kvstress/internal/worker"
)

// writer と reader のシードが重ならないようにずらす
const writerSeedOffset = 1000

// Populate は 0..keyCount-1 を順番に書き込む
func (e *Engine) Populate(ctx context.Context, keyCount int) (*PhaseReport, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.populate(ctx, keyCount)
}

func (e *Engine) populate(ctx context.Context, keyCount int) (*PhaseReport, error) {
	start := e.beginPhase(PhasePopulate)
	opCtx := context.WithoutCancel(ctx)
	stats := latency.New()

	var count uint64
	var err error
	for i := 0; i < keyCount; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		key, value := e.gen.Pair(uint64(i))
		t := time.Now()
		if err = e.store.Put(opCtx, key, value); err != nil {
			err = fmt.Errorf("populate index %d: %w", i, err)
			break
		}
		stats.Record(time.Since(t))
		count++
	}

	elapsed := time.Since(start)
	report := &PhaseReport{
		Phase:   PhasePopulate,
		Elapsed: elapsed,
		Write:   newOpReport([]uint64{count}, elapsed, stats),
	}
	e.log.Info("", "elapsedTime=%d ms", elapsed.Milliseconds())
	e.log.Info("", "writeCount=%d rate=%.2f per ms", count, report.Write.TotalRate)

	e.metrics.AddOps(metrics.OpWrite, count)
	e.metrics.SetRate(PhasePopulate, metrics.OpWrite, report.Write.TotalRate)
	e.endPhase(PhasePopulate, start, report.Write.TotalRate, err)
	return report, err
}

// Validate は 0..keyCount-1 を順番に読み、期待値と比較する。
// 不一致はエラーにしない。store のエラーで中断する。
func (e *Engine) Validate(ctx context.Context, keyCount int) (*ValidationReport, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.validate(ctx, keyCount)
}

func (e *Engine) validate(ctx context.Context, keyCount int) (*ValidationReport, error) {
	start := e.beginPhase(PhaseValidate)
	opCtx := context.WithoutCancel(ctx)
	budget := e.config.budget()
	report := &ValidationReport{Total: keyCount}

	var err error
	for i := 0; i < keyCount; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		report.Checked++

		key, expected := e.gen.Pair(uint64(i))
		actual, ok, gerr := e.store.Get(opCtx, key)
		if gerr != nil {
			err = fmt.Errorf("validate key %q: %w", key, gerr)
			break
		}
		switch {
		case !ok:
			report.Missing++
			e.log.Warn("", "validate found no value for key=%q", key)
			e.bus.Publish(events.NewMissingEvent(PhaseValidate, key))
		case actual != expected:
			report.Mismatches++
			e.log.Warn("", "validate mismatch key=%q expected=%q actual=%q", key, expected, actual)
			e.bus.Publish(events.NewMismatchEvent(PhaseValidate, key, expected, actual))
		}

		if time.Since(start) > budget {
			if i+1 < keyCount {
				report.Truncated = true
				e.log.Info("", "Quit: running time is over %d ms", budget.Milliseconds())
			}
			break
		}
	}

	report.Elapsed = time.Since(start)
	e.log.Info("", "Validated %d/%d in %d ms", report.Checked, report.Total, report.Elapsed.Milliseconds())
	if err == nil {
		if report.Clean() {
			e.log.Info("", "OK")
		} else {
			e.log.Warn("", "validate found %d mismatches and %d missing values", report.Mismatches, report.Missing)
		}
	}

	e.metrics.AddValidated(report.Checked)
	e.metrics.AddIntegrity("mismatch", uint64(report.Mismatches))
	e.metrics.AddIntegrity("missing", uint64(report.Missing))
	e.endPhase(PhaseValidate, start, 0, err)
	return report, err
}

// EvalWrite は writers 個の Writer を d の間走らせる
func (e *Engine) EvalWrite(ctx context.Context, writers int, d time.Duration) (*PhaseReport, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.evalWrite(ctx, writers, d)
}

func (e *Engine) evalWrite(ctx context.Context, writers int, d time.Duration) (*PhaseReport, error) {
	phase := PhaseWriteOnly
	wp := worker.NewPool(e.log, e.newWriters(writers)...)
	wp.Start(ctx)
	start := e.beginPhase(phase)

	var last uint64
	waitErr := e.wait(ctx, d, e.config.heartbeat(), wp.Done(), nil, func() {
		now := wp.Sum()
		e.log.Info("", "writeCount=%d", now-last)
		e.bus.Publish(events.NewHeartbeatEvent(phase, now-last, 0))
		e.metrics.AddOps(metrics.OpWrite, now-last)
		last = now
	})

	err := joinErr(ctx, waitErr, wp.StopAndWait())
	elapsed := time.Since(start)

	e.log.Info("", "elapsedTime=%d ms", elapsed.Milliseconds())
	report := &PhaseReport{
		Phase:   phase,
		Elapsed: elapsed,
		Write:   e.logOps("writeCount", "Total Write Rate", wp, elapsed),
	}
	e.metrics.AddOps(metrics.OpWrite, report.Write.Total-last)
	e.metrics.SetRate(phase, metrics.OpWrite, report.Write.TotalRate)
	e.metrics.ObserveLatency(metrics.OpWrite, report.Write.Latency)
	e.endPhase(phase, start, report.Write.TotalRate, err)
	return report, err
}

// EvalRead は readers 個の Reader を d の間走らせる。途中の進捗ログはない。
func (e *Engine) EvalRead(ctx context.Context, readers int, d time.Duration) (*PhaseReport, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.evalRead(ctx, readers, d)
}

func (e *Engine) evalRead(ctx context.Context, readers int, d time.Duration) (*PhaseReport, error) {
	phase := PhaseReadOnly
	rp := worker.NewPool(e.log, e.newReaders(readers, false)...)
	rp.Start(ctx)
	start := e.beginPhase(phase)

	waitErr := e.wait(ctx, d, d, rp.Done(), nil, nil)

	err := joinErr(ctx, waitErr, rp.StopAndWait())
	elapsed := time.Since(start)

	e.log.Info("", "elapsedTime=%d ms", elapsed.Milliseconds())
	report := &PhaseReport{
		Phase:   phase,
		Elapsed: elapsed,
		Read:    e.logOps("readCount", "Total Read Rate", rp, elapsed),
	}
	e.metrics.AddOps(metrics.OpRead, report.Read.Total)
	e.metrics.SetRate(phase, metrics.OpRead, report.Read.TotalRate)
	e.metrics.ObserveLatency(metrics.OpRead, report.Read.Latency)
	e.endPhase(phase, start, report.Read.TotalRate, err)
	return report, err
}

// EvalReadWrite は Reader (check なら Checker) と Writer を同時に d の間走らせる。
// 停止は Reader が先、Writer が後。
func (e *Engine) EvalReadWrite(ctx context.Context, readers, writers int, d time.Duration, check bool) (*PhaseReport, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()
	return e.evalReadWrite(ctx, readers, writers, d, check)
}

func (e *Engine) evalReadWrite(ctx context.Context, readers, writers int, d time.Duration, check bool) (*PhaseReport, error) {
	phase := PhaseReadWrite
	if check {
		phase = PhaseCheckWrite
	}

	rp := worker.NewPool(e.log, e.newReaders(readers, check)...)
	rp.Start(ctx)
	wp := worker.NewPool(e.log, e.newWriters(writers)...)
	wp.Start(ctx)
	start := e.beginPhase(phase)

	var lastW, lastR uint64
	waitErr := e.wait(ctx, d, e.config.heartbeat(), rp.Done(), wp.Done(), func() {
		w, r := wp.Sum(), rp.Sum()
		e.log.Info("", "write=%d read=%d", w-lastW, r-lastR)
		e.bus.Publish(events.NewHeartbeatEvent(phase, w-lastW, r-lastR))
		e.metrics.AddOps(metrics.OpWrite, w-lastW)
		e.metrics.AddOps(metrics.OpRead, r-lastR)
		lastW, lastR = w, r
	})

	rerr := rp.StopAndWait()
	werr := wp.StopAndWait()
	err := joinErr(ctx, waitErr, errors.Join(rerr, werr))
	elapsed := time.Since(start)

	e.log.Info("", "elapsedTime=%d ms", elapsed.Milliseconds())
	report := &PhaseReport{
		Phase:   phase,
		Elapsed: elapsed,
		Write:   e.logOps("writeCount", "Total Write Rate", wp, elapsed),
		Read:    e.logOps("readCount", "Total Read Rate", rp, elapsed),
	}

	e.log.Info("", "writer latency stats:")
	report.Write.Latency.Print(e.log)
	if !check {
		e.log.Info("", "reader latency stats:")
		report.Read.Latency.Print(e.log)
	}

	for _, drv := range rp.Drivers() {
		if c, ok := drv.(*worker.Checker); ok {
			report.Mismatches += c.Mismatches()
			report.Missing += c.Missing()
		}
	}

	e.metrics.AddOps(metrics.OpWrite, report.Write.Total-lastW)
	e.metrics.AddOps(metrics.OpRead, report.Read.Total-lastR)
	e.metrics.SetRate(phase, metrics.OpWrite, report.Write.TotalRate)
	e.metrics.SetRate(phase, metrics.OpRead, report.Read.TotalRate)
	e.metrics.ObserveLatency(metrics.OpWrite, report.Write.Latency)
	e.metrics.ObserveLatency(metrics.OpRead, report.Read.Latency)
	e.metrics.AddIntegrity("mismatch", report.Mismatches)
	e.metrics.AddIntegrity("missing", report.Missing)
	e.endPhase(phase, start, report.Write.TotalRate+report.Read.TotalRate, err)
	return report, err
}

// wait は d の間待つ。tick 長は min(d, interval)、回数は d/interval で端数は捨てる。
// d < interval のときは1回だけ d 待つ。WholeTicksOnly なら待たない。
// a か b が閉じるか ctx が終了すると早期に戻る。nil のチャネルは無視される。
func (e *Engine) wait(ctx context.Context, d, interval time.Duration, a, b <-chan struct{}, tick func()) error {
	if d <= 0 {
		return nil
	}
	step := min(d, interval)
	ticks := int(d / interval)
	if ticks < 1 {
		if e.config.WholeTicksOnly {
			return nil
		}
		ticks = 1
	}

	timer := time.NewTimer(step)
	defer timer.Stop()

	for n := 0; n < ticks; n++ {
		if n > 0 {
			timer.Reset(step)
		}
		select {
		case <-timer.C:
			if tick != nil {
				tick()
			}
		case <-a:
			return ctx.Err()
		case <-b:
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// joinErr はワーカーのエラーを優先し、なければキャンセルをエラーとして返す
func joinErr(ctx context.Context, waitErr, workerErr error) error {
	if workerErr != nil {
		return workerErr
	}
	if waitErr != nil {
		return waitErr
	}
	return ctx.Err()
}

// logOps はワーカーごとと合計のレートを出力する
func (e *Engine) logOps(countLabel, totalLabel string, p *worker.Pool, elapsed time.Duration) *OpReport {
	stats := p.MergedLatency()
	if e.config.LatencyReport == LatencyFirst {
		stats = p.FirstLatency()
	}
	r := newOpReport(p.Counts(), elapsed, stats)
	for i, c := range r.Counts {
		e.log.Info("", "%s[%d]=%d rate=%.2f per ms", countLabel, i, c, r.Rates[i])
	}
	e.log.Info("", "%s=%.2f per ms", totalLabel, r.TotalRate)
	return r
}

func (e *Engine) workerConfig(picker worker.Picker) worker.Config {
	return worker.Config{
		Generator: e.gen,
		Picker:    picker,
		Logger:    e.log,
		Bus:       e.bus,
	}
}

func (e *Engine) newWriters(n int) []worker.Driver {
	hot := e.config.HitKeyCount()
	drivers := make([]worker.Driver, n)
	for i := range drivers {
		var picker worker.Picker
		if e.config.WriteMode == WriteModeSequential {
			picker = worker.NewSequentialPicker(i*e.config.KeyCount/n, e.config.KeyCount)
		} else {
			picker = worker.NewHotPicker(hot, e.config.Seed+writerSeedOffset+int64(i))
		}
		drivers[i] = worker.NewWriter(i, e.store, e.workerConfig(picker))
	}
	return drivers
}

func (e *Engine) newReaders(n int, check bool) []worker.Driver {
	hot := e.config.HitKeyCount()
	drivers := make([]worker.Driver, n)
	for i := range drivers {
		cfg := e.workerConfig(worker.NewHotPicker(hot, e.config.Seed+int64(i)))
		if check {
			drivers[i] = worker.NewChecker(i, e.store, cfg)
		} else {
			drivers[i] = worker.NewReader(i, e.store, cfg)
		}
	}
	return drivers
}
