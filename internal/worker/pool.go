package worker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"kvstress/internal/latency"
	"kvstress/internal/logger"
)

// Pool は同種のワーカー群を起動・停止・合流させる
type Pool struct {
	drivers []Driver
	log     *logger.Logger

	g    *errgroup.Group
	done <-chan struct{}
}

// NewPool は drivers をまとめたプールを作成する
func NewPool(log *logger.Logger, drivers ...Driver) *Pool {
	if log == nil {
		log = logger.Default
	}
	return &Pool{drivers: drivers, log: log}
}

// Start は各ワーカーを専用のゴルーチンで起動する。
// いずれかのワーカーが失敗するか ctx が終了すると Done が閉じる。
func (p *Pool) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	p.g = g
	p.done = gctx.Done()

	for i, d := range p.drivers {
		g.Go(func() error {
			return d.Run(gctx)
		})
		p.log.Info("", "%s %d started", titleKind(d.Kind()), i)
	}
}

func titleKind(k Kind) string {
	switch k {
	case KindWriter:
		return "Writer"
	case KindChecker:
		return "Checker"
	default:
		return "Reader"
	}
}

// Done はワーカーの失敗またはキャンセルで閉じるチャネルを返す
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Stop は全ワーカーに停止を通知する（非ブロッキング）
func (p *Pool) Stop() {
	for _, d := range p.drivers {
		d.Stop()
	}
}

// Wait は全ワーカーの終了を待ち、最初のエラーを返す。タイムアウトはない。
func (p *Pool) Wait() error {
	if p.g == nil {
		return nil
	}
	return p.g.Wait()
}

// StopAndWait は Stop と Wait をまとめて行う
func (p *Pool) StopAndWait() error {
	p.Stop()
	return p.Wait()
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.drivers)
}

// Drivers はワーカーを返す
func (p *Pool) Drivers() []Driver {
	return p.drivers
}

// Counts は各ワーカーのカウンタのスナップショットを返す
func (p *Pool) Counts() []uint64 {
	counts := make([]uint64, len(p.drivers))
	for i, d := range p.drivers {
		counts[i] = d.Count()
	}
	return counts
}

// Sum はカウンタの合計を返す
func (p *Pool) Sum() uint64 {
	var sum uint64
	for _, d := range p.drivers {
		sum += d.Count()
	}
	return sum
}

// MergedLatency は全ワーカーのレイテンシを合算する。Wait の後に呼ぶこと。
func (p *Pool) MergedLatency() *latency.Stats {
	merged := latency.New()
	for _, d := range p.drivers {
		merged.Merge(d.Latency())
	}
	return merged
}

// FirstLatency は先頭ワーカーのレイテンシを返す。ワーカーがいなければ空。
func (p *Pool) FirstLatency() *latency.Stats {
	if len(p.drivers) == 0 {
		return latency.New()
	}
	return p.drivers[0].Latency()
}
