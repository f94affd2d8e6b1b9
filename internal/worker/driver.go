package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"kvstress/internal/events"
	"kvstress/internal/keygen"
	"kvstress/internal/latency"
	"kvstress/internal/logger"
	"kvstress/internal/store"
)

// Kind はワーカーの種類を表す
type Kind int

const (
	KindWriter Kind = iota
	KindReader
	KindChecker
)

func (k Kind) String() string {
	switch k {
	case KindWriter:
		return "writer"
	case KindReader:
		return "reader"
	case KindChecker:
		return "checker"
	default:
		return "unknown"
	}
}

// Driver は1つのゴルーチンで操作を繰り返すワーカー
type Driver interface {
	// Run は Stop されるか操作が失敗するまで操作を繰り返す
	Run(ctx context.Context) error
	// Stop は実行中の操作の完了後に Run を終わらせる。ブロックしない
	Stop()
	// Count は完了した操作数を返す
	Count() uint64
	// Latency はワーカー専用のレイテンシ集計を返す。Run の終了後に読むこと
	Latency() *latency.Stats
	Kind() Kind
	Name() string
}

// OpError は store 操作の失敗を表す
type OpError struct {
	Worker string
	Kind   Kind
	Index  uint64
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s index %d: %v", e.Worker, e.Kind, e.Index, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Config はワーカー共通の設定
type Config struct {
	Generator *keygen.Generator
	Picker    Picker
	Logger    *logger.Logger // nil で logger.Default
	Bus       *events.Bus    // nil で通知なし
}

// base は3種類のワーカーが共有する状態
type base struct {
	name    string
	kind    Kind
	gen     *keygen.Generator
	picker  Picker
	log     *logger.Logger
	bus     *events.Bus
	count   atomic.Uint64
	stopped atomic.Bool
	stats   *latency.Stats
}

func newBase(kind Kind, id int, cfg Config) base {
	l := cfg.Logger
	if l == nil {
		l = logger.Default
	}
	return base{
		name:   fmt.Sprintf("%s-%d", kind, id),
		kind:   kind,
		gen:    cfg.Generator,
		picker: cfg.Picker,
		log:    l,
		bus:    cfg.Bus,
		stats:  latency.New(),
	}
}

func (b *base) Stop()                   { b.stopped.Store(true) }
func (b *base) Count() uint64           { return b.count.Load() }
func (b *base) Latency() *latency.Stats { return b.stats }
func (b *base) Kind() Kind              { return b.kind }
func (b *base) Name() string            { return b.name }

// loop は停止フラグを見ながら op を繰り返す。
// 実行中の操作は中断されないよう、キャンセルを切り離したコンテキストを渡す。
func (b *base) loop(ctx context.Context, op func(ctx context.Context, i uint64) error) error {
	opCtx := context.WithoutCancel(ctx)
	for !b.stopped.Load() {
		i := b.picker.Next()
		start := time.Now()
		if err := op(opCtx, i); err != nil {
			return &OpError{Worker: b.name, Kind: b.kind, Index: i, Err: err}
		}
		b.stats.Record(time.Since(start))
		b.count.Add(1)
	}
	return nil
}

// Writer は生成したペアを書き込み続ける
type Writer struct {
	base
	store store.Writer
}

// NewWriter は新しい Writer を作成する
func NewWriter(id int, w store.Writer, cfg Config) *Writer {
	return &Writer{base: newBase(KindWriter, id, cfg), store: w}
}

// Run はメインループ
func (w *Writer) Run(ctx context.Context) error {
	return w.loop(ctx, func(ctx context.Context, i uint64) error {
		key, value := w.gen.Pair(i)
		return w.store.Put(ctx, key, value)
	})
}

// Reader はホットキーを読み続ける。値は検証しない。
type Reader struct {
	base
	store store.Reader
}

// NewReader は新しい Reader を作成する
func NewReader(id int, r store.Reader, cfg Config) *Reader {
	return &Reader{base: newBase(KindReader, id, cfg), store: r}
}

// Run はメインループ
func (r *Reader) Run(ctx context.Context) error {
	return r.loop(ctx, func(ctx context.Context, i uint64) error {
		key, _ := r.gen.Pair(i)
		_, _, err := r.store.Get(ctx, key)
		return err
	})
}

// Checker は Reader と同じ読み込みに加え、値を期待値と比較する。
// 不一致はログに残すだけで停止しない。
type Checker struct {
	base
	store      store.Reader
	mismatches atomic.Uint64
	missing    atomic.Uint64
}

// NewChecker は新しい Checker を作成する
func NewChecker(id int, r store.Reader, cfg Config) *Checker {
	return &Checker{base: newBase(KindChecker, id, cfg), store: r}
}

// Run はメインループ
func (c *Checker) Run(ctx context.Context) error {
	return c.loop(ctx, func(ctx context.Context, i uint64) error {
		key, expected := c.gen.Pair(i)
		actual, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			c.missing.Add(1)
			c.log.Warn(c.name, "check found no value for key=%q", key)
			c.bus.Publish(events.NewMissingEvent(c.name, key))
		case actual != expected:
			c.mismatches.Add(1)
			c.log.Warn(c.name, "check mismatch key=%q expected=%q actual=%q", key, expected, actual)
			c.bus.Publish(events.NewMismatchEvent(c.name, key, expected, actual))
		}
		return nil
	})
}

// Mismatches は値の不一致件数を返す
func (c *Checker) Mismatches() uint64 { return c.mismatches.Load() }

// Missing は値が見つからなかった件数を返す
func (c *Checker) Missing() uint64 { return c.missing.Load() }
