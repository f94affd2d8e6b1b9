package scenario

import (
	"errors"
	"sync"
	"time"

	"kvstress/internal/corpus"
	"kvstress/internal/events"
	"kvstress/internal/keygen"
	"kvstress/internal/logger"
	"kvstress/internal/metrics"
	"kvstress/internal/store"
)

// ErrAlreadyRunning は別のフェーズが実行中であることを示す
var ErrAlreadyRunning = errors.New("scenario is already running")

// フェーズ名
const (
	PhasePopulate   = "populate"
	PhaseReadOnly   = "read only"
	PhaseWriteOnly  = "write only"
	PhaseValidate   = "validate"
	PhaseReadWrite  = "read & write"
	PhaseCheckWrite = "check & write"
)

// Writer のインデックス選択
const (
	WriteModeHot        = "hot"
	WriteModeSequential = "sequential"
)

// 終了時に出力するレイテンシ
const (
	LatencyMerged = "merged"
	LatencyFirst  = "first"
)

const (
	defaultBudget    = 60 * time.Second
	defaultHeartbeat = 10 * time.Second
)

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名
	Description string // 説明

	// キー空間
	KeyCount   int // populate/validate するキー数
	HitPercent int // ホットキーの割合 (0-100)

	// ワーカー設定
	Readers       int           // 読み込みワーカー数
	Writers       int           // 書き込みワーカー数
	TotalDuration time.Duration // eval フェーズ全体の時間
	WriteMode     string        // hot | sequential
	Seed          int64         // インデックス選択の乱数シード

	// フェーズ設定
	ValidateBudget    time.Duration // validate の打ち切り時間
	HeartbeatInterval time.Duration // 進捗ログの間隔
	LatencyReport     string        // merged | first

	// WholeTicksOnly が true なら heartbeat 間隔より短い eval フェーズは待たずに終わる。
	// false (既定) では最低1回、フェーズ時間ぶん待つ。
	WholeTicksOnly bool
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Description:       "Default load and validation run",
		KeyCount:          100000,
		HitPercent:        10,
		Readers:           4,
		Writers:           2,
		TotalDuration:     30 * time.Second,
		WriteMode:         WriteModeHot,
		Seed:              1,
		ValidateBudget:    defaultBudget,
		HeartbeatInterval: defaultHeartbeat,
		LatencyReport:     LatencyMerged,
	}
}

// HitKeyCount はホットキーの数を返す
func (c Config) HitKeyCount() int {
	return keygen.HitKeyCount(c.KeyCount, c.HitPercent)
}

func (c Config) budget() time.Duration {
	if c.ValidateBudget <= 0 {
		return defaultBudget
	}
	return c.ValidateBudget
}

func (c Config) heartbeat() time.Duration {
	if c.HeartbeatInterval <= 0 {
		return defaultHeartbeat
	}
	return c.HeartbeatInterval
}

// Engine はフェーズを実行するオーケストレータ
type Engine struct {
	config Config
	store  store.Store
	gen    *keygen.Generator

	log     *logger.Logger
	bus     *events.Bus
	metrics *metrics.Collector

	mu      sync.RWMutex
	running bool
	phase   string
	last    *Result
}

// New は新しいEngineを作成する。c は空であってはならない。
func New(config Config, st store.Store, c *corpus.Corpus) *Engine {
	return &Engine{
		config: config,
		store:  st,
		gen:    keygen.New(c),
		log:    logger.Default,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.bus = bus
}

// SetMetrics はメトリクスコレクタを設定する
func (e *Engine) SetMetrics(m *metrics.Collector) {
	e.metrics = m
}

// SetLogger はロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	if l != nil {
		e.log = l
	}
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// CurrentPhase は実行中のフェーズ名を返す
func (e *Engine) CurrentPhase() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

// LastResult は直近の Run の結果を返す
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.phase = ""
	e.mu.Unlock()
}

func (e *Engine) setPhase(name string) {
	e.mu.Lock()
	e.phase = name
	e.mu.Unlock()
}

// beginPhase はフェーズ開始を記録する
func (e *Engine) beginPhase(name string) time.Time {
	e.setPhase(name)
	e.metrics.PhaseStarted()
	e.bus.Publish(events.NewPhaseStartEvent(name))
	return time.Now()
}

// endPhase はフェーズ終了を記録する。失敗はエラーレベルで出力する。
func (e *Engine) endPhase(name string, start time.Time, rate float64, err error) {
	elapsed := time.Since(start)
	e.metrics.PhaseFinished(name, elapsed, err)
	if err != nil {
		e.log.Error("", "%s failed: %v", name, err)
		e.bus.Publish(events.NewPhaseFailedEvent(name, err))
		return
	}
	e.bus.Publish(events.NewPhaseCompleteEvent(name, elapsed, rate))
}
