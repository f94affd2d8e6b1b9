// Package events はフェーズ・ハートビート・整合性のイベントを配信する。
package events

import "time"

// EventType はイベントの種別
type EventType string

const (
	// フェーズ開始
	EventPhaseStart EventType = "phase_start"
	// フェーズ正常終了
	EventPhaseComplete EventType = "phase_complete"
	// フェーズ失敗
	EventPhaseFailed EventType = "phase_failed"
	// ハートビート (前回からの増分)
	EventHeartbeat EventType = "heartbeat"
	// 読んだ値が期待値と異なる
	EventMismatch EventType = "mismatch"
	// populate 済みのキーに値がない
	EventMissing EventType = "missing"
)

// Event は実行中のイベント
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase,omitempty"`
	Source    string    `json:"source,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData は種別ごとのデータ
type EventData struct {
	Writes   uint64  `json:"writes,omitempty"`
	Reads    uint64  `json:"reads,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
	Elapsed  string  `json:"elapsed,omitempty"`
	Key      string  `json:"key,omitempty"`
	Expected string  `json:"expected,omitempty"`
	Actual   string  `json:"actual,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewPhaseStartEvent はフェーズ開始イベントを作成する
func NewPhaseStartEvent(phase string) Event {
	return Event{
		Type:      EventPhaseStart,
		Timestamp: time.Now(),
		Phase:     phase,
	}
}

// NewPhaseCompleteEvent はフェーズ完了イベントを作成する
func NewPhaseCompleteEvent(phase string, elapsed time.Duration, rate float64) Event {
	return Event{
		Type:      EventPhaseComplete,
		Timestamp: time.Now(),
		Phase:     phase,
		Data: EventData{
			Rate:    rate,
			Elapsed: elapsed.String(),
		},
	}
}

// NewPhaseFailedEvent はフェーズ失敗イベントを作成する
func NewPhaseFailedEvent(phase string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventPhaseFailed,
		Timestamp: time.Now(),
		Phase:     phase,
		Data: EventData{
			Error: errMsg,
		},
	}
}

// NewHeartbeatEvent は前回 tick からの増分を持つハートビートを作成する
func NewHeartbeatEvent(phase string, writes, reads uint64) Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Phase:     phase,
		Data: EventData{
			Writes: writes,
			Reads:  reads,
		},
	}
}

// NewMismatchEvent は不一致イベントを作成する
func NewMismatchEvent(source, key, expected, actual string) Event {
	return Event{
		Type:      EventMismatch,
		Timestamp: time.Now(),
		Source:    source,
		Data: EventData{
			Key:      key,
			Expected: expected,
			Actual:   actual,
		},
	}
}

// NewMissingEvent は欠損イベントを作成する
func NewMissingEvent(source, key string) Event {
	return Event{
		Type:      EventMissing,
		Timestamp: time.Now(),
		Source:    source,
		Data: EventData{
			Key: key,
		},
	}
}
