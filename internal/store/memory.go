package store

import (
	"context"
	"sync"
	"time"
)

// Status はメモリストアの状態を表す
type Status int

const (
	StatusRunning Status = iota
	StatusSuspended
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)

// Memory はインメモリKVS
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	status Status
	delay  time.Duration
}

// NewMemory は新しいメモリストアを作成する
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]string),
	}
}

// SetDelay は各操作に加える遅延を設定する
func (m *Memory) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Delay は現在の遅延設定を返す
func (m *Memory) Delay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delay
}

// applyDelay は設定された遅延を適用する
func (m *Memory) applyDelay() {
	if d := m.Delay(); d > 0 {
		time.Sleep(d)
	}
}

// Suspend は以降の操作を ErrSuspended で失敗させる
func (m *Memory) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		m.status = StatusSuspended
	}
}

// Resume は一時停止を解除する
func (m *Memory) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusSuspended {
		m.status = StatusRunning
	}
}

// Status は現在の状態を返す
func (m *Memory) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Memory) checkLocked() error {
	switch m.status {
	case StatusSuspended:
		return ErrSuspended
	case StatusClosed:
		return ErrClosed
	}
	return nil
}

// Get はキーに対応する値を取得する
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.applyDelay()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkLocked(); err != nil {
		return "", false, err
	}
	value, ok := m.data[key]
	return value, ok, nil
}

// Put はキーに値を設定する
func (m *Memory) Put(_ context.Context, key, value string) error {
	m.applyDelay()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(); err != nil {
		return err
	}
	m.data[key] = value
	return nil
}

// Delete はキーを削除する
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Size はデータストアのサイズを返す
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close はストアを閉じる。二重に呼んでもよい。
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusClosed
	return nil
}
