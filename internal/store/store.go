package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrClosed は閉じたストアへの操作で返る
	ErrClosed = errors.New("store: closed")
	// ErrSuspended は一時停止中のメモリストアで返る
	ErrSuspended = errors.New("store: suspended")
	// ErrUnknownBackend は未対応のバックエンド名で Open したときに返る
	ErrUnknownBackend = errors.New("store: unknown backend")
)

// Reader はストアの読み取り機能。複数のゴルーチンから同時に呼ばれる。
type Reader interface {
	// Get は key の値を返す。キーがなければ ok は false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Writer はストアの書き込み機能。Reader と並行して呼ばれる。
type Writer interface {
	Put(ctx context.Context, key, value string) error
}

// Store は読み書き両方の機能を持つハンドル
type Store interface {
	Reader
	Writer
	Close() error
}

// Open が受け付けるバックエンド名
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendEtcd   = "etcd"
)

// Backends は対応するバックエンド名を返す
func Backends() []string {
	return []string{BackendMemory, BackendRedis, BackendEtcd}
}

// Config はストア接続の設定
type Config struct {
	Backend     string        // memory, redis, etcd
	Addr        string        // redis address
	Endpoints   []string      // etcd endpoints
	DialTimeout time.Duration // etcd dial timeout
	Prefix      string        // key namespace for shared backends
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Backend:     BackendMemory,
		Addr:        "localhost:6379",
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Open は設定に従ってストアを開く
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendRedis:
		return DialRedis(cfg.Addr, cfg.Prefix), nil
	case BackendEtcd:
		st, err := DialEtcd(cfg.Endpoints, cfg.DialTimeout, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
