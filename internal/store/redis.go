package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient は Redis が使う go-redis クライアントの部分集合。
// *redis.Client と *redis.ClusterClient が満たす。
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Ensure Redis implements Store
var _ Store = (*Redis)(nil)

// Redis は GET/SET で文字列ペアを保存する
type Redis struct {
	client RedisClient
	prefix string
}

// NewRedis は既存のクライアントを包む
func NewRedis(client RedisClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// DialRedis は単一の Redis サーバー用クライアントを作る。
// 接続は遅延され、エラーは最初の操作で返る。
func DialRedis(addr, prefix string) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// Get はキーに対応する値を取得する
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

// Put はキーに値を設定する（有効期限なし）
func (r *Redis) Put(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Close は接続を閉じる
func (r *Redis) Close() error {
	return r.client.Close()
}
