package store

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdKV は Etcd が使う clientv3.KV の部分集合
type EtcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// Ensure Etcd implements Store
var _ Store = (*Etcd)(nil)

// Etcd は etcd クラスタに文字列ペアを保存する
type Etcd struct {
	kv     EtcdKV
	prefix string
	close  func() error
}

// NewEtcd は既存の KV を包む。closeFn は nil でもよい
func NewEtcd(kv EtcdKV, prefix string, closeFn func() error) *Etcd {
	return &Etcd{kv: kv, prefix: prefix, close: closeFn}
}

// DialEtcd は endpoints に接続する
func DialEtcd(endpoints []string, dialTimeout time.Duration, prefix string) (*Etcd, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return NewEtcd(cli, prefix, cli.Close), nil
}

// Get はキーに対応する値を取得する
func (e *Etcd) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := e.kv.Get(ctx, e.prefix+key)
	if err != nil {
		return "", false, fmt.Errorf("etcd get %q: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Put はキーに値を設定する
func (e *Etcd) Put(ctx context.Context, key, value string) error {
	if _, err := e.kv.Put(ctx, e.prefix+key, value); err != nil {
		return fmt.Errorf("etcd put %q: %w", key, err)
	}
	return nil
}

// Close はクライアントを閉じる
func (e *Etcd) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}
