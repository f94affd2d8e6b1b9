// Package store は負荷をかける対象の読み書きインターフェースと、
// インメモリ・Redis・etcd のアダプタを提供する。
//
// 呼び出し側は具体的なストアを区別しない。Get と Put が多数のゴルーチンから
// 同時に呼ばれ、同じキーへの読み書きが競合しても動くことだけを前提にする。
//
// # 基本的な使い方
//
//	st, err := store.Open(store.Config{Backend: store.BackendRedis, Addr: "localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	_ = st.Put(ctx, "key", "value")
//	v, ok, err := st.Get(ctx, "key")
//
// # メモリストア
//
// Memory は操作ごとの遅延と、全操作を失敗させる一時停止状態を設定できる。
// 遅いストアや壊れたストアを再現するのに使う。
package store
