// Package metrics は実行の進捗を Prometheus に公開する。
//
// Collector はフェーズの終了時にオーケストレーターから更新され、
// ワーカーからは触られない。Collector ごとに専用のレジストリを持つ:
//
//	m := metrics.New()
//	http.Handle("/metrics", m.Handler())
//
//	engine.SetMetrics(m)
//
// nil の *Collector に対するメソッド呼び出しは何もしない。
package metrics
