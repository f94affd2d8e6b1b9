// Package latency は操作ごとの所要時間をマージ可能な要約に集計する。
//
// 各ワーカーは自分専用の Stats を持ち、ロックなしで毎回の操作を記録する。
// ワーカーの join 後にオーケストレーターがマージして出力する:
//
//	merged := latency.New()
//	for _, w := range workers {
//	    merged.Merge(w.Latency())
//	}
//	merged.Print(logger.Default)
//
// 分布は codahale/hdrhistogram で保持する (1ns から 1 分、有効数字2桁)。
// 分位点は記録値の最小・最大の範囲に収まる。
package latency
