// Package worker は負荷を生成するワーカーと、それを動かすプールを提供する。
//
// 各 Driver は専用のゴルーチンで動き、カウンタとレイテンシ集計を自分で持つ。
// 種類は3つ:
//   - Writer: 生成したペアを書き込む
//   - Reader: ホットキーを読み、値は確認しない
//   - Checker: ホットキーを読み、生成値と異なれば警告を出して続行する
//
// # 基本的な使い方
//
//	cfg := worker.Config{Generator: gen, Picker: worker.NewHotPicker(hot, seed)}
//	pool := worker.NewPool(nil, worker.NewWriter(0, st, cfg))
//	pool.Start(ctx)
//	time.Sleep(d)
//	err := pool.StopAndWait()
//	fmt.Println(pool.Counts(), pool.MergedLatency())
//
// # 停止
//
// 停止は協調的に行う。ワーカーは操作の合間にフラグを確認するので、
// 実行中のストア呼び出しは必ず完了する。Wait は全 Run の終了を待つ。
//
// ストア呼び出しが失敗したワーカーは *OpError を返して止まり、
// プールの Done が閉じる。
package worker
