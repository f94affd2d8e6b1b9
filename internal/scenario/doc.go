// Package scenario はロードテストと検証のフェーズ実行機能を提供する。
//
// Engine は1つの store と corpus を受け取り、Writer・Reader・Checker の
// ワーカー群を起動して進捗を記録し、停止・合流させてレートと
// レイテンシを出力する。
//
// # フェーズ
//
// - populate: 0..keyCount-1 を1スレッドで順に書き込む
// - validate: 同じ範囲を読み、生成値と比較する (時間上限あり)
// - write only / read only: Writer または Reader だけを走らせる
// - read & write / check & write: 両方を同時に走らせる
//
// Run はこれらを populate → read only → write only → validate →
// read & write → validate → check & write → validate の順に実行する。
//
// # プリセットシナリオ
//
// - quick: 短時間の動作確認
// - standard: 標準設定
// - read-heavy: 小さいホットキー集合への多数の Reader
// - write-heavy: 全キーを巡回する多数の Writer
// - soak: 長時間実行
//
// # 使用例
//
//	config := scenario.QuickScenario()
//	engine := scenario.New(config, store.NewMemory(), c)
//	result := engine.Run(ctx, config.Readers, config.Writers, config.TotalDuration)
//	fmt.Println(result.Report())
//	if !result.OK() {
//	    os.Exit(1)
//	}
package scenario
