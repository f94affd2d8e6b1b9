// Package logger は実行全体で共有するレベル付きロガーを提供する。
//
// 1 行は時刻・レベル・任意のコンポーネント ID・メッセージで構成される。
// ID はワーカー名 ("writer-3", "checker-0") で、オーケストレーター側は空文字を渡す。
//
//	[2026-01-02 15:04:05.000]	[INFO]	[writer-0]	writeCount=1200
//
// 出力は zap の console encoder が担い、Error 行にはスタックトレースが付く。
// レベルは SetLevel で実行中に変更できる。
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Warn("checker-0", "key=%q expected=%q actual=%q", k, want, got)
//
// パッケージ関数は Default に委譲する。
package logger
