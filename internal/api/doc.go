// Package api は実行制御用の HTTP サーバーを提供する。
//
// # エンドポイント
//
//	GET  /api/status    実行状態と現在のフェーズ
//	GET  /api/presets   プリセット一覧
//	POST /api/run       ランをバックグラウンドで開始
//	POST /api/run/stop  実行中のランをキャンセル
//	GET  /api/result    直近のランの結果
//	GET  /metrics       Prometheus メトリクス
//	GET  /ws            イベントの WebSocket 配信 (?types=phase_start,mismatch で絞り込み)
package api
