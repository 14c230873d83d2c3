// Package market はマーケットプレイスの注文・メッセージ・通知APIを提供するHTTPサーバー。
//
// 全てのAPIは /api/v1 以下にあり、JWTベアラートークンで認証する。
// 通知はポーリングのたびに notification.Aggregator で計算し直す。
//
// エンドポイント:
//   - GET  /api/v1/notifications/unread
//   - POST /api/v1/notifications/ack
//   - POST /api/v1/notifications/ack-all
//   - GET  /api/v1/orders
//   - GET  /api/v1/orders/:id
//   - GET  /api/v1/orders/:id/messages
//   - POST /api/v1/orders/:id/messages
//   - PUT  /api/v1/orders/:id/status
//   - POST /api/v1/internal/orders
//   - GET  /health
//   - GET  /metrics
//   - POST /auth/dev-token（server.dev_tokens が true の場合のみ）
//
// 依存関係の組み立てとサーバーの起動・停止は Module が fx で行う。
package market
