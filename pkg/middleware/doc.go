// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、zapによるリクエストログ、パニックリカバリ、
// CORS設定を含む。エラーレスポンスは {"error": "...", "code": "..."} 形式で返す。
package middleware
