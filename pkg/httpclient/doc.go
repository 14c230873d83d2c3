// Package httpclient はmarket APIを呼び出すJSON HTTPクライアントを提供する。
//
// 通知ポーラーやターミナルUIがサーバーを呼び出す際に使用する。
// 2xx以外のレスポンスは *StatusError として返し、呼び出し側は
// IsStatus で401などを判定する。
package httpclient
