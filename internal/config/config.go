// Package config はmarketサーバーとクライアントの設定を管理する。
//
// 設定はTOMLファイルから読み込み、環境変数で上書きする。
// ファイルが存在しない場合はデフォルト値を使用する。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ポーリング間隔の許容範囲。
const (
	MinPollInterval = time.Second
	MaxPollInterval = 5 * time.Minute
)

// Config は設定ファイル全体を表す。
type Config struct {
	// Server はHTTPサーバーの設定。
	Server Server `toml:"server"`
	// Notification は通知集約の設定。
	Notification Notification `toml:"notification"`
	// Client は通知ポーラーの設定。
	Client Client `toml:"client"`
	// Log はログ出力の設定。
	Log Log `toml:"log"`
}

// Server はHTTPサーバーの設定。
type Server struct {
	// Port はリッスンポート。
	Port string `toml:"port"`
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string `toml:"database_path"`
	// JWTSecret はトークン検証に使うHS256シークレット。
	JWTSecret string `toml:"jwt_secret"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `toml:"allowed_origins"`
	// DevTokens がtrueの場合、開発用トークン発行エンドポイントを公開する。
	DevTokens bool `toml:"dev_tokens"`
}

// Notification は通知集約の設定。
type Notification struct {
	// MaxEntries は1回のポーリングで返す通知の最大件数。
	MaxEntries int `toml:"max_entries"`
	// SummaryLength は要約の最大文字数（ルーン数）。
	SummaryLength int `toml:"summary_length"`
	// FetchConcurrency は注文ごとの取得を並行実行する上限。
	FetchConcurrency int `toml:"fetch_concurrency"`
}

// Client は通知ポーラーの設定。
type Client struct {
	// ServerURL はmarketサーバーのベースURL。
	ServerURL string `toml:"server_url"`
	// Token はBearerトークン。
	Token string `toml:"token"`
	// PollIntervalMs はポーリング間隔（ミリ秒）。
	PollIntervalMs int `toml:"poll_interval_ms"`
}

// Log はログ出力の設定。
type Log struct {
	// Level はログレベル（debug, info, warn, error）。
	Level string `toml:"level"`
	// Path はJSONログの出力先。空の場合はファイル出力しない。
	Path string `toml:"path"`
}

// Default はデフォルト値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		Server: Server{
			Port:           "8080",
			DatabasePath:   "market.db",
			JWTSecret:      "dev-secret-key",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Notification: Notification{
			MaxEntries:       10,
			SummaryLength:    50,
			FetchConcurrency: 8,
		},
		Client: Client{
			ServerURL:      "http://localhost:8080",
			PollIntervalMs: 15000,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load は指定パスのTOMLファイルを読み込み、環境変数で上書きした設定を返す。
// pathが空、またはファイルが存在しない場合はデフォルト値から始める。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save は設定を指定パスにTOML形式で書き込む。親ディレクトリは必要に応じて作成する。
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("設定ファイルのオープンに失敗: %w", err)
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// applyEnv は環境変数が設定されている項目を上書きする。
func (c *Config) applyEnv() {
	c.Server.Port = getEnvOr("PORT", c.Server.Port)
	c.Server.DatabasePath = getEnvOr("DATABASE_PATH", c.Server.DatabasePath)
	c.Server.JWTSecret = getEnvOr("JWT_SECRET", c.Server.JWTSecret)
	c.Client.ServerURL = getEnvOr("MARKET_URL", c.Client.ServerURL)
	c.Client.Token = getEnvOr("MARKET_TOKEN", c.Client.Token)
}

// Validate は設定値の範囲を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port が空です"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret が空です"))
	}
	if c.Notification.MaxEntries < 1 {
		errs = append(errs, fmt.Errorf("notification.max_entries は1以上が必要です: %d", c.Notification.MaxEntries))
	}
	if c.Notification.SummaryLength < 1 {
		errs = append(errs, fmt.Errorf("notification.summary_length は1以上が必要です: %d", c.Notification.SummaryLength))
	}
	if c.Notification.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("notification.fetch_concurrency は1以上が必要です: %d", c.Notification.FetchConcurrency))
	}
	if d := c.PollInterval(); d < MinPollInterval || d > MaxPollInterval {
		errs = append(errs, fmt.Errorf("client.poll_interval_ms は%dから%dの範囲で指定してください: %d",
			MinPollInterval.Milliseconds(), MaxPollInterval.Milliseconds(), c.Client.PollIntervalMs))
	}
	return errors.Join(errs...)
}

// PollInterval はポーリング間隔をtime.Durationで返す。
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Client.PollIntervalMs) * time.Millisecond
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
