// Package storage はmarketのSQLiteデータベースを開き、スキーマを最新にする。
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"github.com/nao1215/market/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dsn はmodernc.org/sqlite向けの接続文字列を組み立てる。
// WALモード、ビジータイムアウト、外部キー制約を有効にし、
// 書き込みトランザクションは開始時に書き込みロックを取得する。
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
func Open(path string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通に失敗: %w", err)
	}

	result, err := migration.Run(db, migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version), zap.String("path", path))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version), zap.String("path", path))
	}
	return db, nil
}
