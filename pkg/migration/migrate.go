// Package migration はSQLiteデータベースのマイグレーションを管理する。
// embed.FSからSQLファイルを読み込み、golang-migrateで適用状態を追跡する。
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Result はマイグレーション実行結果を表す。
type Result struct {
	// Version は適用後のスキーマバージョン。
	Version uint
	// Dirty は前回のマイグレーションが途中で失敗していた場合にtrueになる。
	Dirty bool
	// Changed は今回の実行で1件以上適用した場合にtrueになる。
	Changed bool
}

// Run はembedされたマイグレーションファイルを順序通りに適用する。
// 未適用のマイグレーションのみ実行し、適用済みのものはスキップする。
// ファイル名形式: 000001_description.up.sql
//
// migrate.Migrate.Close はdbも閉じてしまうため呼び出さない。
func Run(db *sql.DB, fsys fs.FS, dir string) (*Result, error) {
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの作成に失敗: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("マイグレーションドライバーの作成に失敗: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションインスタンスの作成に失敗: %w", err)
	}

	changed := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
		}
		changed = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("スキーマバージョンの取得に失敗: %w", err)
	}

	return &Result{Version: version, Dirty: dirty, Changed: changed}, nil
}
