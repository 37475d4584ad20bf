// Package database はPostgreSQL接続とスキーマのマイグレーションを提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationResult はマイグレーション実行後のスキーマ状態。
type MigrationResult struct {
	Version uint
	Applied bool // 今回の実行で1つ以上適用した場合true
}

// ErrDirtySchema は前回のマイグレーションが途中で失敗したまま残っていることを表す。
var ErrDirtySchema = errors.New("schema is dirty")

// NewMigrator は埋め込みSQL（users, sessions, expenses, billing）を読むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの生成に失敗: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("マイグレーターの生成に失敗: %w", err)
	}
	return m, nil
}

// RunMigrations は未適用のマイグレーションを全て適用し、適用後のバージョンを返す。
// dirty状態のスキーマには手を付けずErrDirtySchemaを返す。
func RunMigrations(databaseURL string) (MigrationResult, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationResult{}, err
	}
	defer m.Close()

	before, dirty, err := schemaVersion(m)
	if err != nil {
		return MigrationResult{}, err
	}
	if dirty {
		return MigrationResult{Version: before}, fmt.Errorf("version %d: %w", before, ErrDirtySchema)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationResult{Version: before}, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	after, _, err := schemaVersion(m)
	if err != nil {
		return MigrationResult{}, err
	}
	return MigrationResult{Version: after, Applied: after != before}, nil
}

// schemaVersion は現在のバージョンを返す。未適用の場合は0。
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("スキーマバージョンの取得に失敗: %w", err)
	}
	return v, dirty, nil
}
