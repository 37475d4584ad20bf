package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/despesas/internal/config"
	"github.com/hitoshi/despesas/internal/database"
	"github.com/hitoshi/despesas/internal/metrics"
	"github.com/hitoshi/despesas/internal/repository"
	"github.com/hitoshi/despesas/internal/repository/fallback"
	"github.com/hitoshi/despesas/internal/repository/memory"
)

const pingTimeout = 5 * time.Second

// storage はserveモードで使うリポジトリ一式。
type storage struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	expenses repository.ExpenseRepository
	billing  repository.BillingRepository
	health   *fallback.Health
	db       *sql.DB
}

// Close はDB接続を閉じる。
func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStorage はPostgreSQLに接続し、フォールバック付きのリポジトリを構成する。
// FallbackEnabledの場合、起動時に接続できなくてもインメモリストアで起動を続ける。
func openStorage(ctx context.Context, cfg *config.Config, rec metrics.Recorder) (*storage, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	pingErr := database.Ping(ctx, db, pingTimeout)
	if pingErr != nil && !cfg.FallbackEnabled {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
	}

	primaryUsers := repository.NewPostgresUserRepo(db)
	primarySessions := repository.NewPostgresSessionRepo(db)
	primaryExpenses := repository.NewPostgresExpenseRepo(db)
	primaryBilling := repository.NewPostgresBillingRepo(db)

	if !cfg.FallbackEnabled {
		slog.Info("database connection established")
		return &storage{
			users:    primaryUsers,
			sessions: primarySessions,
			expenses: primaryExpenses,
			billing:  primaryBilling,
			health:   fallback.NewHealth(slog.Default(), nil),
			db:       db,
		}, nil
	}

	mem, err := memory.NewSeeded()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load fallback seed: %w", err)
	}

	health := fallback.NewHealth(slog.Default(), func() { rec.SetFallbackActive(true) })
	if pingErr != nil {
		health.MarkDegraded(pingErr)
	} else {
		slog.Info("database connection established")
	}

	return &storage{
		users:    fallback.NewUserRepo(primaryUsers, mem.Users(), health),
		sessions: fallback.NewSessionRepo(primarySessions, mem.Sessions(), health),
		expenses: fallback.NewExpenseRepo(primaryExpenses, mem.Expenses(), health),
		billing:  fallback.NewBillingRepo(primaryBilling, mem.Billing(), health),
		health:   health,
		db:       db,
	}, nil
}
