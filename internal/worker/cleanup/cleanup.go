// Package cleanup は期限切れセッションの削除ジョブを提供する。
// cronなど外部スケジューラから cleanup サブコマンドとして1回ずつ実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除するインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Job は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type Job struct {
	sessions SessionPurger
	logger   *slog.Logger
	now      func() time.Time
}

// NewJob は新しいJobを生成する。
func NewJob(sessions SessionPurger, logger *slog.Logger) *Job {
	return &Job{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は期限切れセッションを削除し、削除件数を返す。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := j.now()

	deleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return deleted, nil
}
