// Package cleanup は期限切れセッションと古いフェッチ記録の定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionSweeper は最終アクセスから有効期間を過ぎたセッションを終了させる。
type SessionSweeper interface {
	Sweep(now time.Time) int
}

// FetchLogPruner はcutoffより古いフェッチ記録を削除する。
type FetchLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob はセッションのスイープとフェッチ記録の削除を行うジョブ。
// セッションのスイープは毎回、記録の削除はPruneInterval間隔で実行する。
type CleanupJob struct {
	sessions SessionSweeper
	logs     FetchLogPruner // nilの場合は記録の削除を行わない
	logger   *slog.Logger
	now      func() time.Time

	RetentionDays int           // フェッチ記録の保持日数（デフォルト: 14）
	PruneInterval time.Duration // フェッチ記録削除の最小間隔（デフォルト: 1時間）

	lastPrune time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionSweeper, logs FetchLogPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		logs:          logs,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 14,
		PruneInterval: time.Hour,
	}
}

// DefaultInterval はStartに0以下の間隔が渡された場合に使う実行間隔。
const DefaultInterval = time.Minute

// Start はintervalごとにRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("クリーンアップ間隔が不正なため既定値を使用します",
			slog.Duration("interval", interval),
			slog.Duration("default_interval", DefaultInterval),
		)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れセッションを終了させ、必要に応じて古いフェッチ記録を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	now := j.now()

	if swept := j.sessions.Sweep(now); swept > 0 {
		j.logger.Info("期限切れセッションを終了しました",
			slog.Int("swept_count", swept),
		)
	}

	if j.logs == nil || (!j.lastPrune.IsZero() && now.Sub(j.lastPrune) < j.PruneInterval) {
		return nil
	}
	return j.prune(ctx, now)
}

func (j *CleanupJob) prune(ctx context.Context, now time.Time) error {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("フェッチ記録の削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("フェッチ記録の削除に失敗: %w", err)
	}
	j.lastPrune = now

	j.logger.Info("フェッチ記録の削除が完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
