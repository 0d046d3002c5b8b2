// Package repository はフェッチ記録の永続化インターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/userdeck/internal/model"
)

// FetchLogRepository はフェッチ記録の永続化インターフェース。
// セッションのレコードそのものは保存せず、取得結果の運用情報のみを扱う。
type FetchLogRepository interface {
	// RecordFetch はフェッチ1回分の結果を保存する。IDが空の場合は採番する。
	RecordFetch(ctx context.Context, log *model.FetchLog) error

	// ListRecent は新しい順に最大limit件の記録を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.FetchLog, error)

	// DeleteOlderThan はcutoffより古い記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
