package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/userdeck/internal/model"
)

// PostgresFetchLogRepo はPostgreSQLを使用したフェッチ記録リポジトリ。
type PostgresFetchLogRepo struct {
	db *sql.DB
}

var _ FetchLogRepository = (*PostgresFetchLogRepo)(nil)

// NewPostgresFetchLogRepo はPostgresFetchLogRepoを生成する。
func NewPostgresFetchLogRepo(db *sql.DB) *PostgresFetchLogRepo {
	return &PostgresFetchLogRepo{db: db}
}

// RecordFetch はフェッチ結果をfetch_logsに保存する。
func (r *PostgresFetchLogRepo) RecordFetch(ctx context.Context, log *model.FetchLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fetch_logs (id, session_id, requested_size, record_count, status,
		                         error_kind, http_status, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.SessionID, log.RequestedSize, log.RecordCount, string(log.Status),
		nullString(log.ErrorKind), nullInt(log.HTTPStatus), log.DurationMs, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("フェッチ記録の保存に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は新しい順に最大limit件のフェッチ記録を返す。
func (r *PostgresFetchLogRepo) ListRecent(ctx context.Context, limit int) ([]*model.FetchLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, requested_size, record_count, status,
		        error_kind, http_status, duration_ms, created_at
		 FROM fetch_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ記録の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.FetchLog
	for rows.Next() {
		log := &model.FetchLog{}
		var status string
		var errorKind sql.NullString
		var httpStatus sql.NullInt64
		if err := rows.Scan(
			&log.ID, &log.SessionID, &log.RequestedSize, &log.RecordCount, &status,
			&errorKind, &httpStatus, &log.DurationMs, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("フェッチ記録のスキャンに失敗しました: %w", err)
		}
		log.Status = model.FetchStatus(status)
		log.ErrorKind = nullStringValue(errorKind)
		log.HTTPStatus = int(nullIntValue(httpStatus))
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フェッチ記録の走査に失敗しました: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan はcutoffより古いフェッチ記録を削除する。
func (r *PostgresFetchLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM fetch_logs WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("フェッチ記録の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullIntValue(ni sql.NullInt64) int64 {
	if ni.Valid {
		return ni.Int64
	}
	return 0
}
