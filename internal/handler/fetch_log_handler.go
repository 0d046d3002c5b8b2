package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/userdeck/internal/middleware"
	"github.com/hitoshi/userdeck/internal/model"
)

const (
	defaultFetchLogLimit = 50
	maxFetchLogLimit     = 200
)

// FetchLogLister はフェッチ記録の一覧取得インターフェース。
type FetchLogLister interface {
	ListRecent(ctx context.Context, limit int) ([]*model.FetchLog, error)
}

// FetchLogHandler はフェッチ記録参照のHTTPハンドラー。
type FetchLogHandler struct {
	logs   FetchLogLister
	logger *slog.Logger
}

// NewFetchLogHandler はFetchLogHandlerを生成する。
func NewFetchLogHandler(logs FetchLogLister, logger *slog.Logger) *FetchLogHandler {
	return &FetchLogHandler{logs: logs, logger: logger}
}

// fetchLogResponse はフェッチ記録のAPIレスポンス。
type fetchLogResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	RequestedSize int       `json:"requested_size"`
	RecordCount   int       `json:"record_count"`
	Status        string    `json:"status"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	HTTPStatus    int       `json:"http_status,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// List は新しい順にフェッチ記録を返す。
// GET /api/fetch-logs?limit=N
func (h *FetchLogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultFetchLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxFetchLogLimit)
		}
	}

	logs, err := h.logs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("フェッチ記録の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]fetchLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, fetchLogResponse{
			ID:            l.ID,
			SessionID:     l.SessionID,
			RequestedSize: l.RequestedSize,
			RecordCount:   l.RecordCount,
			Status:        string(l.Status),
			ErrorKind:     l.ErrorKind,
			HTTPStatus:    l.HTTPStatus,
			DurationMs:    l.DurationMs,
			CreatedAt:     l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
