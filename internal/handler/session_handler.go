package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/userdeck/internal/cursor"
	"github.com/hitoshi/userdeck/internal/middleware"
	"github.com/hitoshi/userdeck/internal/model"
	"github.com/hitoshi/userdeck/internal/session"
)

// maxWait はGETで指定できるフェッチ完了待ちの上限。
const maxWait = 30 * time.Second

// SessionStore はセッションハンドラーが必要とするセッション管理インターフェース。
type SessionStore interface {
	Create(size int) (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Delete(id string) bool
}

// SessionHandler は閲覧セッションのHTTPハンドラー。
type SessionHandler struct {
	sessions SessionStore
	logger   *slog.Logger
	maxSize  int
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(sessions SessionStore, logger *slog.Logger, maxSize int) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
		maxSize:  maxSize,
	}
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	ID          string                        `json:"id"`
	FetchStatus string                        `json:"fetch_status"`
	CursorState string                        `json:"cursor_state"`
	Position    int                           `json:"position"`
	Total       int                           `json:"total"`
	Record      *recordResponse               `json:"record"`
	Error       *middleware.ErrorResponseBody `json:"error,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// recordResponse は現在のレコードの表示用データ。
type recordResponse struct {
	AvatarURL string         `json:"avatar_url"`
	Fields    []cursor.Field `json:"fields"`
}

// Create は新しいセッションを作成し、バッチ取得を開始する。
// POST /api/sessions?size=N
// フェッチは非同期で行われるため、レスポンスはpending状態を返す。
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n == 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBatchSizeError(raw, h.maxSize))
			return
		}
		size = n
	}

	s, err := h.sessions.Create(size)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidSize):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidBatchSizeError(strconv.Itoa(size), h.maxSize))
		case errors.Is(err, session.ErrSessionLimit):
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewSessionLimitError())
		default:
			h.logger.Error("セッションの作成に失敗しました", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(s.View(parseFields(r))))
}

// Get はセッションの現在の状態を返す。
// GET /api/sessions/{id}?fields=a,b&wait=2s
// waitを指定した場合はフェッチが決着するまで最大その時間だけ待つ。
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err == nil && wait > 0 {
			waitDone(r, s, min(wait, maxWait))
		}
	}

	writeJSON(w, http.StatusOK, toSessionResponse(s.View(parseFields(r))))
}

// Advance はカーソルを1つ進めて新しい状態を返す。
// POST /api/sessions/{id}/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Advance()
	writeJSON(w, http.StatusOK, toSessionResponse(s.View(parseFields(r))))
}

// Retreat はカーソルを1つ戻して新しい状態を返す。
// POST /api/sessions/{id}/retreat
func (h *SessionHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s.Retreat()
	writeJSON(w, http.StatusOK, toSessionResponse(s.View(parseFields(r))))
}

// Delete はセッションを終了して破棄する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.Delete(id) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessions.Get(id)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError(id))
		return nil, false
	}
	return s, true
}

func waitDone(r *http.Request, s *session.Session, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-s.Done():
	case <-timer.C:
	case <-r.Context().Done():
	}
}

// parseFields はfieldsクエリパラメータを表示キーの列に変換する。
// 未指定の場合はnilを返し、既定のキーが使われる。
func parseFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func toSessionResponse(v session.View) sessionResponse {
	resp := sessionResponse{
		ID:          v.SessionID,
		FetchStatus: string(v.FetchStatus),
		CursorState: string(v.CursorState),
		Position:    v.Position,
		Total:       v.Total,
		CreatedAt:   v.CreatedAt,
	}
	if v.Record != nil {
		resp.Record = &recordResponse{
			AvatarURL: v.Record.AvatarURL,
			Fields:    v.Record.Fields,
		}
	}
	if v.Err != nil {
		reason := string(model.FetchErrorNetwork)
		if fe, ok := model.AsFetchError(v.Err); ok {
			reason = string(fe.Kind)
			if fe.StatusCode != 0 {
				reason += " " + strconv.Itoa(fe.StatusCode)
			}
		}
		apiErr := model.NewFetchFailedError(reason)
		resp.Error = &middleware.ErrorResponseBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}
	}
	return resp
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
