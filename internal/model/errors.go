package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: session, validation, fetch, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeInvalidBatchSize = "INVALID_BATCH_SIZE"
	ErrCodeSessionLimit     = "SESSION_LIMIT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("ユーザーデータの取得に失敗しました: %s", reason),
		Category: "fetch",
		Action:   "しばらく待ってから新しいセッションを作成してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッションの有効期限が切れた可能性があります。新しいセッションを作成してください。",
	}
}

// NewInvalidBatchSizeError は無効なバッチサイズエラーを生成する。
func NewInvalidBatchSizeError(size string, max int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBatchSize,
		Message:  fmt.Sprintf("無効なバッチサイズです: %s", size),
		Category: "validation",
		Action:   fmt.Sprintf("sizeには1から%dまでの整数を指定してください。", max),
	}
}

// NewSessionLimitError はセッション数上限エラーを生成する。
func NewSessionLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLimit,
		Message:  "同時に保持できるセッション数の上限に達しています。",
		Category: "session",
		Action:   "不要なセッションを削除するか、しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// FetchErrorKind はフェッチ失敗の原因分類。
type FetchErrorKind string

const (
	// FetchErrorNetwork は接続失敗などのネットワークエラー。
	FetchErrorNetwork FetchErrorKind = "network"
	// FetchErrorTimeout はタイムアウト。
	FetchErrorTimeout FetchErrorKind = "timeout"
	// FetchErrorStatus は2xx以外のHTTPステータス。
	FetchErrorStatus FetchErrorKind = "status"
	// FetchErrorDecode はレスポンスボディの読み取り・パース失敗。
	FetchErrorDecode FetchErrorKind = "decode"
	// FetchErrorInvalidRequest はリクエストパラメータ不正（ネットワーク呼び出し前）。
	FetchErrorInvalidRequest FetchErrorKind = "invalid_request"
)

// FetchError はバッチ取得の失敗を表す。原因となったエラーをラップする。
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int // Kind が status の場合のみ設定
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.Kind == FetchErrorStatus {
		return fmt.Sprintf("fetch failed (%s %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError はerrチェーンからFetchErrorを取り出す。
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
