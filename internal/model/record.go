// Package model はドメインモデルを定義する。
package model

import "time"

// Record はランダムデータAPIから取得した合成ユーザー1件を表す。
// 受信後は不変として扱う。
type Record struct {
	ID        int64
	UID       string
	Password  string
	FirstName string
	LastName  string
	Username  string
	Email     string
	Avatar    string // クエリ文字列付きの場合がある（表示前に除去する）

	// Extra は上記以外のスカラー値フィールド。キーは小文字化済み、値は文字列化済み。
	Extra map[string]string
}

// Lookup はフィールド名（大文字小文字を区別しない）に対応する値を文字列で返す。
// 該当フィールドが存在しない場合はfalseを返す。
func (r Record) Lookup(field string) (string, bool) {
	switch normalizeKey(field) {
	case "id":
		return formatInt(r.ID), true
	case "uid":
		return r.UID, true
	case "password":
		return r.Password, true
	case "first_name":
		return r.FirstName, true
	case "last_name":
		return r.LastName, true
	case "username":
		return r.Username, true
	case "email":
		return r.Email, true
	case "avatar":
		return r.Avatar, true
	}
	v, ok := r.Extra[normalizeKey(field)]
	return v, ok
}

// FetchStatus はセッションのフェッチ進行状況を表す。
type FetchStatus string

const (
	// FetchStatusIdle はフェッチ開始前。
	FetchStatusIdle FetchStatus = "idle"
	// FetchStatusPending はフェッチ実行中。
	FetchStatusPending FetchStatus = "pending"
	// FetchStatusLoaded はフェッチ成功（0件を含む）。
	FetchStatusLoaded FetchStatus = "loaded"
	// FetchStatusFailed はフェッチ失敗。
	FetchStatusFailed FetchStatus = "failed"
)

// FetchLog はフェッチ1回分の結果を運用記録として表す。
// セッションのデータそのものは保存しない。
type FetchLog struct {
	ID            string
	SessionID     string
	RequestedSize int
	RecordCount   int
	Status        FetchStatus
	ErrorKind     string
	HTTPStatus    int
	DurationMs    int64
	CreatedAt     time.Time
}
