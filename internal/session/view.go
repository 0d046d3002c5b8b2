package session

import (
	"time"

	"github.com/hitoshi/userdeck/internal/cursor"
	"github.com/hitoshi/userdeck/internal/model"
)

// View は表示層に渡すセッションのスナップショット。
type View struct {
	SessionID   string
	FetchStatus model.FetchStatus
	CursorState cursor.State
	Position    int
	Total       int
	Record      *RecordView // レコードが無い場合はnil
	Err         error       // フェッチ失敗時のみ
	CreatedAt   time.Time
}

// RecordView は現在のレコードの表示用データ。
type RecordView struct {
	Fields    []cursor.Field
	AvatarURL string
}

// View は現在の状態のスナップショットを返す。
// keysが空の場合はcursor.DefaultKeysを使用する。
func (s *Session) View(keys []string) View {
	if len(keys) == 0 {
		keys = cursor.DefaultKeys
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()

	v := View{
		SessionID:   s.id,
		FetchStatus: s.status,
		CursorState: s.cursor.State(),
		Position:    s.cursor.Position(),
		Total:       s.cursor.Len(),
		Err:         s.fetchErr,
		CreatedAt:   s.createdAt,
	}
	if rec, ok := s.cursor.Current(); ok {
		v.Record = &RecordView{
			Fields:    cursor.DisplayPairs(rec, keys),
			AvatarURL: cursor.ResolveAvatarURL(rec),
		}
	}
	return v
}
