// Package event はセッションの状態変化を購読者へ通知する。
// 表示層はSubscribeで購読し、通知を契機に再描画する。
package event

import (
	"fmt"
	"log/slog"
	"sync"
)

// Type は通知の種別。
type Type string

const (
	// FetchStarted はバッチ取得の開始。
	FetchStarted Type = "fetch_started"
	// BatchLoaded はバッチ取得の成功（0件を含む）。
	BatchLoaded Type = "batch_loaded"
	// FetchFailed はバッチ取得の失敗。
	FetchFailed Type = "fetch_failed"
	// PositionChanged はカーソル位置の変化。
	PositionChanged Type = "position_changed"
	// SessionClosed はセッションの終了。
	SessionClosed Type = "session_closed"
)

// Event は1件の通知。
type Event struct {
	Type      Type
	SessionID string
	Position  int
	Total     int
	Err       error // FetchFailed の場合のみ
}

// Handler は通知を受け取る関数。
type Handler func(Event)

// Bus は購読者の登録と通知の配送を行う。
// Publishは呼び出し元のgoroutineで購読者を登録順に同期実行する。
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	order    []int
	nextID   int
	logger   *slog.Logger
}

// NewBus は新しいBusを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[int]Handler),
		logger:   logger,
	}
}

// Subscribe はhandlerを登録し、登録解除用の関数を返す。
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish はevを全購読者へ配送する。
// 購読者のpanicは回復してログに記録し、他の購読者への配送を継続する。
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, ev)
	}
}

func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("イベントハンドラでpanicが発生しました",
				slog.String("event_type", string(ev.Type)),
				slog.String("session_id", ev.SessionID),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	h(ev)
}
