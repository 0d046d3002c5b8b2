package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/userdeck/internal/metrics"
)

var (
	// ErrInvalidSize はバッチサイズが許容範囲外の場合に返される。
	ErrInvalidSize = errors.New("session: invalid batch size")
	// ErrSessionLimit は保持中のセッション数が上限に達している場合に返される。
	ErrSessionLimit = errors.New("session: session limit reached")
)

// ManagerConfig はManagerの設定。
type ManagerConfig struct {
	DefaultSize int           // sizeが0の場合に使用するバッチサイズ
	MaxSize     int           // 許容する最大バッチサイズ
	MaxSessions int           // 同時に保持するセッション数の上限（0以下で無制限）
	TTL         time.Duration // 最終アクセスからの有効期間（0以下で無期限）
}

// Manager はHTTP経由で作成されたセッションをIDで保持する。
// セッションデータはメモリ上のみに置き、プロセス終了とともに破棄される。
type Manager struct {
	ctx      context.Context
	fetcher  BatchFetcher
	recorder FetchRecorder
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	config   ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager はManagerの新しいインスタンスを生成する。
// ctxは各セッションのフェッチの親コンテキストで、キャンセルすると実行中のフェッチも中断される。
func NewManager(
	ctx context.Context,
	fetcher BatchFetcher,
	recorder FetchRecorder,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	config ManagerConfig,
) *Manager {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Manager{
		ctx:      ctx,
		fetcher:  fetcher,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
		config:   config,
		sessions: make(map[string]*Session),
	}
}

// Create は新しいセッションを生成し、バッチ取得を開始する。
// sizeが0の場合はDefaultSizeを使用する。
func (m *Manager) Create(size int) (*Session, error) {
	if size == 0 {
		size = m.config.DefaultSize
	}
	if size < 1 || (m.config.MaxSize > 0 && size > m.config.MaxSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		m.logger.Warn("セッション数が上限に達しています",
			slog.Int("max_sessions", m.config.MaxSessions),
		)
		return nil, ErrSessionLimit
	}

	s := New(Options{
		ID:       uuid.NewString(),
		Size:     size,
		Fetcher:  m.fetcher,
		Metrics:  m.metrics,
		Recorder: m.recorder,
		Logger:   m.logger,
	})
	m.sessions[s.ID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(count)
	m.logger.Info("セッションを作成しました",
		slog.String("session_id", s.ID()),
		slog.Int("size", size),
	)

	if err := s.Start(m.ctx); err != nil {
		return nil, fmt.Errorf("failed to start session fetch: %w", err)
	}
	return s, nil
}

// Get は指定IDのセッションを返す。
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete は指定IDのセッションを終了して削除する。存在しない場合はfalseを返す。
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.metrics.SetActiveSessions(count)
	return true
}

// Sweep は最終アクセスからTTLを超過したセッションを終了して削除し、削除件数を返す。
func (m *Manager) Sweep(now time.Time) int {
	if m.config.TTL <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastAccess()) > m.config.TTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.metrics.SetActiveSessions(count)
	}
	return len(expired)
}

// Len は保持中のセッション数を返す。
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll は全セッションを終了して削除する。シャットダウン時に使用する。
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.metrics.SetActiveSessions(0)
}
