// Package session は1回のバッチ取得とその閲覧カーソルを所有するセッションを提供する。
// セッションは上位の制御フロー（HTTPハンドラーやCLI）が明示的に保持し、
// 状態変化はevent.Busで購読者に通知する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/userdeck/internal/cursor"
	"github.com/hitoshi/userdeck/internal/event"
	"github.com/hitoshi/userdeck/internal/metrics"
	"github.com/hitoshi/userdeck/internal/model"
)

var (
	// ErrAlreadyStarted はフェッチが既に開始済みの場合に返される。
	ErrAlreadyStarted = errors.New("session: fetch already started")
	// ErrClosed は終了済みセッションへの操作で返される。
	ErrClosed = errors.New("session: closed")
)

// BatchFetcher はレコードのバッチ取得のインターフェース。
type BatchFetcher interface {
	FetchBatch(ctx context.Context, size int) ([]model.Record, error)
}

// FetchRecorder はフェッチ結果の運用記録のインターフェース。
type FetchRecorder interface {
	RecordFetch(ctx context.Context, log *model.FetchLog) error
}

// Options はSessionの生成パラメータ。
type Options struct {
	ID       string
	Size     int
	Fetcher  BatchFetcher
	Bus      *event.Bus               // nilの場合は新規に生成する
	Metrics  metrics.MetricsCollector // nilの場合は記録しない
	Recorder FetchRecorder            // nilの場合は記録しない
	Logger   *slog.Logger             // nilの場合はslog.Default()
}

// Session はレコード列とカーソルを所有する閲覧セッション。
// フェッチは1セッションにつき高々1回しか実行されない。
type Session struct {
	id       string
	size     int
	fetcher  BatchFetcher
	bus      *event.Bus
	metrics  metrics.MetricsCollector
	recorder FetchRecorder
	logger   *slog.Logger

	mu         sync.Mutex
	cursor     *cursor.Cursor
	status     model.FetchStatus
	fetchErr   error
	started    bool
	closed     bool
	cancel     context.CancelFunc
	createdAt  time.Time
	lastAccess time.Time

	done     chan struct{}
	doneOnce sync.Once
}

// New はフェッチ前（EMPTY状態）のSessionを生成する。
func New(opts Options) *Session {
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus(opts.Logger)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Session{
		id:         opts.ID,
		size:       opts.Size,
		fetcher:    opts.Fetcher,
		bus:        bus,
		metrics:    m,
		recorder:   opts.Recorder,
		logger:     logger.With(slog.String("session_id", opts.ID)),
		cursor:     cursor.New(),
		status:     model.FetchStatusIdle,
		createdAt:  now,
		lastAccess: now,
		done:       make(chan struct{}),
	}
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Bus は状態変化の通知先を返す。
func (s *Session) Bus() *event.Bus {
	return s.bus
}

// Done はフェッチが決着（成功・失敗）するか、セッションが終了するとcloseされるチャネルを返す。
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start はバッチ取得をバックグラウンドで開始する。
// ctxはフェッチの親コンテキストで、リクエスト単位ではなくセッションより長く生存するものを渡す。
// 2回目以降の呼び出しはErrAlreadyStartedを返し、重複したリクエストは送信しない。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.status = model.FetchStatusPending
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.FetchStarted, SessionID: s.id})

	go s.run(fetchCtx)
	return nil
}

// run はフェッチを実行し、結果をセッションに反映する。
// セッション終了後に届いた結果は破棄する。
func (s *Session) run(ctx context.Context) {
	defer s.finish()

	start := time.Now()
	records, err := s.fetcher.FetchBatch(ctx, s.size)
	duration := time.Since(start)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Info("終了済みセッションのフェッチ結果を破棄しました",
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return
	}
	s.cancel()
	if err != nil {
		s.status = model.FetchStatusFailed
		s.fetchErr = err
	} else {
		s.cursor.SetBatch(records)
		s.status = model.FetchStatusLoaded
	}
	total := s.cursor.Len()
	s.mu.Unlock()

	s.metrics.RecordFetchLatency(duration)
	s.recordFetch(ctx, len(records), err, duration)

	if err != nil {
		kind := string(model.FetchErrorNetwork)
		if fe, ok := model.AsFetchError(err); ok {
			kind = string(fe.Kind)
			if fe.StatusCode != 0 {
				s.metrics.RecordHTTPStatus(fe.StatusCode)
			}
		}
		s.metrics.RecordFetchFailure(kind)
		s.logger.Error("ユーザーバッチの取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("error_kind", kind),
			slog.Int("size", s.size),
		)
		s.bus.Publish(event.Event{Type: event.FetchFailed, SessionID: s.id, Err: err})
		return
	}

	s.metrics.RecordHTTPStatus(200)
	s.metrics.RecordFetchSuccess(total)
	s.logger.Info("セッションにユーザーバッチを設定しました",
		slog.Int("record_count", total),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	s.bus.Publish(event.Event{Type: event.BatchLoaded, SessionID: s.id, Position: 0, Total: total})
}

// recordFetch はフェッチ結果を運用記録として保存する。保存失敗はログのみ。
func (s *Session) recordFetch(ctx context.Context, count int, fetchErr error, duration time.Duration) {
	if s.recorder == nil {
		return
	}
	entry := &model.FetchLog{
		SessionID:     s.id,
		RequestedSize: s.size,
		RecordCount:   count,
		Status:        model.FetchStatusLoaded,
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if fetchErr != nil {
		entry.Status = model.FetchStatusFailed
		entry.RecordCount = 0
		if fe, ok := model.AsFetchError(fetchErr); ok {
			entry.ErrorKind = string(fe.Kind)
			entry.HTTPStatus = fe.StatusCode
		}
	}
	// フェッチ用コンテキストは終了済みのため、キャンセルを引き継がない
	if err := s.recorder.RecordFetch(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("フェッチ記録の保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Close はセッションを終了する。実行中のフェッチはキャンセルされ、結果は破棄される。
// 2回目以降の呼び出しは何もしない。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.finish()
	s.bus.Publish(event.Event{Type: event.SessionClosed, SessionID: s.id})
}

// Advance はカーソルを1つ進める。レコードが無い場合や終了済みの場合は何もしない。
func (s *Session) Advance() {
	s.move("advance", (*cursor.Cursor).Advance)
}

// Retreat はカーソルを1つ戻す。レコードが無い場合や終了済みの場合は何もしない。
func (s *Session) Retreat() {
	s.move("retreat", (*cursor.Cursor).Retreat)
}

func (s *Session) move(direction string, step func(*cursor.Cursor)) {
	s.mu.Lock()
	s.lastAccess = time.Now()
	if s.closed || s.cursor.State() == cursor.StateEmpty {
		s.mu.Unlock()
		return
	}
	step(s.cursor)
	position, total := s.cursor.Position(), s.cursor.Len()
	s.mu.Unlock()

	s.metrics.RecordNavigation(direction)
	s.bus.Publish(event.Event{
		Type:      event.PositionChanged,
		SessionID: s.id,
		Position:  position,
		Total:     total,
	})
}

// Current は現在位置のレコードを返す。レコードが無い場合はfalseを返す。
func (s *Session) Current() (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Current()
}

// Status はフェッチの進行状況を返す。
func (s *Session) Status() model.FetchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err はフェッチ失敗時のエラーを返す。失敗していない場合はnil。
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

// Closed はセッションが終了済みかを返す。
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LastAccess は最後に閲覧・操作された時刻を返す。
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
