package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func newTestManager(f BatchFetcher, cfg ManagerConfig) *Manager {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewManager(context.Background(), f, nil, nil, logger, cfg)
}

func TestManager_Create_UsesDefaultSize(t *testing.T) {
	f := &stubFetcher{records: records(1)}
	m := newTestManager(f, ManagerConfig{DefaultSize: 80, MaxSize: 100})

	s, err := m.Create(0)
	if err != nil {
		t.Fatalf("Create がエラーを返した: %v", err)
	}
	waitDone(t, s)

	if f.sizes[0] != 80 {
		t.Errorf("要求サイズ = %d, want 80", f.sizes[0])
	}
	if got, ok := m.Get(s.ID()); !ok || got != s {
		t.Error("作成したセッションを Get で取得できるべき")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestManager_Create_InvalidSize(t *testing.T) {
	m := newTestManager(&stubFetcher{}, ManagerConfig{DefaultSize: 80, MaxSize: 100})

	for _, size := range []int{-1, 101} {
		if _, err := m.Create(size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Create(%d) = %v, want ErrInvalidSize", size, err)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestManager_Create_SessionLimit(t *testing.T) {
	m := newTestManager(&stubFetcher{}, ManagerConfig{DefaultSize: 1, MaxSize: 10, MaxSessions: 1})

	if _, err := m.Create(1); err != nil {
		t.Fatalf("1件目の Create がエラーを返した: %v", err)
	}
	if _, err := m.Create(1); !errors.Is(err, ErrSessionLimit) {
		t.Errorf("2件目の Create = %v, want ErrSessionLimit", err)
	}
}

func TestManager_Delete_ClosesSession(t *testing.T) {
	m := newTestManager(&stubFetcher{}, ManagerConfig{DefaultSize: 1, MaxSize: 10})
	s, _ := m.Create(1)

	if !m.Delete(s.ID()) {
		t.Fatal("Delete は true を返すべき")
	}
	if !s.Closed() {
		t.Error("削除したセッションは終了済みであるべき")
	}
	if m.Delete(s.ID()) {
		t.Error("2回目の Delete は false を返すべき")
	}
	if _, ok := m.Get(s.ID()); ok {
		t.Error("削除後は Get で取得できてはならない")
	}
}

func TestManager_Sweep_RemovesIdleSessions(t *testing.T) {
	m := newTestManager(&stubFetcher{}, ManagerConfig{DefaultSize: 1, MaxSize: 10, TTL: time.Minute})
	s, _ := m.Create(1)

	if n := m.Sweep(time.Now()); n != 0 {
		t.Errorf("期限内のセッションが削除された: %d", n)
	}
	if n := m.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if !s.Closed() {
		t.Error("期限切れセッションは終了済みであるべき")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestManager_CloseAll(t *testing.T) {
	m := newTestManager(&stubFetcher{}, ManagerConfig{DefaultSize: 1, MaxSize: 10})
	a, _ := m.Create(1)
	b, _ := m.Create(1)

	m.CloseAll()

	if !a.Closed() || !b.Closed() {
		t.Error("全セッションが終了済みであるべき")
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}
