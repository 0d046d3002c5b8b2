package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/userdeck/internal/model"
)

func newTestRateLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	var buf bytes.Buffer
	rl := NewRateLimiter(cfg, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(method, target, remoteAddr string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remoteAddr
	return req
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:        2,
		GeneralBurst:       5,
		SessionCreateRate:  1,
		SessionCreateBurst: 10,
		CleanupInterval:    time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom(http.MethodGet, "/api/sessions/x", "203.0.113.1:5000"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:        0.5,
		GeneralBurst:       1,
		SessionCreateRate:  1,
		SessionCreateBurst: 1,
		CleanupInterval:    time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, requestFrom(http.MethodGet, "/api/sessions/x", "203.0.113.2:5000"))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", w1.Code, http.StatusOK)
	}

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, requestFrom(http.MethodGet, "/api/sessions/x", "203.0.113.2:5001"))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want %d", w2.Code, http.StatusTooManyRequests)
	}

	retry, err := strconv.Atoi(w2.Header().Get("Retry-After"))
	if err != nil {
		t.Fatalf("Retry-After header should be a number, got %q", w2.Header().Get("Retry-After"))
	}
	if retry != 2 {
		t.Errorf("Retry-After = %d, want 2", retry)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w2.Body).Decode(&body); err != nil {
		t.Fatalf("429 response should be JSON: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:        0.1,
		GeneralBurst:       1,
		SessionCreateRate:  0.1,
		SessionCreateBurst: 1,
		CleanupInterval:    time.Minute,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.1:1234"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.1:1234"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("client A second request: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom(http.MethodGet, "/", "198.51.100.2:1234"))
	if w.Code != http.StatusOK {
		t.Errorf("client B should not be limited: status = %d", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestSessionCreationRateLimit_IndependentFromGeneral(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:        10,
		GeneralBurst:       100,
		SessionCreateRate:  0.1,
		SessionCreateBurst: 1,
		CleanupInterval:    time.Minute,
	})
	create := rl.SessionCreationMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	create.ServeHTTP(w, requestFrom(http.MethodPost, "/api/sessions", "192.0.2.7:80"))
	if w.Code != http.StatusOK {
		t.Fatalf("first create: status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	create.ServeHTTP(w, requestFrom(http.MethodPost, "/api/sessions", "192.0.2.7:80"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second create: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom(http.MethodGet, "/api/sessions/x", "192.0.2.7:80"))
	if w.Code != http.StatusOK {
		t.Errorf("general request should not be limited: status = %d", w.Code)
	}
	if rl.SessionCreateLimiterCount() != 1 {
		t.Errorf("SessionCreateLimiterCount = %d, want 1", rl.SessionCreateLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:        1,
		GeneralBurst:       1,
		SessionCreateRate:  1,
		SessionCreateBurst: 1,
		CleanupInterval:    time.Hour,
	})
	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom(http.MethodGet, "/", "192.0.2.9:80"))

	rl.cleanup(time.Now().Add(time.Hour))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("entry within TTL should remain, got %d", rl.GeneralLimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", rl.GeneralLimiterCount())
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"203.0.113.5:4321", "203.0.113.5"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.5", "203.0.113.5"},
	}
	for _, tt := range tests {
		req := requestFrom(http.MethodGet, "/", tt.remote)
		if got := clientKey(req); got != tt.want {
			t.Errorf("clientKey(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 10)

	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.SessionCreateBurst != 10 {
		t.Errorf("SessionCreateBurst = %d, want 10", cfg.SessionCreateBurst)
	}
	if DefaultRateLimiterConfig() != cfg {
		t.Error("DefaultRateLimiterConfig should equal NewRateLimiterConfig(120, 10)")
	}
}

func TestNewRateLimiterConfig_NonPositiveFallsBackToDefault(t *testing.T) {
	def := DefaultRateLimiterConfig()

	cfg := NewRateLimiterConfig(0, -5)
	if cfg != def {
		t.Errorf("NewRateLimiterConfig(0, -5) = %+v, want defaults %+v", cfg, def)
	}

	// 片方だけ有効な場合はもう片方のみ既定値になる
	cfg = NewRateLimiterConfig(60, 0)
	if cfg.GeneralRate != 1 || cfg.GeneralBurst != 60 {
		t.Errorf("General = (%v, %d), want (1, 60)", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.SessionCreateRate != def.SessionCreateRate || cfg.SessionCreateBurst != def.SessionCreateBurst {
		t.Errorf("SessionCreate = (%v, %d), want defaults", cfg.SessionCreateRate, cfg.SessionCreateBurst)
	}
}

func TestRateLimiter_ZeroConfiguredLimitStillAllowsRequests(t *testing.T) {
	rl := newTestRateLimiter(t, NewRateLimiterConfig(0, 0))
	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom(http.MethodGet, "/", "192.0.2.1:1234"))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
