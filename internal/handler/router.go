package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/userdeck/internal/metrics"
	"github.com/hitoshi/userdeck/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// セッション
	Sessions     SessionStore
	BatchMaxSize int

	// 運用（nilの場合はエンドポイントを公開しない、またはチェックを省略する）
	FetchLogs     FetchLogLister
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Logger).ServeHTTP)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	sessionHandler := NewSessionHandler(deps.Sessions, deps.Logger, deps.BatchMaxSize)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/sessions", func(r chi.Router) {
			// POST /api/sessions - 上流APIへのリクエストを伴うため専用のレート制限を追加
			r.With(deps.RateLimiter.SessionCreationMiddleware()).Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/advance", sessionHandler.Advance)
				r.Post("/retreat", sessionHandler.Retreat)
			})
		})

		if deps.FetchLogs != nil {
			r.Get("/api/fetch-logs", NewFetchLogHandler(deps.FetchLogs, deps.Logger).List)
		}
	})

	return r
}
