package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goversion "github.com/caarlos0/go-version"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/userdeck/internal/cli"
	"github.com/hitoshi/userdeck/internal/config"
	"github.com/hitoshi/userdeck/internal/database"
	"github.com/hitoshi/userdeck/internal/handler"
	"github.com/hitoshi/userdeck/internal/logger"
	"github.com/hitoshi/userdeck/internal/metrics"
	"github.com/hitoshi/userdeck/internal/middleware"
	"github.com/hitoshi/userdeck/internal/randomdata"
	"github.com/hitoshi/userdeck/internal/repository"
	"github.com/hitoshi/userdeck/internal/security"
	"github.com/hitoshi/userdeck/internal/session"
	"github.com/hitoshi/userdeck/internal/worker/cleanup"
)

// ビルド時に -ldflags "-X github.com/hitoshi/userdeck/internal/app.Version=..." で上書きする。
var (
	Version   = ""
	Commit    = ""
	TreeState = ""
	BuildDate = ""
	BuiltBy   = ""
)

const (
	appName        = "userdeck"
	appDescription = "Browse batches of synthetic user records one at a time."
	appURL         = "https://github.com/hitoshi/userdeck"
)

// stdout はversionコマンドと閲覧画面の出力先。
var stdout io.Writer = os.Stdout

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		// 設定が読めない場合でもエラーは構造化ログで出す
		logger.SetupDefault(w, slog.LevelInfo)
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と version は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandVersion:
		return runVersion(stdout)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandBrowse:
		return runBrowse(ctx, cfg, w)
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		l.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("port", cfg.ServerPort),
			slog.String("endpoint", cfg.RandomDataEndpoint),
		)
		return runServe(ctx, cfg, l)
	}
}

// newFetcher は設定に従って上流APIクライアントを構築する。
func newFetcher(cfg *config.Config, l *slog.Logger) (*randomdata.Client, error) {
	var httpClient *http.Client
	if cfg.SafeFetch {
		if err := security.ValidateEndpoint(cfg.RandomDataEndpoint); err != nil {
			return nil, fmt.Errorf("invalid RANDOM_DATA_ENDPOINT: %w", err)
		}
		httpClient = security.NewSafeClient(cfg.FetchTimeout)
	} else {
		l.Warn("SAFE_FETCH is disabled; outbound requests are not restricted")
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}

	return randomdata.NewClient(httpClient, security.NewTextSanitizer(), l, randomdata.ClientConfig{
		Endpoint:    cfg.RandomDataEndpoint,
		Timeout:     cfg.FetchTimeout,
		MaxBodySize: cfg.FetchMaxSize,
	}), nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	fetcher, err := newFetcher(cfg, l)
	if err != nil {
		return err
	}

	// 1. DB接続（任意）
	var (
		db       *sql.DB
		recorder session.FetchRecorder
		pruner   cleanup.FetchLogPruner
		lister   handler.FetchLogLister
		health   handler.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err = database.OpenAndPing(ctx, cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := repository.NewPostgresFetchLogRepo(db)
		recorder, pruner, lister, health = repo, repo, repo, db
		l.Info("database connection established")
	} else {
		l.Info("DATABASE_URL is empty; fetch logging disabled")
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. セッション管理
	manager := session.NewManager(ctx, fetcher, recorder, collector, l, session.ManagerConfig{
		DefaultSize: cfg.BatchSize,
		MaxSize:     cfg.BatchMaxSize,
		MaxSessions: cfg.SessionMax,
		TTL:         cfg.SessionTTL,
	})
	defer manager.CloseAll()

	// 4. クリーンアップジョブ
	job := cleanup.NewCleanupJob(manager, pruner, l)
	if cfg.LogRetentionDays > 0 {
		job.RetentionDays = cfg.LogRetentionDays
	}
	go job.Start(ctx, cfg.SessionSweepInterval)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSessionCreate), l,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            l,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Sessions:          manager,
		BatchMaxSize:      cfg.BatchMaxSize,
		FetchLogs:         lister,
		HealthChecker:     health,
		Gatherer:          reg,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
		// 長ポーリング（?wait=）の上限より長くする
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runBrowse はターミナル上の対話ブラウザーを起動する。
// 閲覧中のログは警告以上のみ出力する。
func runBrowse(ctx context.Context, cfg *config.Config, w io.Writer) error {
	level := logger.ParseLevel(cfg.LogLevel)
	if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	l := logger.Setup(w, level)

	fetcher, err := newFetcher(cfg, l)
	if err != nil {
		return err
	}

	rl, err := cli.NewReadline(cfg.HistoryFile, stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer rl.Close()

	factory := func(_ context.Context) (*session.Session, error) {
		return session.New(session.Options{
			ID:      uuid.NewString(),
			Size:    cfg.BatchSize,
			Fetcher: fetcher,
			Logger:  l,
		}), nil
	}

	browser := cli.NewBrowser(factory, stdout, l, cli.BrowserConfig{
		Width: cli.RuleWidth(os.Stdout),
	})
	return browser.Run(ctx, rl)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runVersion はビルド情報を出力する。
func runVersion(w io.Writer) error {
	_, err := fmt.Fprintln(w, buildVersion().String())
	return err
}

func buildVersion() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails(appName, appDescription, appURL),
		func(i *goversion.Info) {
			if Version != "" {
				i.GitVersion = Version
			}
			if Commit != "" {
				i.GitCommit = Commit
			}
			if TreeState != "" {
				i.GitTreeState = TreeState
			}
			if BuildDate != "" {
				i.BuildDate = BuildDate
			}
			if BuiltBy != "" {
				i.BuiltBy = BuiltBy
			}
		},
	)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
