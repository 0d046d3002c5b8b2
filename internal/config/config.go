package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint はランダムユーザーAPIの既定のエンドポイント。
const DefaultEndpoint = "https://random-data-api.com/api/users/random_user"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream
	RandomDataEndpoint string
	BatchSize          int
	BatchMaxSize       int

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64
	SafeFetch    bool

	// Session
	SessionTTL           time.Duration
	SessionMax           int
	SessionSweepInterval time.Duration

	// Rate Limit
	RateLimitGeneral       int
	RateLimitSessionCreate int

	// Database（空の場合はフェッチ記録を無効化）
	DatabaseURL string

	// Logging
	LogRetentionDays int
	LogLevel         string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Browse
	HistoryFile string
}

// Load は環境変数からConfigを読み込む。
// 不正な値は既定値にフォールバックする。値の整合性はValidateで検証する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.RandomDataEndpoint = getEnvString("RANDOM_DATA_ENDPOINT", DefaultEndpoint)
	cfg.BatchSize = getEnvInt("BATCH_SIZE", 80)
	cfg.BatchMaxSize = getEnvInt("BATCH_MAX_SIZE", 100)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.SafeFetch = getEnvBool("SAFE_FETCH", true)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 30*time.Minute)
	cfg.SessionMax = getEnvInt("SESSION_MAX", 1000)
	cfg.SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSessionCreate = getEnvInt("RATE_LIMIT_SESSION_CREATE", 10)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LogRetentionDays = getEnvInt("LOG_RETENTION_DAYS", 14)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.HistoryFile = os.Getenv("HISTORY_FILE")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var problems []string

	if c.BatchMaxSize < 1 {
		problems = append(problems, fmt.Sprintf("BATCH_MAX_SIZE must be positive: %d", c.BatchMaxSize))
	}
	if c.BatchSize < 1 || c.BatchSize > c.BatchMaxSize {
		problems = append(problems, fmt.Sprintf("BATCH_SIZE must be between 1 and %d: %d", c.BatchMaxSize, c.BatchSize))
	}
	u, err := url.Parse(c.RandomDataEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("RANDOM_DATA_ENDPOINT is not a valid http(s) URL: %q", c.RandomDataEndpoint))
	}
	if c.FetchTimeout <= 0 {
		problems = append(problems, "FETCH_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		problems = append(problems, "SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.RateLimitGeneral < 1 {
		problems = append(problems, fmt.Sprintf("RATE_LIMIT_GENERAL must be positive: %d", c.RateLimitGeneral))
	}
	if c.RateLimitSessionCreate < 1 {
		problems = append(problems, fmt.Sprintf("RATE_LIMIT_SESSION_CREATE must be positive: %d", c.RateLimitSessionCreate))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
