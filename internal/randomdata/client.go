// Package randomdata はランダムデータAPIから合成ユーザーのバッチを取得する。
// 1セッションにつき1回のGET呼び出しと、レスポンスの正規化を担う。
package randomdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/userdeck/internal/model"
)

const (
	// DefaultEndpoint はランダムユーザー取得APIのエンドポイント。
	DefaultEndpoint = "https://random-data-api.com/api/users/random_user"
	// DefaultBatchSize は1回に要求するレコード数の既定値。
	DefaultBatchSize = 80

	userAgent = "Userdeck/1.0"
)

// TextSanitizer は上流の文字列値を表示前に無害化するインターフェース。
type TextSanitizer interface {
	SanitizeText(s string) string
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	Endpoint    string        // 空の場合はDefaultEndpoint
	Timeout     time.Duration // 0以下の場合はタイムアウトなし
	MaxBodySize int64         // 0以下の場合は無制限
}

// Client はランダムデータAPIのクライアント。
// キャッシュもリトライも行わない。
type Client struct {
	httpClient  *http.Client
	sanitizer   TextSanitizer
	logger      *slog.Logger
	endpoint    string
	timeout     time.Duration
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// sanitizerがnilの場合は値をそのまま使用する。
func NewClient(httpClient *http.Client, sanitizer TextSanitizer, logger *slog.Logger, cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient:  httpClient,
		sanitizer:   sanitizer,
		logger:      logger,
		endpoint:    endpoint,
		timeout:     cfg.Timeout,
		maxBodySize: cfg.MaxBodySize,
	}
}

// FetchBatch はsize件のユーザーレコードを1回のGETで取得する。
// 返却件数はsize以下（上流が決める）で、受信順を保持する。0件は正常系。
// 失敗時は *model.FetchError を返す。失敗の報告は呼び出し側が行い、ここではDebugログのみ出す。
func (c *Client) FetchBatch(ctx context.Context, size int) ([]model.Record, error) {
	if size <= 0 {
		return nil, &model.FetchError{
			Kind: model.FetchErrorInvalidRequest,
			Err:  fmt.Errorf("batch size must be positive: %d", size),
		}
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &model.FetchError{
			Kind: model.FetchErrorInvalidRequest,
			Err:  fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err),
		}
	}
	q := reqURL.Query()
	q.Set("size", strconv.Itoa(size))
	reqURL.RawQuery = q.Encode()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, &model.FetchError{
			Kind: model.FetchErrorInvalidRequest,
			Err:  fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err),
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		c.logger.Debug("ランダムデータAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("error_kind", string(kind)),
			slog.Int("size", size),
		)
		return nil, &model.FetchError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	class := ClassifyHTTPStatus(resp.StatusCode)
	if class != StatusOK {
		c.logger.Debug("ランダムデータAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("status_class", class.String()),
			slog.Int("size", size),
		)
		return nil, &model.FetchError{
			Kind:       model.FetchErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ランダムデータAPIがステータス %d を返しました", resp.StatusCode),
		}
	}

	body, err := c.readBody(resp.Body)
	if err != nil {
		kind := model.FetchErrorDecode
		if classifyTransportError(err) == model.FetchErrorTimeout {
			kind = model.FetchErrorTimeout
		}
		c.logger.Debug("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, &model.FetchError{Kind: kind, Err: err}
	}

	records, err := DecodeRecords(body, c.sanitizer)
	if err != nil {
		c.logger.Debug("ランダムデータAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, &model.FetchError{Kind: model.FetchErrorDecode, Err: err}
	}

	// 上流が要求数を超えて返した場合は切り詰める
	if len(records) > size {
		records = records[:size]
	}

	c.logger.Info("ユーザーバッチを取得しました",
		slog.Int("size", size),
		slog.Int("record_count", len(records)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return records, nil
}

// readBody はレスポンスボディを最大サイズ制限付きで読み込む。
func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.maxBodySize <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", c.maxBodySize)
	}
	return body, nil
}

// classifyTransportError はHTTP呼び出しのエラーをタイムアウトとそれ以外に分類する。
func classifyTransportError(err error) model.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FetchErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FetchErrorTimeout
	}
	return model.FetchErrorNetwork
}
