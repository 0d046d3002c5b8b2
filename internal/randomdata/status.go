package randomdata

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は成功（2xx）。
	StatusOK StatusClass = iota
	// StatusRateLimited はレート制限（429）。
	StatusRateLimited
	// StatusClientError はクライアントエラー（429以外の4xx）。
	StatusClientError
	// StatusServerError はサーバーエラー（5xx）。
	StatusServerError
	// StatusUnexpected は上記以外（1xx/3xx など）。
	StatusUnexpected
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == 429:
		return StatusRateLimited
	case statusCode >= 400 && statusCode < 500:
		return StatusClientError
	case statusCode >= 500 && statusCode < 600:
		return StatusServerError
	default:
		return StatusUnexpected
	}
}

// String はログ出力用の分類名を返す。
func (s StatusClass) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRateLimited:
		return "rate_limited"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	default:
		return "unexpected"
	}
}
