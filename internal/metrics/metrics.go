// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッション層とセッションマネージャから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(recordCount int)
	RecordFetchFailure(kind string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordNavigation(direction string)
	SetActiveSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess   prometheus.Counter
	fetchFail      *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	recordsFetched prometheus.Counter
	navigation     *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userdeck_fetch_success_total",
			Help: "バッチ取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_fetch_fail_total",
			Help: "原因別のバッチ取得失敗の合計数",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_upstream_http_status_total",
			Help: "上流APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userdeck_fetch_latency_seconds",
			Help:    "バッチ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userdeck_records_fetched_total",
			Help: "取得したレコードの合計数",
		}),
		navigation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userdeck_navigation_total",
			Help: "方向別のカーソル移動操作数",
		}, []string{"direction"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userdeck_active_sessions",
			Help: "保持中のセッション数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.recordsFetched,
		c.navigation,
		c.activeSessions,
	)

	return c
}

// RecordFetchSuccess はバッチ取得成功と取得件数を記録する。
func (c *Collector) RecordFetchSuccess(recordCount int) {
	c.fetchSuccess.Inc()
	c.recordsFetched.Add(float64(recordCount))
}

// RecordFetchFailure はバッチ取得失敗を原因別に記録する。
func (c *Collector) RecordFetchFailure(kind string) {
	c.fetchFail.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はバッチ取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordNavigation はカーソル移動操作を記録する。
func (c *Collector) RecordNavigation(direction string) {
	c.navigation.WithLabelValues(direction).Inc()
}

// SetActiveSessions は保持中のセッション数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス不要の実行モード（browse）で使用する。
type Nop struct{}

func (Nop) RecordFetchSuccess(int)           {}
func (Nop) RecordFetchFailure(string)        {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordNavigation(string)          {}
func (Nop) SetActiveSessions(int)            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
