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
// カタログ検索、タグ生成、HTTPハンドラーから利用する。
type MetricsCollector interface {
	RecordSearchSuccess(provider string)
	RecordSearchFailure(provider string, reason string)
	RecordProviderLatency(provider string, duration time.Duration)
	RecordTagSuccess()
	RecordTagFallback(reason string)
	RecordHTTPStatus(statusCode int)
	RecordEntryCreated(mediaType string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searchSuccess   *prometheus.CounterVec
	searchFail      *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	tagSuccess      prometheus.Counter
	tagFallback     *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	entryCreated    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nua_search_success_total",
			Help: "プロバイダー別のカタログ検索成功の合計数",
		}, []string{"provider"}),
		searchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nua_search_fail_total",
			Help: "プロバイダー別のカタログ検索失敗の合計数",
		}, []string{"provider", "reason"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nua_provider_latency_seconds",
			Help:    "外部プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		tagSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nua_tag_success_total",
			Help: "ムードタグ生成成功の合計数",
		}),
		tagFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nua_tag_fallback_total",
			Help: "ムードタグ生成のフォールバック発生数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nua_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		entryCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nua_entry_created_total",
			Help: "作成された記録の種別ごとの合計数",
		}, []string{"media_type"}),
	}

	reg.MustRegister(
		c.searchSuccess,
		c.searchFail,
		c.providerLatency,
		c.tagSuccess,
		c.tagFallback,
		c.httpStatus,
		c.entryCreated,
	)

	return c
}

// RecordSearchSuccess はカタログ検索成功を記録する。
func (c *Collector) RecordSearchSuccess(provider string) {
	c.searchSuccess.WithLabelValues(provider).Inc()
}

// RecordSearchFailure はカタログ検索失敗を記録する。
func (c *Collector) RecordSearchFailure(provider string, reason string) {
	c.searchFail.WithLabelValues(provider, reason).Inc()
}

// RecordProviderLatency はプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(provider string, duration time.Duration) {
	c.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTagSuccess はタグ生成成功を記録する。
func (c *Collector) RecordTagSuccess() {
	c.tagSuccess.Inc()
}

// RecordTagFallback はタグ生成のフォールバックを記録する。
func (c *Collector) RecordTagFallback(reason string) {
	c.tagFallback.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordEntryCreated は記録の作成を種別つきで記録する。
func (c *Collector) RecordEntryCreated(mediaType string) {
	c.entryCreated.WithLabelValues(mediaType).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
