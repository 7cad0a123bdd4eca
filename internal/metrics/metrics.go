// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// ゲートウェイのバックエンド呼び出しとキャッシュの挙動を観測する。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	tokenRefresh     prometheus.Counter
	tokenRefreshFail prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	forcedLogouts    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceadmin_upstream_requests_total",
			Help: "バックエンドAPI呼び出しのメソッド・ステータス別合計数",
		}, []string{"method", "status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoiceadmin_upstream_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceadmin_token_refresh_total",
			Help: "アクセストークンのリフレッシュ成功の合計数",
		}),
		tokenRefreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceadmin_token_refresh_fail_total",
			Help: "アクセストークンのリフレッシュ失敗の合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceadmin_cache_hits_total",
			Help: "コレクションキャッシュのヒット合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceadmin_cache_misses_total",
			Help: "コレクションキャッシュのミス合計数",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceadmin_forced_logouts_total",
			Help: "アカウント停止・リフレッシュ失敗による強制ログアウトの合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.tokenRefresh,
		c.tokenRefreshFail,
		c.cacheHits,
		c.cacheMisses,
		c.forcedLogouts,
	)

	return c
}

// RecordUpstreamRequest はバックエンド呼び出し1回分を記録する。
func (c *Collector) RecordUpstreamRequest(method string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	if success {
		c.tokenRefresh.Inc()
	} else {
		c.tokenRefreshFail.Inc()
	}
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
