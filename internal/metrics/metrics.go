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
// 認証サービスとHTTPミドルウェアから利用する。
type Collector struct {
	logins             *prometheus.CounterVec
	loginFailures      *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	devicePolls        *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberclock_logins_total",
			Help: "プロバイダー・フロー別のログイン成功数",
		}, []string{"provider", "flow"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberclock_login_failures_total",
			Help: "プロバイダー・理由別のログイン失敗数",
		}, []string{"provider", "reason"}),
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberclock_session_validations_total",
			Help: "結果別のセッション検証数",
		}, []string{"result"}),
		devicePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberclock_device_polls_total",
			Help: "プロバイダー・ステータス別のデバイスフローポーリング数",
		}, []string{"provider", "status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberclock_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyberclock_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.loginFailures,
		c.sessionValidations,
		c.devicePolls,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(provider, flow string) {
	c.logins.WithLabelValues(provider, flow).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider, reason string) {
	c.loginFailures.WithLabelValues(provider, reason).Inc()
}

// RecordSessionValidation はセッション検証の結果を記録する。
func (c *Collector) RecordSessionValidation(result string) {
	c.sessionValidations.WithLabelValues(result).Inc()
}

// RecordDevicePoll はデバイスフローのポーリング結果を記録する。
func (c *Collector) RecordDevicePoll(provider, status string) {
	c.devicePolls.WithLabelValues(provider, status).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
