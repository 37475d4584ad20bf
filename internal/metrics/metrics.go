// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベル
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// Recorder はメトリクス記録のインターフェース。
// ミドルウェア・サービス層・フォールバックから利用する。
type Recorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	RecordLogin(result string)
	RecordUpload(result string, bytes int)
	SetFallbackActive(active bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	logins         *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	fallback       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "despesas_http_requests_total",
			Help: "ルート・メソッド・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "despesas_http_request_duration_seconds",
			Help:    "ルート別のHTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "despesas_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "despesas_receipt_uploads_total",
			Help: "結果別の領収書アップロード数",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "despesas_receipt_upload_bytes_total",
			Help: "アップロードに成功した領収書の合計バイト数",
		}),
		fallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "despesas_storage_fallback_active",
			Help: "インメモリフォールバックで動作中なら1",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.logins,
		c.uploads,
		c.uploadBytes,
		c.fallback,
	)

	return c
}

// ObserveRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡す（IDごとにラベルが増えないように）。
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordUpload は領収書アップロードの結果を記録する。
func (c *Collector) RecordUpload(result string, bytes int) {
	c.uploads.WithLabelValues(result).Inc()
	if result == ResultSuccess && bytes > 0 {
		c.uploadBytes.Add(float64(bytes))
	}
}

// SetFallbackActive はフォールバック状態を記録する。
func (c *Collector) SetFallbackActive(active bool) {
	if active {
		c.fallback.Set(1)
		return
	}
	c.fallback.Set(0)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) RecordLogin(string)                                {}
func (Nop) RecordUpload(string, int)                          {}
func (Nop) SetFallbackActive(bool)                            {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
