package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の結果（operation: create/cancel, result: success, duplicate, sold_out, ...）
	BookingsTotal *prometheus.CounterVec

	// 在庫カウンタの運用異常（kind: not_initialized, over_release, release_failed, compensation_failed）
	InventoryAnomaliesTotal *prometheus.CounterVec

	// 在庫カウンタと予約記録のずれ（concert_id, seat_type_id）
	InventoryDrift *prometheus.GaugeVec

	// イベント配信の結果（sink: redis/amqp, status: success/failed）
	EventsPublishedTotal *prometheus.CounterVec

	// 連携サービス呼び出し時間（target: concert/user, status: ok/timeout/not_found/unavailable）
	DependencyRequestDuration *prometheus.HistogramVec

	// スケジューラで無効化したコンサート数
	ConcertDeactivationsTotal prometheus.Counter

	// スイープ処理時間
	SweepDuration prometheus.Histogram

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking lifecycle operations by result",
			},
			[]string{"operation", "result"},
		),
		InventoryAnomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_anomalies_total",
				Help: "Operational anomalies detected on the seat inventory counter",
			},
			[]string{"kind"},
		),
		InventoryDrift: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inventory_drift",
				Help: "Live counter minus (capacity - active bookings)",
			},
			[]string{"concert_id", "seat_type_id"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Booking events published by sink and status",
			},
			[]string{"sink", "status"},
		),
		DependencyRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dependency_request_duration_seconds",
				Help:    "Outbound service call latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"target", "status"},
		),
		ConcertDeactivationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "concert_deactivations_total",
				Help: "Concerts deactivated by the start-time scheduler",
			},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deactivation_sweep_duration_seconds",
				Help:    "Time spent on one deactivation sweep",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.InventoryAnomaliesTotal,
		m.InventoryDrift,
		m.EventsPublishedTotal,
		m.DependencyRequestDuration,
		m.ConcertDeactivationsTotal,
		m.SweepDuration,
		m.DistributedLockDuration,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
