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

	// 仮押さえの総数（status: success, conflict, invalid_range, lock_failed, error）
	HoldsTotal *prometheus.CounterVec

	// 排他ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// アクティブな予約数（status: held, confirmed）
	ActiveReservations *prometheus.GaugeVec

	// 掃除により失効した予約の総数（reason: lease_elapsed, slot_past, payment_stale）
	ExpiredReservationsTotal *prometheus.CounterVec

	// 掃除1回あたりの処理時間
	SweepDuration prometheus.Histogram

	// 接続中の購読者数
	NotifierSubscribers prometheus.Gauge

	// 配信イベントの総数（type: slot_occupied, slot_freed, heartbeat）
	NotifierEventsTotal *prometheus.CounterVec
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
		HoldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "holds_total",
				Help: "Total number of hold attempts",
			},
			[]string{"status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		ActiveReservations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "active_reservations",
				Help: "Current number of active reservations",
			},
			[]string{"status"},
		),
		ExpiredReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expired_reservations_total",
				Help: "Total number of reservations expired by the sweeper",
			},
			[]string{"reason"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Time spent on a single expiry sweep",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		NotifierSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notifier_subscribers",
				Help: "Current number of connected event subscribers",
			},
		),
		NotifierEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_events_total",
				Help: "Total number of events fanned out to subscribers",
			},
			[]string{"type"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HoldsTotal,
		m.DistributedLockDuration,
		m.ActiveReservations,
		m.ExpiredReservationsTotal,
		m.SweepDuration,
		m.NotifierSubscribers,
		m.NotifierEventsTotal,
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
