package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the crawler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ListingsTotal      *prometheus.CounterVec
	PageErrorsTotal    *prometheus.CounterVec
	RegionErrorsTotal  *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
	NavigationDuration *prometheus.HistogramVec
	ReconnectsTotal    prometheus.Counter
	KeepaliveFailures  prometheus.Counter
	PoolHandles        prometheus.Gauge
	PoolInUse          prometheus.Gauge
	PoolWaiting        prometheus.Gauge
}

// New registers the crawler metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ListingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listings_total",
				Help: "Listings processed, by outcome.",
			},
			[]string{"site", "outcome"}, // inserted, existing, error, skipped
		),
		PageErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_page_errors_total",
				Help: "Result pages that could not be listed.",
			},
			[]string{"site"},
		),
		RegionErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_region_errors_total",
				Help: "Regions skipped because they could not be resolved or paged.",
			},
			[]string{"site"},
		),
		RetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Retry attempts, by retry site.",
			},
			[]string{"site"}, // connect, bootstrap, navigation
		),
		NavigationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_navigation_duration_seconds",
				Help:    "Duration of browser navigations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
			},
			[]string{"kind"}, // page, listing
		),
		ReconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "crawler_store_reconnects_total",
			Help: "Store reconnections after a lost connection.",
		}),
		KeepaliveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "crawler_store_keepalive_failures_total",
			Help: "Failed store keep-alive probes.",
		}),
		PoolHandles: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pool_handles",
			Help: "Browser tabs currently allocated.",
		}),
		PoolInUse: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pool_in_use",
			Help: "Browser tabs currently bound to a URL.",
		}),
		PoolWaiting: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pool_waiting",
			Help: "Reservations waiting for a free tab.",
		}),
	}
}

// IncListing counts one listing outcome.
func (m *Metrics) IncListing(site, outcome string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(site, outcome).Inc()
}

// IncPageError counts a failed result page.
func (m *Metrics) IncPageError(site string) {
	if m == nil {
		return
	}
	m.PageErrorsTotal.WithLabelValues(site).Inc()
}

// IncRegionError counts a skipped region.
func (m *Metrics) IncRegionError(site string) {
	if m == nil {
		return
	}
	m.RegionErrorsTotal.WithLabelValues(site).Inc()
}

// IncRetry counts a retry at the given retry site.
func (m *Metrics) IncRetry(site string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(site).Inc()
}

// ObserveNavigation records how long a navigation took.
func (m *Metrics) ObserveNavigation(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.NavigationDuration.WithLabelValues(kind).Observe(seconds)
}

// IncReconnect counts a store reconnection.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// IncKeepaliveFailure counts a failed keep-alive probe.
func (m *Metrics) IncKeepaliveFailure() {
	if m == nil {
		return
	}
	m.KeepaliveFailures.Inc()
}

// SetPool publishes the tab pool occupancy.
func (m *Metrics) SetPool(handles, inUse, waiting int) {
	if m == nil {
		return
	}
	m.PoolHandles.Set(float64(handles))
	m.PoolInUse.Set(float64(inUse))
	m.PoolWaiting.Set(float64(waiting))
}
