package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeopt_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routeopt_http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)
	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routeopt_op_duration_seconds",
			Help:    "Duration of timed internal operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"op"},
	)
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeopt_optimizations_total", Help: "Optimization runs by solver status"},
		[]string{"status"},
	)
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeopt_provider_calls_total", Help: "Travel-time provider block calls"},
		[]string{"provider", "result"},
	)
	FallbackCells = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routeopt_fallback_cells_total", Help: "Matrix cells filled by the haversine fallback"},
	)
	MatrixCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeopt_matrix_cache_total", Help: "Matrix cache lookups"},
		[]string{"result"},
	)
	UnassignedOrders = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routeopt_unassigned_orders_total", Help: "Orders the solver could not place"},
	)

	registerOnce sync.Once
)

// RegisterDefault registers all collectors once. Collectors work unregistered,
// so tests never need to call it.
func RegisterDefault() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			HTTPRequests, HTTPDuration, OpDuration, Optimizations,
			ProviderCalls, FallbackCells, MatrixCache, UnassignedOrders,
		)
	})
}
