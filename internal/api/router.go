package api

import (
	"net/http"
	"route-optimization-service/internal/api/handlers"
	"route-optimization-service/internal/platform/obs"
	"route-optimization-service/internal/ports"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP layer needs. Provider may be nil when the
// service runs on the haversine fallback only.
type Deps struct {
	Optimizer        handlers.RouteOptimizer
	Repo             ports.OrderRepository
	Provider         ports.TravelTimeProvider
	Checks           map[string]ports.HealthChecker
	BatchConcurrency int
	MaxBatch         int
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	optHandler := &handlers.OptimizeHandler{
		Optimizer:   d.Optimizer,
		MaxBatch:    d.MaxBatch,
		Concurrency: d.BatchConcurrency,
	}
	orderHandler := &handlers.OrderHandler{Repo: d.Repo}
	connHandler := &handlers.ConnectionHandler{Provider: d.Provider, Checks: d.Checks}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/v1/route-optimization/optimize", optHandler.Optimize)
	mux.HandleFunc("/api/v1/route-optimization/batch", optHandler.Batch)
	mux.HandleFunc("/api/v1/route-optimization/test-connection", connHandler.TestConnection)
	mux.HandleFunc("/api/v1/depots/{id}/orders", orderHandler.List)

	return requestIDMiddleware(loggingMiddleware(mux))
}
