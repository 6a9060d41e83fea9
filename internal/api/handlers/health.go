package handlers

import (
	"context"
	"net/http"
	"route-optimization-service/internal/api/dto"
	"route-optimization-service/internal/ports"
	"sort"
	"time"
)

// Health provides a minimal liveness check endpoint.
func Health(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	res := map[string]string{"status": "ok"}
	writeJSON(w, r, http.StatusOK, res)
}

// ConnectionHandler reports whether the travel-time provider and the backing
// stores are reachable. A failing check degrades the status but never fails the
// request, since the optimizer keeps working on the fallback.
type ConnectionHandler struct {
	Provider ports.TravelTimeProvider
	Checks   map[string]ports.HealthChecker
	Timeout  time.Duration
}

func (h *ConnectionHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	res := dto.ConnectionResponse{Status: "ok", Provider: "haversine", Checks: map[string]string{}}

	checks := make(map[string]ports.HealthChecker, len(h.Checks)+1)
	for name, c := range h.Checks {
		checks[name] = c
	}
	if h.Provider != nil {
		res.Provider = h.Provider.Name()
		if hc, ok := h.Provider.(ports.HealthChecker); ok {
			checks["provider"] = hc
		}
	} else {
		res.Checks["provider"] = "not configured"
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := checks[name].Ping(ctx)
		cancel()
		if err != nil {
			res.Status = "degraded"
			res.Checks[name] = "error: " + err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}

	writeJSON(w, r, http.StatusOK, res)
}
