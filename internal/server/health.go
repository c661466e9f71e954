// health.go - Liveness and dependency health checks.
package server

import (
	"context"
	"net/http"
	"time"
)

type componentHealth struct {
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	LatencyMs float64 `json:"latency_ms"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]componentHealth `json:"components"`
}

// healthHandler handles GET /health with per-component status for the
// database and object storage.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: map[string]componentHealth{},
	}

	resp.Components["database"] = s.checkDatabase(r.Context())
	resp.Components["storage"] = s.checkStorage(r.Context())

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != "up" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) checkDatabase(ctx context.Context) componentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.PingContext(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		return componentHealth{Status: "down", Message: err.Error(), LatencyMs: latency}
	}
	return componentHealth{Status: "up", LatencyMs: latency}
}

func (s *Server) checkStorage(ctx context.Context) componentHealth {
	start := time.Now()
	err := s.store.Healthy(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		return componentHealth{Status: "down", Message: err.Error(), LatencyMs: latency}
	}
	return componentHealth{Status: "up", LatencyMs: latency}
}
