package api

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// Version information, set at build time via ldflags.
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status        HealthStatus      `json:"status"`
	Timestamp     string            `json:"timestamp"`
	EngineVersion string            `json:"engine_version"`
	GitCommit     string            `json:"git_commit,omitempty"`
	BuildTime     string            `json:"build_time,omitempty"`
	Uptime        string            `json:"uptime"`
	GoVersion     string            `json:"go_version"`
	NumGoroutines int               `json:"num_goroutines"`
	PlayEnabled   bool              `json:"play_enabled"`
	FeedClients   int               `json:"feed_clients"`
	Checks        map[string]string `json:"checks,omitempty"`
}

func (s *Server) health() HealthResponse {
	resp := HealthResponse{
		Status:        HealthStatusHealthy,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		PlayEnabled:   s.session != nil,
	}
	if s.hub != nil {
		resp.FeedClients = s.hub.Clients()
	}
	return resp
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.health())
}

// handleReadiness also checks the database.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := s.health()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp.Checks = map[string]string{"database": "ok"}
	if err := s.store.Ping(ctx); err != nil {
		resp.Status = HealthStatusUnhealthy
		resp.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
