package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-i2p/redispool/lib/pool"
	"github.com/go-i2p/redispool/version"
)

// StatusResponse is the JSON body of /api/status.
type StatusResponse struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	MaxSize          int    `json:"max_size"`
	NumOpen          int    `json:"num_open"`
	NumIdle          int    `json:"num_idle"`
	NumInUse         int    `json:"num_in_use"`
	AcquireCount     uint64 `json:"acquire_count"`
	AcquireSuccess   uint64 `json:"acquire_success"`
	AcquireFailed    uint64 `json:"acquire_failed"`
	ReleaseCount     uint64 `json:"release_count"`
	HealthCheckFails uint64 `json:"health_check_fails"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
}

// status builds the response both the API and the dashboard render.
func (s *Server) status() StatusResponse {
	st := s.provider.Stats()
	return StatusResponse{
		Name:             s.provider.Name(),
		State:            st.State.String(),
		MaxSize:          st.MaxSize,
		NumOpen:          st.NumOpen,
		NumIdle:          st.NumIdle,
		NumInUse:         st.NumInUse,
		AcquireCount:     st.AcquireCount,
		AcquireSuccess:   st.AcquireSuccess,
		AcquireFailed:    st.AcquireFailed,
		ReleaseCount:     st.ReleaseCount,
		HealthCheckFails: st.HealthCheckFails,
		Version:          version.Version,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
	}
}

// handleDashboard renders the pool dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	data := map[string]any{
		"Status": s.status(),
	}
	if err := s.provider.Ping(ctx); err != nil {
		log.WithError(err).Error("store ping failed")
		data["Error"] = "Store is not responding"
	}

	s.renderTemplate(w, "dashboard", data)
}

// API Handlers

// handleAPIStatus returns pool statistics as JSON.
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status())
}

// handleAPIHealth returns overall health, probing the store through the
// pool.
func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.provider.Ping(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleAPILiveness is the liveness probe: the process is up and serving.
func (s *Server) handleAPILiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAPIReadiness is the readiness probe: the pool is ready to serve
// commands.
func (s *Server) handleAPIReadiness(w http.ResponseWriter, r *http.Request) {
	st := s.provider.Stats()
	if st.State != pool.StateReady {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"state":  st.State.String(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
