// Package web provides a browser-facing status server for a running
// pool. It serves an HTML dashboard, JSON API endpoints for
// programmatic access, health probes and Prometheus metrics.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-i2p/redispool/lib/metrics"
)

//go:embed templates/*.html
var content embed.FS

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	provider   StatsProvider
	templates  *template.Template
	started    time.Time
	mu         sync.RWMutex
	running    bool
}

// Config holds status server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:9121")
	ListenAddr string
}

// New creates a status server reporting on the given provider.
// When the server is no longer needed, call Stop() to release resources.
func New(cfg Config, provider StatsProvider) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("web: nil stats provider")
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		provider:  provider,
		templates: tmpl,
		started:   time.Now(),
	}

	mux := http.NewServeMux()

	// HTML pages
	mux.HandleFunc("GET /", s.handleDashboard)

	// API endpoints
	mux.HandleFunc("GET /api/status", s.handleAPIStatus)

	// Health check endpoints
	mux.HandleFunc("GET /api/health", s.handleAPIHealth)
	mux.HandleFunc("GET /health", s.handleAPIHealth)
	mux.HandleFunc("GET /healthz", s.handleAPILiveness)
	mux.HandleFunc("GET /readyz", s.handleAPIReadiness)

	// Metrics endpoint (Prometheus format)
	mux.Handle("GET /metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.withMiddleware(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Start starts the status server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}

	log.WithField("addr", s.httpServer.Addr).Debug("status server started")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("status server error")
		}
	}()

	return nil
}

// Stop stops the status server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Debug("status server stopped")
	return nil
}

// withMiddleware wraps the handler with common middleware.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		next.ServeHTTP(w, r)

		log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("duration", time.Since(start)).
			Debug("request served")
	})
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"percent": func(part, whole int) int {
			if whole <= 0 {
				return 0
			}
			return part * 100 / whole
		},
		"json": func(v any) string {
			b, _ := json.Marshal(v)
			return string(b)
		},
	}
}

// renderTemplate renders a template with common data.
func (s *Server) renderTemplate(w http.ResponseWriter, name string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}

	data["CurrentPage"] = name

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name+".html", data); err != nil {
		log.WithError(err).WithField("template", name).Error("template error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("json encode error")
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
