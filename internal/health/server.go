// Package health serves the /health, /ready, and /metrics endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Readiness states reported by /ready.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// HealthChecker probes one component; a non-nil error marks it unhealthy.
type HealthChecker func(ctx context.Context) error

// DegradedChecker reports a functional-but-impaired condition, such as a
// subset of providers being unavailable. Degradation keeps /ready at 200.
type DegradedChecker func(ctx context.Context) (degraded bool, message string)

// HealthStatus is one component's result in the /ready response.
type HealthStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DegradedStatus is one degraded component in the /ready response.
type DegradedStatus struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Response is the JSON body of /health and /ready.
type Response struct {
	Status     string           `json:"status"`
	Components []HealthStatus   `json:"components,omitempty"`
	Degraded   []DegradedStatus `json:"degraded,omitempty"`
}

// Server hosts liveness, readiness, and Prometheus metrics on one port.
type Server struct {
	port    int
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	timeout time.Duration

	mu               sync.RWMutex
	checkers         map[string]HealthChecker
	degradedCheckers map[string]DegradedChecker
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTimeout bounds one /ready evaluation across all checkers.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.timeout = timeout }
}

// New builds a health server listening on port once started.
func New(port int, opts ...Option) *Server {
	s := &Server{
		port:             port,
		mux:              http.NewServeMux(),
		logger:           slog.Default(),
		timeout:          5 * time.Second,
		checkers:         make(map[string]HealthChecker),
		degradedCheckers: make(map[string]DegradedChecker),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", promhttp.Handler())
	return s
}

// RegisterChecker adds a readiness probe under name.
func (s *Server) RegisterChecker(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.logger.Debug("registered health checker", slog.String("name", name))
}

// RegisterDegradedChecker adds a degradation probe under name.
func (s *Server) RegisterDegradedChecker(name string, checker DegradedChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degradedCheckers[name] = checker
	s.logger.Debug("registered degraded checker", slog.String("name", name))
}

// handleHealth is pure liveness: the process is up and serving.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{Status: "healthy"})
}

// snapshotCheckers copies both checker maps so probes run without holding
// the lock, and returns their names sorted for stable response ordering.
func (s *Server) snapshotCheckers() (map[string]HealthChecker, []string, map[string]DegradedChecker, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkers := make(map[string]HealthChecker, len(s.checkers))
	checkerNames := make([]string, 0, len(s.checkers))
	for name, checker := range s.checkers {
		checkers[name] = checker
		checkerNames = append(checkerNames, name)
	}
	sort.Strings(checkerNames)

	degraded := make(map[string]DegradedChecker, len(s.degradedCheckers))
	degradedNames := make([]string, 0, len(s.degradedCheckers))
	for name, checker := range s.degradedCheckers {
		degraded[name] = checker
		degradedNames = append(degradedNames, name)
	}
	sort.Strings(degradedNames)

	return checkers, checkerNames, degraded, degradedNames
}

// handleReady runs every registered probe. Any failed health checker yields
// 503/not_ready; degradation alone stays 200 with status "degraded".
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checkers, checkerNames, degradedCheckers, degradedNames := s.snapshotCheckers()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var components []HealthStatus
	allHealthy := true
	for _, name := range checkerNames {
		status := HealthStatus{Name: name, Healthy: true}
		if err := checkers[name](ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			allHealthy = false
			s.logger.Warn("health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		}
		components = append(components, status)
	}

	var degradedList []DegradedStatus
	for _, name := range degradedNames {
		if degraded, message := degradedCheckers[name](ctx); degraded {
			degradedList = append(degradedList, DegradedStatus{Name: name, Message: message})
			s.logger.Debug("degraded state detected",
				slog.String("component", name),
				slog.String("message", message),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")

	resp := Response{Components: components, Degraded: degradedList}
	switch {
	case !allHealthy:
		resp.Status = StatusNotReady
		w.WriteHeader(http.StatusServiceUnavailable)
	case len(degradedList) > 0:
		resp.Status = StatusDegraded
		w.WriteHeader(http.StatusOK)
	default:
		resp.Status = StatusReady
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("health server starting", slog.Int("port", s.port))
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("health server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown drains the server. Safe to call before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
