// Package api exposes the engine's administrative HTTP surface: on-demand
// reconciliation, dry-run plans, per-provider pause/resume, orphan listing,
// and claim/release of provider-side records. Authentication is a single
// optional bearer token; rate limiting and asset serving are out of scope.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trafegodns/trafego/internal/cache"
	"github.com/trafegodns/trafego/internal/reconciler"
	"github.com/trafegodns/trafego/internal/scheduler"
	"github.com/trafegodns/trafego/internal/store"
	"github.com/trafegodns/trafego/pkg/provider"
)

// Server hosts the administrative API.
type Server struct {
	port      int
	token     string
	scheduler *scheduler.Scheduler
	rec       *reconciler.Reconciler
	store     *store.Store
	cache     *cache.Cache
	providers *provider.Registry
	logger    *slog.Logger

	mux    *http.ServeMux
	server *http.Server
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithToken requires a bearer token on every request. An empty token leaves
// the API unauthenticated (bind it to localhost in that case).
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// New creates an administrative API server on the given port.
func New(port int, sched *scheduler.Scheduler, rec *reconciler.Reconciler, st *store.Store, c *cache.Cache, providers *provider.Registry, opts ...Option) *Server {
	s := &Server{
		port:      port,
		scheduler: sched,
		rec:       rec,
		store:     st,
		cache:     c,
		providers: providers,
		logger:    slog.Default(),
		mux:       http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/reconcile", s.handleReconcileAll)
	s.mux.HandleFunc("POST /api/v1/resync", s.handleForceResync)
	s.mux.HandleFunc("POST /api/v1/providers/{id}/reconcile", s.handleReconcileProvider)
	s.mux.HandleFunc("GET /api/v1/providers/{id}/plan", s.handleDryRun)
	s.mux.HandleFunc("POST /api/v1/providers/{id}/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/v1/providers/{id}/resume", s.handleResume)
	s.mux.HandleFunc("GET /api/v1/providers/{id}/orphans", s.handleListOrphans)
	s.mux.HandleFunc("POST /api/v1/providers/{id}/records/{externalId}/claim", s.handleClaim)
	s.mux.HandleFunc("POST /api/v1/providers/{id}/records/{externalId}/release", s.handleRelease)
}

// Handler returns the server's handler with authentication applied.
// Exposed for tests and for embedding under an existing mux.
func (s *Server) Handler() http.Handler {
	return s.authenticate(s.mux)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("admin api server starting", slog.Int("port", s.port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin api server failed", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authenticate enforces the bearer token when one is configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// lookupProvider resolves the {id} path segment to a registered provider
// instance, writing a 404 when it does not exist.
func (s *Server) lookupProvider(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, ok := s.providers.Get(id); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown provider %q", id))
		return "", false
	}
	return id, true
}

func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.TriggerNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(result))
}

func (s *Server) handleForceResync(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.ForceResync(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(result))
}

func (s *Server) handleReconcileProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}

	result, err := s.scheduler.TriggerProviderNow(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(result))
}

func (s *Server) handleDryRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}

	result, err := s.scheduler.DryRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resultResponse(result))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}
	s.scheduler.Pause(id)
	writeJSON(w, http.StatusOK, map[string]any{"provider": id, "paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}
	s.scheduler.Resume(id)
	writeJSON(w, http.StatusOK, map[string]any{"provider": id, "paused": false})
}

// orphanEntry is the wire form of an orphaned managed record.
type orphanEntry struct {
	Provider   string    `json:"provider"`
	Hostname   string    `json:"hostname"`
	Type       string    `json:"type"`
	ExternalID string    `json:"external_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	OrphanedAt time.Time `json:"orphaned_at"`
	TrackedAt  time.Time `json:"tracked_at"`
}

func (s *Server) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}

	entries, err := s.store.List(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	orphans := make([]orphanEntry, 0)
	for _, e := range entries {
		if e.OrphanedAt == nil {
			continue
		}
		orphans = append(orphans, orphanEntry{
			Provider:   e.ProviderID,
			Hostname:   e.Hostname,
			Type:       string(e.Type),
			ExternalID: e.ExternalID,
			Source:     e.Source,
			OrphanedAt: *e.OrphanedAt,
			TrackedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider": id, "orphans": orphans})
}

// handleClaim transitions a discovered provider-side record into managed
// state: the record (identified by its external ID in the provider cache) is
// tracked in the managed store and its hostname pinned to this provider.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}
	externalID := r.PathValue("externalId")

	rec, found, err := s.cache.FindByExternalID(r.Context(), id, externalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %q not in provider cache; refresh first", externalID))
		return
	}

	fp := provider.Fingerprint(rec)
	if err := s.store.Track(r.Context(), id, rec.Hostname, rec.Type, externalID, fp, "claimed"); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.PinProvider(r.Context(), rec.Hostname, id, "claimed via admin api"); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("claimed record",
		slog.String("provider", id),
		slog.String("hostname", rec.Hostname),
		slog.String("type", string(rec.Type)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": id,
		"hostname": rec.Hostname,
		"type":     string(rec.Type),
		"managed":  true,
	})
}

// handleRelease reverses a claim: the record leaves the managed store and
// its hostname override is cleared, returning it to discovered state.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := s.lookupProvider(w, r)
	if !ok {
		return
	}
	externalID := r.PathValue("externalId")

	rec, found, err := s.cache.FindByExternalID(r.Context(), id, externalID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %q not in provider cache", externalID))
		return
	}

	if err := s.store.Untrack(r.Context(), id, rec.Hostname, rec.Type); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.ClearOverride(r.Context(), rec.Hostname); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("released record",
		slog.String("provider", id),
		slog.String("hostname", rec.Hostname),
		slog.String("type", string(rec.Type)),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": id,
		"hostname": rec.Hostname,
		"type":     string(rec.Type),
		"managed":  false,
	})
}

// planResponse is the wire form of a reconciliation result.
type planResponse struct {
	DryRun    bool         `json:"dry_run"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Deleted   int          `json:"deleted"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Duration  string       `json:"duration"`
	Actions   []planAction `json:"actions"`
	StartedAt time.Time    `json:"started_at"`
}

type planAction struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Hostname string `json:"hostname"`
	Record   string `json:"record_type,omitempty"`
	Target   string `json:"target,omitempty"`
	Error    string `json:"error,omitempty"`
}

func resultResponse(result *reconciler.Result) planResponse {
	resp := planResponse{
		DryRun:    result.DryRun,
		Created:   result.CreatedCount(),
		Updated:   result.UpdatedCount(),
		Deleted:   result.DeletedCount(),
		Failed:    result.FailedCount(),
		Skipped:   len(result.Skipped()),
		Duration:  result.Duration().String(),
		Actions:   make([]planAction, 0, len(result.Actions)),
		StartedAt: result.StartTime,
	}
	for _, a := range result.Actions {
		resp.Actions = append(resp.Actions, planAction{
			Type:     string(a.Type),
			Status:   string(a.Status),
			Provider: a.Provider,
			Hostname: a.Hostname,
			Record:   a.RecordType,
			Target:   a.Target,
			Error:    a.Error,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
