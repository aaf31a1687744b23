// Package scheduler owns the control plane around the reconciler: the
// periodic tick that drives eventual consistency, debounced coalescing of
// event-driven triggers (Docker events, file discovery), and the
// administrative switches (pause/resume, forced full
// resync, on-demand single-provider reconciliation) that the HTTP API in
// internal/api exposes.
//
// It deliberately does not own any provider or record logic; it only
// decides *when* to call into the reconciler and scopes *which* provider a
// given call applies to. All state about what changed belongs to
// internal/reconciler.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trafegodns/trafego/internal/reconciler"
)

// Config holds scheduler timing configuration.
type Config struct {
	// Interval is the period between full reconciliation runs. Zero
	// disables the periodic tick (only event-driven and administrative
	// triggers run reconciliation).
	Interval time.Duration

	// DebounceInterval coalesces rapid-fire triggers (e.g. a burst of
	// Docker events during a rolling deployment) into a single
	// reconciliation run, the same way the Docker watcher debounces events
	// before calling the scheduler in the first place.
	DebounceInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:         60 * time.Second,
		DebounceInterval: 2 * time.Second,
	}
}

// Scheduler drives the reconciler on a schedule and in response to ad-hoc
// triggers, coalescing bursts of the latter via debounce timers.
type Scheduler struct {
	rec    *reconciler.Reconciler
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	global   *time.Timer            // debounce timer for the next all-providers cycle
	scoped   map[string]*time.Timer // debounce timer per provider-scoped cycle
	triggerC chan triggerRequest
}

type triggerRequest struct {
	providerID string // empty means every provider
	immediate  bool   // bypasses debounce
}

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithConfig sets the scheduler's timing configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.config = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler driving rec.
func New(rec *reconciler.Reconciler, opts ...Option) *Scheduler {
	s := &Scheduler{
		rec:      rec,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		scoped:   make(map[string]*time.Timer),
		triggerC: make(chan triggerRequest, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the periodic tick and the debounce-coalescing loop. It is
// non-blocking; call Stop to halt it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.tickLoop(ctx)
	}

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("debounce", s.config.DebounceInterval),
	)
	return nil
}

// Stop halts the scheduler, waiting for in-flight debounce timers to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.global != nil {
		s.global.Stop()
		s.global = nil
	}
	for id, t := range s.scoped {
		t.Stop()
		delete(s.scoped, id)
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Debug("periodic reconciliation triggered", slog.Duration("interval", s.config.Interval))
			s.Trigger()
		}
	}
}

// loop serializes every debounce expiry through a single goroutine.
// Administrative calls (TriggerNow, TriggerProviderNow, DryRun) run on the
// caller's goroutine instead; the reconciler's run mutex keeps any two
// cycles from overlapping.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.triggerC:
			s.runTrigger(ctx, req)
		}
	}
}

func (s *Scheduler) runTrigger(ctx context.Context, req triggerRequest) {
	if req.providerID == "" {
		result, err := s.rec.Reconcile(ctx)
		if err != nil {
			s.logger.Error("reconciliation failed", slog.String("error", err.Error()))
			return
		}
		logResult(s.logger, "", result)
		return
	}
	result, err := s.rec.ReconcileProvider(ctx, req.providerID)
	if err != nil {
		s.logger.Error("provider reconciliation failed",
			slog.String("provider", req.providerID),
			slog.String("error", err.Error()),
		)
		return
	}
	logResult(s.logger, req.providerID, result)
}

func logResult(logger *slog.Logger, providerID string, result *reconciler.Result) {
	logger.Info("reconciliation complete",
		slog.String("provider", providerID),
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("deleted", result.DeletedCount()),
		slog.Int("skipped", len(result.Skipped())),
		slog.Int("failed", result.FailedCount()),
		slog.Duration("duration", result.Duration()),
	)
}

// Trigger debounces a full, all-providers reconciliation cycle. Called by
// event sources (Docker watcher, file watcher) and by the periodic tick.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.global != nil {
		s.global.Stop()
	}
	s.global = time.AfterFunc(s.config.DebounceInterval, func() {
		s.enqueue(triggerRequest{})
	})
}

// TriggerProvider debounces a reconciliation cycle scoped to a single
// provider.
func (s *Scheduler) TriggerProvider(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if t, ok := s.scoped[providerID]; ok {
		t.Stop()
	}
	s.scoped[providerID] = time.AfterFunc(s.config.DebounceInterval, func() {
		s.enqueue(triggerRequest{providerID: providerID})
	})
}

// TriggerNow immediately runs a full reconciliation cycle, bypassing
// debounce. Used for the initial reconciliation at startup and for the
// administrative `reconcileNow()` (no providerId) request.
func (s *Scheduler) TriggerNow(ctx context.Context) (*reconciler.Result, error) {
	s.cancelPending("")
	return s.rec.Reconcile(ctx)
}

// TriggerProviderNow immediately runs a reconciliation cycle scoped to
// providerID, bypassing debounce. Used for the administrative
// `reconcileNow(providerId)` request.
func (s *Scheduler) TriggerProviderNow(ctx context.Context, providerID string) (*reconciler.Result, error) {
	s.cancelPending(providerID)
	return s.rec.ReconcileProvider(ctx, providerID)
}

func (s *Scheduler) cancelPending(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if providerID == "" {
		if s.global != nil {
			s.global.Stop()
			s.global = nil
		}
		return
	}
	if t, ok := s.scoped[providerID]; ok {
		t.Stop()
		delete(s.scoped, providerID)
	}
}

func (s *Scheduler) enqueue(req triggerRequest) {
	select {
	case s.triggerC <- req:
	default:
		s.logger.Warn("scheduler trigger queue full, dropping request",
			slog.String("provider", req.providerID),
		)
	}
}

// ForceResync arms a one-shot forced full resync and immediately triggers a
// full reconciliation cycle to apply it.
func (s *Scheduler) ForceResync(ctx context.Context) (*reconciler.Result, error) {
	s.rec.TriggerForceResync()
	return s.TriggerNow(ctx)
}

// Pause pauses mutating operations for a single provider.
func (s *Scheduler) Pause(providerID string) {
	s.rec.SetProviderPaused(providerID, true)
}

// Resume resumes mutating operations for a single provider.
func (s *Scheduler) Resume(providerID string) {
	s.rec.SetProviderPaused(providerID, false)
}

// DryRun runs a reconciliation cycle scoped to providerID without applying
// any changes, returning the plan that would result. The dry-run override
// is scoped to this one cycle inside the reconciler, so concurrently
// scheduled cycles are never flipped into dry-run by an admin request.
func (s *Scheduler) DryRun(ctx context.Context, providerID string) (*reconciler.Result, error) {
	if providerID == "" {
		return s.rec.Plan(ctx)
	}
	return s.rec.PlanProvider(ctx, providerID)
}
