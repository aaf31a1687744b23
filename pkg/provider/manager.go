package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trafegodns/trafego/internal/metrics"
)

// pingTimeout bounds the connectivity check run after creating an instance.
const pingTimeout = 10 * time.Second

// ManagerConfig tunes the background retry loop for providers that fail to
// initialize.
type ManagerConfig struct {
	// InitialRetryInterval is the delay before the first re-attempt.
	InitialRetryInterval time.Duration

	// MaxRetryInterval caps the exponential backoff.
	MaxRetryInterval time.Duration

	// RetryBackoffMultiplier grows the interval after each failure.
	RetryBackoffMultiplier float64
}

// DefaultManagerConfig returns the standard retry parameters: 5s initial,
// doubling, capped at 5 minutes.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		InitialRetryInterval:   5 * time.Second,
		MaxRetryInterval:       5 * time.Minute,
		RetryBackoffMultiplier: 2.0,
	}
}

// PendingProvider tracks a provider instance that could not be brought up,
// along with its backoff state.
type PendingProvider struct {
	Config        ProviderInstanceConfig
	LastError     error
	LastAttempt   time.Time
	AttemptCount  int
	NextRetryAt   time.Time
	RetryInterval time.Duration
}

// Manager brings provider instances up without making startup depend on
// every provider being reachable. Instances that fail to create or to answer
// a ping are parked on a pending list and re-attempted in the background
// with exponential backoff, while the rest of the engine runs with whatever
// subset is ready.
type Manager struct {
	registry *Registry
	config   ManagerConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	pending map[string]*PendingProvider
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerConfig overrides the retry parameters.
func WithManagerConfig(cfg ManagerConfig) ManagerOption {
	return func(m *Manager) { m.config = cfg }
}

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager wraps registry with non-fatal initialization and background
// retry.
func NewManager(registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		config:   DefaultManagerConfig(),
		logger:   slog.Default(),
		pending:  make(map[string]*PendingProvider),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tryCreate creates the instance and verifies connectivity. On a failed
// ping the instance is torn back out of the registry so a later retry starts
// from a clean slate.
func (m *Manager) tryCreate(ctx context.Context, cfg ProviderInstanceConfig) error {
	if err := m.registry.CreateInstance(cfg); err != nil {
		return err
	}

	inst, ok := m.registry.Get(cfg.Name)
	if !ok {
		return fmt.Errorf("instance %q missing after create", cfg.Name)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := inst.Provider.Ping(pingCtx); err != nil {
		m.registry.Remove(cfg.Name)
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	return nil
}

// InitializeProvider attempts to bring one configured instance up. A
// provider that cannot be created or reached is queued for background retry
// and nil is returned; only an invalid configuration is an immediate error,
// since no amount of retrying fixes that.
func (m *Manager) InitializeProvider(cfg ProviderInstanceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid provider config %q: %w", cfg.Name, err)
	}

	err := m.tryCreate(context.Background(), cfg)
	if err == nil {
		m.logger.Info("provider initialized and connected",
			slog.String("provider", cfg.Name),
			slog.String("type", cfg.TypeName),
		)
		metrics.ProviderAvailable.WithLabelValues(cfg.Name, cfg.TypeName).Set(1)
		m.updateCountMetrics()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[cfg.Name] = &PendingProvider{
		Config:        cfg,
		LastError:     err,
		LastAttempt:   time.Now(),
		AttemptCount:  1,
		NextRetryAt:   time.Now().Add(m.config.InitialRetryInterval),
		RetryInterval: m.config.InitialRetryInterval,
	}

	metrics.ProviderAvailable.WithLabelValues(cfg.Name, cfg.TypeName).Set(0)
	metrics.ProviderInitRetries.WithLabelValues(cfg.Name, "failed").Inc()
	m.updateCountMetricsLocked()

	m.logger.Warn("provider initialization failed, will retry",
		slog.String("provider", cfg.Name),
		slog.String("type", cfg.TypeName),
		slog.String("error", err.Error()),
		slog.Duration("retry_in", m.config.InitialRetryInterval),
	)

	return nil
}

// Start launches the background retry loop. Call once, after the initial
// InitializeProvider pass.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("provider manager already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.retryLoop(ctx)

	m.logger.Info("provider manager started",
		slog.Int("ready_providers", m.registry.Count()),
		slog.Int("pending_providers", m.PendingCount()),
	)
	return nil
}

// Stop shuts the retry loop down and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	<-m.doneCh
	m.logger.Info("provider manager stopped")
}

func (m *Manager) retryLoop(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.retryDue(ctx)
		}
	}
}

// retryDue re-attempts every pending provider whose backoff has elapsed.
func (m *Manager) retryDue(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	var due []*PendingProvider
	for _, pending := range m.pending {
		if !now.Before(pending.NextRetryAt) {
			due = append(due, pending)
		}
	}
	m.mu.Unlock()

	for _, pending := range due {
		m.retryOne(ctx, pending)
	}
}

func (m *Manager) retryOne(ctx context.Context, pending *PendingProvider) {
	cfg := pending.Config

	m.logger.Debug("retrying provider initialization",
		slog.String("provider", cfg.Name),
		slog.Int("attempt", pending.AttemptCount+1),
	)

	err := m.tryCreate(ctx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.pending, cfg.Name)

		metrics.ProviderAvailable.WithLabelValues(cfg.Name, cfg.TypeName).Set(1)
		metrics.ProviderInitRetries.WithLabelValues(cfg.Name, "success").Inc()
		m.updateCountMetricsLocked()

		m.logger.Info("provider initialized and connected after retry",
			slog.String("provider", cfg.Name),
			slog.String("type", cfg.TypeName),
			slog.Int("attempts", pending.AttemptCount+1),
		)
		return
	}

	pending.LastError = err
	pending.LastAttempt = time.Now()
	pending.AttemptCount++

	next := time.Duration(float64(pending.RetryInterval) * m.config.RetryBackoffMultiplier)
	if next > m.config.MaxRetryInterval {
		next = m.config.MaxRetryInterval
	}
	pending.RetryInterval = next
	pending.NextRetryAt = time.Now().Add(next)

	metrics.ProviderInitRetries.WithLabelValues(cfg.Name, "failed").Inc()

	m.logger.Warn("provider retry failed",
		slog.String("provider", cfg.Name),
		slog.String("error", err.Error()),
		slog.Int("attempt", pending.AttemptCount),
		slog.Duration("next_retry_in", next),
	)
}

// updateCountMetrics refreshes the ready/pending gauges. Must be called
// without the lock held.
func (m *Manager) updateCountMetrics() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.updateCountMetricsLocked()
}

func (m *Manager) updateCountMetricsLocked() {
	metrics.ProvidersReady.Set(float64(m.registry.Count()))
	metrics.ProvidersPending.Set(float64(len(m.pending)))
}

// Registry returns the wrapped provider registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// PendingCount returns how many providers are still awaiting a successful
// initialization.
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// ReadyCount returns how many providers are initialized and registered.
func (m *Manager) ReadyCount() int {
	return m.registry.Count()
}

// TotalCount returns ready plus pending.
func (m *Manager) TotalCount() int {
	return m.ReadyCount() + m.PendingCount()
}

// IsFullyReady reports whether nothing is pending.
func (m *Manager) IsFullyReady() bool {
	return m.PendingCount() == 0
}

// PendingProviderStatus is the externally-visible snapshot of one pending
// provider.
type PendingProviderStatus struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	LastError    string    `json:"last_error"`
	LastAttempt  time.Time `json:"last_attempt"`
	AttemptCount int       `json:"attempt_count"`
	NextRetryAt  time.Time `json:"next_retry_at"`
}

// PendingProviders snapshots the pending list for status reporting.
func (m *Manager) PendingProviders() []PendingProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]PendingProviderStatus, 0, len(m.pending))
	for _, p := range m.pending {
		result = append(result, PendingProviderStatus{
			Name:         p.Config.Name,
			Type:         p.Config.TypeName,
			LastError:    p.LastError.Error(),
			LastAttempt:  p.LastAttempt,
			AttemptCount: p.AttemptCount,
			NextRetryAt:  p.NextRetryAt,
		})
	}
	return result
}

// AllPendingUnauthorized reports whether every pending provider failed with
// an authentication error. When this holds and no provider is ready, there is
// nothing the background retry loop can fix without a credentials change, so
// the caller should exit rather than spin.
func (m *Manager) AllPendingUnauthorized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.pending) == 0 {
		return false
	}
	for _, p := range m.pending {
		if !IsUnauthorized(p.LastError) {
			return false
		}
	}
	return true
}

// ProviderStatus is the availability of one configured provider, ready or
// pending, as reported to health checks.
type ProviderStatus struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// AllProviderStatuses reports every configured provider, ready first.
func (m *Manager) AllProviderStatuses() []ProviderStatus {
	statuses := make([]ProviderStatus, 0)

	for _, inst := range m.registry.All() {
		statuses = append(statuses, ProviderStatus{
			Name:      inst.Name(),
			Type:      inst.Type(),
			Available: true,
		})
	}

	m.mu.RLock()
	for _, p := range m.pending {
		statuses = append(statuses, ProviderStatus{
			Name:      p.Config.Name,
			Type:      p.Config.TypeName,
			Available: false,
			Error:     p.LastError.Error(),
		})
	}
	m.mu.RUnlock()

	return statuses
}
