// Package reconciler implements the core logic for comparing desired DNS state
// (from sources) with actual DNS state (from providers) and applying changes.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trafegodns/trafego/internal/cache"
	"github.com/trafegodns/trafego/internal/docker"
	"github.com/trafegodns/trafego/internal/metrics"
	"github.com/trafegodns/trafego/internal/store"
	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool

	// CleanupOrphans if true, removes DNS records for missing workloads.
	CleanupOrphans bool

	// OwnershipTracking if true, creates TXT records to mark ownership of DNS records.
	// When orphan cleanup runs, only records with ownership markers will be deleted.
	// This prevents deletion of manually-created DNS records.
	OwnershipTracking bool

	// AdoptExisting if true, creates ownership TXT records for existing DNS records
	// that have matching targets. If false, existing records are left unmanaged.
	AdoptExisting bool

	// ReconcileInterval is the interval between full reconciliation runs.
	// Zero means no automatic reconciliation (only on-demand).
	ReconcileInterval time.Duration

	// OrphanGraceWindow is how long a hostname must be continuously absent
	// before its records are deleted. A hostname is marked orphaned the
	// moment it disappears; it is only swept once this window has elapsed
	// without reappearing. Zero disables grace entirely (immediate delete).
	OrphanGraceWindow time.Duration

	// ProviderConcurrency bounds how many record operations are in flight
	// at once during a cycle. Zero uses DefaultProviderConcurrency.
	ProviderConcurrency int

	// Enabled controls whether reconciliation is active.
	// When false, Reconcile() returns immediately without doing anything.
	Enabled bool
}

// DefaultProviderConcurrency is the worker-pool bound applied when
// Config.ProviderConcurrency is unset.
const DefaultProviderConcurrency = 4

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DryRun:              false,
		CleanupOrphans:      true,
		OwnershipTracking:   true,
		AdoptExisting:       false,
		ReconcileInterval:   60 * time.Second,
		OrphanGraceWindow:   24 * time.Hour,
		ProviderConcurrency: DefaultProviderConcurrency,
		Enabled:             true,
	}
}

// WorkloadLister is the subset of docker.Client the reconciler needs:
// enumerating labeled workloads. Satisfied by *docker.Client.
type WorkloadLister interface {
	ListWorkloads(ctx context.Context) ([]docker.Workload, error)
	Mode() docker.Mode
}

// Reconciler coordinates DNS record synchronization between sources and providers.
//
// The reconciler:
//  1. Scans Docker workloads (services in Swarm, containers in standalone)
//  2. Extracts hostnames from workload labels using registered sources
//  3. For each hostname, finds matching provider(s) based on domain patterns
//  4. Ensures DNS records exist for discovered hostnames
//  5. Optionally removes orphan records (hostnames no longer in workloads)
type Reconciler struct {
	docker    WorkloadLister
	sources   *source.Registry
	providers *provider.Registry
	config    Config
	logger    *slog.Logger

	// runMu serializes whole reconciliation cycles. The scheduler's trigger
	// loop is one caller, but the administrative API invokes reconcile-now,
	// dry-run, and forced-resync on its own HTTP goroutines; this mutex is
	// what guarantees no two cycles mutate a provider concurrently.
	runMu sync.Mutex

	// mu protects knownHostnames and pendingOrphans during concurrent access
	mu sync.RWMutex
	// knownHostnames tracks hostnames discovered in the last reconciliation.
	// Used for orphan detection.
	knownHostnames map[string]struct{}
	// pendingOrphans tracks the time a hostname was first observed missing.
	// A hostname is only swept (actually deleted) once OrphanGraceWindow has
	// elapsed since the entry here, and the entry is cleared if the hostname
	// reappears in the meantime.
	pendingOrphans map[string]time.Time

	// store durably records every (provider, hostname, type) tuple this
	// engine manages, surviving process restarts. Nil when no database was
	// configured, in which case tracking lives only in pendingOrphans and
	// in the providers' own ownership TXT records.
	store *store.Store

	// cache is the TTL-gated mirror of each provider's record set. Nil
	// disables the gate: every cycle calls Provider.List() directly, as
	// the in-memory recordCache always has.
	cache *cache.Cache

	// pausedMu guards paused. A paused provider still participates in
	// every reconciliation pass (reads, matching, planning) but every
	// mutating call for it is skipped exactly like config.DryRun, so the
	// scheduler's admin pause/resume produces a dry-run
	// plan instead of refusing to run.
	pausedMu sync.RWMutex
	paused   map[string]bool

	// forceResyncMu guards forceResync, a one-shot flag set by the
	// administrative forced-resync trigger. The next cycle to
	// observe it true consumes it (resets to false) and, for that cycle
	// only, treats every exact-target match as an Update instead of a
	// Skip, re-applying records whose target hasn't changed but whose
	// provider-side defaults might have (e.g. Cloudflare's proxied flag).
	forceResyncMu sync.Mutex
	forceResync   bool
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// WithStore backs managed-record bookkeeping with a durable store, so
// ownership survives a process restart instead of relying solely on
// recovering it from provider-side TXT markers.
func WithStore(s *store.Store) Option {
	return func(r *Reconciler) {
		r.store = s
	}
}

// WithCache gates provider List() calls behind a TTL-boxed snapshot.
// Without this option every reconciliation cycle calls
// List() on every provider, same as before this option existed.
func WithCache(c *cache.Cache) Option {
	return func(r *Reconciler) {
		r.cache = c
	}
}

// New creates a new Reconciler with the given dependencies.
//
// The reconciler requires:
//   - docker: Client for listing workloads
//   - sources: Registry of hostname extractors (Traefik, etc.)
//   - providers: Registry of DNS provider instances
func New(
	dockerClient WorkloadLister,
	sources *source.Registry,
	providers *provider.Registry,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		docker:         dockerClient,
		sources:        sources,
		providers:      providers,
		config:         DefaultConfig(),
		logger:         slog.Default(),
		knownHostnames: make(map[string]struct{}),
		pendingOrphans: make(map[string]time.Time),
		paused:         make(map[string]bool),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile performs a full reconciliation of DNS records.
//
// This method:
//  1. Lists all Docker workloads
//  2. Extracts hostnames from each workload's labels
//  3. Creates DNS records for new hostnames
//  4. Optionally deletes records for removed hostnames (orphan cleanup)
//
// Returns a Result containing details of all actions taken.
// The result includes timing, counts, and any errors encountered.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	return r.reconcile(ctx, "", false)
}

// Plan runs a full reconciliation cycle without applying any changes,
// returning the plan that would result. The dry-run override holds only for
// this call; a configured DryRun=false is untouched for scheduled cycles.
func (r *Reconciler) Plan(ctx context.Context) (*Result, error) {
	return r.reconcile(ctx, "", true)
}

// PlanProvider is Plan scoped to a single provider instance.
func (r *Reconciler) PlanProvider(ctx context.Context, providerID string) (*Result, error) {
	if _, ok := r.providers.Get(providerID); !ok {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
	return r.reconcile(ctx, providerID, true)
}

// ReconcileProvider runs one reconciliation cycle scoped to a single
// provider instance via the administrative reconcile-now path. Hostname
// discovery still scans every source, but only actions routed to
// providerID are planned or applied; every other provider's records are
// left untouched this cycle.
func (r *Reconciler) ReconcileProvider(ctx context.Context, providerID string) (*Result, error) {
	if _, ok := r.providers.Get(providerID); !ok {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}
	return r.reconcile(ctx, providerID, false)
}

// reconcile is the shared implementation behind Reconcile,
// ReconcileProvider, and the Plan variants. restrictProvider, when
// non-empty, scopes every mutating action to that provider instance; an
// empty string reconciles every configured provider. forceDryRun overrides
// the configured DryRun for this cycle only (the override is applied and
// restored under runMu, so scheduled cycles never observe it).
func (r *Reconciler) reconcile(ctx context.Context, restrictProvider string, forceDryRun bool) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if forceDryRun && !r.config.DryRun {
		r.config.DryRun = true
		defer func() { r.config.DryRun = false }()
	}

	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping")
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	forceResync := r.consumeForceResync()

	r.logger.Info("starting reconciliation",
		slog.Bool("dry_run", r.config.DryRun),
		slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
		slog.Bool("force_resync", forceResync),
	)

	result := NewResult(r.config.DryRun)

	// Step 1: List all workloads
	workloads, err := r.docker.ListWorkloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workloads: %w", err)
	}
	result.WorkloadsScanned = len(workloads)

	r.logger.Debug("scanned workloads",
		slog.Int("count", len(workloads)),
		slog.String("mode", r.docker.Mode().String()),
	)

	// Step 2: Extract hostnames from each workload
	// Track hostname -> first workload that defined it (for duplicate detection)
	discoveredHostnames := make(map[string]*source.Hostname)
	hostnameOrigins := make(map[string]string) // hostname -> workload name

	for _, workload := range workloads {
		hostnames := r.sources.ExtractAll(ctx, workload.Labels)

		// Validate hostnames and log warnings for invalid ones
		validation := hostnames.ValidateAll()
		for _, inv := range validation.Invalid {
			r.logger.Warn("skipping invalid hostname from workload",
				slog.String("workload", workload.Name),
				slog.String("hostname", inv.Hostname.Name),
				slog.String("source", inv.Hostname.Source),
				slog.String("error", inv.Error.Error()),
			)
			result.HostnamesInvalid++
		}
		hostnames = validation.Valid

		if len(hostnames) > 0 {
			r.logger.Debug("extracted hostnames from workload",
				slog.String("workload", workload.Name),
				slog.Int("count", len(hostnames)),
				slog.Any("hostnames", hostnames.Names()),
			)
		}

		for i, hostname := range hostnames {
			if existingWorkload, exists := hostnameOrigins[hostname.Name]; exists {
				// Duplicate hostname detected
				r.logger.Warn("duplicate hostname found in multiple workloads",
					slog.String("hostname", hostname.Name),
					slog.String("first_workload", existingWorkload),
					slog.String("duplicate_workload", workload.Name),
				)
				result.HostnamesDuplicate++
				// First workload wins - don't update hostnameOrigins
			} else {
				hostnameOrigins[hostname.Name] = workload.Name
				discoveredHostnames[hostname.Name] = &hostnames[i]
			}
		}
	}

	// Step 2b: Discover hostnames from static config files (Traefik YAML, etc.)
	fileHostnames := r.sources.DiscoverAll(ctx)
	if len(fileHostnames) > 0 {
		// Validate file-discovered hostnames
		validation := fileHostnames.ValidateAll()
		for _, inv := range validation.Invalid {
			r.logger.Warn("skipping invalid hostname from file",
				slog.String("hostname", inv.Hostname.Name),
				slog.String("source", inv.Hostname.Source),
				slog.String("router", inv.Hostname.Router),
				slog.String("error", inv.Error.Error()),
			)
			result.HostnamesInvalid++
		}
		fileHostnames = validation.Valid

		r.logger.Debug("discovered hostnames from files",
			slog.Int("count", len(fileHostnames)),
			slog.Any("hostnames", fileHostnames.Names()),
		)
		for i, hostname := range fileHostnames {
			if _, exists := discoveredHostnames[hostname.Name]; !exists {
				discoveredHostnames[hostname.Name] = &fileHostnames[i]
			}
		}
	}

	// Step 2c: layer the stored per-hostname overrides over the merged set.
	r.applyHostnameOverrides(ctx, discoveredHostnames)

	result.HostnamesDiscovered = len(discoveredHostnames)

	r.logger.Info("hostname extraction complete",
		slog.Int("workloads", len(workloads)),
		slog.Int("hostnames", len(discoveredHostnames)),
	)

	// Step 3: Build record cache for all providers (single List() call per provider)
	var cache *recordCache
	if !r.config.DryRun {
		cache = newRecordCache(ctx, r.providers, r.logger, r.cache)
	}

	// Step 4: Orphan cleanup first, so deletes pending from the previous
	// cycle's grace window are applied before this cycle's updates/creates.
	if r.config.CleanupOrphans {
		orphanActions := r.cleanupOrphans(ctx, discoveredHostnames, cache, restrictProvider)
		for _, action := range orphanActions {
			result.AddAction(action)
		}
	}

	// Step 5: Ensure records exist for all discovered hostnames. Hostnames
	// are processed in lexicographic order for reproducible plans; execution
	// fans out across a bounded worker pool (operations for one hostname stay
	// sequential), with results collected back in hostname order.
	names := make([]string, 0, len(discoveredHostnames))
	for name := range discoveredHostnames {
		names = append(names, name)
	}
	sort.Strings(names)

	limit := r.config.ProviderConcurrency
	if limit <= 0 {
		limit = DefaultProviderConcurrency
	}

	actionsByHostname := make([][]Action, len(names))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, name := range names {
		i, hostname := i, discoveredHostnames[name]
		g.Go(func() error {
			actionsByHostname[i] = r.ensureRecord(ctx, hostname, cache, restrictProvider, forceResync)
			return nil
		})
	}
	_ = g.Wait()

	for _, actions := range actionsByHostname {
		for _, action := range actions {
			result.AddAction(action)
		}
	}

	// Update known hostnames for next orphan check
	knownNames := make(map[string]struct{}, len(discoveredHostnames))
	for name := range discoveredHostnames {
		knownNames[name] = struct{}{}
	}
	r.mu.Lock()
	r.knownHostnames = knownNames
	r.mu.Unlock()

	result.Complete()

	// Record metrics
	r.recordMetrics(result)

	r.logger.Info("reconciliation complete",
		slog.Int("created", result.CreatedCount()),
		slog.Int("updated", result.UpdatedCount()),
		slog.Int("deleted", result.DeletedCount()),
		slog.Int("failed", result.FailedCount()),
		slog.Int("skipped", len(result.Skipped())),
		slog.Duration("duration", result.Duration()),
	)

	return result, nil
}

// ReconcileHostname performs reconciliation for a single hostname.
// This is useful for event-driven updates when a specific workload changes.
// Note: This does not use the record cache since it's a single hostname operation.
func (r *Reconciler) ReconcileHostname(ctx context.Context, hostname string) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.config.Enabled {
		r.logger.Debug("reconciliation disabled, skipping hostname",
			slog.String("hostname", hostname),
		)
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("reconciling single hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)
	result.HostnamesDiscovered = 1

	desired := &source.Hostname{Name: hostname}
	r.applyHostnameOverrides(ctx, map[string]*source.Hostname{hostname: desired})

	// No cache for single-hostname reconciliation (not worth it for one query)
	actions := r.ensureRecord(ctx, desired, nil, "", false)
	for _, action := range actions {
		result.AddAction(action)
	}

	// Track this hostname as known
	r.mu.Lock()
	r.knownHostnames[hostname] = struct{}{}
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// RemoveHostname removes DNS records for a hostname that is no longer needed.
// This is useful for event-driven cleanup when a workload is removed.
func (r *Reconciler) RemoveHostname(ctx context.Context, hostname string) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.config.Enabled {
		result := NewResult(r.config.DryRun)
		result.Complete()
		return result, nil
	}

	r.logger.Debug("removing hostname",
		slog.String("hostname", hostname),
		slog.Bool("dry_run", r.config.DryRun),
	)

	result := NewResult(r.config.DryRun)

	actions := r.deleteRecord(ctx, hostname)
	for _, action := range actions {
		result.AddAction(action)
	}

	// Remove from known hostnames
	r.mu.Lock()
	delete(r.knownHostnames, hostname)
	r.mu.Unlock()

	result.Complete()
	return result, nil
}

// Config returns the current reconciler configuration.
func (r *Reconciler) Config() Config {
	return r.config
}

// SetEnabled enables or disables reconciliation.
func (r *Reconciler) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
	r.logger.Info("reconciliation enabled state changed",
		slog.Bool("enabled", enabled),
	)
}

// SetDryRun enables or disables dry-run mode.
func (r *Reconciler) SetDryRun(dryRun bool) {
	r.config.DryRun = dryRun
	r.logger.Info("dry-run mode changed",
		slog.Bool("dry_run", dryRun),
	)
}

// SetProviderPaused pauses or resumes mutating operations for a single
// provider instance. A paused
// provider is still scanned, matched, and planned every cycle; only the
// Create/Update/Delete calls for it are skipped, the same as a global
// dry-run, so a paused provider's in-flight plan stays visible via DryRun.
func (r *Reconciler) SetProviderPaused(name string, paused bool) {
	r.pausedMu.Lock()
	defer r.pausedMu.Unlock()
	if r.paused == nil {
		r.paused = make(map[string]bool)
	}
	if paused {
		r.paused[name] = true
	} else {
		delete(r.paused, name)
	}
	r.logger.Info("provider pause state changed",
		slog.String("provider", name),
		slog.Bool("paused", paused),
	)
}

// IsProviderPaused reports whether name is currently paused.
func (r *Reconciler) IsProviderPaused(name string) bool {
	r.pausedMu.RLock()
	defer r.pausedMu.RUnlock()
	return r.paused[name]
}

// PausedProviders returns the names of every currently paused provider.
func (r *Reconciler) PausedProviders() []string {
	r.pausedMu.RLock()
	defer r.pausedMu.RUnlock()
	names := make([]string, 0, len(r.paused))
	for name := range r.paused {
		names = append(names, name)
	}
	return names
}

// TriggerForceResync arms a one-shot forced full resync: the
// next reconciliation cycle re-applies every desired record regardless of
// fingerprint equality, then the flag clears itself. Useful after changing
// a provider default (e.g. flipping Cloudflare's proxied flag) when every
// existing record's target is still correct but its provider-side
// attributes need to be re-pushed.
func (r *Reconciler) TriggerForceResync() {
	r.forceResyncMu.Lock()
	r.forceResync = true
	r.forceResyncMu.Unlock()
	r.logger.Info("forced full resync armed for next reconciliation cycle")
}

// consumeForceResync reads and clears the one-shot forced-resync flag.
func (r *Reconciler) consumeForceResync() bool {
	r.forceResyncMu.Lock()
	defer r.forceResyncMu.Unlock()
	armed := r.forceResync
	r.forceResync = false
	return armed
}

// KnownHostnames returns a copy of the currently known hostnames.
// This is primarily useful for debugging and testing.
func (r *Reconciler) KnownHostnames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hostnames := make([]string, 0, len(r.knownHostnames))
	for h := range r.knownHostnames {
		hostnames = append(hostnames, h)
	}
	return hostnames
}

// RecoverOwnership scans all providers for ownership TXT records and populates
// the knownHostnames map. This should be called once on startup before the first
// reconciliation to enable orphan cleanup for records created before a restart.
//
// Only runs if both CleanupOrphans and OwnershipTracking are enabled.
func (r *Reconciler) RecoverOwnership(ctx context.Context) error {
	r.restoreOrphanState(ctx)

	if !r.config.CleanupOrphans || !r.config.OwnershipTracking {
		r.logger.Debug("ownership recovery skipped",
			slog.Bool("cleanup_orphans", r.config.CleanupOrphans),
			slog.Bool("ownership_tracking", r.config.OwnershipTracking),
		)
		return nil
	}

	r.logger.Info("recovering ownership state from DNS providers")

	totalRecovered := 0
	for _, inst := range r.providers.All() {
		hostnames, err := inst.RecoverOwnedHostnames(ctx)
		if err != nil {
			r.logger.Warn("failed to recover ownership from provider",
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if len(hostnames) > 0 {
			r.mu.Lock()
			for _, hostname := range hostnames {
				r.knownHostnames[hostname] = struct{}{}
			}
			r.mu.Unlock()

			r.logger.Info("recovered ownership records",
				slog.String("provider", inst.Name()),
				slog.Int("count", len(hostnames)),
			)
			totalRecovered += len(hostnames)
		}
	}

	r.logger.Info("ownership recovery complete",
		slog.Int("total_hostnames", totalRecovered),
	)

	return nil
}

// applyHostnameOverrides layers the stored per-hostname knobs over the
// merged desired set: provider pin, record type, target, TTL, proxied.
// Operator-set overrides win over source-supplied hints for the fields
// they set; rows parked with enabled=false are skipped. A nil store or a
// read failure leaves the set untouched (the knobs are additive, never
// required for a correct cycle).
func (r *Reconciler) applyHostnameOverrides(ctx context.Context, discovered map[string]*source.Hostname) {
	if r.store == nil || len(discovered) == 0 {
		return
	}

	overrides, err := r.store.ListOverrides(ctx)
	if err != nil {
		r.logger.Warn("failed to load hostname overrides",
			slog.String("error", err.Error()),
		)
		return
	}

	for name, hostname := range discovered {
		o, ok := overrides[name]
		if !ok || !o.Enabled {
			continue
		}

		hints := hostname.RecordHints
		if hints == nil {
			hints = &source.RecordHints{}
			hostname.RecordHints = hints
		}
		if o.ProviderID != "" {
			hints.Provider = o.ProviderID
		}
		if o.RecordType != "" {
			hints.Type = string(o.RecordType)
		}
		if o.Target != "" {
			hints.Target = o.Target
		}
		if o.TTL > 0 {
			hints.TTL = o.TTL
		}
		if o.Proxied != nil {
			proxied := *o.Proxied
			hints.Proxied = &proxied
		}

		r.logger.Debug("applied hostname override",
			slog.String("hostname", name),
			slog.String("provider", o.ProviderID),
			slog.String("reason", o.Reason),
		)
	}
}

// restoreOrphanState rehydrates in-memory grace-window clocks from the
// durable store after a restart, so a hostname that went missing before the
// process died is swept on schedule instead of getting a fresh window.
func (r *Reconciler) restoreOrphanState(ctx context.Context) {
	if r.store == nil {
		return
	}

	// A zero grace duration matches every orphaned entry regardless of age.
	entries, err := r.store.DueForSweep(ctx, 0)
	if err != nil {
		r.logger.Warn("failed to restore orphan state from store",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(entries) == 0 {
		return
	}

	r.mu.Lock()
	if r.pendingOrphans == nil {
		r.pendingOrphans = make(map[string]time.Time)
	}
	for _, e := range entries {
		if e.OrphanedAt == nil {
			continue
		}
		// Keep the earliest mark if multiple providers carry the hostname.
		if existing, ok := r.pendingOrphans[e.Hostname]; !ok || e.OrphanedAt.Before(existing) {
			r.pendingOrphans[e.Hostname] = *e.OrphanedAt
		}
		// The hostname must be "known" for orphan detection to notice its
		// absence on the next cycle.
		r.knownHostnames[e.Hostname] = struct{}{}
	}
	r.mu.Unlock()

	r.logger.Info("restored orphan grace state from store",
		slog.Int("hostnames", len(entries)),
	)
}

// recordMetrics records Prometheus metrics from a reconciliation result.
func (r *Reconciler) recordMetrics(result *Result) {
	// Record reconciliation outcome
	status := "success"
	if result.HasErrors() {
		status = "error"
	}
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()

	// Record duration
	metrics.ReconciliationDuration.Observe(result.Duration().Seconds())

	// Record workload and hostname counts
	metrics.WorkloadsScanned.Set(float64(result.WorkloadsScanned))
	metrics.HostnamesDiscovered.Set(float64(result.HostnamesDiscovered))

	// Record per-action metrics
	for _, action := range result.Actions {
		switch action.Type {
		case ActionCreate:
			if action.Status == StatusSuccess {
				metrics.RecordsCreatedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "create").Inc()
			}
		case ActionUpdate:
			if action.Status == StatusSuccess {
				metrics.RecordsUpdatedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "update").Inc()
			}
		case ActionDelete:
			if action.Status == StatusSuccess {
				metrics.RecordsDeletedTotal.WithLabelValues(action.Provider).Inc()
			} else if action.Status == StatusFailed {
				metrics.RecordsFailedTotal.WithLabelValues(action.Provider, "delete").Inc()
			}
		case ActionSkip:
			reason := "unknown"
			if action.Error != "" {
				reason = action.Error
			}
			// Normalize common skip reasons
			if reason == "no matching provider" {
				reason = "no_provider"
			}
			metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
		}
	}
}
