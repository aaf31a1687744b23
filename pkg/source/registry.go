package source

import (
	"context"
	"log/slog"
	"sync"
)

// Registry holds the configured sources and fans extraction and discovery
// out across them. Safe for concurrent use; sources keep their
// registration order.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	byName  map[string]Source
	logger  *slog.Logger
}

// NewRegistry creates an empty source registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sources: make([]Source, 0),
		byName:  make(map[string]Source),
		logger:  logger,
	}
}

// Register adds a source, rejecting duplicate names.
func (r *Registry) Register(source Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := source.Name()
	if _, exists := r.byName[name]; exists {
		return ErrDuplicateSource(name)
	}
	r.sources = append(r.sources, source)
	r.byName[name] = source

	r.logger.Debug("registered source", slog.String("source", name))
	return nil
}

// Get returns the named source, or nil.
func (r *Registry) Get(name string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// All returns the sources in registration order.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Source, len(r.sources))
	copy(result, r.sources)
	return result
}

// Count returns the number of registered sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// DiscoverableSources returns the sources with file discovery configured,
// in registration order.
func (r *Registry) DiscoverableSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Source
	for _, src := range r.sources {
		if src.SupportsDiscovery() {
			result = append(result, src)
		}
	}
	return result
}

// ExtractAll runs every source over the label map and concatenates the
// results in registration order. Duplicates are kept so attribution
// survives; callers dedupe with Hostnames.Deduplicate when they need a set.
// A failing source is logged and skipped so one bad label block cannot
// suppress the others' hostnames.
func (r *Registry) ExtractAll(ctx context.Context, labels map[string]string) Hostnames {
	sources := r.All()

	var all Hostnames
	for _, src := range sources {
		hostnames, err := src.Extract(ctx, labels)
		if err != nil {
			r.logger.Warn("source extraction failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(hostnames) > 0 {
			r.logger.Debug("source extracted hostnames",
				slog.String("source", src.Name()),
				slog.Int("count", len(hostnames)),
			)
			all = append(all, hostnames...)
		}
	}
	return all
}

// DiscoverAll runs file discovery on every discoverable source and
// concatenates the results. Like ExtractAll, per-source failures are logged
// and skipped.
func (r *Registry) DiscoverAll(ctx context.Context) Hostnames {
	var all Hostnames
	for _, src := range r.DiscoverableSources() {
		hostnames, err := src.Discover(ctx)
		if err != nil {
			r.logger.Warn("source discovery failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		all = append(all, hostnames...)
	}
	return all
}

// DiscoverFrom runs file discovery on a single named source. A source
// without discovery configured yields nil, nil.
func (r *Registry) DiscoverFrom(ctx context.Context, sourceName string) (Hostnames, error) {
	src := r.Get(sourceName)
	if src == nil {
		return nil, ErrSourceNotFound(sourceName)
	}
	if !src.SupportsDiscovery() {
		return nil, nil
	}
	hostnames, err := src.Discover(ctx)
	return hostnames, err
}

// ExtractFrom runs a single named source over the label map.
func (r *Registry) ExtractFrom(ctx context.Context, sourceName string, labels map[string]string) (Hostnames, error) {
	src := r.Get(sourceName)
	if src == nil {
		return nil, ErrSourceNotFound(sourceName)
	}
	return src.Extract(ctx, labels)
}
