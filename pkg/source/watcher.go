package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trafegodns/trafego/internal/metrics"
)

// DiscoveryCallback receives the hostnames a source's files currently
// declare, whenever that set changes.
type DiscoveryCallback func(sourceName string, hostnames []Hostname)

// FileWatcher polls every discoverable source on a timer and invokes the
// callback when a source's hostname set differs from the last poll.
type FileWatcher struct {
	registry     *Registry
	callback     DiscoveryCallback
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	lastSeen map[string]map[string]struct{} // source name -> hostname set
}

// FileWatcherOption configures a FileWatcher.
type FileWatcherOption func(*FileWatcher)

// WithPollInterval overrides the default 60s polling cadence.
func WithPollInterval(d time.Duration) FileWatcherOption {
	return func(w *FileWatcher) { w.pollInterval = d }
}

// WithWatcherLogger overrides the logger.
func WithWatcherLogger(logger *slog.Logger) FileWatcherOption {
	return func(w *FileWatcher) { w.logger = logger }
}

// NewFileWatcher builds a watcher over the registry's discoverable sources.
func NewFileWatcher(registry *Registry, callback DiscoveryCallback, opts ...FileWatcherOption) *FileWatcher {
	w := &FileWatcher{
		registry:     registry,
		callback:     callback,
		pollInterval: 60 * time.Second,
		logger:       slog.Default(),
		lastSeen:     make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs an immediate discovery pass, then polls until the context is
// cancelled or Stop is called. Starting twice is a no-op.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	w.pollAll(ctx)
	go w.pollLoop(ctx)

	return nil
}

// Stop halts the polling loop.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.running = false
}

// IsRunning reports whether the polling loop is active.
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// PollNow runs one discovery pass outside the timer, e.g. after a config
// reload.
func (w *FileWatcher) PollNow(ctx context.Context) {
	w.pollAll(ctx)
}

func (w *FileWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.pollAll(ctx)
		}
	}
}

func (w *FileWatcher) pollAll(ctx context.Context) {
	sources := w.registry.DiscoverableSources()
	if len(sources) == 0 {
		return
	}

	metrics.FileWatcherPolls.Inc()
	w.logger.Debug("polling discoverable sources", "count", len(sources))

	for _, src := range sources {
		name := src.Name()

		hostnames, err := src.Discover(ctx)
		if err != nil {
			w.logger.Warn("discovery failed",
				"source", name,
				"error", err,
			)
			continue
		}

		if w.swapIfChanged(name, hostnames) {
			metrics.FileWatcherChangesDetected.Inc()
			w.logger.Info("discovered hostnames changed",
				"source", name,
				"count", len(hostnames),
			)
			w.callback(name, hostnames)
		}
	}
}

// swapIfChanged compares the hostname set against the previous poll and,
// when it differs, stores the new set. Returns whether it changed.
func (w *FileWatcher) swapIfChanged(sourceName string, hostnames []Hostname) bool {
	next := make(map[string]struct{}, len(hostnames))
	for _, h := range hostnames {
		next[h.Name] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.lastSeen[sourceName]
	if prev == nil {
		if len(next) == 0 {
			return false
		}
		w.lastSeen[sourceName] = next
		return true
	}

	changed := len(prev) != len(next)
	if !changed {
		for name := range prev {
			if _, ok := next[name]; !ok {
				changed = true
				break
			}
		}
	}
	if changed {
		w.lastSeen[sourceName] = next
	}
	return changed
}
