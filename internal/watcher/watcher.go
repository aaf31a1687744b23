// Package watcher subscribes to Docker events and turns workload churn
// into reconciliation triggers.
//
// Events are filtered to the lifecycle actions that can change the desired
// hostname set (service create/update/remove in Swarm mode, container
// start/stop/die/destroy otherwise), debounced so a deployment's burst of
// events produces one reconciliation, and the event stream reconnects
// itself after socket errors.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"

	"github.com/trafegodns/trafego/internal/docker"
	"github.com/trafegodns/trafego/internal/metrics"
)

// ReconcileFunc is invoked when accumulated events warrant a reconciliation.
type ReconcileFunc func()

// Config tunes the watcher's timing.
type Config struct {
	// DebounceInterval is how long to wait for further events before
	// triggering. Deployments restart many containers in quick succession;
	// one trigger at the end covers them all.
	DebounceInterval time.Duration

	// ReconnectInterval is the pause before re-subscribing after the event
	// stream errors out.
	ReconnectInterval time.Duration
}

// DefaultConfig returns the standard timing: 2s debounce, 5s reconnect.
func DefaultConfig() Config {
	return Config{
		DebounceInterval:  2 * time.Second,
		ReconnectInterval: 5 * time.Second,
	}
}

// Watcher tails the Docker event stream and fires the reconcile callback.
type Watcher struct {
	dockerClient *docker.Client
	onReconcile  ReconcileFunc
	config       Config
	logger       *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	debounce *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithConfig overrides the timing configuration.
func WithConfig(cfg Config) Option {
	return func(w *Watcher) { w.config = cfg }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New builds a watcher over the given Docker client.
func New(dockerClient *docker.Client, onReconcile ReconcileFunc, opts ...Option) *Watcher {
	w := &Watcher{
		dockerClient: dockerClient,
		onReconcile:  onReconcile,
		config:       DefaultConfig(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the watch loop in the background. Starting twice is a
// no-op; Stop or context cancellation ends it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)

	w.logger.Info("docker event watcher started",
		slog.Duration("debounce", w.config.DebounceInterval),
	)
	return nil
}

// Stop halts the watcher and discards any pending debounced trigger.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	w.running = false
	w.logger.Info("docker event watcher stopped")
}

// IsRunning reports whether the watch loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// watchLoop re-subscribes to the event stream until the context ends.
func (w *Watcher) watchLoop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.watch(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.DockerWatcherReconnects.Inc()
			w.logger.Warn("event stream error, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", w.config.ReconnectInterval),
			)
			time.Sleep(w.config.ReconnectInterval)
		}
	}
}

// watch consumes one event subscription until it errors or the context
// ends.
func (w *Watcher) watch(ctx context.Context) error {
	rawClient := w.dockerClient.RawClient()
	isSwarm := w.dockerClient.IsSwarm()

	filterArgs := w.buildEventFilters(isSwarm)

	w.logger.Debug("subscribing to docker events",
		slog.Bool("swarm_mode", isSwarm),
		slog.Any("filters", filterArgs),
	)

	eventsChan, errChan := rawClient.Events(ctx, events.ListOptions{Filters: filterArgs})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		case event := <-eventsChan:
			w.handleEvent(event)
		}
	}
}

// buildEventFilters restricts the subscription to lifecycle events that can
// change the hostname set.
func (w *Watcher) buildEventFilters(isSwarm bool) filters.Args {
	filterArgs := filters.NewArgs()

	if isSwarm {
		filterArgs.Add("type", string(events.ServiceEventType))
		for _, action := range []string{"create", "update", "remove"} {
			filterArgs.Add("event", action)
		}
	} else {
		filterArgs.Add("type", string(events.ContainerEventType))
		for _, action := range []string{"start", "stop", "die", "destroy"} {
			filterArgs.Add("event", action)
		}
	}
	return filterArgs
}

// handleEvent restarts the debounce window; the trigger fires only once the
// stream has been quiet for DebounceInterval.
func (w *Watcher) handleEvent(event events.Message) {
	metrics.DockerEventsProcessed.WithLabelValues(
		string(event.Type) + "_" + string(event.Action),
	).Inc()

	w.logger.Debug("received docker event",
		slog.String("type", string(event.Type)),
		slog.String("action", string(event.Action)),
		slog.String("actor_id", event.Actor.ID),
		slog.Any("attributes", event.Actor.Attributes),
	)

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.config.DebounceInterval, w.triggerReconcile)
	w.mu.Unlock()
}

func (w *Watcher) triggerReconcile() {
	w.logger.Info("triggering reconciliation due to docker event")
	if w.onReconcile != nil {
		w.onReconcile()
	}
}

// TriggerNow fires the callback immediately, bypassing the debounce. Used
// for the initial reconciliation at startup.
func (w *Watcher) TriggerNow() {
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	w.mu.Unlock()

	w.triggerReconcile()
}
