package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trafegodns/trafego/internal/docker"
	"github.com/trafegodns/trafego/internal/reconciler"
	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// countingLister counts reconciliation cycles via ListWorkloads calls.
type countingLister struct {
	calls atomic.Int64
}

func (c *countingLister) ListWorkloads(_ context.Context) ([]docker.Workload, error) {
	c.calls.Add(1)
	return nil, nil
}

func (c *countingLister) Mode() docker.Mode { return docker.ModeStandalone }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *countingLister) {
	t.Helper()
	logger := quietLogger()
	lister := &countingLister{}

	providers := provider.NewRegistry(logger)
	providers.RegisterFactory("stub", func(fc provider.FactoryConfig) (provider.Provider, error) {
		return &stubProvider{name: fc.Name}, nil
	})
	if err := providers.CreateInstance(provider.ProviderInstanceConfig{
		Name:       "test-dns",
		TypeName:   "stub",
		RecordType: provider.RecordTypeA,
		Target:     "10.0.0.1",
		TTL:        300,
		Domains:    []string{"*.example.com"},
	}); err != nil {
		t.Fatalf("creating provider instance: %v", err)
	}

	rec := reconciler.New(lister, source.NewRegistry(logger), providers,
		reconciler.WithLogger(logger),
	)

	s := New(rec, WithConfig(cfg), WithLogger(logger))
	return s, lister
}

// stubProvider is a minimal provider.Provider for registry wiring.
type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string                 { return p.name }
func (p *stubProvider) Type() string                 { return "stub" }
func (p *stubProvider) Ping(_ context.Context) error { return nil }
func (p *stubProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportedRecordTypes: []provider.RecordType{provider.RecordTypeA, provider.RecordTypeTXT},
	}
}
func (p *stubProvider) OwnershipMarker() string { return provider.OwnershipMarker }
func (p *stubProvider) List(_ context.Context) ([]provider.Record, error) {
	return nil, nil
}
func (p *stubProvider) Create(_ context.Context, _ provider.Record) error { return nil }
func (p *stubProvider) Delete(_ context.Context, _ provider.Record) error { return nil }

func waitForCalls(t *testing.T, lister *countingLister, want int64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if lister.calls.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d reconciliations, saw %d", want, lister.calls.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := newTestScheduler(t, Config{Interval: 0, DebounceInterval: 10 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting twice is a no-op.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	s.Stop()
	// Stopping twice is safe.
	s.Stop()
}

func TestScheduler_TriggerNow(t *testing.T) {
	s, lister := newTestScheduler(t, DefaultConfig())

	result, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow failed: %v", err)
	}
	if result == nil {
		t.Fatal("TriggerNow returned nil result")
	}
	if lister.calls.Load() != 1 {
		t.Errorf("reconciliations = %d, want 1", lister.calls.Load())
	}
}

func TestScheduler_DebounceCoalescesTriggers(t *testing.T) {
	s, lister := newTestScheduler(t, Config{Interval: 0, DebounceInterval: 30 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	// A burst of triggers inside the debounce window runs once.
	for i := 0; i < 5; i++ {
		s.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	waitForCalls(t, lister, 1, time.Second)
	// Allow a residual timer to fire if coalescing were broken.
	time.Sleep(80 * time.Millisecond)

	if got := lister.calls.Load(); got != 1 {
		t.Errorf("reconciliations = %d, want 1 (burst must coalesce)", got)
	}
}

func TestScheduler_TriggerProvider(t *testing.T) {
	s, lister := newTestScheduler(t, Config{Interval: 0, DebounceInterval: 10 * time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	s.TriggerProvider("test-dns")
	waitForCalls(t, lister, 1, time.Second)
}

func TestScheduler_TriggerProviderNow_Unknown(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	if _, err := s.TriggerProviderNow(context.Background(), "nope"); err == nil {
		t.Error("unknown provider should error")
	}
}

func TestScheduler_PeriodicTick(t *testing.T) {
	s, lister := newTestScheduler(t, Config{Interval: 20 * time.Millisecond, DebounceInterval: time.Millisecond})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	waitForCalls(t, lister, 2, 2*time.Second)
}

func TestScheduler_PauseResume(t *testing.T) {
	s, _ := newTestScheduler(t, DefaultConfig())

	s.Pause("test-dns")
	if !s.rec.IsProviderPaused("test-dns") {
		t.Error("Pause should mark the provider paused on the reconciler")
	}
	s.Resume("test-dns")
	if s.rec.IsProviderPaused("test-dns") {
		t.Error("Resume should clear the paused mark")
	}
}

func TestScheduler_DryRunRestoresFlag(t *testing.T) {
	s, lister := newTestScheduler(t, DefaultConfig())

	result, err := s.DryRun(context.Background(), "")
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if !result.DryRun {
		t.Error("DryRun result should be flagged dry-run")
	}
	if s.rec.Config().DryRun {
		t.Error("reconciler dry-run flag must be restored")
	}
	if lister.calls.Load() != 1 {
		t.Errorf("DryRun should still scan workloads, calls = %d", lister.calls.Load())
	}
}
