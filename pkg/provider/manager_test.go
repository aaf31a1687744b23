package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// stubProvider is a Provider whose ping behavior is scripted per test.
type stubProvider struct {
	name  string
	kind  string
	pings atomic.Int32

	// pingFn decides the result of each Ping call; nil means always healthy.
	pingFn func(attempt int32) error
}

func (p *stubProvider) Name() string                           { return p.name }
func (p *stubProvider) Type() string                           { return p.kind }
func (p *stubProvider) OwnershipMarker() string                { return OwnershipMarker }
func (p *stubProvider) Capabilities() Capabilities             { return Capabilities{} }
func (p *stubProvider) List(context.Context) ([]Record, error) { return nil, nil }
func (p *stubProvider) Create(context.Context, Record) error   { return nil }
func (p *stubProvider) Delete(context.Context, Record) error   { return nil }

func (p *stubProvider) Ping(context.Context) error {
	n := p.pings.Add(1)
	if p.pingFn == nil {
		return nil
	}
	return p.pingFn(n)
}

func instanceConfig(name, typeName string) ProviderInstanceConfig {
	return ProviderInstanceConfig{
		Name:       name,
		TypeName:   typeName,
		RecordType: RecordTypeA,
		Target:     "192.0.2.10",
		TTL:        300,
		Domains:    []string{"*.lab.internal"},
	}
}

func fastRetryManager(registry *Registry) *Manager {
	return NewManager(registry,
		WithManagerLogger(slog.Default()),
		WithManagerConfig(ManagerConfig{
			InitialRetryInterval:   50 * time.Millisecond,
			MaxRetryInterval:       200 * time.Millisecond,
			RetryBackoffMultiplier: 2.0,
		}),
	)
}

func TestManagerInitializeHealthyProvider(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterFactory("stub", func(FactoryConfig) (Provider, error) {
		return &stubProvider{name: "edge", kind: "stub"}, nil
	})

	manager := NewManager(registry, WithManagerLogger(slog.Default()))
	if err := manager.InitializeProvider(instanceConfig("edge", "stub")); err != nil {
		t.Fatalf("InitializeProvider: %v", err)
	}

	if manager.ReadyCount() != 1 || manager.PendingCount() != 0 {
		t.Errorf("ready=%d pending=%d, want 1/0", manager.ReadyCount(), manager.PendingCount())
	}
	if !manager.IsFullyReady() {
		t.Error("IsFullyReady = false with nothing pending")
	}
}

func TestManagerInvalidConfigIsImmediateError(t *testing.T) {
	manager := NewManager(NewRegistry(slog.Default()))

	cfg := instanceConfig("", "stub")
	if err := manager.InitializeProvider(cfg); err == nil {
		t.Fatal("invalid config must fail rather than queue for retry")
	}
	if manager.PendingCount() != 0 {
		t.Errorf("invalid config was queued, pending=%d", manager.PendingCount())
	}
}

func TestManagerUnreachableProviderParksForRetry(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterFactory("stub", func(FactoryConfig) (Provider, error) {
		return nil, errors.New("connection refused")
	})

	manager := fastRetryManager(registry)
	if err := manager.InitializeProvider(instanceConfig("edge", "stub")); err != nil {
		t.Fatalf("connectivity failure must not surface as error: %v", err)
	}

	if manager.ReadyCount() != 0 || manager.PendingCount() != 1 {
		t.Fatalf("ready=%d pending=%d, want 0/1", manager.ReadyCount(), manager.PendingCount())
	}

	pending := manager.PendingProviders()
	if len(pending) != 1 || pending[0].Name != "edge" || pending[0].AttemptCount != 1 {
		t.Errorf("pending status = %+v", pending)
	}
	if wait := pending[0].NextRetryAt.Sub(pending[0].LastAttempt); wait < 40*time.Millisecond || wait > 60*time.Millisecond {
		t.Errorf("first retry scheduled %v out, want ~50ms", wait)
	}
}

func TestManagerFailedPingEvictsFromRegistry(t *testing.T) {
	registry := NewRegistry(slog.Default())
	stub := &stubProvider{
		name: "edge", kind: "stub",
		pingFn: func(int32) error { return errors.New("connection refused") },
	}
	registry.RegisterFactory("stub", func(FactoryConfig) (Provider, error) { return stub, nil })

	manager := fastRetryManager(registry)
	if err := manager.InitializeProvider(instanceConfig("edge", "stub")); err != nil {
		t.Fatalf("ping failure must not surface as error: %v", err)
	}

	if _, ok := registry.Get("edge"); ok {
		t.Error("instance left in registry after failed connectivity check")
	}
	if manager.PendingCount() != 1 {
		t.Errorf("pending=%d, want 1", manager.PendingCount())
	}
	if stub.pings.Load() != 1 {
		t.Errorf("ping called %d times, want 1", stub.pings.Load())
	}
}

func TestManagerRetryLoopRecovers(t *testing.T) {
	registry := NewRegistry(slog.Default())
	// First two pings fail, third succeeds.
	stub := &stubProvider{
		name: "edge", kind: "stub",
		pingFn: func(attempt int32) error {
			if attempt <= 2 {
				return errors.New("connection refused")
			}
			return nil
		},
	}
	registry.RegisterFactory("stub", func(FactoryConfig) (Provider, error) { return stub, nil })

	manager := fastRetryManager(registry)
	_ = manager.InitializeProvider(instanceConfig("edge", "stub"))
	if manager.PendingCount() != 1 {
		t.Fatalf("pending=%d after first attempt, want 1", manager.PendingCount())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if manager.ReadyCount() == 1 && manager.PendingCount() == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("provider never recovered: ready=%d pending=%d pings=%d",
		manager.ReadyCount(), manager.PendingCount(), stub.pings.Load())
}

func TestManagerAllProviderStatuses(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterFactory("stub", func(FactoryConfig) (Provider, error) {
		return &stubProvider{name: "good", kind: "stub"}, nil
	})
	registry.RegisterFactory("broken", func(FactoryConfig) (Provider, error) {
		return nil, errors.New("connection refused")
	})

	manager := fastRetryManager(registry)
	_ = manager.InitializeProvider(instanceConfig("good", "stub"))
	_ = manager.InitializeProvider(instanceConfig("bad", "broken"))

	statuses := manager.AllProviderStatuses()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	byName := map[string]ProviderStatus{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if !byName["good"].Available {
		t.Error("good provider reported unavailable")
	}
	if bad := byName["bad"]; bad.Available || bad.Error == "" {
		t.Errorf("bad provider status = %+v", bad)
	}

	if manager.TotalCount() != 2 {
		t.Errorf("TotalCount = %d, want 2", manager.TotalCount())
	}
}

func TestManagerAllPendingUnauthorized(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterFactory("badauth", func(FactoryConfig) (Provider, error) {
		return nil, ErrUnauthorized
	})
	registry.RegisterFactory("flaky", func(FactoryConfig) (Provider, error) {
		return nil, ErrProviderUnavailable
	})

	manager := fastRetryManager(registry)

	if manager.AllPendingUnauthorized() {
		t.Error("empty pending list must not count as all-unauthorized")
	}

	_ = manager.InitializeProvider(instanceConfig("p1", "badauth"))
	if !manager.AllPendingUnauthorized() {
		t.Error("single unauthorized pending provider should report true")
	}

	_ = manager.InitializeProvider(instanceConfig("p2", "flaky"))
	if manager.AllPendingUnauthorized() {
		t.Error("mixed failure causes must report false")
	}
}
