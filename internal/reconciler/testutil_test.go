package reconciler

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/trafegodns/trafego/internal/docker"
	"github.com/trafegodns/trafego/internal/matcher"
	"github.com/trafegodns/trafego/pkg/provider"
)

// testMockWorkloadLister is a scripted WorkloadLister.
type testMockWorkloadLister struct {
	mode      docker.Mode
	workloads []docker.Workload
	listErr   error
}

func newTestMockWorkloadLister(mode docker.Mode) *testMockWorkloadLister {
	return &testMockWorkloadLister{mode: mode}
}

func (m *testMockWorkloadLister) ListWorkloads(context.Context) ([]docker.Workload, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.workloads, nil
}

func (m *testMockWorkloadLister) Mode() docker.Mode {
	return m.mode
}

func (m *testMockWorkloadLister) AddWorkload(name string, labels map[string]string) {
	m.workloads = append(m.workloads, docker.Workload{
		ID:     "id-" + name,
		Name:   name,
		Labels: labels,
		Type:   docker.WorkloadTypeService,
	})
}

// testMockProvider is an in-memory provider that records every mutation.
type testMockProvider struct {
	name     string
	typeName string

	mu       sync.Mutex
	records  []provider.Record
	created  []provider.Record
	deleted  []provider.Record
	pingErr  error
	listErr  error
	createFn func(ctx context.Context, r provider.Record) error
	deleteFn func(ctx context.Context, r provider.Record) error
}

func newTestMockProvider(name string) *testMockProvider {
	return &testMockProvider{name: name, typeName: "mock"}
}

func (m *testMockProvider) Name() string            { return m.name }
func (m *testMockProvider) Type() string            { return m.typeName }
func (m *testMockProvider) OwnershipMarker() string { return provider.OwnershipMarker }

func (m *testMockProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeTXT,
			provider.RecordTypeSRV,
		},
	}
}

func (m *testMockProvider) Ping(context.Context) error {
	return m.pingErr
}

func (m *testMockProvider) List(context.Context) ([]provider.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]provider.Record, len(m.records))
	copy(result, m.records)
	return result, nil
}

func (m *testMockProvider) Create(ctx context.Context, r provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createFn != nil {
		if err := m.createFn(ctx, r); err != nil {
			return err
		}
	}
	m.created = append(m.created, r)
	m.records = append(m.records, r)
	return nil
}

func (m *testMockProvider) Delete(ctx context.Context, r provider.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteFn != nil {
		if err := m.deleteFn(ctx, r); err != nil {
			return err
		}
	}
	m.deleted = append(m.deleted, r)

	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.Hostname != r.Hostname || rec.Type != r.Type || rec.Target != r.Target {
			kept = append(kept, rec)
		}
	}
	m.records = kept
	return nil
}

// AddRecord seeds a provider-side record.
func (m *testMockProvider) AddRecord(r provider.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// GetCreated returns every Create call observed, ownership TXT included.
func (m *testMockProvider) GetCreated() []provider.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]provider.Record, len(m.created))
	copy(result, m.created)
	return result
}

// GetDeleted returns every Delete call observed.
func (m *testMockProvider) GetDeleted() []provider.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]provider.Record, len(m.deleted))
	copy(result, m.deleted)
	return result
}

// GetCreatedDNSRecords returns created data records, excluding ownership
// TXT markers.
func (m *testMockProvider) GetCreatedDNSRecords() []provider.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []provider.Record
	for _, r := range m.created {
		if r.Type != provider.RecordTypeTXT {
			result = append(result, r)
		}
	}
	return result
}

// GetCreatedOwnershipRecords returns the created ownership TXT markers.
func (m *testMockProvider) GetCreatedOwnershipRecords() []provider.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []provider.Record
	for _, r := range m.created {
		if r.Type == provider.RecordTypeTXT {
			result = append(result, r)
		}
	}
	return result
}

// testProviderInstance wraps a mock provider in an instance routing the
// given domains.
func testProviderInstance(mock *testMockProvider, domains []string, recordType provider.RecordType, target string) *provider.ProviderInstance {
	domainMatcher, _ := matcher.NewDomainMatcher(matcher.DomainMatcherConfig{Includes: domains})
	return &provider.ProviderInstance{
		Provider:   mock,
		Matcher:    domainMatcher,
		RecordType: recordType,
		Target:     target,
		TTL:        300,
	}
}

// quietLogger discards everything up to and including error.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
