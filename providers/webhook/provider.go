package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/trafegodns/trafego/pkg/provider"
)

// recordTypeFromWire maps webhook type strings onto the canonical types.
var recordTypeFromWire = map[string]provider.RecordType{
	"A":     provider.RecordTypeA,
	"AAAA":  provider.RecordTypeAAAA,
	"CNAME": provider.RecordTypeCNAME,
	"TXT":   provider.RecordTypeTXT,
	"SRV":   provider.RecordTypeSRV,
}

// Provider implements provider.Provider by delegating every operation to a
// remote webhook endpoint. The actual DNS backend is whatever sits behind
// that endpoint.
type Provider struct {
	name       string
	client     *Client
	httpClient *http.Client
	logger     *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithProviderLogger overrides the logger.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProviderHTTPClient injects a pre-configured HTTP client (timeout,
// TLS, user agent), as the factory does.
func WithProviderHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// New builds a webhook provider from a validated config.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []ClientOption{
		WithLogger(p.logger),
		WithRetries(config.Retries),
		WithRetryDelay(config.RetryDelay),
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(p.httpClient))
	}
	p.client = NewClient(config.URL, config.Timeout, config.AuthHeader, config.AuthToken, clientOpts...)

	return p, nil
}

// NewFromEnv builds a provider from the instance's environment block.
func NewFromEnv(instanceName string, opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig(instanceName)
	if err != nil {
		return nil, err
	}
	return New(instanceName, config, opts...)
}

// NewFromMap builds a provider from registry-supplied settings.
func NewFromMap(name string, config map[string]string) (*Provider, error) {
	cfg, err := LoadConfigFromMap(name, config)
	if err != nil {
		return nil, err
	}
	return New(name, cfg)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "webhook".
func (p *Provider) Type() string {
	return "webhook"
}

// Capabilities: the remote endpoint abstracts the real backend, so the
// adapter advertises the full contract surface and leaves enforcement to
// the endpoint.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportsNativeUpdate: true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeSRV,
			provider.RecordTypeTXT,
		},
	}
}

// Ping checks the endpoint's /ping route.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// OwnershipMarker returns the default ownership token.
func (p *Provider) OwnershipMarker() string {
	return provider.OwnershipMarker
}

// List pulls the endpoint's record set, skipping types outside the
// contract.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	webhookRecords, err := p.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var records []provider.Record
	for _, r := range webhookRecords {
		recordType, ok := recordTypeFromWire[r.Type]
		if !ok {
			continue
		}

		rec := provider.Record{
			Hostname:   r.Hostname,
			Type:       recordType,
			Target:     r.Value,
			TTL:        r.TTL,
			ProviderID: r.ID,
		}
		if recordType == provider.RecordTypeSRV && r.SRV != nil {
			rec.SRV = &provider.SRVData{
				Priority: r.SRV.Priority,
				Weight:   r.SRV.Weight,
				Port:     r.SRV.Port,
			}
		}
		records = append(records, rec)
	}

	p.logger.Debug("listed records",
		slog.String("provider", p.name),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// Create forwards a create to the endpoint.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	var err error
	if record.Type == provider.RecordTypeSRV {
		if record.SRV == nil {
			return fmt.Errorf("creating SRV record: SRV data is required")
		}
		err = p.client.CreateSRV(ctx, record.Hostname, record.SRV.Priority, record.SRV.Weight, record.SRV.Port, record.Target, record.TTL)
	} else {
		err = p.client.Create(ctx, record.Hostname, string(record.Type), record.Target, record.TTL)
	}
	if err != nil {
		return fmt.Errorf("creating %s record: %w", record.Type, err)
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
		slog.Int("ttl", record.TTL),
	)
	return nil
}

// Delete forwards a delete to the endpoint.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	if err := p.client.Delete(ctx, record.Hostname, string(record.Type)); err != nil {
		return fmt.Errorf("deleting %s record: %w", record.Type, err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
	)
	return nil
}

// Update forwards an in-place swap to the endpoint; implements
// provider.Updater.
func (p *Provider) Update(ctx context.Context, existing, desired provider.Record) error {
	var err error
	if desired.Type == provider.RecordTypeSRV {
		if desired.SRV == nil || existing.SRV == nil {
			return fmt.Errorf("updating SRV record: SRV data is required for both existing and desired records")
		}
		err = p.client.UpdateSRV(ctx,
			desired.Hostname,
			existing.SRV.Priority, existing.SRV.Weight, existing.SRV.Port, existing.Target,
			desired.SRV.Priority, desired.SRV.Weight, desired.SRV.Port, desired.Target,
			desired.TTL,
		)
	} else {
		err = p.client.Update(ctx, desired.Hostname, string(desired.Type), existing.Target, desired.Target, desired.TTL)
	}
	if err != nil {
		return fmt.Errorf("updating %s record: %w", desired.Type, err)
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("hostname", desired.Hostname),
		slog.String("type", string(desired.Type)),
		slog.String("old_target", existing.Target),
		slog.String("new_target", desired.Target),
		slog.Int("ttl", desired.TTL),
	)
	return nil
}

// Compile-time interface checks.
var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Updater  = (*Provider)(nil)
)
