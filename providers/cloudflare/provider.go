package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/trafegodns/trafego/pkg/provider"
)

// listedTypes are the record types List pulls from the zone.
var listedTypes = []provider.RecordType{
	provider.RecordTypeA,
	provider.RecordTypeAAAA,
	provider.RecordTypeCNAME,
	provider.RecordTypeTXT,
	provider.RecordTypeSRV,
	provider.RecordTypeMX,
}

// Provider implements provider.Provider over the Cloudflare API.
type Provider struct {
	name    string
	zone    string // zone name, for logs and lazy ID lookup
	zoneID  string // resolved zone ID
	ttl     int
	proxied bool
	client  *Client
	logger  *slog.Logger

	zoneIDOnce sync.Once
	zoneIDErr  error
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

// New builds a Cloudflare provider from a validated config.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:    name,
		zone:    config.Zone,
		zoneID:  config.ZoneID,
		ttl:     config.TTL,
		proxied: config.Proxied,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = NewClient(config.Token, WithLogger(p.logger))

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
	cfg := &Config{
		Token:  config["TOKEN"],
		ZoneID: config["ZONE_ID"],
		Zone:   config["ZONE"],
		TTL:    DefaultTTL,
	}

	if ttlStr := config["TTL"]; ttlStr != "" {
		var ttl int
		if _, err := fmt.Sscanf(ttlStr, "%d", &ttl); err == nil {
			cfg.TTL = ttl
		}
	}
	if proxiedStr := config["PROXIED"]; proxiedStr != "" {
		cfg.Proxied = parseBool(proxiedStr)
	}

	return New(name, cfg)
}

// Factory returns the provider.Factory registered under "cloudflare".
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		p, err := NewFromMap(cfg.Name, cfg.ProviderConfig)
		if err != nil {
			return nil, err
		}
		if cfg.HTTP.Logger != nil {
			p.logger = cfg.HTTP.Logger
			p.client.logger = cfg.HTTP.Logger
		}
		return p, nil
	}
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return "cloudflare"
}

// Capabilities: Cloudflare covers the full surface, including proxying and
// per-record comments (where the ownership marker is embedded).
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportsNativeUpdate: true,
		SupportsProxying:     true,
		SupportsMultiValueA:  true,
		SupportsComments:     true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeSRV,
			provider.RecordTypeTXT,
			provider.RecordTypeMX,
			provider.RecordTypeCAA,
			provider.RecordTypeNS,
		},
	}
}

// OwnershipMarker returns the default ownership token.
func (p *Provider) OwnershipMarker() string {
	return provider.OwnershipMarker
}

// Zone returns the configured zone name.
func (p *Provider) Zone() string {
	return p.zone
}

// ZoneID returns the zone ID, resolving it from the zone name once when
// not configured explicitly.
func (p *Provider) ZoneID(ctx context.Context) (string, error) {
	if p.zoneID != "" {
		return p.zoneID, nil
	}

	p.zoneIDOnce.Do(func() {
		p.zoneID, p.zoneIDErr = p.client.GetZoneID(ctx, p.zone)
	})
	if p.zoneIDErr != nil {
		return "", p.zoneIDErr
	}
	return p.zoneID, nil
}

// Ping checks connectivity and token validity.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// fromAPIRecord maps one Cloudflare record onto the canonical model.
func fromAPIRecord(r dnsRecord, recordType provider.RecordType) provider.Record {
	rec := provider.Record{
		Hostname:   r.Name,
		Type:       recordType,
		Target:     r.Content,
		TTL:        r.TTL,
		ProviderID: r.ID,
		Comment:    r.Comment,
	}

	if recordType == provider.RecordTypeA || recordType == provider.RecordTypeAAAA || recordType == provider.RecordTypeCNAME {
		proxied := r.Proxied
		rec.Proxied = &proxied
	}

	if recordType == provider.RecordTypeSRV && r.Data != nil {
		rec.Target = r.Data.Target
		rec.SRV = &provider.SRVData{
			Priority: r.Data.Priority,
			Weight:   r.Data.Weight,
			Port:     r.Data.Port,
		}
	}

	return rec
}

// List pulls every record of the engine-relevant types from the zone.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting zone ID: %w", err)
	}

	var records []provider.Record
	for _, recordType := range listedTypes {
		apiRecords, err := p.client.ListRecords(ctx, zoneID, string(recordType))
		if err != nil {
			return nil, fmt.Errorf("listing %s records: %w", recordType, err)
		}
		for _, r := range apiRecords {
			records = append(records, fromAPIRecord(r, recordType))
		}
	}

	p.logger.Debug("listed records",
		slog.String("provider", p.name),
		slog.String("zone_id", zoneID),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// toPayload builds the API payload for a canonical record, resolving TTL
// and proxied defaults. Cloudflare cannot proxy TXT/SRV/MX/CAA/NS, and a
// proxied record whose TTL is under 60 gets the TTL=1 "automatic" sentinel.
func (p *Provider) toPayload(record provider.Record) (recordPayload, error) {
	ttl := record.TTL
	if ttl <= 0 {
		ttl = p.ttl
	}

	proxied := p.proxied
	if record.Proxied != nil {
		proxied = *record.Proxied
	}
	switch record.Type {
	case provider.RecordTypeTXT, provider.RecordTypeSRV, provider.RecordTypeMX, provider.RecordTypeCAA, provider.RecordTypeNS:
		proxied = false
	}
	if proxied && ttl < 60 {
		ttl = 1
	}

	payload := recordPayload{
		Type:    string(record.Type),
		Name:    record.Hostname,
		Content: record.Target,
		TTL:     ttl,
		Proxied: proxied,
		Comment: record.Comment,
	}

	if record.Type == provider.RecordTypeSRV {
		if record.SRV == nil {
			return recordPayload{}, fmt.Errorf("SRV record %s missing SRV data", record.Hostname)
		}
		payload.Content = ""
		payload.Data = &srvData{
			Priority: record.SRV.Priority,
			Weight:   record.SRV.Weight,
			Port:     record.SRV.Port,
			Target:   record.Target,
		}
	}

	return payload, nil
}

// Create adds a record, embedding the ownership marker via the comment
// field when the caller set one.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return fmt.Errorf("getting zone ID: %w", err)
	}

	payload, err := p.toPayload(record)
	if err != nil {
		return err
	}

	created, err := p.client.CreateRecord(ctx, zoneID, payload)
	if err != nil {
		return fmt.Errorf("creating %s record: %w", record.Type, err)
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
		slog.String("record_id", created.ID),
		slog.Int("ttl", payload.TTL),
		slog.Bool("proxied", payload.Proxied),
	)
	return nil
}

// Delete removes a record, resolving its ID by name and type first.
// Deleting a record that is already gone succeeds.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return fmt.Errorf("getting zone ID: %w", err)
	}

	apiRecord, err := p.client.FindRecord(ctx, zoneID, string(record.Type), record.Hostname)
	if err != nil {
		return fmt.Errorf("finding record: %w", err)
	}
	if apiRecord == nil {
		p.logger.Warn("record not found for deletion",
			slog.String("hostname", record.Hostname),
			slog.String("type", string(record.Type)),
		)
		return nil
	}

	if err := p.client.DeleteRecord(ctx, zoneID, apiRecord.ID); err != nil {
		return fmt.Errorf("deleting %s record: %w", record.Type, err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)
	return nil
}

// Update edits a record in place; implements provider.Updater.
func (p *Provider) Update(ctx context.Context, existing, desired provider.Record) error {
	zoneID, err := p.ZoneID(ctx)
	if err != nil {
		return fmt.Errorf("getting zone ID: %w", err)
	}

	apiRecord, err := p.client.FindRecord(ctx, zoneID, string(existing.Type), existing.Hostname)
	if err != nil {
		return fmt.Errorf("finding record: %w", err)
	}
	if apiRecord == nil {
		return provider.ErrNotFound
	}

	payload, err := p.toPayload(desired)
	if err != nil {
		return err
	}
	// Preserve the record's existing comment when the desired record does
	// not carry one; Cloudflare would otherwise clear it on PUT.
	if payload.Comment == "" {
		payload.Comment = apiRecord.Comment
	}

	if err := p.client.UpdateRecord(ctx, zoneID, apiRecord.ID, payload); err != nil {
		return fmt.Errorf("updating %s record: %w", desired.Type, err)
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("hostname", desired.Hostname),
		slog.String("type", string(desired.Type)),
		slog.String("old_target", existing.Target),
		slog.String("new_target", desired.Target),
		slog.Int("ttl", payload.TTL),
	)
	return nil
}

// Compile-time interface checks.
var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Updater  = (*Provider)(nil)
)
