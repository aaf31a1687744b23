// Package digitalocean implements the Trafego provider interface for
// DigitalOcean DNS using the official godo SDK.
package digitalocean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/digitalocean/godo"

	"github.com/trafegodns/trafego/pkg/provider"
)

// domainsService is the slice of godo.DomainsService the provider uses.
// Declared locally so tests can substitute a fake without a live API.
type domainsService interface {
	Get(ctx context.Context, name string) (*godo.Domain, *godo.Response, error)
	Records(ctx context.Context, domain string, opt *godo.ListOptions) ([]godo.DomainRecord, *godo.Response, error)
	CreateRecord(ctx context.Context, domain string, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, *godo.Response, error)
	EditRecord(ctx context.Context, domain string, id int, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, *godo.Response, error)
	DeleteRecord(ctx context.Context, domain string, id int) (*godo.Response, error)
}

// Provider implements provider.Provider for DigitalOcean DNS.
type Provider struct {
	name    string
	domain  string
	ttl     int
	domains domainsService
	logger  *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withDomainsService substitutes the godo domains client. Used by tests.
func withDomainsService(svc domainsService) ProviderOption {
	return func(p *Provider) {
		p.domains = svc
	}
}

// New creates a new DigitalOcean provider instance.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		domain: strings.TrimSuffix(strings.ToLower(config.Domain), "."),
		ttl:    config.TTL,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.domains == nil {
		p.domains = godo.NewFromToken(config.Token).Domains
	}

	return p, nil
}

// NewFromEnv creates a new DigitalOcean provider from environment variables.
func NewFromEnv(instanceName string, opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig(instanceName)
	if err != nil {
		return nil, err
	}

	return New(instanceName, config, opts...)
}

// NewFromMap creates a new DigitalOcean provider from a configuration map.
// This is used by the provider registry Factory pattern.
func NewFromMap(name string, config map[string]string) (*Provider, error) {
	cfg := &Config{
		Token:  config["TOKEN"],
		Domain: config["DOMAIN"],
		TTL:    DefaultTTL,
	}

	if ttlStr, ok := config["TTL"]; ok && ttlStr != "" {
		var ttl int
		if _, err := fmt.Sscanf(ttlStr, "%d", &ttl); err == nil {
			cfg.TTL = ttl
		}
	}

	return New(name, cfg)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "digitalocean".
func (p *Provider) Type() string {
	return "digitalocean"
}

// Capabilities returns the provider's feature support. DigitalOcean has no
// proxying and no record comments, so ownership is tracked via TXT records.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportsNativeUpdate: true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeTXT,
			provider.RecordTypeSRV,
			provider.RecordTypeMX,
			provider.RecordTypeCAA,
			provider.RecordTypeNS,
		},
		SupportsProxying:    false,
		SupportsMultiValueA: true,
		SupportsComments:    false,
	}
}

// OwnershipMarker returns the default ownership token.
func (p *Provider) OwnershipMarker() string {
	return provider.OwnershipMarker
}

// Domain returns the managed domain name.
func (p *Provider) Domain() string {
	return p.domain
}

// Ping checks connectivity by fetching the configured domain.
func (p *Provider) Ping(ctx context.Context) error {
	_, _, err := p.domains.Get(ctx, p.domain)
	if err != nil {
		return mapError("ping", err)
	}
	return nil
}

// List returns all records in the domain, paginating through the API.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	var records []provider.Record

	opt := &godo.ListOptions{PerPage: 200}
	for {
		page, resp, err := p.domains.Records(ctx, p.domain, opt)
		if err != nil {
			return nil, mapError("listing records", err)
		}

		for _, r := range page {
			rec, ok := p.toRecord(r)
			if !ok {
				continue
			}
			records = append(records, rec)
		}

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		current, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = current + 1
	}

	p.logger.Debug("listed records",
		slog.String("provider", p.name),
		slog.String("domain", p.domain),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// Create adds a new DNS record.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	req, err := p.toEditRequest(record)
	if err != nil {
		return err
	}

	_, _, err = p.domains.CreateRecord(ctx, p.domain, req)
	if err != nil {
		return mapError(fmt.Sprintf("creating %s record", record.Type), err)
	}

	p.logger.Info("created record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
		slog.Int("ttl", req.TTL),
	)

	return nil
}

// Delete removes a DNS record. Deleting a record that no longer exists is
// not an error.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	id, err := p.findRecordID(ctx, record)
	if err != nil {
		return err
	}
	if id == 0 {
		p.logger.Warn("record not found for deletion",
			slog.String("hostname", record.Hostname),
			slog.String("type", string(record.Type)),
		)
		return nil
	}

	if _, err := p.domains.DeleteRecord(ctx, p.domain, id); err != nil {
		mapped := mapError(fmt.Sprintf("deleting %s record", record.Type), err)
		if errors.Is(mapped, provider.ErrNotFound) {
			return nil
		}
		return mapped
	}

	p.logger.Info("deleted record",
		slog.String("provider", p.name),
		slog.String("hostname", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)

	return nil
}

// Update modifies an existing DNS record in place via EditRecord.
// This implements the provider.Updater interface.
func (p *Provider) Update(ctx context.Context, existing, desired provider.Record) error {
	id, err := p.findRecordID(ctx, existing)
	if err != nil {
		return err
	}
	if id == 0 {
		return provider.ErrNotFound
	}

	req, err := p.toEditRequest(desired)
	if err != nil {
		return err
	}

	if _, _, err := p.domains.EditRecord(ctx, p.domain, id, req); err != nil {
		return mapError(fmt.Sprintf("updating %s record", desired.Type), err)
	}

	p.logger.Info("updated record",
		slog.String("provider", p.name),
		slog.String("hostname", desired.Hostname),
		slog.String("type", string(desired.Type)),
		slog.String("target", desired.Target),
	)

	return nil
}

// findRecordID locates the DigitalOcean record matching (type, hostname,
// target) and returns its numeric ID, or 0 if no such record exists.
func (p *Provider) findRecordID(ctx context.Context, record provider.Record) (int, error) {
	if record.ProviderID != "" {
		if id, err := strconv.Atoi(record.ProviderID); err == nil {
			return id, nil
		}
	}

	relName := p.relativeName(record.Hostname)

	opt := &godo.ListOptions{PerPage: 200}
	for {
		page, resp, err := p.domains.Records(ctx, p.domain, opt)
		if err != nil {
			return 0, mapError("finding record", err)
		}

		for _, r := range page {
			if r.Type != string(record.Type) || !strings.EqualFold(r.Name, relName) {
				continue
			}
			if record.Target == "" || targetsEqual(r.Data, record.Target) {
				return r.ID, nil
			}
		}

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		current, err := resp.Links.CurrentPage()
		if err != nil {
			break
		}
		opt.Page = current + 1
	}

	return 0, nil
}

// toRecord converts a godo.DomainRecord to the canonical model. Returns
// false for record types the engine does not manage (SOA, etc.).
func (p *Provider) toRecord(r godo.DomainRecord) (provider.Record, bool) {
	rt := provider.RecordType(r.Type)
	switch rt {
	case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME,
		provider.RecordTypeTXT, provider.RecordTypeSRV, provider.RecordTypeMX,
		provider.RecordTypeCAA, provider.RecordTypeNS:
	default:
		return provider.Record{}, false
	}

	rec := provider.Record{
		Hostname:   p.absoluteName(r.Name),
		Type:       rt,
		Target:     strings.TrimSuffix(r.Data, "."),
		TTL:        r.TTL,
		ProviderID: strconv.Itoa(r.ID),
	}

	switch rt {
	case provider.RecordTypeSRV:
		rec.SRV = &provider.SRVData{
			Priority: uint16(r.Priority),
			Weight:   uint16(r.Weight),
			Port:     uint16(r.Port),
		}
	case provider.RecordTypeMX:
		prio := uint16(r.Priority)
		rec.MXPriority = &prio
	case provider.RecordTypeCAA:
		rec.CAA = &provider.CAAData{
			Flags: uint8(r.Flags),
			Tag:   r.Tag,
		}
	}

	return rec, true
}

// toEditRequest converts a canonical record into a godo edit request,
// applying the provider default TTL when the record carries none.
func (p *Provider) toEditRequest(record provider.Record) (*godo.DomainRecordEditRequest, error) {
	ttl := record.TTL
	if ttl <= 0 || ttl == provider.AutoTTL {
		ttl = p.ttl
	}
	if ttl < MinTTL {
		ttl = MinTTL
	}

	req := &godo.DomainRecordEditRequest{
		Type: string(record.Type),
		Name: p.relativeName(record.Hostname),
		Data: record.Target,
		TTL:  ttl,
	}

	switch record.Type {
	case provider.RecordTypeSRV:
		if record.SRV == nil {
			return nil, fmt.Errorf("creating SRV record: SRV data is required")
		}
		req.Priority = int(record.SRV.Priority)
		req.Weight = int(record.SRV.Weight)
		req.Port = int(record.SRV.Port)
	case provider.RecordTypeMX:
		if record.MXPriority == nil {
			return nil, fmt.Errorf("creating MX record: priority is required")
		}
		req.Priority = int(*record.MXPriority)
		// DigitalOcean requires a trailing dot on MX targets
		if !strings.HasSuffix(req.Data, ".") {
			req.Data += "."
		}
	case provider.RecordTypeCNAME, provider.RecordTypeNS:
		if !strings.HasSuffix(req.Data, ".") {
			req.Data += "."
		}
	case provider.RecordTypeCAA:
		if record.CAA == nil {
			return nil, fmt.Errorf("creating CAA record: flags and tag are required")
		}
		req.Flags = int(record.CAA.Flags)
		req.Tag = record.CAA.Tag
	}

	return req, nil
}

// relativeName converts a fully-qualified hostname to the domain-relative
// form DigitalOcean uses ("@" for the apex).
func (p *Provider) relativeName(hostname string) string {
	h := strings.TrimSuffix(strings.ToLower(hostname), ".")
	if h == p.domain {
		return "@"
	}
	return strings.TrimSuffix(h, "."+p.domain)
}

// absoluteName converts a domain-relative record name back to a
// fully-qualified hostname.
func (p *Provider) absoluteName(name string) string {
	if name == "@" || name == "" {
		return p.domain
	}
	if strings.HasSuffix(name, "."+p.domain) {
		return name
	}
	return name + "." + p.domain
}

// targetsEqual compares record contents, ignoring the trailing dot
// DigitalOcean appends to hostname-valued records.
func targetsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

// mapError translates godo errors into the provider error taxonomy.
func mapError(operation string, err error) error {
	var apiErr *godo.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		status := apiErr.Response.StatusCode
		switch {
		case status == 401 || status == 403:
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrUnauthorized, apiErr.Message)
		case status == 404:
			return fmt.Errorf("%s: %w", operation, provider.ErrNotFound)
		case status == 409 || status == 422:
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrConflict, apiErr.Message)
		case status == 429:
			return fmt.Errorf("%s: %w", operation, &provider.RateLimitedError{})
		case status >= 500:
			return fmt.Errorf("%s: %w: %s", operation, provider.ErrProviderUnavailable, apiErr.Message)
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", operation, provider.ErrCancelled)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// Ensure Provider implements the provider interfaces at compile time.
var _ provider.Provider = (*Provider)(nil)
var _ provider.Updater = (*Provider)(nil)
