package rfc2136

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trafegodns/trafego/pkg/dnsupdate"
	"github.com/trafegodns/trafego/pkg/provider"

	"github.com/miekg/dns"
)

// Provider implements provider.Provider over RFC 2136 dynamic updates.
// Record enumeration rides the dnsupdate.Catalog rather than AXFR, so any
// compliant server works even with zone transfers locked down.
type Provider struct {
	name    string
	zone    string
	ttl     int
	client  *dnsupdate.Client
	catalog *dnsupdate.Catalog
	logger  *slog.Logger
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

// New builds an RFC 2136 provider from a validated config.
func New(name string, config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		name:   name,
		zone:   config.Zone,
		ttl:    config.TTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := dnsupdate.NewClient(config.ToDNSUpdateConfig(), dnsupdate.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("creating dnsupdate client: %w", err)
	}
	p.client = client
	p.catalog = dnsupdate.NewCatalog(client, config.Zone, p.logger)

	return p, nil
}

// NewFromEnv builds a provider from the instance's environment variables.
func NewFromEnv(instanceName string, opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig(instanceName)
	if err != nil {
		return nil, err
	}
	return New(instanceName, config, opts...)
}

// Name returns the provider instance name.
func (p *Provider) Name() string {
	return p.name
}

// Type returns "rfc2136".
func (p *Provider) Type() string {
	return "rfc2136"
}

// Capabilities reports feature support. Dynamic update servers take
// anything pkg/dnsupdate can render, allow several A records at one name,
// and have no comment channel, so ownership rides TXT records.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsOwnershipTXT: true,
		SupportsNativeUpdate: true,
		SupportsMultiValueA:  true,
		SupportedRecordTypes: []provider.RecordType{
			provider.RecordTypeA,
			provider.RecordTypeAAAA,
			provider.RecordTypeCNAME,
			provider.RecordTypeTXT,
			provider.RecordTypeSRV,
			provider.RecordTypeMX,
			provider.RecordTypeNS,
			provider.RecordTypeCAA,
		},
	}
}

// OwnershipMarker returns the default ownership token.
func (p *Provider) OwnershipMarker() string {
	return provider.OwnershipMarker
}

// Zone returns the configured DNS zone.
func (p *Provider) Zone() string {
	return p.zone
}

// Ping checks connectivity to the DNS server.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// List enumerates managed records through the catalog: every cataloged
// hostname is queried for its ownership TXT and its data records. The
// catalog itself is maintained by Create and Delete, so this sees exactly
// what the engine wrote.
func (p *Provider) List(ctx context.Context) ([]provider.Record, error) {
	if p.client == nil || p.catalog == nil {
		p.logger.Debug("no client/catalog configured, returning empty listing",
			slog.String("zone", p.zone),
		)
		return []provider.Record{}, nil
	}

	hostnames, err := p.catalog.Hostnames(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if len(hostnames) == 0 {
		return []provider.Record{}, nil
	}

	var records []provider.Record
	for _, hostname := range hostnames {
		records = append(records, p.listHostname(ctx, hostname)...)
	}

	stats := p.catalog.Stats()
	p.logger.Debug("RFC 2136 listing complete",
		slog.String("zone", p.zone),
		slog.Int("catalog_hostnames", stats.TotalHostnames),
		slog.Int("catalog_chunks", stats.ChunkCount),
		slog.Int("records_returned", len(records)),
	)
	return records, nil
}

// listHostname collects the ownership TXT and data records for one
// cataloged hostname. Query failures degrade to a partial listing rather
// than failing the whole enumeration.
func (p *Provider) listHostname(ctx context.Context, hostname string) []provider.Record {
	var records []provider.Record

	ownershipName := provider.OwnershipRecordName(hostname)
	ownershipFQDN := p.ensureFQDN(ownershipName)
	ownershipRecords, err := p.client.Query(ctx, ownershipFQDN, dns.TypeTXT)
	if err != nil {
		p.logger.Warn("failed to query ownership record",
			slog.String("hostname", hostname),
			slog.String("error", err.Error()),
		)
		return nil
	}

	hasOwnership := false
	for _, r := range ownershipRecords {
		if r.Type == dns.TypeTXT && strings.Contains(r.RData, provider.OwnershipMarker) {
			hasOwnership = true
			records = append(records, provider.Record{
				Hostname:   ownershipName,
				Type:       provider.RecordTypeTXT,
				Target:     provider.OwnershipMarker,
				TTL:        int(r.TTL),
				ProviderID: fmt.Sprintf("%s:TXT:%s", ownershipFQDN, r.RData),
			})
			break
		}
	}
	if !hasOwnership {
		p.logger.Debug("hostname in catalog without ownership record",
			slog.String("hostname", hostname),
		)
	}

	hostnameFQDN := p.ensureFQDN(hostname)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeTXT, dns.TypeSRV, dns.TypeMX, dns.TypeNS, dns.TypeCAA} {
		dnsRecords, err := p.client.Query(ctx, hostnameFQDN, qtype)
		if err != nil {
			p.logger.Debug("query failed for hostname",
				slog.String("hostname", hostname),
				slog.String("type", dns.TypeToString[qtype]),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, r := range dnsRecords {
			record, err := p.fromRFC2136Record(r)
			if err != nil {
				continue
			}
			records = append(records, record)
		}
	}
	return records
}

// Create adds a record and, for data records, registers the hostname in the
// catalog. Ownership TXT records are deliberately not cataloged; they are
// derived from the data hostnames.
func (p *Provider) Create(ctx context.Context, record provider.Record) error {
	dnsRecord, err := p.toRFC2136Record(record)
	if err != nil {
		return fmt.Errorf("converting record: %w", err)
	}

	if err := p.client.Create(ctx, dnsRecord); err != nil {
		return fmt.Errorf("creating record %s: %w", record.Hostname, err)
	}

	p.logger.Info("RFC 2136 record created",
		slog.String("name", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)

	if p.catalog != nil && !provider.IsOwnershipRecord(record.Hostname) {
		if err := p.catalog.Add(ctx, record.Hostname); err != nil {
			// The DNS record landed; a stale catalog is repairable later.
			p.logger.Warn("failed to add hostname to catalog",
				slog.String("hostname", record.Hostname),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Delete removes a record and, for data records, drops the hostname from
// the catalog.
func (p *Provider) Delete(ctx context.Context, record provider.Record) error {
	dnsRecord, err := p.toRFC2136Record(record)
	if err != nil {
		return fmt.Errorf("converting record: %w", err)
	}

	if err := p.client.Delete(ctx, dnsRecord); err != nil {
		return fmt.Errorf("deleting record %s: %w", record.Hostname, err)
	}

	if p.catalog != nil && !provider.IsOwnershipRecord(record.Hostname) {
		if err := p.catalog.Remove(ctx, record.Hostname); err != nil {
			p.logger.Warn("failed to remove hostname from catalog",
				slog.String("hostname", record.Hostname),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Info("RFC 2136 record deleted",
		slog.String("name", record.Hostname),
		slog.String("type", string(record.Type)),
		slog.String("target", record.Target),
	)
	return nil
}

// Update swaps existing for desired in one UPDATE message, which RFC 2136
// applies atomically.
func (p *Provider) Update(ctx context.Context, existing, desired provider.Record) error {
	oldRecord, err := p.toRFC2136Record(existing)
	if err != nil {
		return fmt.Errorf("converting existing record: %w", err)
	}
	newRecord, err := p.toRFC2136Record(desired)
	if err != nil {
		return fmt.Errorf("converting desired record: %w", err)
	}

	if err := p.client.Update(ctx, oldRecord, newRecord); err != nil {
		return fmt.Errorf("updating record %s: %w", existing.Hostname, err)
	}

	p.logger.Info("RFC 2136 record updated",
		slog.String("name", existing.Hostname),
		slog.String("type", string(existing.Type)),
		slog.String("old_target", existing.Target),
		slog.String("new_target", desired.Target),
	)
	return nil
}

// recordTypeMap pairs the canonical record types with their wire codes.
var recordTypeMap = map[provider.RecordType]uint16{
	provider.RecordTypeA:     dns.TypeA,
	provider.RecordTypeAAAA:  dns.TypeAAAA,
	provider.RecordTypeCNAME: dns.TypeCNAME,
	provider.RecordTypeTXT:   dns.TypeTXT,
	provider.RecordTypeSRV:   dns.TypeSRV,
	provider.RecordTypeMX:    dns.TypeMX,
	provider.RecordTypeNS:    dns.TypeNS,
	provider.RecordTypeCAA:   dns.TypeCAA,
}

// uint16ToRecordType inverts recordTypeMap.
func uint16ToRecordType(t uint16) (provider.RecordType, bool) {
	for rt, code := range recordTypeMap {
		if code == t {
			return rt, true
		}
	}
	return "", false
}

// toRFC2136Record maps a canonical record onto the wire representation,
// qualifying names against the zone and rendering type-specific rdata.
func (p *Provider) toRFC2136Record(record provider.Record) (dnsupdate.Record, error) {
	typeCode, ok := recordTypeMap[record.Type]
	if !ok {
		return dnsupdate.Record{}, fmt.Errorf("unsupported record type: %s", record.Type)
	}

	ttl := uint32(p.ttl)
	if record.TTL > 0 {
		ttl = uint32(record.TTL)
	}

	r := dnsupdate.Record{
		Name: p.ensureFQDN(record.Hostname),
		Type: typeCode,
		TTL:  ttl,
	}

	switch record.Type {
	case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeTXT:
		r.RData = record.Target

	case provider.RecordTypeCNAME, provider.RecordTypeNS:
		r.RData = fqdnTarget(record.Target)

	case provider.RecordTypeMX:
		r.RData = fqdnTarget(record.Target)
		if record.MXPriority != nil {
			r.Priority = *record.MXPriority
		}

	case provider.RecordTypeSRV:
		r.RData = fqdnTarget(record.Target)
		if record.SRV != nil {
			r.Priority = record.SRV.Priority
			r.Weight = record.SRV.Weight
			r.Port = record.SRV.Port
		}

	case provider.RecordTypeCAA:
		caa := record.CAA
		if caa == nil {
			return dnsupdate.Record{}, fmt.Errorf("CAA record %s missing flags/tag", record.Hostname)
		}
		r.RData = fmt.Sprintf("%d %s %s", caa.Flags, caa.Tag, record.Target)
	}

	return r, nil
}

// fromRFC2136Record maps a wire record back onto the canonical model.
func (p *Provider) fromRFC2136Record(r dnsupdate.Record) (provider.Record, error) {
	recordType, ok := uint16ToRecordType(r.Type)
	if !ok {
		return provider.Record{}, fmt.Errorf("unsupported record type: %s", r.TypeString())
	}

	record := provider.Record{
		Hostname:   strings.TrimSuffix(r.Name, "."),
		Type:       recordType,
		Target:     strings.TrimSuffix(r.RData, "."),
		TTL:        int(r.TTL),
		ProviderID: fmt.Sprintf("%s:%s:%s", r.Name, r.TypeString(), r.RData),
	}

	switch recordType {
	case provider.RecordTypeSRV:
		record.SRV = &provider.SRVData{
			Priority: r.Priority,
			Weight:   r.Weight,
			Port:     r.Port,
		}
	case provider.RecordTypeMX:
		priority := r.Priority
		record.MXPriority = &priority
	case provider.RecordTypeCAA:
		// RData is "flag tag value"; split it back apart.
		parts := strings.SplitN(r.RData, " ", 3)
		if len(parts) == 3 {
			var flags uint8
			_, _ = fmt.Sscanf(parts[0], "%d", &flags)
			record.CAA = &provider.CAAData{Flags: flags, Tag: parts[1]}
			record.Target = parts[2]
		}
	}

	return record, nil
}

// fqdnTarget appends the trailing dot to a target hostname when absent.
func fqdnTarget(target string) string {
	if strings.HasSuffix(target, ".") {
		return target
	}
	return target + "."
}

// ensureFQDN fully qualifies a hostname against the zone: names already
// carrying the zone just gain the trailing dot, bare names gain the zone.
func (p *Provider) ensureFQDN(hostname string) string {
	if strings.HasSuffix(hostname, ".") {
		return hostname
	}
	zone := strings.TrimSuffix(p.zone, ".")
	if strings.HasSuffix(hostname, zone) || strings.HasSuffix(hostname, "."+zone) {
		return hostname + "."
	}
	return hostname + "." + zone + "."
}

// Verify interface compliance at compile time.
var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Updater  = (*Provider)(nil)
)
