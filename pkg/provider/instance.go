package provider

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/trafegodns/trafego/internal/matcher"
	"github.com/trafegodns/trafego/internal/metrics"
)

// Metrics status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// targetFamily classifies a record target string.
type targetFamily int

const (
	targetHostname targetFamily = iota
	targetIPv4
	targetIPv6
)

func classifyTarget(s string) targetFamily {
	ip := net.ParseIP(s)
	switch {
	case ip == nil:
		return targetHostname
	case ip.To4() != nil:
		return targetIPv4
	default:
		return targetIPv6
	}
}

// ProviderInstance binds a Provider adapter to the routing and record
// defaults of one configured instance: which hostnames it handles, what
// record type and target it writes by default, and how much authority it
// has over provider-side records.
type ProviderInstance struct {
	// Provider is the underlying DNS provider implementation.
	Provider Provider

	// Matcher decides which hostnames route to this instance.
	Matcher *matcher.DomainMatcher

	// RecordType is the default type for created records (A, AAAA, CNAME).
	RecordType RecordType

	// Target is the default record value: an IP for A/AAAA, a hostname
	// for CNAME.
	Target string

	// TTL is the default record TTL in seconds.
	TTL int

	// Mode bounds this instance's authority. Zero value behaves as
	// ModeManaged.
	Mode OperationalMode
}

// Name delegates to the underlying Provider.
func (pi *ProviderInstance) Name() string {
	return pi.Provider.Name()
}

// Type delegates to the underlying Provider.
func (pi *ProviderInstance) Type() string {
	return pi.Provider.Type()
}

// Matches reports whether this instance handles the given hostname.
func (pi *ProviderInstance) Matches(hostname string) bool {
	return pi.Matcher.Matches(hostname)
}

// call runs one provider operation with the transient-error retry policy,
// recording request count and duration metrics under op. Every mutating or
// listing call into the underlying Provider goes through here, so the
// backoff behavior is uniform across adapters.
func (pi *ProviderInstance) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := WithRetry(ctx, nil, DefaultRetryPolicy(), pi.Name()+"/"+op, fn)

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	metrics.ProviderAPIRequestsTotal.WithLabelValues(pi.Name(), op, status).Inc()
	metrics.ProviderAPIDuration.WithLabelValues(pi.Name(), op).Observe(time.Since(start).Seconds())

	return err
}

// ListRecords returns the provider's full record set, retrying transient
// failures. Callers that need the raw listing (record snapshots, ownership
// recovery) use this rather than Provider.List directly.
func (pi *ProviderInstance) ListRecords(ctx context.Context) ([]Record, error) {
	var records []Record
	err := pi.call(ctx, "list", func() error {
		var listErr error
		records, listErr = pi.Provider.List(ctx)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CreateRecord creates a record for hostname from the instance defaults.
func (pi *ProviderInstance) CreateRecord(ctx context.Context, hostname string) error {
	return pi.CreateRecordWithValues(ctx, hostname, pi.RecordType, pi.Target, pi.TTL, nil, nil)
}

// CreateRecordWithValues creates a record with explicit type, target, TTL,
// optional SRV data, and optional proxied flag, overriding the instance
// defaults. Used when per-hostname hints are in play. A nil proxied leaves
// the decision to the provider's own default.
func (pi *ProviderInstance) CreateRecordWithValues(ctx context.Context, hostname string, recordType RecordType, target string, ttl int, srvData *SRVData, proxied *bool) error {
	record := Record{
		Hostname: hostname,
		Type:     recordType,
		Target:   target,
		TTL:      ttl,
		SRV:      srvData,
		Proxied:  proxied,
	}
	return pi.call(ctx, "create", func() error {
		return pi.Provider.Create(ctx, record)
	})
}

// DeleteRecord removes the default-shaped record for hostname.
func (pi *ProviderInstance) DeleteRecord(ctx context.Context, hostname string) error {
	record := Record{
		Hostname: hostname,
		Type:     pi.RecordType,
		Target:   pi.Target,
	}
	return pi.call(ctx, "delete", func() error {
		return pi.Provider.Delete(ctx, record)
	})
}

// DeleteRecordByTarget removes one specific record identified by hostname,
// type, and target. Needed when cleaning up a record whose target no longer
// matches the instance default.
func (pi *ProviderInstance) DeleteRecordByTarget(ctx context.Context, hostname string, recordType RecordType, target string) error {
	record := Record{
		Hostname: hostname,
		Type:     recordType,
		Target:   target,
	}
	return pi.call(ctx, "delete", func() error {
		return pi.Provider.Delete(ctx, record)
	})
}

// DeleteSRVRecord removes one SRV record including its priority/weight/port
// tuple. Several SRV records may share a hostname and target and differ only
// in that tuple.
func (pi *ProviderInstance) DeleteSRVRecord(ctx context.Context, hostname string, target string, srvData *SRVData) error {
	record := Record{
		Hostname: hostname,
		Type:     RecordTypeSRV,
		Target:   target,
		SRV:      srvData,
	}
	return pi.call(ctx, "delete", func() error {
		return pi.Provider.Delete(ctx, record)
	})
}

// UpdateRecord applies desired over existing. Providers implementing Updater
// get a native in-place edit; everything else falls back to delete+create.
// An ErrNotFound from the delete leg is tolerated: the record may have been
// removed out from under us, and the create leg restores it either way.
func (pi *ProviderInstance) UpdateRecord(ctx context.Context, existing, desired Record) error {
	if updater, ok := pi.Provider.(Updater); ok {
		return pi.call(ctx, "update", func() error {
			return updater.Update(ctx, existing, desired)
		})
	}

	if err := pi.call(ctx, "delete", func() error {
		return pi.Provider.Delete(ctx, existing)
	}); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	return pi.call(ctx, "create", func() error {
		return pi.Provider.Create(ctx, desired)
	})
}

// GetExistingRecords returns the data records (A/AAAA/CNAME/SRV) present at
// the provider for hostname. Ownership TXT records are filtered out. The
// reconciler uses this to spot target drift and type conflicts before
// creating.
func (pi *ProviderInstance) GetExistingRecords(ctx context.Context, hostname string) ([]Record, error) {
	allRecords, err := pi.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	var matching []Record
	for _, r := range allRecords {
		if r.Hostname != hostname {
			continue
		}
		switch r.Type {
		case RecordTypeA, RecordTypeAAAA, RecordTypeCNAME, RecordTypeSRV:
			matching = append(matching, r)
		}
	}
	return matching, nil
}

// CreateOwnershipRecord writes the ownership TXT record for hostname. A
// conflict is not an error: the marker may already be in place from an
// earlier run.
func (pi *ProviderInstance) CreateOwnershipRecord(ctx context.Context, hostname string) error {
	record := OwnershipRecord(hostname, pi.TTL)
	err := pi.call(ctx, "create_ownership", func() error {
		return pi.Provider.Create(ctx, record)
	})
	if IsConflict(err) {
		return nil
	}
	return err
}

// DeleteOwnershipRecord removes the ownership TXT record for hostname.
func (pi *ProviderInstance) DeleteOwnershipRecord(ctx context.Context, hostname string) error {
	record := OwnershipRecord(hostname, pi.TTL)
	return pi.call(ctx, "delete_ownership", func() error {
		return pi.Provider.Delete(ctx, record)
	})
}

// HasOwnershipRecord reports whether the ownership TXT record for hostname
// exists at the provider.
func (pi *ProviderInstance) HasOwnershipRecord(ctx context.Context, hostname string) (bool, error) {
	ownershipName := OwnershipRecordName(hostname)

	records, err := pi.ListRecords(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Hostname == ownershipName && r.Type == RecordTypeTXT && r.Target == OwnershipMarker {
			return true, nil
		}
	}
	return false, nil
}

// RecoverOwnedHostnames scans the provider for ownership TXT records and
// returns the hostnames this engine created in a previous life. Run at
// startup so orphan cleanup covers records that predate the current
// database.
func (pi *ProviderInstance) RecoverOwnedHostnames(ctx context.Context) ([]string, error) {
	records, err := pi.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	var hostnames []string
	for _, r := range records {
		if r.Type != RecordTypeTXT || r.Target != OwnershipMarker || !IsOwnershipRecord(r.Hostname) {
			continue
		}
		if hostname := ExtractHostnameFromOwnership(r.Hostname); hostname != "" {
			hostnames = append(hostnames, hostname)
		}
	}
	return hostnames, nil
}

// Ping checks provider connectivity and updates the health gauge.
func (pi *ProviderInstance) Ping(ctx context.Context) error {
	start := time.Now()
	err := pi.Provider.Ping(ctx)

	status := statusSuccess
	healthy := float64(1)
	if err != nil {
		status = statusError
		healthy = 0
	}
	metrics.ProviderAPIRequestsTotal.WithLabelValues(pi.Name(), "ping", status).Inc()
	metrics.ProviderAPIDuration.WithLabelValues(pi.Name(), "ping").Observe(time.Since(start).Seconds())
	metrics.ProviderHealthy.WithLabelValues(pi.Name()).Set(healthy)

	return err
}

// ProviderInstanceConfig is the validated shape of one provider instance
// block from configuration.
type ProviderInstanceConfig struct {
	// Name is the instance name (e.g., "internal-dns").
	Name string

	// TypeName selects the registered factory (e.g., "cloudflare").
	TypeName string

	// RecordType is the default record type: A, AAAA, or CNAME.
	RecordType RecordType

	// Target is the default record value.
	Target string

	// TTL is the default record TTL in seconds.
	TTL int

	// Mode is the operational mode; empty selects managed.
	Mode OperationalMode

	// Domains holds glob patterns routing hostnames to this instance.
	Domains []string

	// ExcludeDomains holds glob patterns carved out of Domains.
	ExcludeDomains []string

	// DomainsRegex holds regex patterns, mutually exclusive with Domains.
	DomainsRegex []string

	// ExcludeDomainsRegex holds regex exclusions for DomainsRegex.
	ExcludeDomainsRegex []string

	// ProviderConfig carries adapter-specific settings (URL, token, zone).
	ProviderConfig map[string]string
}

// Validate rejects configurations that cannot produce a working instance.
func (c *ProviderInstanceConfig) Validate() error {
	if c.Name == "" {
		return ErrConfigMissing("name")
	}
	if c.TypeName == "" {
		return ErrConfigMissing("type")
	}
	if c.RecordType != RecordTypeA && c.RecordType != RecordTypeAAAA && c.RecordType != RecordTypeCNAME {
		return ErrConfigInvalid("record_type", string(c.RecordType), "must be A, AAAA, or CNAME")
	}
	if c.Target == "" {
		return ErrConfigMissing("target")
	}

	// The target's address family has to agree with the record type.
	switch family := classifyTarget(c.Target); c.RecordType {
	case RecordTypeCNAME:
		if family != targetHostname {
			return ErrConfigInvalid("target", c.Target, "CNAME records cannot point to IP addresses; use record_type=A or AAAA for IP targets")
		}
	case RecordTypeA:
		if family != targetIPv4 {
			return ErrConfigInvalid("target", c.Target, "A records must point to IPv4 addresses; use record_type=AAAA for IPv6 or CNAME for hostnames")
		}
	case RecordTypeAAAA:
		if family != targetIPv6 {
			return ErrConfigInvalid("target", c.Target, "AAAA records must point to IPv6 addresses; use record_type=A for IPv4 or CNAME for hostnames")
		}
	}

	if c.TTL < 1 {
		return ErrConfigInvalid("ttl", "", "must be at least 1")
	}

	hasGlob := len(c.Domains) > 0
	hasRegex := len(c.DomainsRegex) > 0
	if !hasGlob && !hasRegex {
		return ErrConfigMissing("domains (or domains_regex)")
	}
	if hasGlob && hasRegex {
		return ErrConfigInvalid("domains", "", "cannot specify both DOMAINS and DOMAINS_REGEX")
	}

	return nil
}

// UseRegex reports whether the regex pattern set is in effect.
func (c *ProviderInstanceConfig) UseRegex() bool {
	return len(c.DomainsRegex) > 0
}

// GetIncludes returns the active include patterns, glob or regex.
func (c *ProviderInstanceConfig) GetIncludes() []string {
	if c.UseRegex() {
		return c.DomainsRegex
	}
	return c.Domains
}

// GetExcludes returns the active exclude patterns, glob or regex.
func (c *ProviderInstanceConfig) GetExcludes() []string {
	if c.UseRegex() {
		return c.ExcludeDomainsRegex
	}
	return c.ExcludeDomains
}
