// Package provider defines the interface that all DNS providers must implement.
package provider

import "context"

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeSRV   RecordType = "SRV"
	RecordTypeMX    RecordType = "MX"
	RecordTypeCAA   RecordType = "CAA"
	RecordTypeNS    RecordType = "NS"
)

// OwnershipPrefix is the default prefix for ownership TXT records, used as a
// fallback for providers that cannot store a comment alongside a record.
const OwnershipPrefix = "_trafego"

// OwnershipMarker is the fixed token embedded in a provider-side record's
// comment field (when the provider supports comments) or used as the content
// of a dedicated TXT record (when it does not). Its presence identifies a
// record this engine previously created, enabling recovery after the local
// database is lost.
const OwnershipMarker = "trafego:owned"

// AutoTTL is the sentinel TTL value meaning "let the provider pick its
// default". At least one provider in this ecosystem (Cloudflare, when
// proxied) treats TTL=1 as "automatic"; canonicalize preserves this sentinel
// round-trip rather than rewriting it to a numeric default.
const AutoTTL = 1

// SRVData contains SRV record-specific fields.
// Used when Type is RecordTypeSRV.
type SRVData struct {
	Priority uint16 // Lower values = higher priority (0-65535)
	Weight   uint16 // Load balancing among same-priority servers (0-65535)
	Port     uint16 // TCP/UDP port number (1-65535)
}

// CAAData contains CAA record-specific fields.
type CAAData struct {
	Flags uint8
	Tag   string // one of "issue", "issuewild", "iodef"
}

// Record represents a DNS record to be managed. It doubles as the canonical
// record model: Hostname/Target/TTL hold the type-independent
// content, and the pointer-typed fields below are only ever meaningful for
// the type-conditional cases (proxied, MX priority, CAA
// flags/tag). A nil pointer means "not applicable to this record", not
// "zero" - this keeps the fingerprint (see fingerprint.go) from treating an
// unset field the same as an explicit zero.
type Record struct {
	Hostname   string
	Type       RecordType
	Target     string // IP for A/AAAA, hostname for CNAME/SRV/MX/NS target, text for TXT
	TTL        int
	ProviderID string   // Provider-specific record identifier (externalId)
	SRV        *SRVData // SRV-specific data (only set when Type is SRV)

	// Proxied is only meaningful for providers that support proxying
	// (e.g. Cloudflare). nil means "not applicable"; non-nil true/false is
	// an explicit setting that participates in the fingerprint.
	Proxied *bool

	// MXPriority holds the MX preference value. Required when Type is MX.
	MXPriority *uint16

	// CAA holds CAA-specific fields. Required when Type is CAA.
	CAA *CAAData

	// Comment is a free-form annotation stored alongside the record by
	// providers that support it. The engine embeds OwnershipMarker here to
	// mark records it manages.
	Comment string
}

// Capabilities describes a provider's feature support.
// Used by the reconciler to adapt behavior based on provider limitations.
type Capabilities struct {
	// SupportsOwnershipTXT indicates if the provider can create TXT records
	// for ownership tracking. Push-only providers typically cannot.
	SupportsOwnershipTXT bool

	// SupportsNativeUpdate indicates if the provider has a native update operation.
	// If false, updates require delete+create. Providers with native update should
	// also implement the Updater interface.
	SupportsNativeUpdate bool

	// SupportedRecordTypes lists the DNS record types this provider can manage.
	// Used to filter operations in authoritative mode and validate requested records.
	SupportedRecordTypes []RecordType

	// SupportsProxying indicates the provider understands the Proxied field
	// (e.g. Cloudflare).
	SupportsProxying bool

	// SupportsMultiValueA indicates the provider allows multiple A/AAAA
	// records at the same name with different content. Gates the
	// reconciler's conflict-create path.
	SupportsMultiValueA bool

	// SupportsComments indicates the provider can persist an arbitrary
	// comment alongside a record, letting the engine
	// embed OwnershipMarker there instead of a separate TXT record.
	SupportsComments bool
}

// SupportsRecordType returns true if the provider supports the given record type.
func (c Capabilities) SupportsRecordType(rt RecordType) bool {
	for _, t := range c.SupportedRecordTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// Capability names understood by Capabilities.SupportsCapability.
const (
	CapProxying    = "proxying"
	CapMultiValueA = "multiValueA"
	CapCAA         = "caa"
	CapSRV         = "srv"
	CapComments    = "comments"
)

// SupportsCapability reports whether the provider supports the named
// capability.
func (c Capabilities) SupportsCapability(cap string) bool {
	switch cap {
	case CapProxying:
		return c.SupportsProxying
	case CapMultiValueA:
		return c.SupportsMultiValueA
	case CapCAA:
		return c.SupportsRecordType(RecordTypeCAA)
	case CapSRV:
		return c.SupportsRecordType(RecordTypeSRV)
	case CapComments:
		return c.SupportsComments
	default:
		return false
	}
}

// Provider defines the interface for DNS providers.
// Each provider implementation (Cloudflare, Route53, etc.) must satisfy this interface.
type Provider interface {
	// Name returns the provider instance name (e.g., "internal-dns").
	Name() string

	// Type returns the provider type (e.g., "cloudflare", "route53").
	Type() string

	// Ping checks connectivity to the provider.
	Ping(ctx context.Context) error

	// Capabilities returns the provider's feature support.
	// Used by the reconciler to adapt behavior based on provider limitations.
	Capabilities() Capabilities

	// OwnershipMarker returns the token to embed in a record's comment (or
	// a dedicated TXT record, for providers without comment support) to
	// mark it as engine-managed. Adapters that have no reason
	// to diverge from the system default should return provider.OwnershipMarker.
	OwnershipMarker() string

	// List returns all managed records in the configured zone.
	List(ctx context.Context) ([]Record, error)

	// Create adds a new DNS record.
	Create(ctx context.Context, record Record) error

	// Delete removes a DNS record.
	Delete(ctx context.Context, record Record) error
}

// Updater is an optional interface that providers can implement to support
// native in-place record updates. This is more efficient than delete+create
// and avoids brief DNS gaps when changing record values.
//
// The reconciler will check if a provider implements Updater and use it when
// available. If not, the reconciler falls back to delete+create.
//
// Providers that implement Updater should also set Capabilities().SupportsNativeUpdate = true.
type Updater interface {
	// Update modifies an existing DNS record in place.
	// The existing record is identified by its current values (hostname, type, target).
	// The desired record contains the new values to apply.
	//
	// Implementations should:
	// - Only modify fields that differ between existing and desired
	// - Return ErrNotFound if the existing record doesn't exist
	// - Be idempotent (calling with identical records is a no-op)
	Update(ctx context.Context, existing, desired Record) error
}

// Equal returns true if two records are logically equal, ignoring
// transient fields (ProviderID, Comment). Hostname, type, target and TTL
// must match exactly, and it defers to Fingerprint for the type-conditional
// comparison; hostnames that differ only in case or a trailing dot are not
// equal here even though their fingerprints match.
func Equal(a, b Record) bool {
	if a.Hostname != b.Hostname || a.Type != b.Type || a.Target != b.Target || a.TTL != b.TTL {
		return false
	}
	return Fingerprint(a) == Fingerprint(b)
}

// OwnershipRecordName returns the TXT record name for ownership tracking.
// Example: "app.example.com" -> "_trafego.app.example.com"
func OwnershipRecordName(hostname string) string {
	return OwnershipPrefix + "." + hostname
}

// IsOwnershipRecord returns true if the hostname is an ownership TXT record.
func IsOwnershipRecord(hostname string) bool {
	return len(hostname) > len(OwnershipPrefix)+1 &&
		hostname[:len(OwnershipPrefix)+1] == OwnershipPrefix+"."
}

// ExtractHostnameFromOwnership extracts the original hostname from an ownership record name.
// Example: "_trafego.app.example.com" -> "app.example.com"
// Returns empty string if the hostname is not an ownership record.
func ExtractHostnameFromOwnership(ownershipName string) string {
	if !IsOwnershipRecord(ownershipName) {
		return ""
	}
	return ownershipName[len(OwnershipPrefix)+1:]
}

// OwnershipRecord creates a TXT record for ownership tracking.
func OwnershipRecord(hostname string, ttl int) Record {
	return Record{
		Hostname: OwnershipRecordName(hostname),
		Type:     RecordTypeTXT,
		Target:   OwnershipMarker,
		TTL:      ttl,
	}
}
