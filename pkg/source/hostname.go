package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// RFC 1123 size limits.
const (
	// MaxHostnameLength caps the full name at 253 characters.
	MaxHostnameLength = 253

	// MaxLabelLength caps each dot-separated label at 63 characters.
	MaxLabelLength = 63
)

// Hostname validation errors.
var (
	ErrHostnameEmpty     = errors.New("hostname is empty")
	ErrHostnameTooLong   = errors.New("hostname exceeds 253 characters")
	ErrLabelTooLong      = errors.New("hostname label exceeds 63 characters")
	ErrLabelEmpty        = errors.New("hostname contains empty label")
	ErrInvalidCharacters = errors.New("hostname contains invalid characters")
	ErrInvalidLabelStart = errors.New("hostname label must start with alphanumeric character")
	ErrInvalidLabelEnd   = errors.New("hostname label must end with alphanumeric character")
)

// labelRegex accepts RFC 1123 labels: alphanumeric ends, hyphens inside.
var labelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// srvLabelRegex accepts RFC 2782 service/protocol labels: a leading
// underscore, then an RFC 1123 label (_sip, _tcp, _udp).
var srvLabelRegex = regexp.MustCompile(`^_[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// NormalizeHostname lowercases a hostname and strips the FQDN trailing dot.
// DNS names compare case-insensitively (RFC 1035 §2.3.3), so every map key
// and comparison in the engine goes through this.
func NormalizeHostname(hostname string) string {
	return strings.ToLower(strings.TrimSuffix(hostname, "."))
}

// HostnameValidationError reports which hostname, and which label within it,
// failed validation.
type HostnameValidationError struct {
	Hostname string
	Label    string
	Err      error
}

func (e *HostnameValidationError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("invalid hostname %q: label %q: %v", e.Hostname, e.Label, e.Err)
	}
	return fmt.Sprintf("invalid hostname %q: %v", e.Hostname, e.Err)
}

func (e *HostnameValidationError) Unwrap() error {
	return e.Err
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// checkLabel validates a single RFC 1123 label, returning a specific error
// for the common failure shapes.
func checkLabel(hostname, label string) error {
	if label == "" {
		return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrLabelEmpty}
	}
	if len(label) > MaxLabelLength {
		return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrLabelTooLong}
	}
	if labelRegex.MatchString(label) {
		return nil
	}
	if !isAlphanumeric(label[0]) {
		return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrInvalidLabelStart}
	}
	if !isAlphanumeric(label[len(label)-1]) {
		return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrInvalidLabelEnd}
	}
	return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrInvalidCharacters}
}

// ValidateHostname checks a hostname against RFC 1123: total length, label
// lengths, allowed characters, alphanumeric label ends. A trailing dot is
// tolerated (FQDN form) and a bare "*" is accepted as the first label so
// wildcard patterns pass through.
func ValidateHostname(hostname string) error {
	hostname = strings.TrimSuffix(hostname, ".")

	if hostname == "" {
		return &HostnameValidationError{Hostname: hostname, Err: ErrHostnameEmpty}
	}
	if len(hostname) > MaxHostnameLength {
		return &HostnameValidationError{Hostname: hostname, Err: ErrHostnameTooLong}
	}

	for i, label := range strings.Split(hostname, ".") {
		if i == 0 && label == "*" {
			continue
		}
		if err := checkLabel(hostname, label); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSRVHostname checks an SRV owner name against RFC 2782:
// _service._proto.name, where the first two labels carry the underscore
// prefix and the rest follow RFC 1123.
func ValidateSRVHostname(hostname string) error {
	hostname = strings.TrimSuffix(hostname, ".")

	if hostname == "" {
		return &HostnameValidationError{Hostname: hostname, Err: ErrHostnameEmpty}
	}
	if len(hostname) > MaxHostnameLength {
		return &HostnameValidationError{Hostname: hostname, Err: ErrHostnameTooLong}
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < 3 {
		return &HostnameValidationError{
			Hostname: hostname,
			Err:      errors.New("SRV hostname must have at least 3 labels (_service._proto.name)"),
		}
	}

	for i, label := range labels {
		if label == "" {
			return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrLabelEmpty}
		}
		if len(label) > MaxLabelLength {
			return &HostnameValidationError{Hostname: hostname, Label: label, Err: ErrLabelTooLong}
		}
		if i < 2 {
			if !srvLabelRegex.MatchString(label) {
				return &HostnameValidationError{
					Hostname: hostname,
					Label:    label,
					Err:      errors.New("SRV service/protocol label must start with underscore"),
				}
			}
			continue
		}
		if err := checkLabel(hostname, label); err != nil {
			return err
		}
	}
	return nil
}

// SRVHints carries the SRV priority/weight/port tuple from source labels.
type SRVHints struct {
	Priority uint16
	Weight   uint16
	Port     uint16
}

// RecordHints are per-hostname overrides a source may attach: record type,
// target, TTL, proxied flag, or a pinned provider instance. Zero values
// mean "use the provider instance defaults".
type RecordHints struct {
	// Type overrides the record type (A, AAAA, CNAME, SRV, TXT).
	Type string

	// Target overrides the record value.
	Target string

	// TTL overrides the record TTL; zero keeps the instance default.
	TTL int

	// Proxied overrides the proxying flag on providers that support it;
	// nil keeps the provider default.
	Proxied *bool

	// Provider pins the hostname to a named provider instance instead of
	// domain matching.
	Provider string

	// SRV holds the priority/weight/port tuple when Type is "SRV".
	SRV *SRVHints
}

// Hostname is one desired name produced by a source, with enough context to
// log where it came from and any per-name record overrides.
type Hostname struct {
	// Name is the fully qualified hostname.
	Name string

	// Source names the producing source, matching Source.Name().
	Source string

	// Router identifies the upstream router/record block that defined the
	// name (e.g. a Traefik router name). Empty when the source has no such
	// concept.
	Router string

	// RecordHints holds optional per-name overrides; nil means defaults.
	RecordHints *RecordHints
}

// HasRecordHints reports whether any override is attached.
func (h Hostname) HasRecordHints() bool {
	return h.RecordHints != nil
}

// String renders the hostname with its origin for logs.
func (h Hostname) String() string {
	if h.Router != "" {
		return h.Name + " (from " + h.Source + ":" + h.Router + ")"
	}
	return h.Name + " (from " + h.Source + ")"
}

// Validate checks the name against the RFC appropriate to its record type:
// RFC 2782 for SRV hints, RFC 1123 otherwise.
func (h Hostname) Validate() error {
	if h.RecordHints != nil && h.RecordHints.Type == "SRV" {
		return ValidateSRVHostname(h.Name)
	}
	return ValidateHostname(h.Name)
}

// IsValid is Validate without the error detail.
func (h Hostname) IsValid() bool {
	return h.Validate() == nil
}

// NormalizedName returns the canonical lowercase form of the name.
func (h Hostname) NormalizedName() string {
	return NormalizeHostname(h.Name)
}

// Hostnames adds set-style helpers over a slice of Hostname.
type Hostnames []Hostname

// Names flattens to the bare name strings.
func (hs Hostnames) Names() []string {
	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = h.Name
	}
	return names
}

// Deduplicate drops case-insensitive duplicate names, keeping the first
// occurrence of each.
func (hs Hostnames) Deduplicate() Hostnames {
	seen := make(map[string]struct{}, len(hs))
	result := make(Hostnames, 0, len(hs))
	for _, h := range hs {
		key := h.NormalizedName()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, h)
	}
	return result
}

// Filter keeps the hostnames for which predicate returns true.
func (hs Hostnames) Filter(predicate func(Hostname) bool) Hostnames {
	result := make(Hostnames, 0)
	for _, h := range hs {
		if predicate(h) {
			result = append(result, h)
		}
	}
	return result
}

// FromSource keeps only hostnames produced by the named source.
func (hs Hostnames) FromSource(sourceName string) Hostnames {
	return hs.Filter(func(h Hostname) bool { return h.Source == sourceName })
}

// ValidHostnames drops invalid names silently; use ValidateAll when the
// failures need to be reported.
func (hs Hostnames) ValidHostnames() Hostnames {
	return hs.Filter(Hostname.IsValid)
}

// HostnameValidationResult pairs a rejected hostname with its error.
type HostnameValidationResult struct {
	Hostname Hostname
	Error    error
}

// ValidationResult splits a hostname set into valid and rejected halves.
type ValidationResult struct {
	Valid   Hostnames
	Invalid []HostnameValidationResult
}

// ValidateAll partitions the set so callers can log rejects while
// proceeding with the rest.
func (hs Hostnames) ValidateAll() ValidationResult {
	result := ValidationResult{
		Valid:   make(Hostnames, 0, len(hs)),
		Invalid: make([]HostnameValidationResult, 0),
	}
	for _, h := range hs {
		if err := h.Validate(); err != nil {
			result.Invalid = append(result.Invalid, HostnameValidationResult{Hostname: h, Error: err})
		} else {
			result.Valid = append(result.Valid, h)
		}
	}
	return result
}
