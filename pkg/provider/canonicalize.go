package provider

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// InvalidRecordError indicates a record failed canonicalization. Field
// names the offending attribute.
type InvalidRecordError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: field %q value %q: %s", e.Field, e.Value, e.Reason)
}

// IsInvalidRecord returns true if err is (or wraps) an InvalidRecordError.
func IsInvalidRecord(err error) bool {
	var invalid *InvalidRecordError
	return errors.As(err, &invalid)
}

// validCAATags lists the tags RFC 8659 defines for CAA records.
var validCAATags = map[string]bool{"issue": true, "issuewild": true, "iodef": true}

// idnaProfile performs IDNA2008 A-label conversion for non-ASCII hostnames.
var idnaProfile = idna.New(idna.MapForLookup(), idna.Transitional(false))

// Canonicalize normalizes a raw record into the engine's canonical form:
// the hostname is lowercased, trailing-dot stripped, and IDN
// labels are converted to their ASCII (A-label) form; a zero TTL becomes
// AutoTTL and a negative TTL is rejected, while positive values pass through
// unchanged (no provider-specific range is applied); and
// type-conditional fields are validated for presence and shape. It returns
// an *InvalidRecordError identifying the offending field on failure.
func Canonicalize(raw Record) (Record, error) {
	rec := raw

	if strings.TrimSpace(rec.Hostname) == "" {
		return Record{}, &InvalidRecordError{Field: "name", Value: rec.Hostname, Reason: "hostname is empty"}
	}

	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(rec.Hostname), "."))
	aLabel, err := idnaProfile.ToASCII(name)
	if err != nil {
		return Record{}, &InvalidRecordError{Field: "name", Value: rec.Hostname, Reason: "invalid IDN hostname: " + err.Error()}
	}
	rec.Hostname = aLabel

	if rec.TTL < 0 {
		return Record{}, &InvalidRecordError{Field: "ttl", Value: fmt.Sprint(rec.TTL), Reason: "ttl must be non-negative"}
	}
	if rec.TTL == 0 {
		rec.TTL = AutoTTL
	}

	switch rec.Type {
	case RecordTypeA, RecordTypeAAAA, RecordTypeCNAME, RecordTypeTXT, RecordTypeNS:
		if strings.TrimSpace(rec.Target) == "" {
			return Record{}, &InvalidRecordError{Field: "content", Value: rec.Target, Reason: fmt.Sprintf("%s record requires content", rec.Type)}
		}
	case RecordTypeMX:
		if strings.TrimSpace(rec.Target) == "" {
			return Record{}, &InvalidRecordError{Field: "content", Value: rec.Target, Reason: "MX record requires a target hostname"}
		}
		if rec.MXPriority == nil {
			return Record{}, &InvalidRecordError{Field: "priority", Value: "", Reason: "MX record requires priority"}
		}
	case RecordTypeSRV:
		if rec.SRV == nil {
			return Record{}, &InvalidRecordError{Field: "srv", Value: "", Reason: "SRV record requires priority/weight/port"}
		}
		if rec.SRV.Port == 0 {
			return Record{}, &InvalidRecordError{Field: "port", Value: "0", Reason: "SRV record requires a non-zero port"}
		}
	case RecordTypeCAA:
		if rec.CAA == nil {
			return Record{}, &InvalidRecordError{Field: "caa", Value: "", Reason: "CAA record requires flags/tag"}
		}
		if !validCAATags[rec.CAA.Tag] {
			return Record{}, &InvalidRecordError{Field: "tag", Value: rec.CAA.Tag, Reason: "CAA tag must be one of issue, issuewild, iodef"}
		}
		if strings.TrimSpace(rec.Target) == "" {
			return Record{}, &InvalidRecordError{Field: "content", Value: rec.Target, Reason: "CAA record requires content"}
		}
	default:
		return Record{}, &InvalidRecordError{Field: "type", Value: string(rec.Type), Reason: "unsupported record type"}
	}

	return rec, nil
}
