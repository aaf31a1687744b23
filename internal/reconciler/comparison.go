package reconciler

import (
	"fmt"

	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// RecordPair is an existing record and the desired record replacing it.
type RecordPair struct {
	Existing provider.Record
	Desired  provider.Record
}

// RecordDiff is the outcome of comparing a provider-side record set with
// the desired set.
type RecordDiff struct {
	// ToCreate holds desired records absent from the provider.
	ToCreate []provider.Record

	// ToUpdate pairs provider records with the desired shape they must
	// take.
	ToUpdate []RecordPair

	// ToDelete holds provider records no longer desired.
	ToDelete []provider.Record

	// Unchanged holds records already in their desired shape.
	Unchanged []provider.Record
}

// HasChanges reports whether the diff contains any operation.
func (d *RecordDiff) HasChanges() bool {
	return d.TotalChanges() > 0
}

// TotalChanges counts creates, updates, and deletes.
func (d *RecordDiff) TotalChanges() int {
	return len(d.ToCreate) + len(d.ToUpdate) + len(d.ToDelete)
}

// CompareRecordSets diffs two record sets. Records pair up by
// case-insensitive hostname, type, and target (plus the SRV tuple where
// applicable), so:
//
//   - same key, same TTL/ancillary fields -> unchanged
//   - same key, TTL or proxied drifted    -> update
//   - key only in desired                 -> create
//   - key only in existing                -> delete
func CompareRecordSets(existing, desired []provider.Record) RecordDiff {
	diff := RecordDiff{}

	existingMap := make(map[string]provider.Record, len(existing))
	for _, r := range existing {
		existingMap[recordKey(r)] = r
	}
	desiredMap := make(map[string]provider.Record, len(desired))
	for _, r := range desired {
		desiredMap[recordKey(r)] = r
	}

	for key, desiredRecord := range desiredMap {
		existingRecord, exists := existingMap[key]
		switch {
		case !exists:
			diff.ToCreate = append(diff.ToCreate, desiredRecord)
		case recordNeedsUpdate(existingRecord, desiredRecord):
			diff.ToUpdate = append(diff.ToUpdate, RecordPair{
				Existing: existingRecord,
				Desired:  desiredRecord,
			})
		default:
			diff.Unchanged = append(diff.Unchanged, existingRecord)
		}
	}

	for key, existingRecord := range existingMap {
		if _, wanted := desiredMap[key]; !wanted {
			diff.ToDelete = append(diff.ToDelete, existingRecord)
		}
	}

	return diff
}

// CompareForHostname is CompareRecordSets restricted to one hostname.
func CompareForHostname(existing, desired []provider.Record, hostname string) RecordDiff {
	normalized := source.NormalizeHostname(hostname)

	keep := func(records []provider.Record) []provider.Record {
		var filtered []provider.Record
		for _, r := range records {
			if source.NormalizeHostname(r.Hostname) == normalized {
				filtered = append(filtered, r)
			}
		}
		return filtered
	}

	return CompareRecordSets(keep(existing), keep(desired))
}

// recordKey identifies a record for diffing: hostname (normalized), type,
// target, and for SRV records the priority/weight/port tuple, since several
// SRV records may share one target.
func recordKey(r provider.Record) string {
	key := source.NormalizeHostname(r.Hostname) + "|" + string(r.Type) + "|" + r.Target
	if r.Type == provider.RecordTypeSRV && r.SRV != nil {
		key += "|" + formatSRVKey(r.SRV)
	}
	return key
}

// formatSRVKey renders the SRV tuple for use inside recordKey.
func formatSRVKey(srv *provider.SRVData) string {
	if srv == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d:%d", srv.Priority, srv.Weight, srv.Port)
}

// recordNeedsUpdate decides whether a key-matched record still needs an
// update, by fingerprint: TTL, proxied, and the type-conditional fields all
// participate. Target drift never reaches here; it changes the key and
// surfaces as delete+create.
//
// When desired carries no proxied opinion (nil), the provider default
// governs, so the provider-side value is blanked before comparing rather
// than read as perpetual drift.
func recordNeedsUpdate(existing, desired provider.Record) bool {
	if desired.Proxied == nil {
		existing.Proxied = nil
	}
	return provider.Fingerprint(existing) != provider.Fingerprint(desired)
}

// CategorizeSameHostnameRecords splits a hostname's records into those of
// the desired type and the rest, for type-conflict checks before a create.
func CategorizeSameHostnameRecords(records []provider.Record, desiredType provider.RecordType) (sameType, differentType []provider.Record) {
	for _, r := range records {
		if r.Type == desiredType {
			sameType = append(sameType, r)
		} else {
			differentType = append(differentType, r)
		}
	}
	return
}

// FindExactMatch locates a record with the given type and target (and SRV
// tuple, for SRV records).
func FindExactMatch(records []provider.Record, target string, recordType provider.RecordType, srvData *provider.SRVData) (provider.Record, bool) {
	for _, r := range records {
		if r.Type != recordType || r.Target != target {
			continue
		}
		if recordType == provider.RecordTypeSRV {
			if srvDataEquals(r.SRV, srvData) {
				return r, true
			}
			continue
		}
		return r, true
	}
	return provider.Record{}, false
}

// FindStaleSRVRecords returns SRV records pointing at target whose tuple no
// longer matches the desired one; they get replaced rather than updated.
func FindStaleSRVRecords(records []provider.Record, target string, desiredSRV *provider.SRVData) []provider.Record {
	var stale []provider.Record
	for _, r := range records {
		if r.Type != provider.RecordTypeSRV || r.Target != target {
			continue
		}
		if !srvDataEquals(r.SRV, desiredSRV) {
			stale = append(stale, r)
		}
	}
	return stale
}
