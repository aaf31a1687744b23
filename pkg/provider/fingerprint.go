package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// fieldSeparator joins fingerprint components. It is a control character
// that cannot appear in a DNS name, target, or comment, so the join is
// escape-safe without per-field quoting.
const fieldSeparator = "\x1f"

// Fingerprint returns a deterministic digest of a record's canonical
// content. Two records with the same type, name, content,
// TTL, and type-conditional fields always produce the same fingerprint,
// regardless of process, platform, or restart. ProviderID and Comment are
// transient/ownership metadata and are intentionally excluded.
//
// Fingerprint folds hostname case and a trailing dot itself, so those
// differences never produce drift. It does not otherwise canonicalize its
// input (IDN conversion, TTL defaulting, target case); callers that have not
// already run a record through Canonicalize should do so first.
func Fingerprint(r Record) string {
	parts := []string{
		string(r.Type),
		strings.ToLower(strings.TrimSuffix(r.Hostname, ".")),
		r.Target,
		strconv.Itoa(r.TTL),
	}

	if r.Proxied != nil {
		if *r.Proxied {
			parts = append(parts, "1")
		} else {
			parts = append(parts, "0")
		}
	}

	switch r.Type {
	case RecordTypeSRV:
		if r.SRV != nil {
			parts = append(parts,
				strconv.Itoa(int(r.SRV.Priority)),
				strconv.Itoa(int(r.SRV.Weight)),
				strconv.Itoa(int(r.SRV.Port)),
			)
		}
	case RecordTypeMX:
		if r.MXPriority != nil {
			parts = append(parts, strconv.Itoa(int(*r.MXPriority)))
		}
	case RecordTypeCAA:
		if r.CAA != nil {
			parts = append(parts,
				strconv.Itoa(int(r.CAA.Flags)),
				r.CAA.Tag,
			)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSeparator)))
	return hex.EncodeToString(sum[:])
}
