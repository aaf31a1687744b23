// Package store implements the managed records store:
// the durable record of every (provider, hostname, type) tuple this engine
// has created, independent of the provider's own state. It is what lets the
// reconciler tell "a record we created" apart from "a record that happens
// to already exist" when the provider cache alone can't say so.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trafegodns/trafego/pkg/provider"
)

// Entry is one tracked (provider, hostname, type) tuple.
type Entry struct {
	ProviderID  string
	Hostname    string
	Type        provider.RecordType
	ExternalID  string
	Fingerprint string
	Source      string
	OrphanedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists managed-record bookkeeping in SQLite.
type Store struct {
	db *sql.DB
}

// New constructs a Store backed by db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Track records that the engine now manages (providerID, hostname, rt),
// created from the given source with the given fingerprint. Calling Track
// again for an already-tracked tuple updates its fingerprint/externalID and
// clears any orphaned-at mark (rebind-on-recreate).
func (s *Store) Track(ctx context.Context, providerID, hostname string, rt provider.RecordType, externalID, fingerprint, source string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO managed_records
			(provider_id, hostname, type, external_id, fingerprint, source, orphaned_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
		ON CONFLICT (provider_id, hostname, type) DO UPDATE SET
			external_id = excluded.external_id,
			fingerprint = excluded.fingerprint,
			orphaned_at = NULL,
			updated_at  = excluded.updated_at`,
		providerID, hostname, string(rt), externalID, fingerprint, source, now, now)
	if err != nil {
		return fmt.Errorf("%w: tracking %s/%s/%s: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return nil
}

// SetExternalID rebinds a tracked entry's external ID, used when a
// delete+create cycle (no native Update) produces a fresh provider-side
// identifier for an otherwise-unchanged logical record.
func (s *Store) SetExternalID(ctx context.Context, providerID, hostname string, rt provider.RecordType, externalID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE managed_records SET external_id = ?, updated_at = ?
		WHERE provider_id = ? AND hostname = ? AND type = ?`,
		externalID, time.Now().Unix(), providerID, hostname, string(rt))
	if err != nil {
		return fmt.Errorf("%w: rebinding external id for %s/%s/%s: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return nil
}

// Untrack removes a tuple from the store entirely, once its provider-side
// record has actually been deleted.
func (s *Store) Untrack(ctx context.Context, providerID, hostname string, rt provider.RecordType) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM managed_records WHERE provider_id = ? AND hostname = ? AND type = ?`,
		providerID, hostname, string(rt))
	if err != nil {
		return fmt.Errorf("%w: untracking %s/%s/%s: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return nil
}

// MarkOrphaned stamps a tuple with the current time as its orphaned-at
// mark, the first phase of the two-phase orphan retirement. It
// is a no-op (not an error) if the tuple is already marked, so repeated
// reconciliation passes don't reset the grace-window clock.
func (s *Store) MarkOrphaned(ctx context.Context, providerID, hostname string, rt provider.RecordType) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE managed_records SET orphaned_at = ?, updated_at = ?
		WHERE provider_id = ? AND hostname = ? AND type = ? AND orphaned_at IS NULL`,
		time.Now().Unix(), time.Now().Unix(), providerID, hostname, string(rt))
	if err != nil {
		return fmt.Errorf("%w: marking %s/%s/%s orphaned: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return nil
}

// UnmarkOrphaned clears a tuple's orphaned-at mark, the recovery path when
// a hostname that went missing reappears within the grace window.
func (s *Store) UnmarkOrphaned(ctx context.Context, providerID, hostname string, rt provider.RecordType) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE managed_records SET orphaned_at = NULL, updated_at = ?
		WHERE provider_id = ? AND hostname = ? AND type = ?`,
		time.Now().Unix(), providerID, hostname, string(rt))
	if err != nil {
		return fmt.Errorf("%w: unmarking %s/%s/%s orphaned: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return nil
}

// DueForSweep returns every entry whose orphaned-at mark is older than
// grace, i.e. ready for the second phase of orphan retirement (actual
// provider-side deletion).
func (s *Store) DueForSweep(ctx context.Context, grace time.Duration) ([]Entry, error) {
	cutoff := time.Now().Add(-grace).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, hostname, type, external_id, fingerprint, source, orphaned_at, created_at, updated_at
		FROM managed_records WHERE orphaned_at IS NOT NULL AND orphaned_at <= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: listing entries due for sweep: %v", provider.ErrDatabaseError, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// IsManaged reports whether (providerID, hostname, rt) is currently tracked
// (orphaned or not).
func (s *Store) IsManaged(ctx context.Context, providerID, hostname string, rt provider.RecordType) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM managed_records WHERE provider_id = ? AND hostname = ? AND type = ?`,
		providerID, hostname, string(rt)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: checking managed state for %s/%s/%s: %v", provider.ErrDatabaseError, providerID, rt, hostname, err)
	}
	return n > 0, nil
}

// List returns every tuple tracked for providerID.
func (s *Store) List(ctx context.Context, providerID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, hostname, type, external_id, fingerprint, source, orphaned_at, created_at, updated_at
		FROM managed_records WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing managed records for %s: %v", provider.ErrDatabaseError, providerID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Override is one hostname's per-record knob set: a provider pin plus
// optional overrides for the record type, target, TTL, and proxied flag.
// Zero/nil fields mean "no override for this knob"; Enabled false parks the
// whole row without losing it.
type Override struct {
	Hostname   string
	ProviderID string
	RecordType provider.RecordType
	Target     string
	TTL        int   // 0 = unset
	Proxied    *bool // nil = unset
	Enabled    bool
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SetOverride upserts hostname's full override row.
func (s *Store) SetOverride(ctx context.Context, o Override) error {
	now := time.Now().Unix()
	var ttl any
	if o.TTL > 0 {
		ttl = o.TTL
	}
	var proxied any
	if o.Proxied != nil {
		proxied = *o.Proxied
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hostname_overrides
			(hostname, provider_id, record_type, target, ttl, proxied, enabled, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hostname) DO UPDATE SET
			provider_id = excluded.provider_id,
			record_type = excluded.record_type,
			target      = excluded.target,
			ttl         = excluded.ttl,
			proxied     = excluded.proxied,
			enabled     = excluded.enabled,
			reason      = excluded.reason,
			updated_at  = excluded.updated_at`,
		o.Hostname, o.ProviderID, string(o.RecordType), o.Target, ttl, proxied, o.Enabled, o.Reason, now, now)
	if err != nil {
		return fmt.Errorf("%w: setting override for %s: %v", provider.ErrDatabaseError, o.Hostname, err)
	}
	return nil
}

// PinProvider pins hostname to providerID, bypassing domain-pattern
// matching, without disturbing any other knobs on an existing override row.
// This is what the administrative claim endpoint writes.
func (s *Store) PinProvider(ctx context.Context, hostname, providerID, reason string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hostname_overrides
			(hostname, provider_id, enabled, reason, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT (hostname) DO UPDATE SET
			provider_id = excluded.provider_id,
			reason      = excluded.reason,
			updated_at  = excluded.updated_at`,
		hostname, providerID, reason, now, now)
	if err != nil {
		return fmt.Errorf("%w: pinning %s to %s: %v", provider.ErrDatabaseError, hostname, providerID, err)
	}
	return nil
}

// ClearOverride removes hostname's override row entirely, restoring normal
// domain-pattern matching and instance defaults. This is what the
// administrative release endpoint writes.
func (s *Store) ClearOverride(ctx context.Context, hostname string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hostname_overrides WHERE hostname = ?`, hostname)
	if err != nil {
		return fmt.Errorf("%w: clearing override for %s: %v", provider.ErrDatabaseError, hostname, err)
	}
	return nil
}

const overrideColumns = `hostname, provider_id, record_type, target, ttl, proxied, enabled, reason, created_at, updated_at`

func scanOverride(row interface{ Scan(...any) error }) (Override, error) {
	var o Override
	var rt string
	var ttl sql.NullInt64
	var proxied sql.NullBool
	var created, updated int64
	if err := row.Scan(&o.Hostname, &o.ProviderID, &rt, &o.Target, &ttl, &proxied, &o.Enabled, &o.Reason, &created, &updated); err != nil {
		return Override{}, err
	}
	o.RecordType = provider.RecordType(rt)
	if ttl.Valid {
		o.TTL = int(ttl.Int64)
	}
	if proxied.Valid {
		value := proxied.Bool
		o.Proxied = &value
	}
	o.CreatedAt = time.Unix(created, 0)
	o.UpdatedAt = time.Unix(updated, 0)
	return o, nil
}

// Override returns hostname's override row, if any.
func (s *Store) Override(ctx context.Context, hostname string) (Override, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM hostname_overrides WHERE hostname = ?`, hostname)
	o, err := scanOverride(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Override{}, false, nil
		}
		return Override{}, false, fmt.Errorf("%w: reading override for %s: %v", provider.ErrDatabaseError, hostname, err)
	}
	return o, true, nil
}

// ListOverrides returns every override row keyed by hostname. The
// aggregation step reads this once per cycle rather than querying per
// hostname.
func (s *Store) ListOverrides(ctx context.Context) (map[string]Override, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+overrideColumns+` FROM hostname_overrides`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing overrides: %v", provider.ErrDatabaseError, err)
	}
	defer rows.Close()

	out := make(map[string]Override)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning override row: %v", provider.ErrDatabaseError, err)
		}
		out[o.Hostname] = o
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var rt string
		var orphanedAt sql.NullInt64
		var created, updated int64
		if err := rows.Scan(&e.ProviderID, &e.Hostname, &rt, &e.ExternalID, &e.Fingerprint, &e.Source, &orphanedAt, &created, &updated); err != nil {
			return nil, fmt.Errorf("%w: scanning managed record row: %v", provider.ErrDatabaseError, err)
		}
		e.Type = provider.RecordType(rt)
		e.CreatedAt = time.Unix(created, 0)
		e.UpdatedAt = time.Unix(updated, 0)
		if orphanedAt.Valid {
			t := time.Unix(orphanedAt.Int64, 0)
			e.OrphanedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
