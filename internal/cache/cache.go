// Package cache implements the provider cache: a
// time-boxed local mirror of each provider's actual record set, refreshed
// in a single transaction so the reconciler never compares against a
// half-updated snapshot.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trafegodns/trafego/internal/metrics"
	"github.com/trafegodns/trafego/pkg/provider"
)

// DefaultTTL is how long a provider's cached snapshot is considered fresh
// before the reconciler must call List() again.
const DefaultTTL = 5 * time.Minute

// Cache mirrors provider.List() results in SQLite, keyed by provider
// instance, so repeated reconciliation passes don't need a live API call
// for every comparison.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
	ttl    time.Duration

	mu          sync.RWMutex
	lastRefresh map[string]time.Time
}

// New constructs a Cache backed by db. ttl of zero uses DefaultTTL.
func New(database *sql.DB, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		db:          database,
		logger:      logger,
		ttl:         ttl,
		lastRefresh: make(map[string]time.Time),
	}
}

// NeedsRefresh reports whether providerID's cached snapshot is stale
// (never populated, or older than the configured TTL).
func (c *Cache) NeedsRefresh(providerID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	last, ok := c.lastRefresh[providerID]
	if !ok {
		return true
	}
	return time.Since(last) >= c.ttl
}

// Refresh replaces providerID's cached records with records, atomically.
// A reconciliation pass always calls Refresh (when NeedsRefresh is true)
// before comparing desired state, so every Find call in the same pass sees
// a consistent snapshot.
func (c *Cache) Refresh(ctx context.Context, providerID string, records []provider.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin cache refresh: %v", provider.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM provider_cache WHERE provider_id = ?`, providerID); err != nil {
		return fmt.Errorf("%w: clearing cache for %s: %v", provider.ErrDatabaseError, providerID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provider_cache
			(provider_id, external_id, hostname, type, target, ttl, proxied, fingerprint, raw_comment, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing cache insert: %v", provider.ErrDatabaseError, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		externalID := r.ProviderID
		if externalID == "" {
			// Providers without a native record ID are keyed on (type, hostname)
			// so repeated refreshes still overwrite rather than accumulate.
			externalID = string(r.Type) + "|" + r.Hostname
		}
		// NULL proxied means "not applicable to this record", mirroring the
		// nil pointer on the canonical model.
		var proxied any
		if r.Proxied != nil {
			proxied = *r.Proxied
		}
		if _, err := stmt.ExecContext(ctx,
			providerID, externalID, r.Hostname, string(r.Type), r.Target, r.TTL, proxied,
			provider.Fingerprint(r), r.Comment, now,
		); err != nil {
			return fmt.Errorf("%w: inserting cache row for %s: %v", provider.ErrDatabaseError, r.Hostname, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing cache refresh: %v", provider.ErrDatabaseError, err)
	}

	c.mu.Lock()
	c.lastRefresh[providerID] = time.Now()
	c.mu.Unlock()

	metrics.ProviderCacheRefreshes.WithLabelValues(providerID).Inc()

	c.logger.Debug("refreshed provider cache",
		slog.String("provider", providerID),
		slog.Int("records", len(records)),
	)

	return nil
}

// scanRecord reads one cache row into the canonical record model, mapping a
// NULL proxied column back onto the nil pointer.
func scanRecord(row interface{ Scan(...any) error }) (provider.Record, error) {
	var r provider.Record
	var rt string
	var proxied sql.NullBool
	if err := row.Scan(&r.Hostname, &rt, &r.Target, &r.TTL, &proxied, &r.Comment, &r.ProviderID); err != nil {
		return provider.Record{}, err
	}
	r.Type = provider.RecordType(rt)
	if proxied.Valid {
		value := proxied.Bool
		r.Proxied = &value
	}
	return r, nil
}

// List returns all cached records for providerID.
func (c *Cache) List(ctx context.Context, providerID string) ([]provider.Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT hostname, type, target, ttl, proxied, raw_comment, external_id
		FROM provider_cache WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing cache for %s: %v", provider.ErrDatabaseError, providerID, err)
	}
	defer rows.Close()

	var out []provider.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning cache row: %v", provider.ErrDatabaseError, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Find returns the cached record for (type, hostname) under providerID, if
// present.
func (c *Cache) Find(ctx context.Context, providerID string, rt provider.RecordType, hostname string) (provider.Record, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT hostname, type, target, ttl, proxied, raw_comment, external_id
		FROM provider_cache WHERE provider_id = ? AND type = ? AND hostname = ?`,
		providerID, string(rt), hostname)

	r, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return provider.Record{}, false, nil
		}
		return provider.Record{}, false, fmt.Errorf("%w: finding cache row: %v", provider.ErrDatabaseError, err)
	}
	return r, true, nil
}

// FindByExternalID returns the cached record identified by the provider's
// own record ID.
func (c *Cache) FindByExternalID(ctx context.Context, providerID, externalID string) (provider.Record, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT hostname, type, target, ttl, proxied, raw_comment, external_id
		FROM provider_cache WHERE provider_id = ? AND external_id = ?`,
		providerID, externalID)

	r, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return provider.Record{}, false, nil
		}
		return provider.Record{}, false, fmt.Errorf("%w: finding cache row by external id: %v", provider.ErrDatabaseError, err)
	}
	return r, true, nil
}
