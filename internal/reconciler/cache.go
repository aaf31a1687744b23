package reconciler

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	providercache "github.com/trafegodns/trafego/internal/cache"
	"github.com/trafegodns/trafego/pkg/provider"
)

// snapshotConcurrency bounds how many providers are listed at once while
// building the per-cycle snapshot. Listing is read-only, so the bound does
// not touch the single-writer guarantee for mutations.
const snapshotConcurrency = 4

// recordCache is the per-cycle snapshot of every provider's records,
// indexed provider -> hostname, so the ensure and orphan passes never
// re-List mid-cycle. A provider whose listing failed is recorded as nil so
// lookups can distinguish "no records" from "unknown".
type recordCache struct {
	records map[string]map[string][]provider.Record
	logger  *slog.Logger
}

// newRecordCache lists every provider (bounded, concurrent) and indexes the
// results. When ttlCache is non-nil and a provider's durable snapshot is
// still fresh, that snapshot answers instead of a live List(); a stale or
// missing snapshot triggers the live call, whose result refreshes the
// durable cache for the next cycle.
func newRecordCache(ctx context.Context, providers *provider.Registry, logger *slog.Logger, ttlCache *providercache.Cache) *recordCache {
	cache := &recordCache{
		records: make(map[string]map[string][]provider.Record),
		logger:  logger,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)

	for _, inst := range providers.All() {
		inst := inst
		g.Go(func() error {
			providerRecords, err := loadProviderRecords(gctx, inst, logger, ttlCache)
			if err != nil {
				logger.Warn("failed to cache records for provider",
					slog.String("provider", inst.Name()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				cache.records[inst.Name()] = nil
				mu.Unlock()
				return nil
			}

			byHostname := make(map[string][]provider.Record)
			for _, r := range providerRecords {
				byHostname[r.Hostname] = append(byHostname[r.Hostname], r)
			}

			mu.Lock()
			cache.records[inst.Name()] = byHostname
			mu.Unlock()

			logger.Debug("cached records for provider",
				slog.String("provider", inst.Name()),
				slog.Int("total_records", len(providerRecords)),
				slog.Int("unique_hostnames", len(byHostname)),
			)
			return nil
		})
	}
	_ = g.Wait()

	return cache
}

// loadProviderRecords fetches inst's record set, preferring the fresh
// durable snapshot when one exists.
func loadProviderRecords(ctx context.Context, inst *provider.ProviderInstance, logger *slog.Logger, ttlCache *providercache.Cache) ([]provider.Record, error) {
	if ttlCache != nil && !ttlCache.NeedsRefresh(inst.Name()) {
		return ttlCache.List(ctx, inst.Name())
	}

	records, err := inst.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	if ttlCache != nil {
		if refreshErr := ttlCache.Refresh(ctx, inst.Name(), records); refreshErr != nil {
			logger.Warn("failed to persist provider cache snapshot",
				slog.String("provider", inst.Name()),
				slog.String("error", refreshErr.Error()),
			)
		}
	}
	return records, nil
}

// dataRecords returns the hostname's cached data records (A, AAAA, CNAME,
// SRV), with ownership TXT markers filtered out. The boolean reports
// whether the provider was cached at all; a failed listing returns
// (nil, false) so callers know to fall back to a live query.
func (c *recordCache) dataRecords(providerName, hostname string) ([]provider.Record, bool) {
	byHostname, exists := c.records[providerName]
	if !exists || byHostname == nil {
		return nil, false
	}

	var filtered []provider.Record
	for _, r := range byHostname[hostname] {
		switch r.Type {
		case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME, provider.RecordTypeSRV:
			filtered = append(filtered, r)
		}
	}
	return filtered, true
}

// getExistingRecords is the ensure pass's view of a hostname's records.
func (c *recordCache) getExistingRecords(providerName, hostname string) ([]provider.Record, bool) {
	return c.dataRecords(providerName, hostname)
}

// getAllRecordsForHostname is the orphan sweep's view; identical filtering,
// kept separate so each pass reads at its own call site.
func (c *recordCache) getAllRecordsForHostname(providerName, hostname string) ([]provider.Record, bool) {
	return c.dataRecords(providerName, hostname)
}

// hasOwnershipRecord reports whether the hostname's ownership TXT marker is
// present in the snapshot. An uncached provider reads as unowned.
func (c *recordCache) hasOwnershipRecord(providerName, hostname string) bool {
	byHostname, exists := c.records[providerName]
	if !exists || byHostname == nil {
		return false
	}

	for _, r := range byHostname[provider.OwnershipRecordName(hostname)] {
		if r.Type == provider.RecordTypeTXT && r.Target == provider.OwnershipMarker {
			return true
		}
	}
	return false
}
