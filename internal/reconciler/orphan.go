package reconciler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/trafegodns/trafego/internal/metrics"
	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// cleanupOrphans is the orphan retirement pass. It first clears the mark
// for hostnames that came back; it then marks hostnames that vanished from
// every source and starts their grace clock, and sweeps (actually deletes)
// hostnames whose clock has run out, honoring each provider instance's
// operational mode:
//
//   - additive: never delete
//   - managed (default): delete only with an ownership marker
//   - authoritative: delete any in-scope record of a supported type
func (r *Reconciler) cleanupOrphans(ctx context.Context, currentHostnames map[string]*source.Hostname, cache *recordCache, restrictProvider string) []Action {
	var actions []Action

	r.mu.RLock()
	previousHostnames := make(map[string]struct{}, len(r.knownHostnames))
	for h := range r.knownHostnames {
		previousHostnames[h] = struct{}{}
	}
	r.mu.RUnlock()

	now := time.Now()

	// Unmark: a hostname that reappeared cancels its pending orphan mark.
	var reappeared []string
	r.mu.Lock()
	for hostname := range currentHostnames {
		if _, wasPending := r.pendingOrphans[hostname]; wasPending {
			delete(r.pendingOrphans, hostname)
			reappeared = append(reappeared, hostname)
			r.logger.Info("hostname reappeared within grace window, orphan mark cleared",
				slog.String("hostname", hostname),
			)
		}
	}
	r.mu.Unlock()
	for _, hostname := range reappeared {
		r.persistOrphanMark(ctx, hostname, false)
	}

	// Mark and sweep, in lexicographic hostname order so plans reproduce.
	missing := make([]string, 0, len(previousHostnames))
	for hostname := range previousHostnames {
		if _, stillExists := currentHostnames[hostname]; !stillExists {
			missing = append(missing, hostname)
		}
	}
	sort.Strings(missing)

	for _, hostname := range missing {
		markedAt, due := r.markOrphanPending(hostname, now)
		if !due {
			r.persistOrphanMark(ctx, hostname, true)
			r.logger.Info("hostname missing, entering grace window before deletion",
				slog.String("hostname", hostname),
				slog.Time("orphaned_since", markedAt),
				slog.Duration("grace_window", r.config.OrphanGraceWindow),
			)
			continue
		}

		r.logger.Info("orphan grace window elapsed, sweeping hostname",
			slog.String("hostname", hostname),
			slog.Time("orphaned_since", markedAt),
		)

		for _, inst := range r.providers.MatchingProviders(hostname) {
			if restrictProvider != "" && inst.Name() != restrictProvider {
				continue
			}
			actions = append(actions, r.deleteOrphanForProvider(ctx, hostname, inst, cache)...)
		}

		r.mu.Lock()
		delete(r.pendingOrphans, hostname)
		r.mu.Unlock()
	}

	r.mu.RLock()
	metrics.OrphanedHostnames.Set(float64(len(r.pendingOrphans)))
	r.mu.RUnlock()

	return actions
}

// markOrphanPending stamps the first time hostname was observed missing and
// reports whether its grace window has elapsed. A zero grace window is due
// immediately, which degenerates to single-pass deletion.
func (r *Reconciler) markOrphanPending(hostname string, now time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingOrphans == nil {
		r.pendingOrphans = make(map[string]time.Time)
	}
	markedAt, exists := r.pendingOrphans[hostname]
	if !exists {
		r.pendingOrphans[hostname] = now
		markedAt = now
	}

	if r.config.OrphanGraceWindow <= 0 {
		return markedAt, true
	}
	return markedAt, now.Sub(markedAt) >= r.config.OrphanGraceWindow
}

// skipAction builds a skipped action for hostname at inst with the given
// reason.
func skipAction(inst *provider.ProviderInstance, hostname, reason string) Action {
	return Action{
		Type:       ActionSkip,
		Provider:   inst.Name(),
		Hostname:   hostname,
		RecordType: string(inst.RecordType),
		Target:     inst.Target,
		Status:     StatusSkipped,
		Error:      reason,
	}
}

// failedDeleteAction builds a failed delete action for hostname at inst.
func failedDeleteAction(inst *provider.ProviderInstance, hostname, reason string) Action {
	return Action{
		Type:       ActionDelete,
		Provider:   inst.Name(),
		Hostname:   hostname,
		RecordType: string(inst.RecordType),
		Target:     inst.Target,
		Status:     StatusFailed,
		Error:      reason,
	}
}

// plannedDeleteAction builds the dry-run/paused stand-in for a delete.
func plannedDeleteAction(inst *provider.ProviderInstance, hostname string) Action {
	return Action{
		Type:       ActionDelete,
		Provider:   inst.Name(),
		Hostname:   hostname,
		RecordType: string(inst.RecordType),
		Target:     inst.Target,
		Status:     StatusSuccess,
	}
}

// deleteOrphanForProvider dispatches one hostname's sweep at one provider
// according to the instance's operational mode.
func (r *Reconciler) deleteOrphanForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	mode := inst.Mode
	if mode == "" {
		mode = provider.ModeManaged
	}

	if !mode.AllowsDelete() {
		r.logger.Info("skipping orphan deletion - additive mode",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("mode", string(mode)),
		)
		return []Action{skipAction(inst, hostname, "additive mode - deletions disabled")}
	}

	if !mode.RequiresOwnership() {
		return r.deleteAuthoritativeForProvider(ctx, hostname, inst, cache)
	}
	if r.config.OwnershipTracking {
		return r.deleteManagedForProvider(ctx, hostname, inst, cache)
	}
	return r.deleteCacheOnlyForProvider(ctx, hostname, inst, cache)
}

// hostnameRecords collects the data records present for hostname at inst,
// from the cache when possible, falling back to a live listing. Ownership
// TXT records are excluded; they are retired separately.
func (r *Reconciler) hostnameRecords(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) ([]provider.Record, error) {
	if cache != nil {
		if cachedRecords, ok := cache.getAllRecordsForHostname(inst.Name(), hostname); ok && len(cachedRecords) > 0 {
			return cachedRecords, nil
		}
	}

	allRecords, err := inst.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	var records []provider.Record
	for _, rec := range allRecords {
		if rec.Hostname != hostname {
			continue
		}
		switch rec.Type {
		case provider.RecordTypeA, provider.RecordTypeAAAA, provider.RecordTypeCNAME, provider.RecordTypeSRV:
			records = append(records, rec)
		}
	}
	return records, nil
}

// deleteHostnameRecords deletes each record, producing one action per
// record. A failure on one record does not stop the rest. typeFilter, when
// non-nil, drops records it rejects before any delete is issued.
func (r *Reconciler) deleteHostnameRecords(ctx context.Context, hostname string, inst *provider.ProviderInstance, records []provider.Record, typeFilter func(provider.RecordType) bool) []Action {
	var actions []Action
	for _, record := range records {
		if typeFilter != nil && !typeFilter(record.Type) {
			r.logger.Debug("skipping record type during sweep",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
			)
			continue
		}

		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(record.Type),
			Target:     record.Target,
		}

		var err error
		if record.Type == provider.RecordTypeSRV {
			err = inst.DeleteSRVRecord(ctx, hostname, record.Target, record.SRV)
		} else {
			err = inst.DeleteRecordByTarget(ctx, hostname, record.Type, record.Target)
		}

		if err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to delete record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("error", err.Error()),
			)
		} else {
			action.Status = StatusSuccess
			r.logger.Info("deleted record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("type", string(record.Type)),
				slog.String("target", record.Target),
			)
			r.untrackManaged(ctx, inst, hostname, record.Type)
		}
		actions = append(actions, action)
	}
	return actions
}

// retireOwnershipRecord deletes the hostname's ownership TXT marker,
// logging failures at the given level of concern.
func (r *Reconciler) retireOwnershipRecord(ctx context.Context, hostname string, inst *provider.ProviderInstance, quiet bool) {
	err := inst.DeleteOwnershipRecord(ctx, hostname)
	switch {
	case err == nil:
		r.logger.Debug("deleted ownership record",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
	case quiet:
		r.logger.Debug("failed to delete ownership record (may not exist)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
	default:
		r.logger.Warn("failed to delete ownership record",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// deleteAuthoritativeForProvider sweeps without an ownership check, but
// only record types the provider's capabilities cover, and never TXT.
func (r *Reconciler) deleteAuthoritativeForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun || r.IsProviderPaused(inst.Name()) {
		r.logger.Info("would delete record in authoritative mode (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{plannedDeleteAction(inst, hostname)}
	}

	records, err := r.hostnameRecords(ctx, hostname, inst, cache)
	if err != nil {
		r.logger.Warn("failed to list records for authoritative deletion",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
		return []Action{failedDeleteAction(inst, hostname, "failed to list records: "+err.Error())}
	}

	caps := inst.Provider.Capabilities()
	actions := r.deleteHostnameRecords(ctx, hostname, inst, records, func(rt provider.RecordType) bool {
		return rt != provider.RecordTypeTXT && caps.SupportsRecordType(rt)
	})

	if r.config.OwnershipTracking {
		r.retireOwnershipRecord(ctx, hostname, inst, true)
	}
	return actions
}

// deleteManagedForProvider sweeps only when the ownership marker confirms
// the engine created these records.
func (r *Reconciler) deleteManagedForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun || r.IsProviderPaused(inst.Name()) {
		r.logger.Info("would delete record if owned (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{plannedDeleteAction(inst, hostname)}
	}

	var hasOwnership bool
	if cache != nil {
		hasOwnership = cache.hasOwnershipRecord(inst.Name(), hostname)
	} else {
		var err error
		hasOwnership, err = inst.HasOwnershipRecord(ctx, hostname)
		if err != nil {
			r.logger.Warn("failed to check ownership record, skipping deletion",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
			return []Action{skipAction(inst, hostname, "failed to check ownership: "+err.Error())}
		}
	}

	if !hasOwnership {
		r.logger.Info("skipping orphan deletion - no ownership record (manually created?)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{skipAction(inst, hostname, "no ownership record - may be manually created")}
	}

	records, err := r.hostnameRecords(ctx, hostname, inst, cache)
	if err != nil {
		r.logger.Warn("failed to list records for managed deletion",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
		return []Action{failedDeleteAction(inst, hostname, "failed to list records: "+err.Error())}
	}

	actions := r.deleteHostnameRecords(ctx, hostname, inst, records, nil)
	r.retireOwnershipRecord(ctx, hostname, inst, false)
	return actions
}

// deleteCacheOnlyForProvider sweeps in managed mode without ownership
// tracking, relying on the cache for the record inventory.
func (r *Reconciler) deleteCacheOnlyForProvider(ctx context.Context, hostname string, inst *provider.ProviderInstance, cache *recordCache) []Action {
	if r.config.DryRun || r.IsProviderPaused(inst.Name()) {
		r.logger.Info("would delete record (dry-run)",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
		)
		return []Action{plannedDeleteAction(inst, hostname)}
	}

	records, err := r.hostnameRecords(ctx, hostname, inst, cache)
	if err != nil {
		r.logger.Warn("failed to list records for deletion",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
		return []Action{failedDeleteAction(inst, hostname, "failed to list records: "+err.Error())}
	}

	return r.deleteHostnameRecords(ctx, hostname, inst, records, nil)
}

// deleteRecord removes a hostname's default-shaped record at every
// matching provider. Used by the event-driven RemoveHostname path, which
// bypasses the orphan grace machinery.
func (r *Reconciler) deleteRecord(ctx context.Context, hostname string) []Action {
	var actions []Action

	for _, inst := range r.providers.MatchingProviders(hostname) {
		action := Action{
			Type:       ActionDelete,
			Provider:   inst.Name(),
			Hostname:   hostname,
			RecordType: string(inst.RecordType),
			Target:     inst.Target,
		}

		if r.config.DryRun || r.IsProviderPaused(inst.Name()) {
			action.Status = StatusSuccess
			r.logger.Info("would delete record (dry-run)",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.Bool("ownership_tracking", r.config.OwnershipTracking),
			)
			actions = append(actions, action)
			continue
		}

		if err := inst.DeleteRecord(ctx, hostname); err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to delete record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
		} else {
			action.Status = StatusSuccess
			r.logger.Info("deleted record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
			)
			r.untrackManaged(ctx, inst, hostname, inst.RecordType)
			if r.config.OwnershipTracking {
				r.retireOwnershipRecord(ctx, hostname, inst, false)
			}
		}
		actions = append(actions, action)
	}

	return actions
}

// persistOrphanMark mirrors an in-memory orphan mark (or its clearing) into
// the durable store for every provider routing this hostname, so the
// administrative orphan listing sees it and the grace clock survives a
// restart. A nil store is a no-op.
func (r *Reconciler) persistOrphanMark(ctx context.Context, hostname string, orphaned bool) {
	if r.store == nil {
		return
	}
	for _, inst := range r.providers.MatchingProviders(hostname) {
		var err error
		if orphaned {
			err = r.store.MarkOrphaned(ctx, inst.Name(), hostname, inst.RecordType)
		} else {
			err = r.store.UnmarkOrphaned(ctx, inst.Name(), hostname, inst.RecordType)
		}
		if err != nil {
			r.logger.Warn("failed to persist orphan mark",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.Bool("orphaned", orphaned),
				slog.String("error", err.Error()),
			)
		}
	}
}

// untrackManaged drops (provider, hostname, recordType) from the durable
// store after the provider-side record is gone. A nil store is a no-op; a
// database error is logged, not fatal, since the record is already deleted
// at the provider.
func (r *Reconciler) untrackManaged(ctx context.Context, inst *provider.ProviderInstance, hostname string, recordType provider.RecordType) {
	if r.store == nil {
		return
	}
	if err := r.store.Untrack(ctx, inst.Name(), hostname, recordType); err != nil {
		r.logger.Warn("failed to remove managed record from store",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
	}
}
