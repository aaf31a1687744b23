package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// Skip reasons reported on actions.
const (
	errRecordAlreadyExists = "record already exists"
	errRecordTypeConflict  = "record type conflict"
)

// recordShape is the resolved type/target/TTL (and SRV tuple, proxied
// flag) a hostname should take at one provider, after per-hostname hints
// override the instance defaults.
type recordShape struct {
	recordType provider.RecordType
	target     string
	ttl        int
	srv        *provider.SRVData
	proxied    *bool // nil = provider default
}

// resolveShape merges RecordHints over the instance defaults.
func resolveShape(hostname *source.Hostname, inst *provider.ProviderInstance) recordShape {
	shape := recordShape{
		recordType: inst.RecordType,
		target:     inst.Target,
		ttl:        inst.TTL,
	}

	hints := hostname.RecordHints
	if hints == nil {
		return shape
	}
	if hints.Type != "" {
		shape.recordType = provider.RecordType(hints.Type)
	}
	if hints.Target != "" {
		shape.target = hints.Target
	}
	if hints.TTL > 0 {
		shape.ttl = hints.TTL
	}
	if hints.Proxied != nil {
		proxied := *hints.Proxied
		shape.proxied = &proxied
	}
	if hints.SRV != nil {
		shape.srv = &provider.SRVData{
			Priority: hints.SRV.Priority,
			Weight:   hints.SRV.Weight,
			Port:     hints.SRV.Port,
		}
	}
	return shape
}

// desiredRecord renders the shape as a canonical record, the form the
// fingerprint comparison and the managed store work on.
func (s recordShape) desiredRecord(hostname string) provider.Record {
	return provider.Record{
		Hostname: hostname,
		Type:     s.recordType,
		Target:   s.target,
		TTL:      s.ttl,
		SRV:      s.srv,
		Proxied:  s.proxied,
	}
}

// targetProviderFor resolves an explicit provider pin: a source-supplied
// hint wins over a claim recorded through the administrative API. Disabled
// override rows are ignored.
func (r *Reconciler) targetProviderFor(ctx context.Context, hostname *source.Hostname) string {
	if hostname.RecordHints != nil && hostname.RecordHints.Provider != "" {
		return hostname.RecordHints.Provider
	}
	if r.store == nil {
		return ""
	}
	override, ok, err := r.store.Override(ctx, hostname.Name)
	if err != nil {
		r.logger.Warn("failed to read provider override",
			slog.String("hostname", hostname.Name),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !ok || !override.Enabled {
		return ""
	}
	return override.ProviderID
}

// ensureRecord routes one hostname to its providers and ensures each has
// the desired record. Explicit pins bypass domain matching; otherwise
// every matching instance gets a pass. restrictProvider scopes the work to
// one instance (admin reconcile-now); hostnames outside the scope produce
// no actions at all.
func (r *Reconciler) ensureRecord(ctx context.Context, hostname *source.Hostname, cache *recordCache, restrictProvider string, forceResync bool) []Action {
	var actions []Action

	if targetProvider := r.targetProviderFor(ctx, hostname); targetProvider != "" {
		if restrictProvider != "" && targetProvider != restrictProvider {
			return actions
		}
		inst, exists := r.providers.Get(targetProvider)
		if !exists {
			r.logger.Warn("explicit provider not found",
				slog.String("hostname", hostname.Name),
				slog.String("target_provider", targetProvider),
			)
			return append(actions, Action{
				Type:     ActionSkip,
				Status:   StatusSkipped,
				Hostname: hostname.Name,
				Error:    fmt.Sprintf("explicit provider %q not found", targetProvider),
			})
		}
		return append(actions, r.ensureRecordForProvider(ctx, hostname, inst, cache, forceResync))
	}

	matchingProviders := r.providers.MatchingProviders(hostname.Name)

	if restrictProvider != "" {
		var filtered []*provider.ProviderInstance
		for _, inst := range matchingProviders {
			if inst.Name() == restrictProvider {
				filtered = append(filtered, inst)
			}
		}
		matchingProviders = filtered
		if len(matchingProviders) == 0 {
			return actions
		}
	}

	if len(matchingProviders) == 0 {
		r.logger.Debug("no matching providers for hostname",
			slog.String("hostname", hostname.Name),
		)
		return append(actions, Action{
			Type:     ActionSkip,
			Status:   StatusSkipped,
			Hostname: hostname.Name,
			Error:    "no matching provider",
		})
	}

	for _, inst := range matchingProviders {
		actions = append(actions, r.ensureRecordForProvider(ctx, hostname, inst, cache, forceResync))
	}
	return actions
}

// ensureRecordForProvider is the list+compare core for one hostname at one
// provider:
//
//  1. a target match whose fingerprint also matches (TTL, proxied, SRV
//     tuple) means skip, adopting or re-confirming ownership along the way
//  2. a target match whose fingerprint drifted, or same-type records with
//     a different target, are replaced (reported as Update)
//  3. records of a conflicting type block the create entirely; the engine
//     never deletes a record it cannot prove is its own shape
//  4. a forced resync treats even fingerprint-identical matches as step 2
func (r *Reconciler) ensureRecordForProvider(ctx context.Context, hostname *source.Hostname, inst *provider.ProviderInstance, cache *recordCache, forceResync bool) Action {
	shape := resolveShape(hostname, inst)

	action := Action{
		Type:       ActionCreate,
		Provider:   inst.Name(),
		Hostname:   hostname.Name,
		RecordType: string(shape.recordType),
		Target:     shape.target,
	}

	if r.config.DryRun || r.IsProviderPaused(inst.Name()) {
		action.Status = StatusSuccess
		r.logger.Info("would create record (dry-run)",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("type", string(shape.recordType)),
			slog.String("target", shape.target),
			slog.Bool("ownership_tracking", r.config.OwnershipTracking),
			slog.Bool("has_hints", hostname.HasRecordHints()),
		)
		return action
	}

	// Inventory the hostname's existing records, preferring the cycle's
	// cached snapshot over a live query.
	var existingRecords []provider.Record
	if cache != nil {
		var cached bool
		existingRecords, cached = cache.getExistingRecords(inst.Name(), hostname.Name)
		if !cached {
			r.logger.Debug("cache miss, querying provider directly",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
			)
			var err error
			existingRecords, err = inst.GetExistingRecords(ctx, hostname.Name)
			if err != nil {
				r.logger.Warn("failed to list existing records, proceeding with create",
					slog.String("hostname", hostname.Name),
					slog.String("provider", inst.Name()),
					slog.String("error", err.Error()),
				)
				existingRecords = nil
			}
		}
	}

	sameTypeRecords, conflictingTypeRecords := CategorizeSameHostnameRecords(existingRecords, shape.recordType)

	// A record of another type at this name is user state the engine must
	// not disturb.
	if len(conflictingTypeRecords) > 0 {
		conflictTypes := make([]string, 0, len(conflictingTypeRecords))
		for _, rec := range conflictingTypeRecords {
			conflictTypes = append(conflictTypes, string(rec.Type))
		}
		action.Type = ActionSkip
		action.Status = StatusSkipped
		action.Error = fmt.Sprintf("type conflict: existing %v record(s) conflict with %s",
			conflictTypes, shape.recordType)
		r.logger.Warn("skipping due to record type conflict",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("desired_type", string(shape.recordType)),
			slog.Any("existing_types", conflictTypes),
		)
		return action
	}

	matched, exactMatchFound := FindExactMatch(sameTypeRecords, shape.target, shape.recordType, shape.srv)
	desired := shape.desiredRecord(hostname.Name)

	// The target matching is not enough: the fingerprint (TTL, proxied,
	// type-conditional fields) must match too, or the record has drifted
	// and needs re-applying.
	drifted := exactMatchFound && recordNeedsUpdate(matched, desired)

	// SRV records with the right target but a drifted tuple get replaced.
	if shape.recordType == provider.RecordTypeSRV {
		for _, stale := range FindStaleSRVRecords(sameTypeRecords, shape.target, shape.srv) {
			r.logger.Info("deleting stale SRV record with outdated data",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
				slog.String("target", stale.Target),
				slog.Int("old_priority", int(stale.SRV.Priority)),
				slog.Int("old_port", int(stale.SRV.Port)),
			)
			if err := inst.DeleteSRVRecord(ctx, hostname.Name, stale.Target, stale.SRV); err != nil {
				r.logger.Error("failed to delete stale SRV record",
					slog.String("hostname", hostname.Name),
					slog.String("provider", inst.Name()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	switch {
	case exactMatchFound && drifted:
		r.logger.Info("record fingerprint drifted, re-applying",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("target", shape.target),
			slog.Int("old_ttl", matched.TTL),
			slog.Int("new_ttl", shape.ttl),
		)
	case exactMatchFound && forceResync:
		r.logger.Debug("forced resync: re-applying record despite exact match",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("target", shape.target),
		)
	case exactMatchFound:
		return r.handleExactMatch(ctx, hostname, inst, cache, shape, action)
	}

	// The record is out of shape (target, TTL, proxied, or forced resync):
	// replace old same-type records, then create the desired one.
	for _, existing := range sameTypeRecords {
		r.logger.Info("deleting out-of-shape record before re-apply",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("old_target", existing.Target),
			slog.String("new_target", shape.target),
		)
		if err := inst.DeleteRecordByTarget(ctx, hostname.Name, existing.Type, existing.Target); err != nil {
			r.logger.Error("failed to delete old record before update",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
				slog.String("target", existing.Target),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := inst.CreateRecordWithValues(ctx, hostname.Name, shape.recordType, shape.target, shape.ttl, shape.srv, shape.proxied); err != nil {
		switch {
		case provider.IsConflict(err):
			action.Type = ActionSkip
			action.Status = StatusSkipped
			action.Error = errRecordAlreadyExists
			r.logger.Debug("record already exists, skipping",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
			)
			r.ensureOwnershipRecord(ctx, hostname.Name, inst)
			r.trackManaged(ctx, inst, hostname.Name, shape)
		case provider.IsTypeConflict(err):
			action.Type = ActionSkip
			action.Status = StatusSkipped
			action.Error = errRecordTypeConflict
			r.logger.Warn("record type conflict detected",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
				slog.String("type", string(shape.recordType)),
			)
		default:
			action.Status = StatusFailed
			action.Error = err.Error()
			r.logger.Error("failed to create record",
				slog.String("hostname", hostname.Name),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
		}
		return action
	}

	// Replacing an old target reads as an update; a fresh name is a create.
	if len(sameTypeRecords) > 0 {
		action.Type = ActionUpdate
		r.logger.Info("updated record",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("type", string(shape.recordType)),
			slog.String("target", shape.target),
		)
	} else {
		r.logger.Info("created record",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("type", string(shape.recordType)),
			slog.String("target", shape.target),
		)
	}
	action.Status = StatusSuccess
	r.ensureOwnershipRecord(ctx, hostname.Name, inst)
	r.trackManaged(ctx, inst, hostname.Name, shape)

	return action
}

// handleExactMatch resolves the fingerprint-identical case: if the record
// carries our marker, re-confirm tracking; if not, adopt it only when
// AdoptExisting is set, otherwise leave it strictly alone.
func (r *Reconciler) handleExactMatch(ctx context.Context, hostname *source.Hostname, inst *provider.ProviderInstance, cache *recordCache, shape recordShape, action Action) Action {
	action.Type = ActionSkip
	action.Status = StatusSkipped
	action.Error = errRecordAlreadyExists

	hasOwnership := false
	if cache != nil {
		hasOwnership = cache.hasOwnershipRecord(inst.Name(), hostname.Name)
	}

	switch {
	case hasOwnership:
		r.logger.Debug("record already exists with correct target",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("target", shape.target),
		)
		r.ensureOwnershipRecord(ctx, hostname.Name, inst)
		r.trackManaged(ctx, inst, hostname.Name, shape)
	case r.config.AdoptExisting:
		r.logger.Info("adopting existing record",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("target", shape.target),
		)
		r.ensureOwnershipRecord(ctx, hostname.Name, inst)
		r.trackManaged(ctx, inst, hostname.Name, shape)
	default:
		r.logger.Info("existing record found, skipping adoption (set ADOPT_EXISTING=true to manage)",
			slog.String("hostname", hostname.Name),
			slog.String("provider", inst.Name()),
			slog.String("target", shape.target),
		)
	}
	return action
}

// ensureOwnershipRecord writes the ownership TXT marker when tracking is
// enabled. An existing marker is fine.
func (r *Reconciler) ensureOwnershipRecord(ctx context.Context, hostname string, inst *provider.ProviderInstance) {
	if !r.config.OwnershipTracking {
		return
	}

	if err := inst.CreateOwnershipRecord(ctx, hostname); err != nil {
		if !provider.IsConflict(err) {
			r.logger.Warn("failed to create ownership record",
				slog.String("hostname", hostname),
				slog.String("provider", inst.Name()),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	r.logger.Debug("created ownership record",
		slog.String("hostname", hostname),
		slog.String("provider", inst.Name()),
	)
}

// trackManaged persists that inst now manages this hostname/type with the
// given content, so ownership survives a restart. A nil store is a no-op;
// a database error never fails the action that triggered it, since the
// TXT-marker path still works without the store.
func (r *Reconciler) trackManaged(ctx context.Context, inst *provider.ProviderInstance, hostname string, shape recordShape) {
	if r.store == nil {
		return
	}
	fp := provider.Fingerprint(shape.desiredRecord(hostname))
	if err := r.store.Track(ctx, inst.Name(), hostname, shape.recordType, "", fp, "reconciler"); err != nil {
		r.logger.Warn("failed to persist managed record",
			slog.String("hostname", hostname),
			slog.String("provider", inst.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// srvDataEquals reports tuple equality, with two nils equal.
func srvDataEquals(a, b *provider.SRVData) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Priority == b.Priority && a.Weight == b.Weight && a.Port == b.Port
}
