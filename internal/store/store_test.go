package store

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/trafegodns/trafego/internal/db"
	"github.com/trafegodns/trafego/pkg/provider"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(context.Background(), ":memory:", quietLogger())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return New(database.Conn())
}

func TestStore_TrackAndIsManaged(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	managed, err := s.IsManaged(ctx, "p1", "app.example.com", provider.RecordTypeA)
	if err != nil {
		t.Fatalf("IsManaged failed: %v", err)
	}
	if managed {
		t.Error("untracked tuple should not be managed")
	}

	if err := s.Track(ctx, "p1", "app.example.com", provider.RecordTypeA, "ext-1", "fp-1", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	managed, err = s.IsManaged(ctx, "p1", "app.example.com", provider.RecordTypeA)
	if err != nil {
		t.Fatalf("IsManaged failed: %v", err)
	}
	if !managed {
		t.Error("tracked tuple should be managed")
	}

	// Same hostname under a different provider is a separate tuple.
	managed, _ = s.IsManaged(ctx, "p2", "app.example.com", provider.RecordTypeA)
	if managed {
		t.Error("tracking must not cross provider boundaries")
	}
}

func TestStore_TrackUpsertsAndClearsOrphan(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, "p1", "app.example.com", provider.RecordTypeA, "ext-1", "fp-1", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := s.MarkOrphaned(ctx, "p1", "app.example.com", provider.RecordTypeA); err != nil {
		t.Fatalf("MarkOrphaned failed: %v", err)
	}

	// Re-tracking the same tuple updates in place and clears the orphan
	// mark; it must not create a second row.
	if err := s.Track(ctx, "p1", "app.example.com", provider.RecordTypeA, "ext-2", "fp-2", "reconciler"); err != nil {
		t.Fatalf("second Track failed: %v", err)
	}

	entries, err := s.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("row count = %d, want 1 (upsert, not insert)", len(entries))
	}
	e := entries[0]
	if e.ExternalID != "ext-2" {
		t.Errorf("ExternalID = %q, want rebound ext-2", e.ExternalID)
	}
	if e.Fingerprint != "fp-2" {
		t.Errorf("Fingerprint = %q, want fp-2", e.Fingerprint)
	}
	if e.OrphanedAt != nil {
		t.Error("re-tracking must clear the orphan mark")
	}
}

func TestStore_SetExternalID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, "p1", "app.example.com", provider.RecordTypeA, "old-id", "fp", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := s.SetExternalID(ctx, "p1", "app.example.com", provider.RecordTypeA, "new-id"); err != nil {
		t.Fatalf("SetExternalID failed: %v", err)
	}

	entries, _ := s.List(ctx, "p1")
	if len(entries) != 1 {
		t.Fatalf("row count = %d, want 1", len(entries))
	}
	if entries[0].ExternalID != "new-id" {
		t.Errorf("ExternalID = %q, want new-id", entries[0].ExternalID)
	}
}

func TestStore_OrphanLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, "p1", "old.example.com", provider.RecordTypeCNAME, "ext-1", "fp", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}

	if err := s.MarkOrphaned(ctx, "p1", "old.example.com", provider.RecordTypeCNAME); err != nil {
		t.Fatalf("MarkOrphaned failed: %v", err)
	}

	entries, _ := s.List(ctx, "p1")
	if entries[0].OrphanedAt == nil {
		t.Fatal("entry should carry an orphaned-at mark")
	}
	firstMark := *entries[0].OrphanedAt

	// Marking again must not reset the grace clock.
	time.Sleep(1100 * time.Millisecond)
	if err := s.MarkOrphaned(ctx, "p1", "old.example.com", provider.RecordTypeCNAME); err != nil {
		t.Fatalf("second MarkOrphaned failed: %v", err)
	}
	entries, _ = s.List(ctx, "p1")
	if !entries[0].OrphanedAt.Equal(firstMark) {
		t.Error("repeated MarkOrphaned must not advance the original mark")
	}

	// Unmark restores the live state.
	if err := s.UnmarkOrphaned(ctx, "p1", "old.example.com", provider.RecordTypeCNAME); err != nil {
		t.Fatalf("UnmarkOrphaned failed: %v", err)
	}
	entries, _ = s.List(ctx, "p1")
	if entries[0].OrphanedAt != nil {
		t.Error("UnmarkOrphaned should clear the mark")
	}
}

func TestStore_DueForSweep(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, "p1", "old.example.com", provider.RecordTypeA, "ext-1", "fp", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := s.Track(ctx, "p1", "live.example.com", provider.RecordTypeA, "ext-2", "fp", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := s.MarkOrphaned(ctx, "p1", "old.example.com", provider.RecordTypeA); err != nil {
		t.Fatalf("MarkOrphaned failed: %v", err)
	}

	// With a long grace window nothing is due yet.
	due, err := s.DueForSweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DueForSweep failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("nothing should be due inside the grace window, got %d", len(due))
	}

	// With no grace the freshly marked entry is due; the live one is not.
	due, err = s.DueForSweep(ctx, 0)
	if err != nil {
		t.Fatalf("DueForSweep failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due count = %d, want 1", len(due))
	}
	if due[0].Hostname != "old.example.com" {
		t.Errorf("due hostname = %q", due[0].Hostname)
	}
}

func TestStore_Untrack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, "p1", "app.example.com", provider.RecordTypeA, "ext-1", "fp", "reconciler"); err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if err := s.Untrack(ctx, "p1", "app.example.com", provider.RecordTypeA); err != nil {
		t.Fatalf("Untrack failed: %v", err)
	}

	managed, _ := s.IsManaged(ctx, "p1", "app.example.com", provider.RecordTypeA)
	if managed {
		t.Error("untracked tuple should not be managed")
	}

	// Untracking again is a no-op, not an error.
	if err := s.Untrack(ctx, "p1", "app.example.com", provider.RecordTypeA); err != nil {
		t.Errorf("repeated Untrack should succeed, got: %v", err)
	}
}

func TestStore_Overrides(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, ok, err := s.Override(ctx, "app.example.com"); err != nil || ok {
		t.Fatalf("unset override: ok=%v err=%v", ok, err)
	}

	proxied := true
	full := Override{
		Hostname:   "app.example.com",
		ProviderID: "p1",
		RecordType: provider.RecordTypeCNAME,
		Target:     "edge.example.net",
		TTL:        120,
		Proxied:    &proxied,
		Enabled:    true,
		Reason:     "pinned during migration",
	}
	if err := s.SetOverride(ctx, full); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}

	got, ok, err := s.Override(ctx, "app.example.com")
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if !ok || got.ProviderID != "p1" || got.RecordType != provider.RecordTypeCNAME ||
		got.Target != "edge.example.net" || got.TTL != 120 || !got.Enabled {
		t.Errorf("Override = %+v", got)
	}
	if got.Proxied == nil || !*got.Proxied {
		t.Errorf("proxied knob lost round trip: %+v", got.Proxied)
	}
	if got.Reason != "pinned during migration" {
		t.Errorf("reason = %q", got.Reason)
	}

	// Upserting the same hostname replaces the row, not duplicates it.
	full.TTL = 60
	if err := s.SetOverride(ctx, full); err != nil {
		t.Errorf("repeated SetOverride should succeed, got: %v", err)
	}
	got, _, _ = s.Override(ctx, "app.example.com")
	if got.TTL != 60 {
		t.Errorf("upsert did not replace, TTL = %d", got.TTL)
	}

	if err := s.ClearOverride(ctx, "app.example.com"); err != nil {
		t.Fatalf("ClearOverride failed: %v", err)
	}
	if _, ok, _ := s.Override(ctx, "app.example.com"); ok {
		t.Error("override should be cleared")
	}
}

func TestStore_PinProviderPreservesKnobs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// A fresh pin creates the row.
	if err := s.PinProvider(ctx, "app.example.com", "p1", "claimed via admin api"); err != nil {
		t.Fatalf("PinProvider failed: %v", err)
	}
	got, ok, err := s.Override(ctx, "app.example.com")
	if err != nil || !ok || got.ProviderID != "p1" || !got.Enabled {
		t.Fatalf("pinned override = %+v ok=%v err=%v", got, ok, err)
	}

	// An operator later sets knobs; re-pinning must not wipe them.
	got.TTL = 120
	got.Target = "10.0.0.9"
	if err := s.SetOverride(ctx, got); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}
	if err := s.PinProvider(ctx, "app.example.com", "p2", "re-claimed"); err != nil {
		t.Fatalf("re-pin failed: %v", err)
	}

	got, _, _ = s.Override(ctx, "app.example.com")
	if got.ProviderID != "p2" {
		t.Errorf("pin not updated: %q", got.ProviderID)
	}
	if got.TTL != 120 || got.Target != "10.0.0.9" {
		t.Errorf("re-pin clobbered knobs: %+v", got)
	}
}

func TestStore_ListOverrides(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if all, err := s.ListOverrides(ctx); err != nil || len(all) != 0 {
		t.Fatalf("empty ListOverrides = %v, %v", all, err)
	}

	if err := s.SetOverride(ctx, Override{Hostname: "a.example.com", TTL: 60, Enabled: true}); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := s.SetOverride(ctx, Override{Hostname: "b.example.com", ProviderID: "p2", Enabled: false, Reason: "parked"}); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	all, err := s.ListOverrides(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListOverrides = %v, %v", all, err)
	}
	if all["a.example.com"].TTL != 60 || !all["a.example.com"].Enabled {
		t.Errorf("a row = %+v", all["a.example.com"])
	}
	if all["b.example.com"].Enabled || all["b.example.com"].Reason != "parked" {
		t.Errorf("b row = %+v", all["b.example.com"])
	}
}
