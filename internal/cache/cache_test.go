package cache

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

func testCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	database, err := db.Open(context.Background(), ":memory:", quietLogger())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return New(database.Conn(), ttl, quietLogger())
}

func TestCache_NeedsRefreshWhenEmpty(t *testing.T) {
	c := testCache(t, time.Minute)

	if !c.NeedsRefresh("p1") {
		t.Error("a never-refreshed provider must need a refresh")
	}
}

func TestCache_RefreshAndFind(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	records := []provider.Record{
		{Hostname: "app.example.com", Type: provider.RecordTypeA, Target: "10.0.0.1", TTL: 300, ProviderID: "ext-1"},
		{Hostname: "www.example.com", Type: provider.RecordTypeCNAME, Target: "app.example.com", TTL: 300, ProviderID: "ext-2"},
	}
	if err := c.Refresh(ctx, "p1", records); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if c.NeedsRefresh("p1") {
		t.Error("freshly refreshed provider should not need a refresh")
	}

	rec, found, err := c.Find(ctx, "p1", provider.RecordTypeA, "app.example.com")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !found {
		t.Fatal("record not found in cache")
	}
	if rec.Target != "10.0.0.1" {
		t.Errorf("Target = %q, want 10.0.0.1", rec.Target)
	}

	if _, found, _ := c.Find(ctx, "p1", provider.RecordTypeA, "ghost.example.com"); found {
		t.Error("Find should miss for an uncached hostname")
	}
	if _, found, _ := c.Find(ctx, "p2", provider.RecordTypeA, "app.example.com"); found {
		t.Error("Find should not cross provider boundaries")
	}
}

func TestCache_ProxiedRoundTrip(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	proxied := true
	if err := c.Refresh(ctx, "p1", []provider.Record{
		{Hostname: "edge.example.com", Type: provider.RecordTypeA, Target: "10.0.0.1", TTL: 1, Proxied: &proxied, ProviderID: "ext-1"},
		{Hostname: "plain.example.com", Type: provider.RecordTypeTXT, Target: "v=spf1", TTL: 300, ProviderID: "ext-2"},
	}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rec, found, err := c.Find(ctx, "p1", provider.RecordTypeA, "edge.example.com")
	if err != nil || !found {
		t.Fatalf("Find: found=%v err=%v", found, err)
	}
	if rec.Proxied == nil || !*rec.Proxied {
		t.Errorf("proxied flag lost round trip: %+v", rec.Proxied)
	}
	// The TTL=1 automatic sentinel survives untouched.
	if rec.TTL != 1 {
		t.Errorf("TTL sentinel = %d", rec.TTL)
	}

	// A record with no proxied notion comes back with the nil pointer, not
	// a false.
	rec, found, err = c.Find(ctx, "p1", provider.RecordTypeTXT, "plain.example.com")
	if err != nil || !found {
		t.Fatalf("Find TXT: found=%v err=%v", found, err)
	}
	if rec.Proxied != nil {
		t.Errorf("nil proxied became %v through the cache", *rec.Proxied)
	}

	listed, err := c.List(ctx, "p1")
	if err != nil || len(listed) != 2 {
		t.Fatalf("List = %d records, %v", len(listed), err)
	}
	for _, r := range listed {
		if r.Hostname == "edge.example.com" && (r.Proxied == nil || !*r.Proxied) {
			t.Errorf("List dropped proxied: %+v", r)
		}
	}
}

func TestCache_FindByExternalID(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Refresh(ctx, "p1", []provider.Record{
		{Hostname: "app.example.com", Type: provider.RecordTypeA, Target: "10.0.0.1", TTL: 300, ProviderID: "ext-1"},
	}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rec, found, err := c.FindByExternalID(ctx, "p1", "ext-1")
	if err != nil {
		t.Fatalf("FindByExternalID failed: %v", err)
	}
	if !found || rec.Hostname != "app.example.com" {
		t.Errorf("found=%v rec=%+v", found, rec)
	}

	if _, found, _ := c.FindByExternalID(ctx, "p1", "nope"); found {
		t.Error("FindByExternalID should miss for unknown id")
	}
}

func TestCache_RefreshReplacesStaleRows(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Refresh(ctx, "p1", []provider.Record{
		{Hostname: "old.example.com", Type: provider.RecordTypeA, Target: "1.1.1.1", TTL: 300, ProviderID: "ext-old"},
	}); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	// Second refresh no longer lists ext-old: the row must disappear so the
	// cache mirrors the provider exactly.
	if err := c.Refresh(ctx, "p1", []provider.Record{
		{Hostname: "new.example.com", Type: provider.RecordTypeA, Target: "2.2.2.2", TTL: 300, ProviderID: "ext-new"},
	}); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	if _, found, _ := c.Find(ctx, "p1", provider.RecordTypeA, "old.example.com"); found {
		t.Error("record absent from the latest listing must be dropped")
	}
	if _, found, _ := c.Find(ctx, "p1", provider.RecordTypeA, "new.example.com"); !found {
		t.Error("record from the latest listing must be present")
	}
}

func TestCache_RefreshIsPerProvider(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Refresh(ctx, "p1", []provider.Record{
		{Hostname: "a.example.com", Type: provider.RecordTypeA, Target: "1.1.1.1", TTL: 300, ProviderID: "x1"},
	}); err != nil {
		t.Fatalf("Refresh p1 failed: %v", err)
	}
	if err := c.Refresh(ctx, "p2", []provider.Record{
		{Hostname: "b.example.com", Type: provider.RecordTypeA, Target: "2.2.2.2", TTL: 300, ProviderID: "x2"},
	}); err != nil {
		t.Fatalf("Refresh p2 failed: %v", err)
	}

	// Emptying p2 must not touch p1's rows.
	if err := c.Refresh(ctx, "p2", nil); err != nil {
		t.Fatalf("Refresh p2 empty failed: %v", err)
	}

	if _, found, _ := c.Find(ctx, "p1", provider.RecordTypeA, "a.example.com"); !found {
		t.Error("p1's rows must survive p2's refresh")
	}
	records, err := c.List(ctx, "p2")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("p2 should be empty, got %d records", len(records))
	}
}

func TestCache_SyntheticExternalID(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()

	// Providers without native record IDs get a synthetic (type, hostname)
	// key, so re-refreshing the same record overwrites instead of erroring
	// on the primary key.
	rec := provider.Record{Hostname: "app.example.com", Type: provider.RecordTypeA, Target: "1.1.1.1", TTL: 300}
	if err := c.Refresh(ctx, "p1", []provider.Record{rec}); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	rec.Target = "2.2.2.2"
	if err := c.Refresh(ctx, "p1", []provider.Record{rec}); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	got, found, err := c.Find(ctx, "p1", provider.RecordTypeA, "app.example.com")
	if err != nil || !found {
		t.Fatalf("Find: found=%v err=%v", found, err)
	}
	if got.Target != "2.2.2.2" {
		t.Errorf("Target = %q, want the re-refreshed value", got.Target)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := testCache(t, 10*time.Millisecond)
	ctx := context.Background()

	if err := c.Refresh(ctx, "p1", nil); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if c.NeedsRefresh("p1") {
		t.Error("freshly refreshed provider should not need a refresh")
	}

	time.Sleep(20 * time.Millisecond)
	if !c.NeedsRefresh("p1") {
		t.Error("provider should need a refresh after its TTL elapses")
	}
}
