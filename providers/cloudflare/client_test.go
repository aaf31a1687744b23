package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/trafegodns/trafego/pkg/provider"
)

// fakeCF is an in-memory slice of the Cloudflare API: one zone, a record
// map, and the standard response envelope.
type fakeCF struct {
	t        *testing.T
	zoneID   string
	zoneName string

	mu      sync.Mutex
	nextID  int
	records map[string]dnsRecord // id -> record

	// forced error behavior
	failStatus int
	failCode   int
	failMsg    string
}

func newFakeCF(t *testing.T) *fakeCF {
	return &fakeCF{
		t:        t,
		zoneID:   "zone-1",
		zoneName: "lab.example",
		records:  make(map[string]dnsRecord),
	}
}

func (f *fakeCF) envelope(w http.ResponseWriter, status int, result any, errs []apiError, info *resultInfo) {
	resp := map[string]any{
		"success": status >= 200 && status < 300,
		"errors":  errs,
	}
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			f.t.Fatalf("encoding result: %v", err)
		}
		resp["result"] = json.RawMessage(encoded)
	}
	if info != nil {
		resp["result_info"] = info
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeCF) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.failStatus != 0 {
			f.envelope(w, f.failStatus, nil, []apiError{{Code: f.failCode, Message: f.failMsg}}, nil)
			return
		}

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			f.envelope(w, http.StatusUnauthorized, nil, []apiError{{Code: 10000, Message: "missing token"}}, nil)
			return
		}

		switch {
		case r.URL.Path == "/user/tokens/verify":
			f.envelope(w, http.StatusOK, map[string]string{"status": "active"}, nil, nil)

		case r.URL.Path == "/zones":
			var zones []zoneResult
			if r.URL.Query().Get("name") == f.zoneName {
				zones = append(zones, zoneResult{ID: f.zoneID, Name: f.zoneName, Status: "active"})
			}
			f.envelope(w, http.StatusOK, zones, nil, nil)

		case r.URL.Path == fmt.Sprintf("/zones/%s/dns_records", f.zoneID) && r.Method == http.MethodGet:
			var out []dnsRecord
			query := r.URL.Query()
			for _, rec := range f.records {
				if typ := query.Get("type"); typ != "" && rec.Type != typ {
					continue
				}
				if name := query.Get("name"); name != "" && rec.Name != name {
					continue
				}
				out = append(out, rec)
			}
			f.envelope(w, http.StatusOK, out, nil, &resultInfo{Page: 1, TotalPages: 1})

		case r.URL.Path == fmt.Sprintf("/zones/%s/dns_records", f.zoneID) && r.Method == http.MethodPost:
			var payload recordPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				f.envelope(w, http.StatusBadRequest, nil, []apiError{{Code: 9000, Message: "bad json"}}, nil)
				return
			}
			for _, rec := range f.records {
				if rec.Type == payload.Type && rec.Name == payload.Name && rec.Content == payload.Content {
					f.envelope(w, http.StatusBadRequest, nil, []apiError{{Code: errCodeIdenticalExists, Message: "already exists"}}, nil)
					return
				}
			}
			f.nextID++
			rec := dnsRecord{
				ID:      "rec-" + strconv.Itoa(f.nextID),
				Type:    payload.Type,
				Name:    payload.Name,
				Content: payload.Content,
				TTL:     payload.TTL,
				Proxied: payload.Proxied,
				Comment: payload.Comment,
				ZoneID:  f.zoneID,
				Data:    payload.Data,
			}
			f.records[rec.ID] = rec
			f.envelope(w, http.StatusOK, rec, nil, nil)

		case strings.HasPrefix(r.URL.Path, fmt.Sprintf("/zones/%s/dns_records/", f.zoneID)):
			id := strings.TrimPrefix(r.URL.Path, fmt.Sprintf("/zones/%s/dns_records/", f.zoneID))
			rec, exists := f.records[id]
			switch r.Method {
			case http.MethodPut:
				if !exists {
					f.envelope(w, http.StatusNotFound, nil, []apiError{{Code: 81044, Message: "record not found"}}, nil)
					return
				}
				var payload recordPayload
				_ = json.NewDecoder(r.Body).Decode(&payload)
				rec.Type = payload.Type
				rec.Name = payload.Name
				rec.Content = payload.Content
				rec.TTL = payload.TTL
				rec.Proxied = payload.Proxied
				rec.Comment = payload.Comment
				rec.Data = payload.Data
				f.records[id] = rec
				f.envelope(w, http.StatusOK, rec, nil, nil)
			case http.MethodDelete:
				delete(f.records, id)
				f.envelope(w, http.StatusOK, map[string]string{"id": id}, nil, nil)
			default:
				f.envelope(w, http.StatusMethodNotAllowed, nil, nil, nil)
			}

		default:
			f.envelope(w, http.StatusNotFound, nil, []apiError{{Code: 7003, Message: "no route"}}, nil)
		}
	})
}

// testClientCF wires a Client to the fake API.
func testClientCF(t *testing.T, fake *fakeCF) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	return NewClient("test-token", WithAPIEndpoint(server.URL), WithHTTPClient(server.Client()))
}

func TestClientPing(t *testing.T) {
	client := testClientCF(t, newFakeCF(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClientGetZoneID(t *testing.T) {
	client := testClientCF(t, newFakeCF(t))

	// The zone resolves from a hostname deep inside it.
	id, err := client.GetZoneID(context.Background(), "web.apps.lab.example")
	if err != nil || id != "zone-1" {
		t.Errorf("GetZoneID = %q, %v", id, err)
	}

	if _, err := client.GetZoneID(context.Background(), "web.other.test"); err == nil {
		t.Error("unknown domain resolved a zone")
	}
}

func TestClientRecordLifecycle(t *testing.T) {
	fake := newFakeCF(t)
	client := testClientCF(t, fake)
	ctx := context.Background()

	created, err := client.CreateRecord(ctx, "zone-1", recordPayload{
		Type: "A", Name: "web.lab.example", Content: "192.0.2.10", TTL: 300,
		Comment: provider.OwnershipMarker,
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if created.ID == "" || created.Comment != provider.OwnershipMarker {
		t.Errorf("created = %+v", created)
	}

	listed, err := client.ListRecords(ctx, "zone-1", "A")
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListRecords = %+v, %v", listed, err)
	}

	found, err := client.FindRecord(ctx, "zone-1", "A", "web.lab.example")
	if err != nil || found == nil || found.ID != created.ID {
		t.Fatalf("FindRecord = %+v, %v", found, err)
	}

	if err := client.UpdateRecord(ctx, "zone-1", created.ID, recordPayload{
		Type: "A", Name: "web.lab.example", Content: "192.0.2.11", TTL: 300,
	}); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	found, _ = client.FindRecord(ctx, "zone-1", "A", "web.lab.example")
	if found.Content != "192.0.2.11" {
		t.Errorf("content after update = %q", found.Content)
	}

	if err := client.DeleteRecord(ctx, "zone-1", created.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	found, err = client.FindRecord(ctx, "zone-1", "A", "web.lab.example")
	if err != nil || found != nil {
		t.Errorf("record survived delete: %+v, %v", found, err)
	}
}

func TestClientDuplicateCreateIsConflict(t *testing.T) {
	fake := newFakeCF(t)
	client := testClientCF(t, fake)
	ctx := context.Background()

	payload := recordPayload{Type: "A", Name: "web.lab.example", Content: "192.0.2.10", TTL: 300}
	if _, err := client.CreateRecord(ctx, "zone-1", payload); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := client.CreateRecord(ctx, "zone-1", payload)
	if !errors.Is(err, provider.ErrConflict) {
		t.Errorf("duplicate create = %v, want ErrConflict", err)
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"401 unauthorized", http.StatusUnauthorized, provider.IsUnauthorized},
		{"403 unauthorized", http.StatusForbidden, provider.IsUnauthorized},
		{"429 rate limited", http.StatusTooManyRequests, provider.IsRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeCF(t)
			fake.failStatus = tt.status
			fake.failCode = 9999
			fake.failMsg = "forced"
			client := testClientCF(t, fake)

			err := client.Ping(context.Background())
			if err == nil || !tt.check(err) {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestClassifyStatusRetryAfter(t *testing.T) {
	err := classifyStatus(http.StatusTooManyRequests, "17")
	var rl *provider.RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter.Seconds() != 17 {
		t.Errorf("classifyStatus(429) = %v", err)
	}

	if err := classifyStatus(http.StatusBadGateway, ""); !provider.IsProviderUnavailable(err) {
		t.Errorf("classifyStatus(502) = %v", err)
	}
	if err := classifyStatus(http.StatusOK, ""); err != nil {
		t.Errorf("classifyStatus(200) = %v", err)
	}
}
