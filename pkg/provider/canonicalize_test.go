package provider

import (
	"strings"
	"testing"
)

func TestCanonicalize_NameNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "app.example.com", "app.example.com"},
		{"uppercase", "APP.EXAMPLE.COM", "app.example.com"},
		{"trailing dot", "app.example.com.", "app.example.com"},
		{"surrounding whitespace", "  app.example.com  ", "app.example.com"},
		{"idn to a-label", "bücher.example.com", "xn--bcher-kva.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Canonicalize(Record{Hostname: tt.in, Type: RecordTypeA, Target: "1.2.3.4", TTL: 300})
			if err != nil {
				t.Fatalf("Canonicalize failed: %v", err)
			}
			if rec.Hostname != tt.want {
				t.Errorf("Hostname = %q, want %q", rec.Hostname, tt.want)
			}
		})
	}
}

func TestCanonicalize_TTL(t *testing.T) {
	// Zero becomes the provider-default sentinel.
	rec, err := Canonicalize(Record{Hostname: "a.example.com", Type: RecordTypeA, Target: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if rec.TTL != AutoTTL {
		t.Errorf("zero TTL should canonicalize to AutoTTL, got %d", rec.TTL)
	}

	// The sentinel round-trips untouched.
	rec, err = Canonicalize(Record{Hostname: "a.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: AutoTTL})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if rec.TTL != AutoTTL {
		t.Errorf("AutoTTL must be preserved, got %d", rec.TTL)
	}

	// Negative is invalid.
	if _, err := Canonicalize(Record{Hostname: "a.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: -5}); !IsInvalidRecord(err) {
		t.Errorf("negative TTL should be InvalidRecord, got: %v", err)
	}
}

func TestCanonicalize_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		field string
	}{
		{"empty hostname", Record{Type: RecordTypeA, Target: "1.2.3.4"}, "name"},
		{"empty target", Record{Hostname: "a.example.com", Type: RecordTypeA}, "content"},
		{"mx without priority", Record{Hostname: "a.example.com", Type: RecordTypeMX, Target: "mail.example.com"}, "priority"},
		{"srv without data", Record{Hostname: "a.example.com", Type: RecordTypeSRV, Target: "sip.example.com"}, "srv"},
		{"srv zero port", Record{Hostname: "a.example.com", Type: RecordTypeSRV, Target: "sip.example.com", SRV: &SRVData{Priority: 1}}, "port"},
		{"caa without data", Record{Hostname: "a.example.com", Type: RecordTypeCAA, Target: "letsencrypt.org"}, "caa"},
		{"caa bad tag", Record{Hostname: "a.example.com", Type: RecordTypeCAA, Target: "letsencrypt.org", CAA: &CAAData{Tag: "nope"}}, "tag"},
		{"unknown type", Record{Hostname: "a.example.com", Type: RecordType("PTR"), Target: "x"}, "type"},
		{"mx empty target", Record{Hostname: "a.example.com", Type: RecordTypeMX}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.rec)
			if err == nil {
				t.Fatal("Canonicalize should fail")
			}
			if !IsInvalidRecord(err) {
				t.Fatalf("error should be InvalidRecord, got: %v", err)
			}
			invalid := err.(*InvalidRecordError)
			if invalid.Field != tt.field {
				t.Errorf("offending field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestCanonicalize_ValidTypeConditional(t *testing.T) {
	p10 := uint16(10)
	tests := []struct {
		name string
		rec  Record
	}{
		{"mx", Record{Hostname: "example.com", Type: RecordTypeMX, Target: "mail.example.com", TTL: 300, MXPriority: &p10}},
		{"srv", Record{Hostname: "_sip._tcp.example.com", Type: RecordTypeSRV, Target: "sip.example.com", TTL: 300, SRV: &SRVData{Priority: 10, Weight: 5, Port: 5060}}},
		{"caa issue", Record{Hostname: "example.com", Type: RecordTypeCAA, Target: "letsencrypt.org", TTL: 300, CAA: &CAAData{Flags: 0, Tag: "issue"}}},
		{"caa iodef", Record{Hostname: "example.com", Type: RecordTypeCAA, Target: "mailto:ops@example.com", TTL: 300, CAA: &CAAData{Flags: 128, Tag: "iodef"}}},
		{"txt", Record{Hostname: "example.com", Type: RecordTypeTXT, Target: "v=spf1 -all", TTL: 300}},
		{"ns", Record{Hostname: "sub.example.com", Type: RecordTypeNS, Target: "ns1.example.com", TTL: 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Canonicalize(tt.rec); err != nil {
				t.Errorf("Canonicalize failed: %v", err)
			}
		})
	}
}

func TestInvalidRecordError_Message(t *testing.T) {
	err := &InvalidRecordError{Field: "ttl", Value: "-1", Reason: "ttl must be non-negative"}
	for _, part := range []string{"ttl", "-1", "non-negative"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error message %q should contain %q", err.Error(), part)
		}
	}
}
