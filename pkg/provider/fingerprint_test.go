package provider

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	rec := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}

	if Fingerprint(rec) != Fingerprint(rec) {
		t.Error("fingerprint must be deterministic for the same record")
	}
}

func TestFingerprint_CaseAndTrailingDotInvariant(t *testing.T) {
	base := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}
	variants := []Record{
		{Hostname: "APP.EXAMPLE.COM", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300},
		{Hostname: "app.example.com.", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300},
		{Hostname: "App.Example.Com.", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300},
	}

	want := Fingerprint(base)
	for _, v := range variants {
		if got := Fingerprint(v); got != want {
			t.Errorf("fingerprint(%q) = %s, want same as base", v.Hostname, got)
		}
	}
}

func TestFingerprint_CanonicalizeIdempotent(t *testing.T) {
	raw := Record{Hostname: "APP.Example.COM.", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}

	once, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	twice, err := Canonicalize(once)
	if err != nil {
		t.Fatalf("second Canonicalize failed: %v", err)
	}

	if Fingerprint(once) != Fingerprint(twice) {
		t.Error("fingerprint must be invariant under repeated canonicalization")
	}
}

func TestFingerprint_ContentSensitivity(t *testing.T) {
	base := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}

	changed := []struct {
		name string
		rec  Record
	}{
		{"target", Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "5.6.7.8", TTL: 300}},
		{"ttl", Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 60}},
		{"type", Record{Hostname: "app.example.com", Type: RecordTypeAAAA, Target: "1.2.3.4", TTL: 300}},
		{"name", Record{Hostname: "api.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}},
	}

	want := Fingerprint(base)
	for _, tt := range changed {
		if Fingerprint(tt.rec) == want {
			t.Errorf("fingerprint should change when %s changes", tt.name)
		}
	}
}

func TestFingerprint_ProxiedParticipates(t *testing.T) {
	tr, fa := true, false
	plain := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}
	proxied := plain
	proxied.Proxied = &tr
	unproxied := plain
	unproxied.Proxied = &fa

	if Fingerprint(proxied) == Fingerprint(unproxied) {
		t.Error("proxied true vs false must fingerprint differently")
	}
	// A record where proxying is not applicable (nil) is distinct from an
	// explicit false: the field is omitted entirely, not zeroed.
	if Fingerprint(plain) == Fingerprint(unproxied) {
		t.Error("nil proxied must fingerprint differently from explicit false")
	}
}

func TestFingerprint_TypeConditionalFields(t *testing.T) {
	srvA := Record{
		Hostname: "_sip._tcp.example.com", Type: RecordTypeSRV, Target: "sip.example.com", TTL: 300,
		SRV: &SRVData{Priority: 10, Weight: 5, Port: 5060},
	}
	srvB := srvA
	srvB.SRV = &SRVData{Priority: 10, Weight: 5, Port: 5061}

	if Fingerprint(srvA) == Fingerprint(srvB) {
		t.Error("SRV port change must change the fingerprint")
	}

	p10, p20 := uint16(10), uint16(20)
	mxA := Record{Hostname: "example.com", Type: RecordTypeMX, Target: "mail.example.com", TTL: 300, MXPriority: &p10}
	mxB := mxA
	mxB.MXPriority = &p20

	if Fingerprint(mxA) == Fingerprint(mxB) {
		t.Error("MX priority change must change the fingerprint")
	}

	caaA := Record{Hostname: "example.com", Type: RecordTypeCAA, Target: "letsencrypt.org", TTL: 300, CAA: &CAAData{Flags: 0, Tag: "issue"}}
	caaB := caaA
	caaB.CAA = &CAAData{Flags: 0, Tag: "issuewild"}

	if Fingerprint(caaA) == Fingerprint(caaB) {
		t.Error("CAA tag change must change the fingerprint")
	}
}

func TestEqual(t *testing.T) {
	a := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300}
	b := a

	if !Equal(a, b) {
		t.Error("identical records must be equal")
	}

	// Transient fields do not participate.
	b.ProviderID = "id-2"
	b.Comment = "imported"
	if !Equal(a, b) {
		t.Error("records differing only in transient fields must be equal")
	}

	// Content does.
	b = a
	b.Target = "5.6.7.8"
	if Equal(a, b) {
		t.Error("records with different content must not be equal")
	}

	// Equality agrees with fingerprint equality.
	if Equal(a, b) != (Fingerprint(a) == Fingerprint(b)) {
		t.Error("Equal must agree with fingerprint comparison")
	}
}

func TestFingerprint_TransientFieldsExcluded(t *testing.T) {
	a := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300, ProviderID: "id-1", Comment: "x"}
	b := Record{Hostname: "app.example.com", Type: RecordTypeA, Target: "1.2.3.4", TTL: 300, ProviderID: "id-2", Comment: "y"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("provider id and comment must not participate in the fingerprint")
	}
}
