package provider

import "testing"

func boolPtr(b bool) *bool { return &b }

func u16Ptr(v uint16) *uint16 { return &v }

func TestEqualIgnoresTransientFields(t *testing.T) {
	a := Record{
		Hostname:   "grafana.lab.internal",
		Type:       RecordTypeA,
		Target:     "192.168.7.20",
		TTL:        300,
		ProviderID: "rec-001",
		Comment:    "trafego:owned",
	}
	b := a
	b.ProviderID = "rec-900"
	b.Comment = ""

	if !Equal(a, b) {
		t.Error("records differing only in ProviderID/Comment must be equal")
	}
}

func TestEqual(t *testing.T) {
	base := Record{
		Hostname: "grafana.lab.internal",
		Type:     RecordTypeA,
		Target:   "192.168.7.20",
		TTL:      300,
	}

	tests := []struct {
		name   string
		mutate func(r *Record)
		want   bool
	}{
		{"identical", func(r *Record) {}, true},
		{"hostname differs", func(r *Record) { r.Hostname = "prometheus.lab.internal" }, false},
		{"type differs", func(r *Record) { r.Type = RecordTypeCNAME; r.Target = "lb.lab.internal" }, false},
		{"target differs", func(r *Record) { r.Target = "192.168.7.21" }, false},
		{"ttl differs", func(r *Record) { r.TTL = 60 }, false},
		{"proxied set on one side", func(r *Record) { r.Proxied = boolPtr(true) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			if got := Equal(base, other); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEqualTypeConditionalFields(t *testing.T) {
	srv := Record{
		Hostname: "_sip._tcp.lab.internal",
		Type:     RecordTypeSRV,
		Target:   "sip.lab.internal",
		TTL:      3600,
		SRV:      &SRVData{Priority: 10, Weight: 5, Port: 5060},
	}
	srvShuffled := srv
	srvShuffled.SRV = &SRVData{Priority: 10, Weight: 5, Port: 5061}
	if Equal(srv, srvShuffled) {
		t.Error("SRV port change must break equality")
	}

	srvNil := srv
	srvNil.SRV = nil
	if Equal(srv, srvNil) {
		t.Error("nil vs populated SRV data must break equality")
	}

	mx := Record{
		Hostname:   "lab.internal",
		Type:       RecordTypeMX,
		Target:     "mail.lab.internal",
		TTL:        3600,
		MXPriority: u16Ptr(10),
	}
	mxHigher := mx
	mxHigher.MXPriority = u16Ptr(20)
	if Equal(mx, mxHigher) {
		t.Error("MX preference change must break equality")
	}

	caa := Record{
		Hostname: "lab.internal",
		Type:     RecordTypeCAA,
		Target:   "letsencrypt.org",
		TTL:      3600,
		CAA:      &CAAData{Flags: 0, Tag: "issue"},
	}
	caaWild := caa
	caaWild.CAA = &CAAData{Flags: 0, Tag: "issuewild"}
	if Equal(caa, caaWild) {
		t.Error("CAA tag change must break equality")
	}
}

func TestCapabilitiesSupportsCapability(t *testing.T) {
	caps := Capabilities{
		SupportsProxying:    true,
		SupportsMultiValueA: false,
		SupportsComments:    true,
		SupportedRecordTypes: []RecordType{
			RecordTypeA, RecordTypeCNAME, RecordTypeSRV,
		},
	}

	tests := []struct {
		cap  string
		want bool
	}{
		{CapProxying, true},
		{CapMultiValueA, false},
		{CapComments, true},
		{CapSRV, true},
		{CapCAA, false},
		{"quantum", false},
	}

	for _, tt := range tests {
		if got := caps.SupportsCapability(tt.cap); got != tt.want {
			t.Errorf("SupportsCapability(%q) = %v, want %v", tt.cap, got, tt.want)
		}
	}

	if !caps.SupportsRecordType(RecordTypeA) || caps.SupportsRecordType(RecordTypeCAA) {
		t.Error("SupportsRecordType disagrees with SupportedRecordTypes")
	}
}

func TestOwnershipRecordHelpers(t *testing.T) {
	name := OwnershipRecordName("app.lab.internal")
	if name != "_trafego.app.lab.internal" {
		t.Fatalf("OwnershipRecordName = %q", name)
	}
	if !IsOwnershipRecord(name) {
		t.Error("generated ownership name not recognized")
	}
	if IsOwnershipRecord("app.lab.internal") {
		t.Error("plain hostname misidentified as ownership record")
	}
	if got := ExtractHostnameFromOwnership(name); got != "app.lab.internal" {
		t.Errorf("ExtractHostnameFromOwnership = %q", got)
	}
	if got := ExtractHostnameFromOwnership("app.lab.internal"); got != "" {
		t.Errorf("ExtractHostnameFromOwnership on non-ownership name = %q, want empty", got)
	}

	rec := OwnershipRecord("app.lab.internal", 300)
	if rec.Type != RecordTypeTXT || rec.Target != OwnershipMarker || rec.Hostname != name {
		t.Errorf("OwnershipRecord built %+v", rec)
	}
}
