package trafego

import (
	"log/slog"
	"os"
	"sort"
	"testing"
)

func quietParser() *Parser {
	return NewParser(WithParserLogger(
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	))
}

func byHostname(extractions []Extraction) map[string]Extraction {
	m := make(map[string]Extraction, len(extractions))
	for _, e := range extractions {
		m[e.Hostname] = e
	}
	return m
}

func TestExtractSimpleHostname(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		SimpleHostnameLabel: " app.lab.internal ",
	})
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Hostname != "app.lab.internal" || got[0].RecordName != "" {
		t.Errorf("extraction = %+v", got[0])
	}
	if got[0].HasHints() {
		t.Error("simple hostname without TTL should carry no hints")
	}
}

func TestExtractSimpleHostnameWithTTL(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		SimpleHostnameLabel: "app.lab.internal",
		TTLLabel:            "120",
	})
	if len(got) != 1 || got[0].TTL != 120 || !got[0].HasHints() {
		t.Errorf("got %+v", got)
	}

	// Bad TTL: hostname survives, TTL stays zero.
	got = quietParser().ExtractHostnames(map[string]string{
		SimpleHostnameLabel: "app.lab.internal",
		TTLLabel:            "soon",
	})
	if len(got) != 1 || got[0].TTL != 0 {
		t.Errorf("bad TTL handling: %+v", got)
	}
}

func TestExtractEnabledFalseSilencesWorkload(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		EnabledLabel:        "false",
		SimpleHostnameLabel: "app.lab.internal",
		RecordsPrefix + "db.hostname": "db.lab.internal",
	})
	if len(got) != 0 {
		t.Errorf("disabled workload produced %+v", got)
	}

	// Any other value keeps it enabled.
	got = quietParser().ExtractHostnames(map[string]string{
		EnabledLabel:        "true",
		SimpleHostnameLabel: "app.lab.internal",
	})
	if len(got) != 1 {
		t.Errorf("enabled workload produced %+v", got)
	}
}

func TestExtractNamedRecords(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		"trafego.records.web.hostname": "web.lab.internal",
		"trafego.records.web.type":     "a",
		"trafego.records.web.target":   "192.168.7.20",
		"trafego.records.web.ttl":      "60",
		"trafego.records.web.provider": "internal-dns",

		"trafego.records.alias.hostname": "alias.lab.internal",
		"trafego.records.alias.type":     "CNAME",
		"trafego.records.alias.target":   "web.lab.internal",
	})
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}

	m := byHostname(got)
	web := m["web.lab.internal"]
	if web.RecordName != "web" || web.Type != "A" || web.Target != "192.168.7.20" || web.TTL != 60 || web.Provider != "internal-dns" {
		t.Errorf("web = %+v", web)
	}
	alias := m["alias.lab.internal"]
	if alias.Type != "CNAME" || alias.Target != "web.lab.internal" {
		t.Errorf("alias = %+v", alias)
	}
}

func TestExtractNamedRecordProxied(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		"trafego.records.edge.hostname": "edge.lab.internal",
		"trafego.records.edge.proxied":  "true",

		"trafego.records.direct.hostname": "direct.lab.internal",
		"trafego.records.direct.proxied":  "false",

		"trafego.records.plain.hostname": "plain.lab.internal",

		"trafego.records.bad.hostname": "bad.lab.internal",
		"trafego.records.bad.proxied":  "sometimes",
	})
	if len(got) != 4 {
		t.Fatalf("got %+v", got)
	}

	m := byHostname(got)
	if e := m["edge.lab.internal"]; e.Proxied == nil || !*e.Proxied || !e.HasHints() {
		t.Errorf("edge = %+v", e)
	}
	if e := m["direct.lab.internal"]; e.Proxied == nil || *e.Proxied {
		t.Errorf("direct = %+v", e)
	}
	// No declaration and an unparseable one both leave the flag unset.
	if e := m["plain.lab.internal"]; e.Proxied != nil {
		t.Errorf("plain = %+v", e)
	}
	if e := m["bad.lab.internal"]; e.Proxied != nil {
		t.Errorf("bad = %+v", e)
	}
}

func TestExtractNamedRecordValidation(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		// Missing hostname: dropped.
		"trafego.records.broken.type": "A",
		// Disabled: dropped.
		"trafego.records.off.hostname": "off.lab.internal",
		"trafego.records.off.enabled":  "FALSE",
		// Good one survives.
		"trafego.records.ok.hostname": "ok.lab.internal",
	})
	if len(got) != 1 || got[0].Hostname != "ok.lab.internal" {
		t.Errorf("got %+v", got)
	}
}

func TestExtractSRVRecord(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		"trafego.records.mc.hostname": "_minecraft._tcp.games.lab.internal",
		"trafego.records.mc.type":     "SRV",
		"trafego.records.mc.target":   "mc.lab.internal",
		"trafego.records.mc.port":     "25565",
		"trafego.records.mc.priority": "0",
		"trafego.records.mc.weight":   "5",
	})
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	srv := got[0].SRV
	if srv == nil || srv.Port != 25565 || srv.Priority != 0 || srv.Weight != 5 {
		t.Errorf("SRV = %+v", srv)
	}
}

func TestExtractSRVImpliedByPort(t *testing.T) {
	// A port without an explicit SRV type still collects the tuple.
	got := quietParser().ExtractHostnames(map[string]string{
		"trafego.records.svc.hostname": "_svc._tcp.lab.internal",
		"trafego.records.svc.port":     "8443",
	})
	if len(got) != 1 || got[0].SRV == nil || got[0].SRV.Port != 8443 {
		t.Errorf("got %+v", got)
	}
}

func TestExtractSRVBadNumbers(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		"trafego.records.mc.hostname": "_mc._tcp.lab.internal",
		"trafego.records.mc.type":     "SRV",
		"trafego.records.mc.port":     "70000", // out of uint16 range
	})
	if len(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got[0].SRV != nil {
		t.Errorf("invalid port produced SRV data: %+v", got[0].SRV)
	}
}

func TestExtractSimpleAndNamedCoexist(t *testing.T) {
	got := quietParser().ExtractHostnames(map[string]string{
		SimpleHostnameLabel:            "app.lab.internal",
		"trafego.records.db.hostname":  "db.lab.internal",
		"unrelated.label":              "ignored",
		"traefik.http.routers.x.rule":  "Host(`ignored.lab.internal`)",
	})

	names := make([]string, len(got))
	for i, e := range got {
		names[i] = e.Hostname
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "app.lab.internal" || names[1] != "db.lab.internal" {
		t.Errorf("names = %v", names)
	}
}

func TestHasHints(t *testing.T) {
	tests := []struct {
		name string
		e    Extraction
		want bool
	}{
		{"bare", Extraction{Hostname: "a.b"}, false},
		{"type", Extraction{Type: "A"}, true},
		{"target", Extraction{Target: "192.168.7.20"}, true},
		{"provider", Extraction{Provider: "edge"}, true},
		{"ttl", Extraction{TTL: 60}, true},
		{"srv", Extraction{SRV: &SRVData{Port: 1}}, true},
	}
	for _, tt := range tests {
		if got := tt.e.HasHints(); got != tt.want {
			t.Errorf("%s: HasHints = %v, want %v", tt.name, got, tt.want)
		}
	}
}
