package source

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateHostname(t *testing.T) {
	longLabel := strings.Repeat("a", 64)
	longName := strings.Repeat("a", 63) + "." + strings.Repeat("b", 63) + "." +
		strings.Repeat("c", 63) + "." + strings.Repeat("d", 63) // 255 chars

	tests := []struct {
		name    string
		input   string
		wantErr error // nil means valid
	}{
		{"simple", "web.lab.internal", nil},
		{"single label", "localhost", nil},
		{"digits and hyphens", "node-01.rack-2.lab.internal", nil},
		{"uppercase accepted", "WEB.Lab.Internal", nil},
		{"trailing dot tolerated", "web.lab.internal.", nil},
		{"wildcard first label", "*.lab.internal", nil},
		{"single char labels", "a.b.c", nil},
		{"empty", "", ErrHostnameEmpty},
		{"only a dot", ".", ErrHostnameEmpty},
		{"double dot", "web..lab.internal", ErrLabelEmpty},
		{"leading dot", ".lab.internal", ErrLabelEmpty},
		{"label too long", longLabel + ".lab.internal", ErrLabelTooLong},
		{"name too long", longName, ErrHostnameTooLong},
		{"leading hyphen", "-web.lab.internal", ErrInvalidLabelStart},
		{"trailing hyphen", "web-.lab.internal", ErrInvalidLabelEnd},
		{"underscore", "my_app.lab.internal", ErrInvalidCharacters},
		{"space", "my app.lab.internal", ErrInvalidCharacters},
		{"wildcard not first", "web.*.internal", ErrInvalidLabelStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostname(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateHostname(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateHostname(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
			var ve *HostnameValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error %T is not *HostnameValidationError", err)
			}
		})
	}
}

func TestValidateSRVHostname(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"typical", "_sip._tcp.voip.lab.internal", true},
		{"minimal three labels", "_http._tcp.web", true},
		{"trailing dot", "_ldap._tcp.ds.lab.internal.", true},
		{"missing underscores", "sip.tcp.voip.lab.internal", false},
		{"only proto underscored", "sip._tcp.voip.lab.internal", false},
		{"two labels", "_sip._tcp", false},
		{"empty", "", false},
		{"bad tail label", "_sip._tcp.-voip.lab.internal", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSRVHostname(tt.input)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateSRVHostname(%q) = %v, want valid=%v", tt.input, err, tt.valid)
			}
		})
	}
}

func TestHostnameValidatePicksRFCByType(t *testing.T) {
	srv := Hostname{
		Name:        "_minecraft._tcp.games.lab.internal",
		Source:      "trafego",
		RecordHints: &RecordHints{Type: "SRV", SRV: &SRVHints{Port: 25565}},
	}
	if err := srv.Validate(); err != nil {
		t.Errorf("SRV hostname rejected: %v", err)
	}

	// The same name without SRV hints fails RFC 1123 (underscore labels).
	plain := Hostname{Name: srv.Name, Source: "trafego"}
	if plain.IsValid() {
		t.Error("underscore labels passed RFC 1123 validation")
	}

	regular := Hostname{Name: "web.lab.internal", Source: "traefik"}
	if !regular.IsValid() {
		t.Error("plain hostname rejected")
	}
}

func TestNormalizeHostname(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Web.LAB.Internal", "web.lab.internal"},
		{"web.lab.internal.", "web.lab.internal"},
		{"WEB.LAB.INTERNAL.", "web.lab.internal"},
		{"already.lower", "already.lower"},
	}
	for _, tt := range tests {
		if got := NormalizeHostname(tt.in); got != tt.want {
			t.Errorf("NormalizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostnameString(t *testing.T) {
	withRouter := Hostname{Name: "web.lab.internal", Source: "traefik", Router: "web@docker"}
	if got := withRouter.String(); got != "web.lab.internal (from traefik:web@docker)" {
		t.Errorf("String = %q", got)
	}
	bare := Hostname{Name: "web.lab.internal", Source: "traefik"}
	if got := bare.String(); got != "web.lab.internal (from traefik)" {
		t.Errorf("String = %q", got)
	}
}

func TestHostnameHasRecordHints(t *testing.T) {
	if (Hostname{Name: "a.b"}).HasRecordHints() {
		t.Error("nil hints reported present")
	}
	h := Hostname{Name: "a.b", RecordHints: &RecordHints{TTL: 60}}
	if !h.HasRecordHints() {
		t.Error("hints not reported")
	}
}

func TestHostnamesNames(t *testing.T) {
	hs := Hostnames(named("s", "a.lab.internal", "b.lab.internal"))
	got := hs.Names()
	if len(got) != 2 || got[0] != "a.lab.internal" || got[1] != "b.lab.internal" {
		t.Errorf("Names = %v", got)
	}
	if got := (Hostnames{}).Names(); len(got) != 0 {
		t.Errorf("Names on empty = %v", got)
	}
}

func TestHostnamesDeduplicate(t *testing.T) {
	hs := Hostnames{
		{Name: "web.lab.internal", Source: "traefik"},
		{Name: "WEB.lab.internal", Source: "trafego"}, // case-insensitive dup
		{Name: "web.lab.internal.", Source: "files"},  // trailing-dot dup
		{Name: "api.lab.internal", Source: "traefik"},
	}

	got := hs.Deduplicate()
	if len(got) != 2 {
		t.Fatalf("Deduplicate kept %d entries, want 2", len(got))
	}
	// First occurrence wins, preserving its attribution.
	if got[0].Source != "traefik" || got[0].Name != "web.lab.internal" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Name != "api.lab.internal" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestHostnamesFilterAndFromSource(t *testing.T) {
	hs := Hostnames{
		{Name: "web.lab.internal", Source: "traefik"},
		{Name: "api.lab.internal", Source: "trafego"},
		{Name: "db.lab.internal", Source: "traefik"},
	}

	traefik := hs.FromSource("traefik")
	if len(traefik) != 2 {
		t.Errorf("FromSource(traefik) = %d entries", len(traefik))
	}
	if none := hs.FromSource("caddy"); len(none) != 0 {
		t.Errorf("FromSource(caddy) = %v", none)
	}

	short := hs.Filter(func(h Hostname) bool { return strings.HasPrefix(h.Name, "db.") })
	if len(short) != 1 || short[0].Name != "db.lab.internal" {
		t.Errorf("Filter = %v", short)
	}
}

func TestHostnamesValidateAll(t *testing.T) {
	hs := Hostnames{
		{Name: "good.lab.internal", Source: "traefik"},
		{Name: "bad..lab.internal", Source: "traefik"},
		{Name: "-worse.lab.internal", Source: "trafego"},
	}

	result := hs.ValidateAll()
	if len(result.Valid) != 1 || result.Valid[0].Name != "good.lab.internal" {
		t.Errorf("Valid = %v", result.Valid)
	}
	if len(result.Invalid) != 2 {
		t.Fatalf("Invalid = %d entries, want 2", len(result.Invalid))
	}
	for _, inv := range result.Invalid {
		if inv.Error == nil {
			t.Errorf("invalid entry %q missing error", inv.Hostname.Name)
		}
	}

	if got := hs.ValidHostnames(); len(got) != 1 {
		t.Errorf("ValidHostnames = %v", got)
	}
}
