package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "Yes", "on", " on "}
	for _, s := range truthy {
		if !parseBool(s, false) {
			t.Errorf("parseBool(%q, false) = false", s)
		}
	}

	falsy := []string{"false", "FALSE", "0", "no", "off"}
	for _, s := range falsy {
		if parseBool(s, true) {
			t.Errorf("parseBool(%q, true) = true", s)
		}
	}

	// Garbage keeps the default.
	if parseBool("maybe", false) || !parseBool("maybe", true) {
		t.Error("unparseable value did not keep the default")
	}
	if parseBool("", false) || !parseBool("", true) {
		t.Error("empty value did not keep the default")
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b", []string{"a", "b"}},
		{",", nil},
		{"", nil},
		{"solo", []string{"solo"}},
	}
	for _, tt := range tests {
		got := splitCSV(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCSV(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestEnvPrefixNormalization(t *testing.T) {
	tests := []struct{ in, want string }{
		{"internal-dns", "TRAFEGO_INTERNAL_DNS_"},
		{"cloudflare", "TRAFEGO_CLOUDFLARE_"},
		{"Edge-2", "TRAFEGO_EDGE_2_"},
	}
	for _, tt := range tests {
		if got := envPrefix(tt.in); got != tt.want {
			t.Errorf("envPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := normalizeInstanceName("public-dns"); got != "PUBLIC_DNS" {
		t.Errorf("normalizeInstanceName = %q", got)
	}
}

func TestGetEnvOrFilePrecedence(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretPath, []byte("  file-secret\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	t.Setenv("TEST_SECRET_DIRECT", "env-secret")
	t.Setenv("TEST_SECRET_DIRECT_FILE", secretPath)

	// The file wins over the direct value, trimmed.
	if got := getEnvOrFile("TEST_SECRET_DIRECT", "TEST_SECRET_DIRECT_FILE"); got != "file-secret" {
		t.Errorf("file secret = %q", got)
	}

	// Unreadable file falls back to the direct value.
	t.Setenv("TEST_SECRET_DIRECT_FILE", filepath.Join(t.TempDir(), "missing"))
	if got := getEnvOrFile("TEST_SECRET_DIRECT", "TEST_SECRET_DIRECT_FILE"); got != "env-secret" {
		t.Errorf("fallback secret = %q", got)
	}

	// No file key at all: direct value.
	t.Setenv("TEST_SECRET_DIRECT_FILE", "")
	if got := getEnvOrFile("TEST_SECRET_DIRECT", "TEST_SECRET_DIRECT_FILE"); got != "env-secret" {
		t.Errorf("direct secret = %q", got)
	}
}

func TestGetEnvWithFileFallback(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretPath, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	t.Setenv("TRAFEGO_EDGE_TOKEN_FILE", secretPath)
	if got := getEnvWithFileFallback("TRAFEGO_EDGE_", "TOKEN"); got != "from-file" {
		t.Errorf("got %q", got)
	}
}
