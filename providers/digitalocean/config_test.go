package digitalocean

import (
	"os"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid config",
			config: Config{Token: "tok", Domain: "example.com", TTL: 300},
		},
		{
			name:   "valid config default TTL",
			config: Config{Token: "tok", Domain: "example.com", TTL: DefaultTTL},
		},
		{
			name:    "missing token",
			config:  Config{Domain: "example.com", TTL: 300},
			wantErr: "TOKEN is required",
		},
		{
			name:    "missing domain",
			config:  Config{Token: "tok", TTL: 300},
			wantErr: "DOMAIN is required",
		},
		{
			name:    "negative TTL",
			config:  Config{Token: "tok", Domain: "example.com", TTL: -1},
			wantErr: "TTL must be non-negative",
		},
		{
			name:    "TTL below minimum",
			config:  Config{Token: "tok", Domain: "example.com", TTL: 10},
			wantErr: "TTL must be at least 30",
		},
		{
			name:    "multiple errors",
			config:  Config{TTL: -5},
			wantErr: "TOKEN is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() returned unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() returned nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TRAFEGO_PUBLIC_DNS_TOKEN", "secret-token")
	t.Setenv("TRAFEGO_PUBLIC_DNS_DOMAIN", "example.com")
	t.Setenv("TRAFEGO_PUBLIC_DNS_TTL", "600")

	cfg, err := LoadConfig("public-dns")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Token != "secret-token" {
		t.Errorf("Token = %q, want %q", cfg.Token, "secret-token")
	}
	if cfg.Domain != "example.com" {
		t.Errorf("Domain = %q, want %q", cfg.Domain, "example.com")
	}
	if cfg.TTL != 600 {
		t.Errorf("TTL = %d, want 600", cfg.TTL)
	}
}

func TestLoadConfig_DefaultTTL(t *testing.T) {
	t.Setenv("TRAFEGO_DO_TOKEN", "tok")
	t.Setenv("TRAFEGO_DO_DOMAIN", "example.com")

	cfg, err := LoadConfig("do")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TTL != DefaultTTL {
		t.Errorf("TTL = %d, want default %d", cfg.TTL, DefaultTTL)
	}
}

func TestLoadConfig_InvalidTTL(t *testing.T) {
	t.Setenv("TRAFEGO_DO_TOKEN", "tok")
	t.Setenv("TRAFEGO_DO_DOMAIN", "example.com")
	t.Setenv("TRAFEGO_DO_TTL", "not-a-number")

	if _, err := LoadConfig("do"); err == nil {
		t.Fatal("LoadConfig should fail on non-numeric TTL")
	}
}

func TestLoadConfig_TokenFromFile(t *testing.T) {
	tokenFile := t.TempDir() + "/token"
	if err := os.WriteFile(tokenFile, []byte("  file-token\n"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}

	t.Setenv("TRAFEGO_DO_TOKEN_FILE", tokenFile)
	t.Setenv("TRAFEGO_DO_DOMAIN", "example.com")

	cfg, err := LoadConfig("do")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Token != "file-token" {
		t.Errorf("Token = %q, want trimmed file contents", cfg.Token)
	}
}
