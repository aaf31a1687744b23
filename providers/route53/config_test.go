package route53

import (
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
			name:   "valid with zone ID",
			config: Config{HostedZoneID: "Z123", TTL: 300},
		},
		{
			name:   "valid with zone name",
			config: Config{Zone: "example.com", TTL: 300},
		},
		{
			name:   "valid with static credentials",
			config: Config{HostedZoneID: "Z123", AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		},
		{
			name:    "missing zone",
			config:  Config{TTL: 300},
			wantErr: "HOSTED_ZONE_ID or ZONE is required",
		},
		{
			name:    "access key without secret",
			config:  Config{HostedZoneID: "Z123", AccessKeyID: "AKIA"},
			wantErr: "must be set together",
		},
		{
			name:    "secret without access key",
			config:  Config{HostedZoneID: "Z123", SecretAccessKey: "secret"},
			wantErr: "must be set together",
		},
		{
			name:    "negative TTL",
			config:  Config{HostedZoneID: "Z123", TTL: -1},
			wantErr: "TTL must be non-negative",
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
	t.Setenv("TRAFEGO_AWS_DNS_HOSTED_ZONE_ID", "/hostedzone/Z0123456789")
	t.Setenv("TRAFEGO_AWS_DNS_REGION", "eu-central-1")
	t.Setenv("TRAFEGO_AWS_DNS_ACCESS_KEY_ID", "AKIAEXAMPLE")
	t.Setenv("TRAFEGO_AWS_DNS_SECRET_ACCESS_KEY", "shh")
	t.Setenv("TRAFEGO_AWS_DNS_TTL", "120")

	cfg, err := LoadConfig("aws-dns")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.HostedZoneID != "/hostedzone/Z0123456789" {
		t.Errorf("HostedZoneID = %q", cfg.HostedZoneID)
	}
	if cfg.Region != "eu-central-1" {
		t.Errorf("Region = %q, want eu-central-1", cfg.Region)
	}
	if cfg.TTL != 120 {
		t.Errorf("TTL = %d, want 120", cfg.TTL)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TRAFEGO_AWS_ZONE", "example.com")

	cfg, err := LoadConfig("aws")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TTL != DefaultTTL {
		t.Errorf("TTL = %d, want default %d", cfg.TTL, DefaultTTL)
	}
	if cfg.Region != "" {
		t.Errorf("Region = %q, want empty (resolved at client build)", cfg.Region)
	}
}
