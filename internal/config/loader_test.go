package config

import (
	"strings"
	"testing"
	"time"

	"github.com/trafegodns/trafego/pkg/provider"
)

func TestLoadFromFileEmptyPath(t *testing.T) {
	global, providers, sources, errs := loadFromFile("")
	if global != nil || providers != nil || sources != nil || errs != nil {
		t.Error("empty path must yield all-nil")
	}
}

func TestLoadFromFileBrokenFile(t *testing.T) {
	path := writeConfigFile(t, "providers: [broken")
	_, _, _, errs := loadFromFile(path)
	if len(errs) != 1 || !strings.Contains(errs[0], "config file:") {
		t.Errorf("errs = %v", errs)
	}
}

func TestLoadFromFileComplete(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	global, providers, sources, errs := loadFromFile(path)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if global == nil || global.LogLevel != "debug" {
		t.Errorf("global = %+v", global)
	}
	if len(providers) != 1 || providers[0].Name != "edge" {
		t.Fatalf("providers = %+v", providers)
	}
	if sources == nil || len(sources.Instances) != 1 {
		t.Fatalf("sources = %+v", sources)
	}
	if !sources.Instances[0].FileDiscovery.IsEnabled() {
		t.Error("file discovery not enabled from YAML")
	}
}

func TestConvertFileProvider(t *testing.T) {
	fp := FileProviderConfig{
		Name:       "edge",
		Type:       "Cloudflare",
		RecordType: "cname",
		Target:     "lb.lab.internal",
		TTL:        120,
		Mode:       "additive",
		Domains:    []string{"*.lab.internal"},
		Config:     map[string]string{"zone_id": "cf-1", "Token": "tok"},
	}

	cfg, errs := convertFileProvider(fp, 300)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if cfg.TypeName != "cloudflare" || cfg.RecordType != provider.RecordTypeCNAME {
		t.Errorf("normalized = %s/%s", cfg.TypeName, cfg.RecordType)
	}
	if cfg.Mode != provider.ModeAdditive || cfg.TTL != 120 {
		t.Errorf("mode/ttl = %s/%d", cfg.Mode, cfg.TTL)
	}
	// Config keys are uppercased to match env-var loading.
	if cfg.ProviderConfig["ZONE_ID"] != "cf-1" || cfg.ProviderConfig["TOKEN"] != "tok" {
		t.Errorf("provider config = %v", cfg.ProviderConfig)
	}
}

func TestConvertFileProviderDefaultsAndErrors(t *testing.T) {
	minimal := FileProviderConfig{
		Name:    "edge",
		Type:    "webhook",
		Target:  "192.168.7.20",
		Domains: []string{"*.lab.internal"},
	}
	cfg, errs := convertFileProvider(minimal, 300)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if cfg.RecordType != provider.RecordTypeA || cfg.TTL != 300 || cfg.Mode != provider.ModeManaged {
		t.Errorf("defaults = %+v", cfg)
	}

	broken := FileProviderConfig{
		RecordType:   "MX",
		Mode:         "chaotic",
		Domains:      []string{"*.a"},
		DomainsRegex: []string{".*"},
	}
	_, errs = convertFileProvider(broken, 300)
	joined := strings.Join(errs, "\n")
	for _, want := range []string{
		"name is required",
		"type is required",
		"invalid record_type",
		"target is required",
		"invalid operational mode",
		"cannot set both domains and domains_regex",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("errors %q missing %q", joined, want)
		}
	}
}

func TestConvertFileSources(t *testing.T) {
	if convertFileSources(nil) != nil {
		t.Error("empty list must convert to nil")
	}

	got := convertFileSources([]FileSourceConfig{
		{Name: "traefik", FileDiscovery: &FileFileDiscoveryConfig{
			Paths:        []string{"/rules"},
			Pattern:      "*.toml",
			PollInterval: "15s",
			WatchMethod:  "INOTIFY",
		}},
		{Name: "trafego"},
	})

	if len(got.Names) != 2 || got.Names[0] != "traefik" {
		t.Fatalf("names = %v", got.Names)
	}
	fd := got.Instances[0].FileDiscovery
	if !fd.IsEnabled() || fd.FilePattern != "*.toml" || fd.PollInterval != 15*time.Second || fd.WatchMethod != "inotify" {
		t.Errorf("traefik discovery = %+v", fd)
	}
	if got.Instances[1].FileDiscovery.IsEnabled() {
		t.Error("sourceless discovery enabled")
	}
}

func TestMergeGlobalConfigEnvWins(t *testing.T) {
	clearGlobalEnv(t)
	base := &GlobalConfig{
		LogLevel:            "info",
		LogFormat:           "json",
		DefaultTTL:          300,
		ReconcileInterval:   time.Minute,
		HealthPort:          8080,
		AdminPort:           8081,
		DockerHost:          "unix:///var/run/docker.sock",
		DockerMode:          "auto",
		DBPath:              "/data/trafego.db",
		OrphanGraceWindow:   24 * time.Hour,
		ProviderConcurrency: 4,
	}

	t.Setenv("TRAFEGO_LOG_LEVEL", "warn")
	t.Setenv("TRAFEGO_RECONCILE_INTERVAL", "90s")
	t.Setenv("TRAFEGO_ORPHAN_GRACE_WINDOW", "2h")

	merged, errs := mergeGlobalConfig(base)
	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if merged.LogLevel != "warn" || merged.ReconcileInterval != 90*time.Second || merged.OrphanGraceWindow != 2*time.Hour {
		t.Errorf("env overrides lost: %+v", merged)
	}
	// Untouched file values survive.
	if merged.DefaultTTL != 300 || merged.DBPath != "/data/trafego.db" {
		t.Errorf("file values lost: %+v", merged)
	}
	// The base is not mutated.
	if base.LogLevel != "info" {
		t.Error("merge mutated the base config")
	}
}

func TestMergeGlobalConfigNilBase(t *testing.T) {
	clearGlobalEnv(t)
	merged, errs := mergeGlobalConfig(nil)
	if len(errs) != 0 || merged == nil {
		t.Fatalf("merged=%v errs=%v", merged, errs)
	}
	if merged.LogLevel != DefaultLogLevel {
		t.Errorf("nil base did not fall back to env loading: %+v", merged)
	}
}

func TestMergeGlobalConfigInvalidEnv(t *testing.T) {
	clearGlobalEnv(t)
	base := &GlobalConfig{LogLevel: "info", LogFormat: "json", DockerMode: "auto"}

	t.Setenv("TRAFEGO_LOG_LEVEL", "chatty")
	t.Setenv("TRAFEGO_HEALTH_PORT", "-2")

	_, errs := mergeGlobalConfig(base)
	joined := strings.Join(errs, "\n")
	if !strings.Contains(joined, "TRAFEGO_LOG_LEVEL") || !strings.Contains(joined, "TRAFEGO_HEALTH_PORT") {
		t.Errorf("errors = %q", joined)
	}
}
