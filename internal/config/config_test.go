package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// clearLoadEnv blanks everything Load consults besides the globals.
func clearLoadEnv(t *testing.T) {
	t.Helper()
	clearGlobalEnv(t)
	t.Setenv("TRAFEGO_CONFIG", "")
	t.Setenv("TRAFEGO_INSTANCES", "")
	t.Setenv("TRAFEGO_PROVIDERS", "")
	t.Setenv("TRAFEGO_SOURCES", "")
}

func TestLoadRequiresProviders(t *testing.T) {
	clearLoadEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded with no providers configured")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(err.Error(), "no providers configured") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearLoadEnv(t)
	t.Setenv("TRAFEGO_INSTANCES", "edge")
	setInstanceEnv(t)
	t.Setenv("TRAFEGO_RECONCILE_INTERVAL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.ProviderNames) != 1 || cfg.ProviderNames[0] != "edge" {
		t.Errorf("provider names = %v", cfg.ProviderNames)
	}
	if cfg.ReconcileInterval() != 2*time.Minute {
		t.Errorf("interval = %v", cfg.ReconcileInterval())
	}
	if cfg.Sources == nil || len(cfg.Sources.Names) != 1 || cfg.Sources.Names[0] != "traefik" {
		t.Errorf("default sources = %+v", cfg.Sources)
	}

	inst, ok := cfg.GetProviderInstance("edge")
	if !ok || inst.TypeName != "cloudflare" {
		t.Errorf("GetProviderInstance = %+v, %v", inst, ok)
	}
	if _, ok := cfg.GetProviderInstance("ghost"); ok {
		t.Error("unknown instance lookup succeeded")
	}
}

func TestLoadAggregatesInstanceErrors(t *testing.T) {
	clearLoadEnv(t)
	t.Setenv("TRAFEGO_INSTANCES", "edge,core")
	setInstanceEnv(t)
	// "core" left unconfigured: its errors must appear alongside success
	// for "edge".
	t.Setenv("TRAFEGO_CORE_TYPE", "")
	t.Setenv("TRAFEGO_CORE_TARGET", "")
	t.Setenv("TRAFEGO_CORE_DOMAINS", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded with a half-configured instance")
	}
	if !strings.Contains(err.Error(), "TRAFEGO_CORE_TYPE") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	clearLoadEnv(t)
	path := writeConfigFile(t, sampleYAML)
	t.Setenv("TRAFEGO_CONFIG", path)
	t.Setenv("TRAFEGO_LOG_LEVEL", "error") // env beats file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel() != "error" {
		t.Errorf("env override lost, log level = %q", cfg.LogLevel())
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
	if len(cfg.ProviderNames) != 1 || cfg.ProviderNames[0] != "edge" {
		t.Errorf("file providers = %v", cfg.ProviderNames)
	}
	if !cfg.HasFileDiscovery() {
		t.Error("file-configured discovery lost")
	}
	if cfg.AdminPort() != 9091 || cfg.AdminToken() != "hunter2" {
		t.Errorf("admin settings = %d/%q", cfg.AdminPort(), cfg.AdminToken())
	}
}

func TestLoadEnvInstancesBeatFileProviders(t *testing.T) {
	clearLoadEnv(t)
	path := writeConfigFile(t, sampleYAML)
	t.Setenv("TRAFEGO_CONFIG", path)

	t.Setenv("TRAFEGO_INSTANCES", "envdns")
	t.Setenv("TRAFEGO_ENVDNS_TYPE", "webhook")
	t.Setenv("TRAFEGO_ENVDNS_TARGET", "192.168.7.40")
	t.Setenv("TRAFEGO_ENVDNS_DOMAINS", "*.env.internal")
	t.Setenv("TRAFEGO_ENVDNS_URL", "https://hook.lab.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.ProviderNames) != 1 || cfg.ProviderNames[0] != "envdns" {
		t.Errorf("providers = %v, want env-defined set", cfg.ProviderNames)
	}
}

func TestLoadDuplicateProviderNames(t *testing.T) {
	clearLoadEnv(t)
	t.Setenv("TRAFEGO_INSTANCES", "edge,edge")
	setInstanceEnv(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "duplicate provider instance name") {
		t.Errorf("error = %v", err)
	}
}

func TestConfigAccessors(t *testing.T) {
	clearLoadEnv(t)
	t.Setenv("TRAFEGO_INSTANCES", "edge")
	setInstanceEnv(t)
	t.Setenv("TRAFEGO_DRY_RUN", "true")
	t.Setenv("TRAFEGO_DB_PATH", "/tmp/test.db")
	t.Setenv("TRAFEGO_PROVIDER_CONCURRENCY", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.DryRun() || !cfg.CleanupOrphans() || !cfg.CleanupOnStop() {
		t.Errorf("behavior accessors: dry=%v orphans=%v stop=%v", cfg.DryRun(), cfg.CleanupOrphans(), cfg.CleanupOnStop())
	}
	if cfg.DBPath() != "/tmp/test.db" || cfg.ProviderConcurrency() != 2 {
		t.Errorf("engine accessors: %s/%d", cfg.DBPath(), cfg.ProviderConcurrency())
	}
	if cfg.OrphanGraceWindow() != DefaultOrphanGraceWindow {
		t.Errorf("grace window = %v", cfg.OrphanGraceWindow())
	}
	if cfg.DockerHost() == "" || cfg.DockerMode() != "auto" {
		t.Errorf("docker accessors: %s/%s", cfg.DockerHost(), cfg.DockerMode())
	}

	summary := cfg.String()
	if !strings.Contains(summary, "edge") || strings.Contains(summary, "cf-token") {
		t.Errorf("String() = %q", summary)
	}
}
