package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file shape. It mirrors the runtime
// configuration with YAML-friendly types; env vars override whatever it
// sets.
type FileConfig struct {
	Logging    *FileLoggingConfig    `yaml:"logging,omitempty"`
	Reconciler *FileReconcilerConfig `yaml:"reconciler,omitempty"`
	Docker     *FileDockerConfig     `yaml:"docker,omitempty"`
	Sources    []FileSourceConfig    `yaml:"sources,omitempty"`
	Providers  []FileProviderConfig  `yaml:"providers,omitempty"`
	Server     *FileServerConfig     `yaml:"server,omitempty"`
}

// FileLoggingConfig selects log level and format.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// FileReconcilerConfig tunes the reconciliation loop. Booleans are pointers
// so "unset" and "false" stay distinguishable when merging.
type FileReconcilerConfig struct {
	Interval          string `yaml:"interval,omitempty"` // Go duration ("60s", "5m")
	DryRun            *bool  `yaml:"dry_run,omitempty"`
	CleanupOrphans    *bool  `yaml:"cleanup_orphans,omitempty"`
	CleanupOnStop     *bool  `yaml:"cleanup_on_stop,omitempty"`
	OwnershipTracking *bool  `yaml:"ownership_tracking,omitempty"`
	AdoptExisting     *bool  `yaml:"adopt_existing,omitempty"`
	OrphanDelay       string `yaml:"orphan_delay,omitempty"`
}

// FileDockerConfig points at the Docker daemon.
type FileDockerConfig struct {
	Host string `yaml:"host,omitempty"` // unix:///var/run/docker.sock or tcp://...
	Mode string `yaml:"mode,omitempty"` // auto, swarm, standalone
}

// FileSourceConfig configures one hostname source.
type FileSourceConfig struct {
	Name          string                   `yaml:"name"` // traefik, trafego
	FileDiscovery *FileFileDiscoveryConfig `yaml:"file_discovery,omitempty"`
}

// FileFileDiscoveryConfig is the YAML form of file-based discovery.
type FileFileDiscoveryConfig struct {
	Paths        []string `yaml:"paths,omitempty"`
	Pattern      string   `yaml:"pattern,omitempty"`
	PollInterval string   `yaml:"poll_interval,omitempty"`
	WatchMethod  string   `yaml:"watch_method,omitempty"` // auto, inotify, poll
}

// FileProviderConfig configures one DNS provider instance.
type FileProviderConfig struct {
	Name                string            `yaml:"name"`
	Type                string            `yaml:"type"` // cloudflare, route53, rfc2136, ...
	Domains             []string          `yaml:"domains,omitempty"`
	DomainsRegex        []string          `yaml:"domains_regex,omitempty"`
	ExcludeDomains      []string          `yaml:"exclude_domains,omitempty"`
	ExcludeDomainsRegex []string          `yaml:"exclude_domains_regex,omitempty"`
	RecordType          string            `yaml:"record_type,omitempty"` // A, AAAA, CNAME
	Target              string            `yaml:"target"`
	TTL                 int               `yaml:"ttl,omitempty"`
	Mode                string            `yaml:"mode,omitempty"` // managed, authoritative, additive
	Config              map[string]string `yaml:"config,omitempty"`
}

// FileServerConfig configures the HTTP surfaces.
type FileServerConfig struct {
	Port       int    `yaml:"port,omitempty"`        // health/metrics port
	AdminPort  int    `yaml:"admin_port,omitempty"`  // administrative API port; 0 keeps the default (TRAFEGO_ADMIN_PORT=0 disables)
	AdminToken string `yaml:"admin_token,omitempty"` // bearer token for the admin API
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars substitutes ${VAR} references with environment values,
// honoring ${VAR:-default} fallbacks.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

// interpolate runs InterpolateEnvVars over each string in place.
func interpolate(fields ...*string) {
	for _, f := range fields {
		*f = InterpolateEnvVars(*f)
	}
}

func interpolateSlice(values []string) {
	for i := range values {
		values[i] = InterpolateEnvVars(values[i])
	}
}

// interpolateEnvVars walks every string field of the file config.
func (c *FileConfig) interpolateEnvVars() {
	if c.Logging != nil {
		interpolate(&c.Logging.Level, &c.Logging.Format)
	}
	if c.Reconciler != nil {
		interpolate(&c.Reconciler.Interval, &c.Reconciler.OrphanDelay)
	}
	if c.Docker != nil {
		interpolate(&c.Docker.Host, &c.Docker.Mode)
	}

	for i := range c.Sources {
		src := &c.Sources[i]
		interpolate(&src.Name)
		if fd := src.FileDiscovery; fd != nil {
			interpolateSlice(fd.Paths)
			interpolate(&fd.Pattern, &fd.PollInterval, &fd.WatchMethod)
		}
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		interpolate(&p.Name, &p.Type, &p.Target, &p.RecordType, &p.Mode)
		interpolateSlice(p.Domains)
		interpolateSlice(p.DomainsRegex)
		interpolateSlice(p.ExcludeDomains)
		interpolateSlice(p.ExcludeDomainsRegex)
		for k, v := range p.Config {
			p.Config[k] = InterpolateEnvVars(v)
		}
	}
}

// LoadFile parses a YAML configuration file, interpolating ${VAR}
// references in every string field.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	cfg.interpolateEnvVars()

	return &cfg, nil
}

// ToGlobalConfig maps the file onto a GlobalConfig with defaults filled in.
// Env vars get their chance to override afterwards, in mergeGlobalConfig.
func (c *FileConfig) ToGlobalConfig() *GlobalConfig {
	cfg := &GlobalConfig{
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		DryRun:              DefaultDryRun,
		CleanupOrphans:      DefaultCleanupOrphans,
		CleanupOnStop:       DefaultCleanupOnStop,
		OwnershipTracking:   DefaultOwnershipTracking,
		AdoptExisting:       DefaultAdoptExisting,
		DefaultTTL:          DefaultTTL,
		ReconcileInterval:   DefaultReconcileInterval,
		HealthPort:          DefaultHealthPort,
		AdminPort:           DefaultAdminPort,
		DockerHost:          DefaultDockerHost,
		DockerMode:          DefaultDockerMode,
		Source:              DefaultSource,
		DBPath:              DefaultDBPath,
		OrphanGraceWindow:   DefaultOrphanGraceWindow,
		ProviderConcurrency: DefaultProviderConcurrency,
	}

	if c.Logging != nil {
		if c.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(c.Logging.Level)
		}
		if c.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(c.Logging.Format)
		}
	}

	if r := c.Reconciler; r != nil {
		if r.DryRun != nil {
			cfg.DryRun = *r.DryRun
		}
		if r.CleanupOrphans != nil {
			cfg.CleanupOrphans = *r.CleanupOrphans
		}
		if r.CleanupOnStop != nil {
			cfg.CleanupOnStop = *r.CleanupOnStop
		}
		if r.OwnershipTracking != nil {
			cfg.OwnershipTracking = *r.OwnershipTracking
		}
		if r.AdoptExisting != nil {
			cfg.AdoptExisting = *r.AdoptExisting
		}
		if r.Interval != "" {
			if interval, err := time.ParseDuration(r.Interval); err == nil && interval >= time.Second {
				cfg.ReconcileInterval = interval
			}
		}
		if r.OrphanDelay != "" {
			if grace, err := time.ParseDuration(r.OrphanDelay); err == nil && grace >= 0 {
				cfg.OrphanGraceWindow = grace
			}
		}
	}

	if c.Docker != nil {
		if c.Docker.Host != "" {
			cfg.DockerHost = c.Docker.Host
		}
		if c.Docker.Mode != "" {
			cfg.DockerMode = strings.ToLower(c.Docker.Mode)
		}
	}

	if s := c.Server; s != nil {
		if s.Port > 0 && s.Port <= 65535 {
			cfg.HealthPort = s.Port
		}
		if s.AdminPort > 0 && s.AdminPort <= 65535 {
			cfg.AdminPort = s.AdminPort
		}
		if s.AdminToken != "" {
			cfg.AdminToken = s.AdminToken
		}
	}

	// The first listed source is the primary.
	if len(c.Sources) > 0 {
		cfg.Source = c.Sources[0].Name
	}

	return cfg
}

// GetConfigFilePath returns the configured file path, empty when none.
func GetConfigFilePath() string {
	return os.Getenv("TRAFEGO_CONFIG")
}
