package config

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/trafegodns/trafego/pkg/provider"
	"github.com/trafegodns/trafego/pkg/source"
)

// loadFromFile reads the YAML file and converts it to runtime types. A
// missing path yields all-nil; a broken file yields its error as a
// validation string so Load can aggregate it.
func loadFromFile(path string) (*GlobalConfig, []*ProviderInstanceConfig, *SourceConfig, []string) {
	if path == "" {
		return nil, nil, nil, nil
	}

	fileCfg, err := LoadFile(path)
	if err != nil {
		return nil, nil, nil, []string{"config file: " + err.Error()}
	}

	slog.Info("loaded configuration from file", slog.String("path", path))

	var errs []string
	global := fileCfg.ToGlobalConfig()

	var providers []*ProviderInstanceConfig
	for _, fp := range fileCfg.Providers {
		p, pErrs := convertFileProvider(fp, global.DefaultTTL)
		providers = append(providers, p)
		errs = append(errs, pErrs...)
	}

	return global, providers, convertFileSources(fileCfg.Sources), errs
}

// convertFileProvider maps one YAML provider block onto the runtime type,
// applying the same validation rules as the env-var path.
func convertFileProvider(fp FileProviderConfig, defaultTTL int) (*ProviderInstanceConfig, []string) {
	var errs []string

	cfg := &ProviderInstanceConfig{
		Name:                fp.Name,
		TypeName:            strings.ToLower(fp.Type),
		Domains:             fp.Domains,
		DomainsRegex:        fp.DomainsRegex,
		ExcludeDomains:      fp.ExcludeDomains,
		ExcludeDomainsRegex: fp.ExcludeDomainsRegex,
		ProviderConfig:      make(map[string]string),
	}

	if cfg.Name == "" {
		errs = append(errs, "provider: name is required")
	}
	if cfg.TypeName == "" {
		errs = append(errs, "provider "+cfg.Name+": type is required")
	}

	switch strings.ToUpper(fp.RecordType) {
	case "", "A":
		cfg.RecordType = provider.RecordTypeA
	case "AAAA":
		cfg.RecordType = provider.RecordTypeAAAA
	case "CNAME":
		cfg.RecordType = provider.RecordTypeCNAME
	default:
		errs = append(errs, "provider "+cfg.Name+": invalid record_type "+fp.RecordType)
	}

	cfg.Target = fp.Target
	if cfg.Target == "" {
		errs = append(errs, "provider "+cfg.Name+": target is required")
	}

	if fp.TTL > 0 {
		cfg.TTL = fp.TTL
	} else {
		cfg.TTL = defaultTTL
	}

	if fp.Mode != "" {
		mode, err := provider.ParseOperationalMode(fp.Mode)
		if err != nil {
			errs = append(errs, "provider "+cfg.Name+": "+err.Error())
		} else {
			cfg.Mode = mode
		}
	} else {
		cfg.Mode = provider.ModeManaged
	}

	if len(fp.Domains) == 0 && len(fp.DomainsRegex) == 0 {
		errs = append(errs, "provider "+cfg.Name+": domains or domains_regex is required")
	}
	if len(fp.Domains) > 0 && len(fp.DomainsRegex) > 0 {
		errs = append(errs, "provider "+cfg.Name+": cannot set both domains and domains_regex")
	}
	if len(fp.ExcludeDomains) > 0 && len(fp.ExcludeDomainsRegex) > 0 {
		errs = append(errs, "provider "+cfg.Name+": cannot set both exclude_domains and exclude_domains_regex")
	}

	// Keys are uppercased to match the env-var loading convention.
	for k, v := range fp.Config {
		cfg.ProviderConfig[strings.ToUpper(k)] = v
	}

	return cfg, errs
}

// convertFileSources maps the YAML source list onto SourceConfig, or nil
// when the file declares none.
func convertFileSources(fileSources []FileSourceConfig) *SourceConfig {
	if len(fileSources) == 0 {
		return nil
	}

	cfg := &SourceConfig{
		Names:     make([]string, 0, len(fileSources)),
		Instances: make([]*SourceInstanceConfig, 0, len(fileSources)),
	}

	for _, fs := range fileSources {
		cfg.Names = append(cfg.Names, fs.Name)

		inst := &SourceInstanceConfig{
			Name:          fs.Name,
			FileDiscovery: source.DefaultFileDiscoveryConfig(),
		}
		if fd := fs.FileDiscovery; fd != nil {
			inst.FileDiscovery.FilePaths = fd.Paths
			if fd.Pattern != "" {
				inst.FileDiscovery.FilePattern = fd.Pattern
			}
			if fd.PollInterval != "" {
				if interval, err := time.ParseDuration(fd.PollInterval); err == nil && interval >= time.Second {
					inst.FileDiscovery.PollInterval = interval
				}
			}
			if fd.WatchMethod != "" {
				inst.FileDiscovery.WatchMethod = strings.ToLower(fd.WatchMethod)
			}
		}
		cfg.Instances = append(cfg.Instances, inst)
	}

	return cfg
}

// mergeGlobalConfig layers env vars over a file-derived GlobalConfig. Env
// always wins; invalid env values surface as validation errors rather than
// silently keeping the file value.
func mergeGlobalConfig(base *GlobalConfig) (*GlobalConfig, []string) {
	if base == nil {
		return loadGlobalConfig()
	}

	var errs []string
	cfg := *base

	if v := getEnv("TRAFEGO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
		switch cfg.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, "TRAFEGO_LOG_LEVEL: invalid value (must be debug, info, warn, or error)")
		}
	}

	if v := getEnv("TRAFEGO_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
		switch cfg.LogFormat {
		case "json", "text":
		default:
			errs = append(errs, "TRAFEGO_LOG_FORMAT: invalid value (must be json or text)")
		}
	}

	if v := getEnv("TRAFEGO_DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}

	if v := getEnv("TRAFEGO_DOCKER_MODE"); v != "" {
		cfg.DockerMode = strings.ToLower(v)
		switch cfg.DockerMode {
		case "auto", "swarm", "standalone":
		default:
			errs = append(errs, "TRAFEGO_DOCKER_MODE: invalid value (must be auto, swarm, or standalone)")
		}
	}

	if v := getEnv("TRAFEGO_DRY_RUN"); v != "" {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}
	if v := getEnv("TRAFEGO_CLEANUP_ORPHANS"); v != "" {
		cfg.CleanupOrphans = parseBool(v, cfg.CleanupOrphans)
	}
	if v := getEnv("TRAFEGO_CLEANUP_ON_STOP"); v != "" {
		cfg.CleanupOnStop = parseBool(v, cfg.CleanupOnStop)
	}
	if v := getEnv("TRAFEGO_OWNERSHIP_TRACKING"); v != "" {
		cfg.OwnershipTracking = parseBool(v, cfg.OwnershipTracking)
	}
	if v := getEnv("TRAFEGO_ADOPT_EXISTING"); v != "" {
		cfg.AdoptExisting = parseBool(v, cfg.AdoptExisting)
	}

	if v := getEnv("TRAFEGO_DEFAULT_TTL"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil && ttl >= 1 {
			cfg.DefaultTTL = ttl
		} else {
			errs = append(errs, "TRAFEGO_DEFAULT_TTL: invalid or negative integer")
		}
	}

	if v := getEnv("TRAFEGO_RECONCILE_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil && interval >= time.Second {
			cfg.ReconcileInterval = interval
		} else {
			errs = append(errs, "TRAFEGO_RECONCILE_INTERVAL: invalid duration")
		}
	}

	if v := getEnv("TRAFEGO_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port >= 1 && port <= 65535 {
			cfg.HealthPort = port
		} else {
			errs = append(errs, "TRAFEGO_HEALTH_PORT: invalid port number")
		}
	}

	if v := getEnv("TRAFEGO_ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port >= 0 && port <= 65535 {
			cfg.AdminPort = port
		} else {
			errs = append(errs, "TRAFEGO_ADMIN_PORT: invalid port number")
		}
	}

	if v := getEnvOrFile("TRAFEGO_ADMIN_TOKEN", "TRAFEGO_ADMIN_TOKEN_FILE"); v != "" {
		cfg.AdminToken = v
	}

	if v := getEnv("TRAFEGO_SOURCE"); v != "" {
		cfg.Source = v
	}

	if v := getEnv("TRAFEGO_DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := getEnv("TRAFEGO_ORPHAN_GRACE_WINDOW"); v != "" {
		if grace, err := time.ParseDuration(v); err == nil && grace >= 0 {
			cfg.OrphanGraceWindow = grace
		} else {
			errs = append(errs, "TRAFEGO_ORPHAN_GRACE_WINDOW: invalid duration")
		}
	}

	if v := getEnv("TRAFEGO_PROVIDER_CONCURRENCY"); v != "" {
		if conc, err := strconv.Atoi(v); err == nil && conc >= 1 {
			cfg.ProviderConcurrency = conc
		} else {
			errs = append(errs, "TRAFEGO_PROVIDER_CONCURRENCY: invalid integer")
		}
	}

	return &cfg, errs
}
