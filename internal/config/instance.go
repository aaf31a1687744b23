package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/trafegodns/trafego/pkg/provider"
)

// ProviderInstanceConfig is one provider instance as parsed from
// configuration, before it is handed to the provider registry.
type ProviderInstanceConfig struct {
	// Name is the user-chosen instance name (e.g., "internal-dns").
	Name string

	// TypeName selects the provider factory ("cloudflare", "route53", ...).
	TypeName string

	// RecordType is the default type for created records: A, AAAA, CNAME.
	RecordType provider.RecordType

	// Target is the default record value: IPv4 for A, IPv6 for AAAA, a
	// hostname for CNAME.
	Target string

	// TTL for created records.
	TTL int

	// Mode bounds the instance's authority; empty means managed.
	Mode provider.OperationalMode

	// Domain routing patterns: glob by default, regex as the alternative.
	Domains             []string
	DomainsRegex        []string
	ExcludeDomains      []string
	ExcludeDomainsRegex []string

	// ProviderConfig carries adapter-specific settings keyed by field name
	// ("URL", "TOKEN", "ZONE", ...).
	ProviderConfig map[string]string
}

// ToProviderConfig converts to the provider package's config type.
func (c *ProviderInstanceConfig) ToProviderConfig() provider.ProviderInstanceConfig {
	return provider.ProviderInstanceConfig{
		Name:                c.Name,
		TypeName:            c.TypeName,
		RecordType:          c.RecordType,
		Target:              c.Target,
		TTL:                 c.TTL,
		Mode:                c.Mode,
		Domains:             c.Domains,
		DomainsRegex:        c.DomainsRegex,
		ExcludeDomains:      c.ExcludeDomains,
		ExcludeDomainsRegex: c.ExcludeDomainsRegex,
		ProviderConfig:      c.ProviderConfig,
	}
}

// parseInstances reads the ordered instance list from TRAFEGO_INSTANCES.
// TRAFEGO_PROVIDERS still works but warns; it predates multi-instance
// support.
func parseInstances() []string {
	instancesStr := getEnv("TRAFEGO_INSTANCES")
	if instancesStr == "" {
		instancesStr = getEnv("TRAFEGO_PROVIDERS")
		if instancesStr != "" {
			slog.Warn("TRAFEGO_PROVIDERS is deprecated, use TRAFEGO_INSTANCES instead")
		}
	}
	if instancesStr == "" {
		return nil
	}
	return splitCSV(instancesStr)
}

// loadInstanceConfig reads one instance's TRAFEGO_{NAME}_* block, collecting
// every problem rather than stopping at the first.
func loadInstanceConfig(instanceName string, defaultTTL int) (*ProviderInstanceConfig, []string) {
	var errs []string
	prefix := envPrefix(instanceName)

	cfg := &ProviderInstanceConfig{
		Name:           instanceName,
		ProviderConfig: make(map[string]string),
	}

	cfg.TypeName = strings.ToLower(getEnv(prefix + "TYPE"))
	if cfg.TypeName == "" {
		errs = append(errs, fmt.Sprintf("%sTYPE: required but not set", prefix))
	}

	switch recordTypeStr := strings.ToUpper(getEnv(prefix + "RECORD_TYPE")); recordTypeStr {
	case "", "A":
		cfg.RecordType = provider.RecordTypeA
	case "AAAA":
		cfg.RecordType = provider.RecordTypeAAAA
	case "CNAME":
		cfg.RecordType = provider.RecordTypeCNAME
	default:
		errs = append(errs, fmt.Sprintf("%sRECORD_TYPE: invalid value %q (must be A, AAAA, or CNAME)", prefix, recordTypeStr))
	}

	cfg.Target = getEnv(prefix + "TARGET")
	if cfg.Target == "" {
		errs = append(errs, fmt.Sprintf("%sTARGET: required but not set", prefix))
	}

	if ttlStr := getEnv(prefix + "TTL"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%sTTL: invalid integer %q", prefix, ttlStr))
		case ttl < 1:
			errs = append(errs, fmt.Sprintf("%sTTL: must be at least 1", prefix))
		default:
			cfg.TTL = ttl
		}
	} else {
		cfg.TTL = defaultTTL
	}

	if modeStr := getEnv(prefix + "MODE"); modeStr != "" {
		mode, err := provider.ParseOperationalMode(modeStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sMODE: %s", prefix, err.Error()))
		} else {
			cfg.Mode = mode
		}
	} else {
		cfg.Mode = provider.ModeManaged
	}

	// DOMAINS and DOMAINS_REGEX are mutually exclusive; one is required.
	domainsStr := getEnv(prefix + "DOMAINS")
	domainsRegexStr := getEnv(prefix + "DOMAINS_REGEX")
	switch {
	case domainsStr != "" && domainsRegexStr != "":
		errs = append(errs, fmt.Sprintf("%s: cannot set both DOMAINS and DOMAINS_REGEX", strings.TrimSuffix(prefix, "_")))
	case domainsStr == "" && domainsRegexStr == "":
		errs = append(errs, fmt.Sprintf("%sDOMAINS: required but not set", prefix))
	case domainsStr != "":
		cfg.Domains = splitCSV(domainsStr)
	default:
		cfg.DomainsRegex = splitCSV(domainsRegexStr)
	}

	excludeDomainsStr := getEnv(prefix + "EXCLUDE_DOMAINS")
	excludeDomainsRegexStr := getEnv(prefix + "EXCLUDE_DOMAINS_REGEX")
	switch {
	case excludeDomainsStr != "" && excludeDomainsRegexStr != "":
		errs = append(errs, fmt.Sprintf("%s: cannot set both EXCLUDE_DOMAINS and EXCLUDE_DOMAINS_REGEX", strings.TrimSuffix(prefix, "_")))
	case excludeDomainsStr != "":
		cfg.ExcludeDomains = splitCSV(excludeDomainsStr)
	case excludeDomainsRegexStr != "":
		cfg.ExcludeDomainsRegex = splitCSV(excludeDomainsRegexStr)
	}

	applyProviderFieldEnv(prefix, cfg.ProviderConfig, nil)

	return cfg, errs
}

// providerConfigFields enumerates the adapter-specific settings recognized
// in an instance's env block; secrets also honor the _FILE suffix.
var providerConfigFields = []struct {
	name     string
	isSecret bool
}{
	{"URL", false},
	{"TOKEN", true},
	{"ZONE", false},
	{"ZONE_ID", false},
	{"API_KEY", true},
	{"API_EMAIL", false},
	{"PROXIED", false},     // Cloudflare
	{"AUTH_HEADER", false}, // webhook
	{"AUTH_TOKEN", true},   // webhook
	{"TIMEOUT", false},
	{"RETRIES", false},     // webhook
	{"RETRY_DELAY", false}, // webhook
	{"SERVER", false},      // rfc2136
	{"TSIG_KEY_NAME", false},
	{"TSIG_SECRET", true},
	{"TSIG_ALGORITHM", false},
	{"USE_TCP", false},
	{"ACCESS_KEY_ID", false},    // route53
	{"SECRET_ACCESS_KEY", true}, // route53
	{"REGION", false},           // route53
	{"HOSTED_ZONE_ID", false},   // route53
	{"DOMAIN", false},           // digitalocean
	{"INSECURE_SKIP_VERIFY", false},
}

// applyProviderFieldEnv copies every set provider field from the env block
// into dst. When log is non-nil, each applied override is logged (the merge
// path uses this; initial loading does not).
func applyProviderFieldEnv(prefix string, dst map[string]string, log func(field string)) {
	for _, field := range providerConfigFields {
		var value string
		if field.isSecret {
			value = getEnvWithFileFallback(prefix, field.name)
		} else {
			value = getEnv(prefix + field.name)
		}
		if value == "" {
			continue
		}
		if log != nil {
			log(field.name)
		}
		dst[field.name] = value
	}
}

// mergeProviderEnvOverrides layers env vars over a file-defined provider:
// YAML holds the readable bulk, env vars override individual values, and
// secrets arrive via the _FILE pattern.
func mergeProviderEnvOverrides(cfg *ProviderInstanceConfig) {
	prefix := envPrefix(cfg.Name)

	if cfg.ProviderConfig == nil {
		cfg.ProviderConfig = make(map[string]string)
	}

	applyProviderFieldEnv(prefix, cfg.ProviderConfig, func(field string) {
		slog.Debug("env override applied to provider config",
			slog.String("provider", cfg.Name),
			slog.String("field", field),
		)
	})

	if target := getEnv(prefix + "TARGET"); target != "" {
		slog.Debug("env override applied to provider target",
			slog.String("provider", cfg.Name),
			slog.String("target", target),
		)
		cfg.Target = target
	}

	if ttlStr := getEnv(prefix + "TTL"); ttlStr != "" {
		if ttl, err := strconv.Atoi(ttlStr); err == nil && ttl >= 1 {
			slog.Debug("env override applied to provider TTL",
				slog.String("provider", cfg.Name),
				slog.Int("ttl", ttl),
			)
			cfg.TTL = ttl
		}
	}

	if modeStr := getEnv(prefix + "MODE"); modeStr != "" {
		if mode, err := provider.ParseOperationalMode(modeStr); err == nil {
			slog.Debug("env override applied to provider mode",
				slog.String("provider", cfg.Name),
				slog.String("mode", modeStr),
			)
			cfg.Mode = mode
		}
	}
}
