package config

import (
	"strings"
	"time"

	"github.com/trafegodns/trafego/pkg/source"
)

// SourceInstanceConfig is the configuration of one hostname source from
// TRAFEGO_SOURCES.
type SourceInstanceConfig struct {
	// Name is the source type ("traefik", "trafego").
	Name string

	// FileDiscovery holds the file-scanning settings; configuring file
	// paths is what enables discovery.
	FileDiscovery source.FileDiscoveryConfig
}

// SourceConfig holds every configured source in order.
type SourceConfig struct {
	// Names preserves the TRAFEGO_SOURCES ordering.
	Names []string

	// Instances carries each source's settings, parallel to Names.
	Instances []*SourceInstanceConfig
}

// parseSources splits TRAFEGO_SOURCES, defaulting to just "traefik".
func parseSources() []string {
	sourcesStr := getEnv("TRAFEGO_SOURCES")
	if sourcesStr == "" {
		return []string{"traefik"}
	}

	var sources []string
	for _, s := range splitCSV(sourcesStr) {
		sources = append(sources, strings.ToLower(s))
	}
	return sources
}

// loadSourceConfig reads each source's settings from its environment block:
//
//	TRAFEGO_SOURCE_TRAEFIK_FILE_PATHS=/rules,/config/traefik
//	TRAFEGO_SOURCE_TRAEFIK_FILE_PATTERN=*.yml,*.yaml
//	TRAFEGO_SOURCE_TRAEFIK_POLL_INTERVAL=30s
//	TRAFEGO_SOURCE_TRAEFIK_WATCH_METHOD=auto
func loadSourceConfig() *SourceConfig {
	names := parseSources()

	cfg := &SourceConfig{
		Names:     names,
		Instances: make([]*SourceInstanceConfig, 0, len(names)),
	}
	for _, name := range names {
		cfg.Instances = append(cfg.Instances, loadSourceInstanceConfig(name))
	}
	return cfg
}

// sourceEnvPrefix maps a source name to its env block:
// "traefik" -> "TRAFEGO_SOURCE_TRAEFIK_".
func sourceEnvPrefix(name string) string {
	return "TRAFEGO_SOURCE_" + strings.ToUpper(name) + "_"
}

func loadSourceInstanceConfig(name string) *SourceInstanceConfig {
	prefix := sourceEnvPrefix(name)

	cfg := &SourceInstanceConfig{
		Name:          name,
		FileDiscovery: source.DefaultFileDiscoveryConfig(),
	}

	// Setting FILE_PATHS is what turns file discovery on.
	if pathsStr := getEnv(prefix + "FILE_PATHS"); pathsStr != "" {
		cfg.FileDiscovery.FilePaths = splitCSV(pathsStr)
	}

	// Empty pattern lets the source pick its own default.
	if pattern := getEnv(prefix + "FILE_PATTERN"); pattern != "" {
		cfg.FileDiscovery.FilePattern = pattern
	}

	// Sub-second intervals and unparseable values keep the default.
	if intervalStr := getEnv(prefix + "POLL_INTERVAL"); intervalStr != "" {
		if interval, err := time.ParseDuration(intervalStr); err == nil && interval >= time.Second {
			cfg.FileDiscovery.PollInterval = interval
		}
	}

	if method := getEnv(prefix + "WATCH_METHOD"); method != "" {
		cfg.FileDiscovery.WatchMethod = strings.ToLower(method)
	}

	return cfg
}

// GetSourceInstance looks a source up by name, or nil.
func (c *SourceConfig) GetSourceInstance(name string) *SourceInstanceConfig {
	for _, inst := range c.Instances {
		if inst.Name == name {
			return inst
		}
	}
	return nil
}

// HasFileDiscovery reports whether any source has file discovery enabled.
func (c *SourceConfig) HasFileDiscovery() bool {
	for _, inst := range c.Instances {
		if inst.FileDiscovery.IsEnabled() {
			return true
		}
	}
	return false
}
