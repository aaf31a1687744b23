package cloudflare

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTTL for created records. Cloudflare's floor is 60 seconds, with
// TTL=1 meaning "automatic".
const DefaultTTL = 300

// Config holds the Cloudflare adapter settings.
type Config struct {
	// Token is the API token used as a Bearer credential.
	Token string

	// ZoneID pins the zone directly; when empty, Zone is resolved by name.
	ZoneID string

	// Zone is the zone name, used for lookup and logging.
	Zone string

	// TTL for created records; 1 means automatic.
	TTL int

	// Proxied routes created records through Cloudflare's proxy by default.
	Proxied bool
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Token == "" {
		errs = append(errs, "TOKEN is required")
	}
	if c.ZoneID == "" && c.Zone == "" {
		errs = append(errs, "ZONE_ID or ZONE is required")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	if c.TTL > 0 && c.TTL < 60 && c.TTL != 1 {
		errs = append(errs, "TTL must be at least 60 seconds (or 1 for automatic)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("cloudflare config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfig reads an instance's configuration from its environment block:
// TRAFEGO_{NAME}_TOKEN (with _FILE indirection), _ZONE_ID or _ZONE, _TTL,
// _PROXIED.
func LoadConfig(instanceName string) (*Config, error) {
	prefix := envPrefix(instanceName)

	config := &Config{
		Token:  getEnvOrFile(prefix+"TOKEN", prefix+"TOKEN_FILE"),
		ZoneID: os.Getenv(prefix + "ZONE_ID"),
		Zone:   os.Getenv(prefix + "ZONE"),
		TTL:    DefaultTTL,
	}

	if ttlStr := os.Getenv(prefix + "TTL"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", ttlStr, err)
		}
		config.TTL = ttl
	}
	if proxiedStr := os.Getenv(prefix + "PROXIED"); proxiedStr != "" {
		config.Proxied = parseBool(proxiedStr)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}
	return config, nil
}

// envPrefix maps an instance name onto its env prefix:
// "public-dns" -> "TRAFEGO_PUBLIC_DNS_".
func envPrefix(instanceName string) string {
	normalized := strings.ReplaceAll(strings.ToUpper(instanceName), "-", "_")
	return "TRAFEGO_" + normalized + "_"
}

// getEnvOrFile reads a secret from the file named by fileKey (Docker
// secrets), falling back to the direct variable. File contents are trimmed.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}

// parseBool accepts true/1/yes/on, case-insensitively.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
