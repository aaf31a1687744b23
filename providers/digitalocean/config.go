package digitalocean

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTTL is the default TTL for DigitalOcean DNS records.
// DigitalOcean's default is 1800 seconds; its minimum is 30.
const DefaultTTL = 1800

// MinTTL is the lowest TTL DigitalOcean accepts.
const MinTTL = 30

// Config holds DigitalOcean-specific configuration.
type Config struct {
	Token  string // API token (Bearer authentication)
	Domain string // Managed domain name (e.g., "example.com")
	TTL    int    // Record TTL (defaults to DefaultTTL)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.Token == "" {
		errs = append(errs, "TOKEN is required")
	}
	if c.Domain == "" {
		errs = append(errs, "DOMAIN is required")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	if c.TTL > 0 && c.TTL < MinTTL {
		errs = append(errs, fmt.Sprintf("TTL must be at least %d seconds", MinTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("digitalocean config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LoadConfig loads DigitalOcean configuration from environment variables.
// Environment variable pattern: TRAFEGO_{INSTANCE_NAME}_{SETTING}
//
// Supported settings:
//   - TOKEN: API token (required, supports _FILE suffix for Docker secrets)
//   - DOMAIN: Managed domain name (required)
//   - TTL: Record TTL (optional, defaults to 1800)
func LoadConfig(instanceName string) (*Config, error) {
	prefix := envPrefix(instanceName)

	config := &Config{
		Token:  getEnvOrFile(prefix+"TOKEN", prefix+"TOKEN_FILE"),
		Domain: getEnv(prefix + "DOMAIN"),
		TTL:    DefaultTTL,
	}

	if ttlStr := getEnv(prefix + "TTL"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid TTL value %q: %w", ttlStr, err)
		}
		config.TTL = ttl
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}

	return config, nil
}

// envPrefix converts an instance name to an environment variable prefix.
// Example: "public-dns" → "TRAFEGO_PUBLIC_DNS_"
func envPrefix(instanceName string) string {
	normalized := strings.ToUpper(instanceName)
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return "TRAFEGO_" + normalized + "_"
}

// getEnv retrieves an environment variable value.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile retrieves a value from either a direct environment variable
// or a file path specified by the file key (Docker secrets pattern).
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return os.Getenv(directKey)
}
