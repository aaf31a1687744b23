package route53

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTTL is the default TTL for Route53 DNS records.
const DefaultTTL = 300

// Config holds AWS Route53-specific configuration.
//
// AccessKeyID and SecretAccessKey are optional: when both are empty the
// provider falls back to the default AWS credential chain (environment,
// shared config, instance metadata), which is how the provider is expected
// to run on EC2/ECS with an instance role.
type Config struct {
	Region          string // AWS region for API calls (defaults to us-east-1; Route53 is global)
	AccessKeyID     string // Static credential (optional)
	SecretAccessKey string // Static credential (optional)
	HostedZoneID    string // Hosted zone ID (optional if Zone is set)
	Zone            string // Zone name for lookup (used if HostedZoneID is empty)
	TTL             int    // Record TTL (defaults to DefaultTTL)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.HostedZoneID == "" && c.Zone == "" {
		errs = append(errs, "HOSTED_ZONE_ID or ZONE is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, "ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together")
	}
	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("route53 config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// LoadConfig loads Route53 configuration from environment variables.
// Environment variable pattern: TRAFEGO_{INSTANCE_NAME}_{SETTING}
//
// Supported settings:
//   - REGION: AWS region (optional, defaults to us-east-1)
//   - ACCESS_KEY_ID: Static credential (optional)
//   - SECRET_ACCESS_KEY: Static credential (optional, supports _FILE suffix)
//   - HOSTED_ZONE_ID: Hosted zone ID (optional if ZONE is set)
//   - ZONE: Zone name for lookup (optional if HOSTED_ZONE_ID is set)
//   - TTL: Record TTL (optional, defaults to 300)
func LoadConfig(instanceName string) (*Config, error) {
	prefix := envPrefix(instanceName)

	config := &Config{
		Region:          getEnv(prefix + "REGION"),
		AccessKeyID:     getEnv(prefix + "ACCESS_KEY_ID"),
		SecretAccessKey: getEnvOrFile(prefix+"SECRET_ACCESS_KEY", prefix+"SECRET_ACCESS_KEY_FILE"),
		HostedZoneID:    getEnv(prefix + "HOSTED_ZONE_ID"),
		Zone:            getEnv(prefix + "ZONE"),
		TTL:             DefaultTTL,
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
