package webhook

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one webhook round trip.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the transient-failure retry count.
	DefaultRetries = 3

	// DefaultRetryDelay is the base backoff delay.
	DefaultRetryDelay = time.Second
)

// Config holds webhook adapter settings.
type Config struct {
	// URL is the webhook base URL.
	URL string

	// Timeout per HTTP round trip.
	Timeout time.Duration

	// AuthHeader names a custom auth header ("X-API-Key"); requires
	// AuthToken.
	AuthHeader string

	// AuthToken is the header's value.
	AuthToken string

	// Retries for transient failures.
	Retries int

	// RetryDelay is the base backoff delay.
	RetryDelay time.Duration
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.URL == "" {
		errs = append(errs, "URL is required")
	} else if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		errs = append(errs, "URL must start with http:// or https://")
	}

	if c.AuthHeader != "" && c.AuthToken == "" {
		errs = append(errs, "AUTH_TOKEN is required when AUTH_HEADER is set")
	}
	if c.Timeout < 0 {
		errs = append(errs, "TIMEOUT must be non-negative")
	}
	if c.Retries < 0 {
		errs = append(errs, "RETRIES must be non-negative")
	}
	if c.RetryDelay < 0 {
		errs = append(errs, "RETRY_DELAY must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("webhook config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applySettings parses the optional duration/count settings shared by both
// loaders. In both, a parse failure is an error; silently wrong retry
// behavior is worse than a failed start.
func (c *Config) applySettings(timeoutStr, retriesStr, delayStr string) error {
	if timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid TIMEOUT value %q: %w", timeoutStr, err)
		}
		c.Timeout = timeout
	}
	if retriesStr != "" {
		var retries int
		if _, err := fmt.Sscanf(retriesStr, "%d", &retries); err != nil {
			return fmt.Errorf("invalid RETRIES value %q: %w", retriesStr, err)
		}
		c.Retries = retries
	}
	if delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return fmt.Errorf("invalid RETRY_DELAY value %q: %w", delayStr, err)
		}
		c.RetryDelay = delay
	}
	return nil
}

// LoadConfig reads an instance's configuration from its environment block:
// TRAFEGO_{NAME}_URL, _TIMEOUT, _AUTH_HEADER, _AUTH_TOKEN (with _FILE
// indirection), _RETRIES, _RETRY_DELAY.
func LoadConfig(instanceName string) (*Config, error) {
	prefix := envPrefix(instanceName)

	config := &Config{
		URL:        os.Getenv(prefix + "URL"),
		Timeout:    DefaultTimeout,
		AuthHeader: os.Getenv(prefix + "AUTH_HEADER"),
		AuthToken:  getEnvOrFile(prefix+"AUTH_TOKEN", prefix+"AUTH_TOKEN_FILE"),
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
	}

	if err := config.applySettings(
		os.Getenv(prefix+"TIMEOUT"),
		os.Getenv(prefix+"RETRIES"),
		os.Getenv(prefix+"RETRY_DELAY"),
	); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}
	return config, nil
}

// LoadConfigFromMap builds a Config from registry-supplied settings. Same
// keys as LoadConfig, minus the prefix.
func LoadConfigFromMap(instanceName string, configMap map[string]string) (*Config, error) {
	config := &Config{
		URL:        configMap["URL"],
		Timeout:    DefaultTimeout,
		AuthHeader: configMap["AUTH_HEADER"],
		AuthToken:  configMap["AUTH_TOKEN"],
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
	}

	if err := config.applySettings(configMap["TIMEOUT"], configMap["RETRIES"], configMap["RETRY_DELAY"]); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}
	return config, nil
}

// envPrefix maps an instance name onto its env prefix:
// "custom-dns" -> "TRAFEGO_CUSTOM_DNS_".
func envPrefix(instanceName string) string {
	normalized := strings.ReplaceAll(strings.ToUpper(instanceName), "-", "_")
	return "TRAFEGO_" + normalized + "_"
}

// getEnvOrFile reads a secret from the file named by fileKey (Docker
// secrets), falling back to the direct variable. Contents are trimmed.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}
