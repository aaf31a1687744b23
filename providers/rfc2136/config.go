package rfc2136

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trafegodns/trafego/pkg/dnsupdate"
)

const (
	// DefaultTTL for created records.
	DefaultTTL = 300

	// DefaultTimeout for DNS operations, in seconds.
	DefaultTimeout = 10
)

// Config wraps the dnsupdate settings with the provider-level TTL default.
type Config struct {
	// Server is the DNS server in host or host:port form.
	Server string

	// Zone to update, in FQDN form ("example.com.").
	Zone string

	// TSIGKeyName in FQDN form ("trafego."); empty disables signing.
	TSIGKeyName string

	// TSIGSecret, base64-encoded.
	TSIGSecret string

	// TSIGAlgorithm: hmac-md5, hmac-sha256 (default), hmac-sha512.
	TSIGAlgorithm string

	// Timeout per DNS exchange, in seconds.
	Timeout int

	// UseTCP forces TCP transport.
	UseTCP bool

	// TTL applied to records without an explicit one.
	TTL int
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "SERVER is required")
	}
	if c.Zone == "" {
		errs = append(errs, "ZONE is required")
	} else if !strings.HasSuffix(c.Zone, ".") {
		errs = append(errs, "ZONE must end with a dot (e.g., 'example.com.')")
	}

	if c.TSIGKeyName != "" || c.TSIGSecret != "" || c.TSIGAlgorithm != "" {
		if c.TSIGKeyName == "" {
			errs = append(errs, "TSIG_KEY_NAME is required when using TSIG authentication")
		} else if !strings.HasSuffix(c.TSIGKeyName, ".") {
			errs = append(errs, "TSIG_KEY_NAME must end with a dot (e.g., 'trafego.')")
		}
		if c.TSIGSecret == "" {
			errs = append(errs, "TSIG_SECRET is required when using TSIG authentication")
		}
	}

	if c.TTL < 0 {
		errs = append(errs, "TTL must be non-negative")
	}
	if c.Timeout < 0 {
		errs = append(errs, "TIMEOUT must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("rfc2136 config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ToDNSUpdateConfig produces the transport-level configuration.
func (c *Config) ToDNSUpdateConfig() *dnsupdate.Config {
	return &dnsupdate.Config{
		Server:        c.Server,
		Zone:          c.Zone,
		TSIGKeyName:   c.TSIGKeyName,
		TSIGSecret:    c.TSIGSecret,
		TSIGAlgorithm: c.TSIGAlgorithm,
		Timeout:       time.Duration(c.Timeout) * time.Second,
		UseTCP:        c.UseTCP,
	}
}

// applySettings parses the numeric/boolean settings shared by both loaders.
func (c *Config) applySettings(timeoutStr, tcpStr, ttlStr string) error {
	if timeoutStr != "" {
		timeout, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid TIMEOUT value %q: %w", timeoutStr, err)
		}
		c.Timeout = timeout
	}
	if tcpStr != "" {
		c.UseTCP = strings.EqualFold(tcpStr, "true") || tcpStr == "1"
	}
	if ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return fmt.Errorf("invalid TTL value %q: %w", ttlStr, err)
		}
		c.TTL = ttl
	}
	return nil
}

// LoadConfig reads an instance's configuration from the environment. The
// instance name maps to a prefix: "internal-dns" reads
// TRAFEGO_INTERNAL_DNS_SERVER, _ZONE, _TSIG_KEY_NAME, _TSIG_SECRET (or
// _TSIG_SECRET_FILE), _TSIG_ALGORITHM, _TIMEOUT, _USE_TCP, _TTL.
func LoadConfig(instanceName string) (*Config, error) {
	prefix := envPrefix(instanceName)

	config := &Config{
		Server:        os.Getenv(prefix + "SERVER"),
		Zone:          os.Getenv(prefix + "ZONE"),
		TSIGKeyName:   os.Getenv(prefix + "TSIG_KEY_NAME"),
		TSIGSecret:    getEnvOrFile(prefix+"TSIG_SECRET", prefix+"TSIG_SECRET_FILE"),
		TSIGAlgorithm: os.Getenv(prefix + "TSIG_ALGORITHM"),
		TTL:           DefaultTTL,
		Timeout:       DefaultTimeout,
	}

	if err := config.applySettings(
		os.Getenv(prefix+"TIMEOUT"),
		os.Getenv(prefix+"USE_TCP"),
		os.Getenv(prefix+"TTL"),
	); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}
	return config, nil
}

// LoadConfigFromMap builds a Config from already-parsed settings, as handed
// to the provider factory. Same keys as LoadConfig, minus the prefix.
func LoadConfigFromMap(instanceName string, configMap map[string]string) (*Config, error) {
	config := &Config{
		Server:        configMap["SERVER"],
		Zone:          configMap["ZONE"],
		TSIGKeyName:   configMap["TSIG_KEY_NAME"],
		TSIGSecret:    configMap["TSIG_SECRET"],
		TSIGAlgorithm: configMap["TSIG_ALGORITHM"],
		TTL:           DefaultTTL,
		Timeout:       DefaultTimeout,
	}

	if err := config.applySettings(configMap["TIMEOUT"], configMap["USE_TCP"], configMap["TTL"]); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration for %s: %w", instanceName, err)
	}
	return config, nil
}

// envPrefix maps an instance name onto its environment prefix:
// "internal-dns" -> "TRAFEGO_INTERNAL_DNS_".
func envPrefix(instanceName string) string {
	normalized := strings.ReplaceAll(strings.ToUpper(instanceName), "-", "_")
	return "TRAFEGO_" + normalized + "_"
}

// getEnvOrFile reads a secret from the file named by fileKey (Docker
// secrets), falling back to the direct variable. File content is trimmed.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}
