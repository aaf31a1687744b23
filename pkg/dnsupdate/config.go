package dnsupdate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultPort is the standard DNS port, appended when the server
	// address carries none.
	DefaultPort = 53

	// DefaultTimeout bounds one DNS exchange.
	DefaultTimeout = 10 * time.Second

	// DefaultTSIGAlgorithm is used when TSIG is configured without an
	// explicit algorithm.
	DefaultTSIGAlgorithm = TSIGAlgorithmSHA256
)

// TSIG algorithm constants in miekg/dns form.
const (
	TSIGAlgorithmMD5    = dns.HmacMD5 // legacy
	TSIGAlgorithmSHA256 = dns.HmacSHA256
	TSIGAlgorithmSHA512 = dns.HmacSHA512
)

// User-facing algorithm spellings accepted in configuration.
const (
	AlgNameSHA256 = "hmac-sha256"
	AlgNameSHA512 = "hmac-sha512"
	AlgNameMD5    = "hmac-md5"
)

// Config holds the settings for an RFC 2136 dynamic-update client.
type Config struct {
	// Server is the DNS server in host or host:port form.
	Server string

	// Zone is the zone to update, in FQDN form ("example.com.").
	Zone string

	// TSIGKeyName is the signing key name in FQDN form ("trafego.").
	// Empty disables TSIG.
	TSIGKeyName string

	// TSIGSecret is the base64-encoded shared secret.
	TSIGSecret string

	// TSIGAlgorithm selects hmac-md5, hmac-sha256 (default), or
	// hmac-sha512.
	TSIGAlgorithm string

	// Timeout per DNS exchange; zero selects DefaultTimeout.
	Timeout time.Duration

	// UseTCP forces TCP transport. Needed for large updates and networks
	// that drop UDP.
	UseTCP bool
}

// Validate collects every problem with the configuration into one error so
// the operator sees the full list at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}

	if c.Zone == "" {
		errs = append(errs, "zone is required")
	} else if !strings.HasSuffix(c.Zone, ".") {
		errs = append(errs, "zone must end with a dot (e.g., 'example.com.')")
	}

	// Any TSIG field present means TSIG is intended; require the pair.
	if c.TSIGKeyName != "" || c.TSIGSecret != "" || c.TSIGAlgorithm != "" {
		if c.TSIGKeyName == "" {
			errs = append(errs, "tsig_key_name is required when using TSIG authentication")
		} else if !strings.HasSuffix(c.TSIGKeyName, ".") {
			errs = append(errs, "tsig_key_name must end with a dot (e.g., 'trafego.')")
		}

		if c.TSIGSecret == "" {
			errs = append(errs, "tsig_secret is required when using TSIG authentication")
		}

		if c.TSIGAlgorithm != "" {
			switch c.GetTSIGAlgorithm() {
			case TSIGAlgorithmMD5, TSIGAlgorithmSHA256, TSIGAlgorithmSHA512:
			default:
				errs = append(errs, fmt.Sprintf("unsupported tsig_algorithm: %s (supported: hmac-md5, hmac-sha256, hmac-sha512)", c.TSIGAlgorithm))
			}
		}
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsupdate config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetServer returns the server address with a port, appending :53 when the
// configuration names only a host.
func (c *Config) GetServer() string {
	if c.Server == "" {
		return ""
	}
	if strings.Contains(c.Server, ":") {
		return c.Server
	}
	return fmt.Sprintf("%s:%d", c.Server, DefaultPort)
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// GetTSIGAlgorithm resolves the configured spelling to the miekg/dns
// constant. Unknown values pass through so Validate can name them.
func (c *Config) GetTSIGAlgorithm() string {
	if c.TSIGAlgorithm == "" {
		return DefaultTSIGAlgorithm
	}
	switch strings.ToLower(strings.TrimSpace(c.TSIGAlgorithm)) {
	case AlgNameMD5, "md5", "hmac-md5.sig-alg.reg.int.":
		return TSIGAlgorithmMD5
	case AlgNameSHA256, "sha256":
		return TSIGAlgorithmSHA256
	case AlgNameSHA512, "sha512":
		return TSIGAlgorithmSHA512
	default:
		return strings.ToLower(strings.TrimSpace(c.TSIGAlgorithm))
	}
}

// HasTSIG reports whether signing is configured.
func (c *Config) HasTSIG() bool {
	return c.TSIGKeyName != "" && c.TSIGSecret != ""
}

// applyStringSettings parses the TIMEOUT and USE_TCP settings shared by both
// loaders.
func (c *Config) applyStringSettings(timeoutStr, tcpStr string) error {
	if timeoutStr != "" {
		timeout, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid TIMEOUT value %q: %w", timeoutStr, err)
		}
		c.Timeout = time.Duration(timeout) * time.Second
	}
	if tcpStr != "" {
		c.UseTCP = strings.EqualFold(tcpStr, "true") || tcpStr == "1"
	}
	return nil
}

// LoadConfig reads configuration from {prefix}-prefixed environment
// variables: SERVER, ZONE, TSIG_KEY_NAME, TSIG_SECRET (with _FILE
// indirection for Docker secrets), TSIG_ALGORITHM, TIMEOUT (seconds),
// USE_TCP.
func LoadConfig(prefix string) (*Config, error) {
	config := &Config{
		Server:        os.Getenv(prefix + "SERVER"),
		Zone:          os.Getenv(prefix + "ZONE"),
		TSIGKeyName:   os.Getenv(prefix + "TSIG_KEY_NAME"),
		TSIGSecret:    getEnvOrFile(prefix+"TSIG_SECRET", prefix+"TSIG_SECRET_FILE"),
		TSIGAlgorithm: os.Getenv(prefix + "TSIG_ALGORITHM"),
	}

	if err := config.applyStringSettings(os.Getenv(prefix+"TIMEOUT"), os.Getenv(prefix+"USE_TCP")); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromMap builds a Config from already-parsed key/value settings,
// as handed to provider factories. Same keys as LoadConfig, minus the
// prefix.
func LoadConfigFromMap(configMap map[string]string) (*Config, error) {
	config := &Config{
		Server:        configMap["SERVER"],
		Zone:          configMap["ZONE"],
		TSIGKeyName:   configMap["TSIG_KEY_NAME"],
		TSIGSecret:    configMap["TSIG_SECRET"],
		TSIGAlgorithm: configMap["TSIG_ALGORITHM"],
	}

	if err := config.applyStringSettings(configMap["TIMEOUT"], configMap["USE_TCP"]); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// getEnvOrFile reads a secret from a file named by fileKey (Docker secrets
// pattern), falling back to the direct environment variable. File content is
// whitespace-trimmed.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}
