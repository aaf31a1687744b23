package config

import (
	"os"
	"strings"
)

// getEnv reads one environment variable.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrFile resolves a secret: if fileKey names a readable file (the
// Docker-secrets pattern), its trimmed contents win; otherwise the direct
// variable is used. Local development sets the direct value, production
// mounts the file.
func getEnvOrFile(directKey, fileKey string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(directKey)
}

// getEnvWithFileFallback applies the _FILE suffix convention: for base key
// TOKEN it consults TOKEN_FILE first, then TOKEN.
func getEnvWithFileFallback(prefix, key string) string {
	return getEnvOrFile(prefix+key, prefix+key+"_FILE")
}

// parseBool accepts true/false, 1/0, yes/no, on/off, case-insensitively,
// falling back to defaultValue for anything else.
func parseBool(s string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// splitCSV splits a comma-separated value, trimming whitespace and dropping
// empty elements.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeInstanceName maps an instance name to env-var form:
// "internal-dns" -> "INTERNAL_DNS".
func normalizeInstanceName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(name), "-", "_")
}

// envPrefix builds the full env prefix for a provider instance:
// "internal-dns" -> "TRAFEGO_INTERNAL_DNS_".
func envPrefix(instanceName string) string {
	return "TRAFEGO_" + normalizeInstanceName(instanceName) + "_"
}
