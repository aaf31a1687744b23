package dnsupdate

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// TSIG holds an RFC 2845 transaction signature key.
type TSIG struct {
	// Name is the key name in FQDN form ("trafego.").
	Name string

	// Secret is the base64-encoded shared secret.
	Secret string

	// Algorithm is the miekg/dns algorithm constant (dns.HmacSHA256, ...).
	Algorithm string
}

// NewTSIG validates and normalizes a TSIG key: the name gains its trailing
// dot, the secret must decode as base64, and the algorithm must be one the
// server side will accept.
func NewTSIG(name, secret, algorithm string) (*TSIG, error) {
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return nil, fmt.Errorf("tsig secret is not valid base64: %w", err)
	}

	alg := normalizeAlgorithm(algorithm)
	if !isValidAlgorithm(alg) {
		return nil, fmt.Errorf("unsupported tsig algorithm: %s", algorithm)
	}

	return &TSIG{Name: name, Secret: secret, Algorithm: alg}, nil
}

// TSIGFromConfig builds the key from a Config, or nil when TSIG is not
// configured (unsigned updates).
func TSIGFromConfig(config *Config) (*TSIG, error) {
	if !config.HasTSIG() {
		return nil, nil //nolint:nilnil // nil TSIG means unsigned
	}
	return NewTSIG(config.TSIGKeyName, config.TSIGSecret, config.GetTSIGAlgorithm())
}

// ApplyToClient installs the key on a dns.Client. Nil receiver is a no-op.
func (t *TSIG) ApplyToClient(client *dns.Client) {
	if t == nil {
		return
	}
	client.TsigSecret = map[string]string{t.Name: t.Secret}
}

// ApplyToMessage signs a fully-constructed DNS message. Nil receiver is a
// no-op.
func (t *TSIG) ApplyToMessage(msg *dns.Msg) {
	if t == nil {
		return
	}
	msg.SetTsig(t.Name, t.Algorithm, 300, 0)
}

// normalizeAlgorithm maps config spellings onto miekg/dns constants.
func normalizeAlgorithm(alg string) string {
	if alg == "" {
		return DefaultTSIGAlgorithm
	}
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "hmac-md5", "md5":
		return dns.HmacMD5
	case "hmac-sha256", "sha256":
		return dns.HmacSHA256
	case "hmac-sha512", "sha512":
		return dns.HmacSHA512
	default:
		return alg
	}
}

func isValidAlgorithm(alg string) bool {
	switch alg {
	case dns.HmacMD5, dns.HmacSHA256, dns.HmacSHA512:
		return true
	}
	return false
}

// AlgorithmName renders an algorithm constant for logs.
func AlgorithmName(alg string) string {
	switch alg {
	case dns.HmacMD5:
		return "HMAC-MD5"
	case dns.HmacSHA256:
		return "HMAC-SHA256"
	case dns.HmacSHA512:
		return "HMAC-SHA512"
	default:
		return alg
	}
}
