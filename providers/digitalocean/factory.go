package digitalocean

import (
	"strconv"

	"github.com/trafegodns/trafego/pkg/provider"
)

// Factory returns a provider.Factory for creating DigitalOcean provider instances.
// This is the recommended way to register the DigitalOcean provider with the registry.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg := &Config{
			Token:  cfg.ProviderConfig["TOKEN"],
			Domain: cfg.ProviderConfig["DOMAIN"],
			TTL:    DefaultTTL,
		}

		if ttlStr := cfg.ProviderConfig["TTL"]; ttlStr != "" {
			if ttl, err := strconv.Atoi(ttlStr); err == nil {
				providerCfg.TTL = ttl
			}
		}

		return New(cfg.Name, providerCfg,
			WithProviderLogger(cfg.HTTP.Logger),
		)
	}
}
