package route53

import (
	"strconv"

	"github.com/trafegodns/trafego/pkg/provider"
)

// Factory returns a provider.Factory for creating Route53 provider instances.
// This is the recommended way to register the Route53 provider with the registry.
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg := &Config{
			Region:          cfg.ProviderConfig["REGION"],
			AccessKeyID:     cfg.ProviderConfig["ACCESS_KEY_ID"],
			SecretAccessKey: cfg.ProviderConfig["SECRET_ACCESS_KEY"],
			HostedZoneID:    cfg.ProviderConfig["HOSTED_ZONE_ID"],
			Zone:            cfg.ProviderConfig["ZONE"],
			TTL:             DefaultTTL,
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
