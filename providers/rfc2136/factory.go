package rfc2136

import (
	"log/slog"

	"github.com/trafegodns/trafego/pkg/dnsupdate"
	"github.com/trafegodns/trafego/pkg/provider"
)

// Factory returns the provider.Factory registered under "rfc2136".
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg, err := LoadConfigFromMap(cfg.Name, cfg.ProviderConfig)
		if err != nil {
			return nil, err
		}

		// The shared HTTP settings are the registry's logger channel, even
		// for this non-HTTP provider.
		logger := cfg.HTTP.Logger
		if logger == nil {
			logger = slog.Default()
		}

		client, err := dnsupdate.NewClient(providerCfg.ToDNSUpdateConfig(), dnsupdate.WithLogger(logger))
		if err != nil {
			return nil, err
		}

		p := &Provider{
			name:    cfg.Name,
			zone:    providerCfg.Zone,
			ttl:     providerCfg.TTL,
			client:  client,
			catalog: dnsupdate.NewCatalog(client, providerCfg.Zone, logger),
			logger:  logger,
		}

		logger.Info("RFC 2136 provider created",
			slog.String("name", cfg.Name),
			slog.String("server", providerCfg.Server),
			slog.String("zone", providerCfg.Zone),
			slog.Bool("tsig", providerCfg.TSIGKeyName != ""),
			slog.Bool("tcp", providerCfg.UseTCP),
		)

		return p, nil
	}
}
