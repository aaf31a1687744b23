package webhook

import (
	"log/slog"

	"github.com/trafegodns/trafego/pkg/httputil"
	"github.com/trafegodns/trafego/pkg/provider"
)

// Factory returns the provider.Factory registered under "webhook".
func Factory() provider.Factory {
	return func(cfg provider.FactoryConfig) (provider.Provider, error) {
		providerCfg, err := LoadConfigFromMap(cfg.Name, cfg.ProviderConfig)
		if err != nil {
			return nil, err
		}

		// The shared HTTP settings supply TLS, user agent, and logging;
		// the webhook's own Timeout/Retries govern the request cycle.
		httpClient := httputil.NewClient(&httputil.ClientConfig{
			Timeout:       providerCfg.Timeout,
			TLSSkipVerify: cfg.HTTP.TLSSkipVerify,
			UserAgent:     cfg.HTTP.UserAgent,
			Logger:        cfg.HTTP.Logger,
		})

		if cfg.HTTP.TLSSkipVerify && cfg.HTTP.Logger != nil {
			cfg.HTTP.Logger.Warn("TLS certificate verification disabled for Webhook provider",
				slog.String("provider", cfg.Name),
				slog.String("url", providerCfg.URL),
			)
		}

		return New(cfg.Name, providerCfg,
			WithProviderHTTPClient(httpClient),
			WithProviderLogger(cfg.HTTP.Logger),
		)
	}
}
