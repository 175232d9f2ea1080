package main

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/agritech-envdata/internal/acquisition"
	"github.com/i474232898/agritech-envdata/internal/config"
	"github.com/i474232898/agritech-envdata/internal/observability"
	"github.com/i474232898/agritech-envdata/internal/providers"
)

// clients holds the provider clients built from configuration.
type clients struct {
	openWeather    *providers.OpenWeather
	airVisual      *providers.AirVisual
	agromonitoring *providers.Agromonitoring
	backend        *providers.Backend
}

func newClients(cfg *config.AppConfig) clients {
	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.DefaultBackoff(cfg.ProviderMaxRetries),
	}
	opts := func(p config.ProviderConfig) providers.Options {
		return providers.Options{BaseURL: p.BaseURL, APIKey: p.APIKey, HTTP: httpCfg}
	}

	return clients{
		openWeather:    providers.NewOpenWeather(opts(cfg.OpenWeather)),
		airVisual:      providers.NewAirVisual(opts(cfg.AirVisual)),
		agromonitoring: providers.NewAgromonitoring(opts(cfg.Agromonitoring)),
		backend:        providers.NewBackend(providers.Options{BaseURL: cfg.BackendBaseURL, HTTP: httpCfg}),
	}
}

func newLayer(cfg *config.AppConfig, c clients, logger *zap.Logger, metrics *observability.Metrics) *acquisition.Layer {
	return acquisition.NewLayer(acquisition.Settings{
		WeatherTTL:    cfg.WeatherCacheTTL,
		AirQualityTTL: cfg.AirQualityCacheTTL,
		ClimateTTL:    cfg.ClimateCacheTTL,
		MaxEntries:    cfg.CacheMaxEntries,
		MaxAge:        cfg.CacheMaxAge,
	}, acquisition.Providers{
		OpenWeather:    c.openWeather,
		AirVisual:      c.airVisual,
		Agromonitoring: c.agromonitoring,
		Backend:        c.backend,
	}, clockwork.NewRealClock(), logger, metrics)
}
