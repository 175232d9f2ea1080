package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/agritech-envdata/internal/geo"
)

// ProviderConfig is the endpoint and credential of one upstream provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

type AppConfig struct {
	OpenWeather    ProviderConfig
	AirVisual      ProviderConfig
	Agromonitoring ProviderConfig

	// BackendBaseURL is where the last network tier (the /api service) lives.
	BackendBaseURL string
	Port           string

	HTTPTimeout        time.Duration
	ProviderMaxRetries int

	WeatherCacheTTL    time.Duration
	AirQualityCacheTTL time.Duration
	ClimateCacheTTL    time.Duration
	CacheMaxEntries    int           // 0 = unlimited
	CacheMaxAge        time.Duration // 0 = unlimited

	// RefreshInterval controls how often tracked locations are refetched.
	RefreshInterval  time.Duration
	TrackedLocations []geo.Coordinate
	TrackedCities    []geo.Place
	GeocoderAPIKey   string

	// SimulateUpstream makes the /api service answer with synthetic data.
	SimulateUpstream bool

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Placeholder keys shipped as defaults. Providers refuse them without a network call.
const (
	placeholderOpenWeatherKey    = "your_openweather_api_key_here"
	placeholderAirVisualKey      = "your_airvisual_api_key_here"
	placeholderAgromonitoringKey = "your_agromonitoring_api_key_here"
)

// LoadDotEnv loads filenames into the environment. With no filenames it
// loads ./.env when present. A missing file that was named explicitly is an
// error. Variables already set take precedence.
func LoadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if len(filenames) == 0 && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeather: ProviderConfig{
			APIKey:  getenvDefault("OPENWEATHER_API_KEY", placeholderOpenWeatherKey),
			BaseURL: getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		},
		AirVisual: ProviderConfig{
			APIKey:  getenvDefault("AIRVISUAL_API_KEY", placeholderAirVisualKey),
			BaseURL: getenvDefault("AIRVISUAL_BASE_URL", "https://api.airvisual.com/v2"),
		},
		Agromonitoring: ProviderConfig{
			APIKey:  getenvDefault("AGROMONITORING_API_KEY", placeholderAgromonitoringKey),
			BaseURL: getenvDefault("AGROMONITORING_BASE_URL", "https://api.agromonitoring.com/agro/1.0"),
		},
		BackendBaseURL: getenvDefault("BACKEND_BASE_URL", "http://localhost:8000"),
		Port:           getenvDefault("PORT", "8000"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("LOG_FORMAT", "json"),
	}

	var err error
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"WEATHER_CACHE_TTL", "10m", &cfg.WeatherCacheTTL},
		{"AIRQUALITY_CACHE_TTL", "30m", &cfg.AirQualityCacheTTL},
		{"CLIMATE_CACHE_TTL", "0s", &cfg.ClimateCacheTTL},
		{"CACHE_MAX_AGE", "24h", &cfg.CacheMaxAge},
		{"REFRESH_INTERVAL", "15m", &cfg.RefreshInterval},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 1024); err != nil {
		return nil, err
	}
	if cfg.ProviderMaxRetries, err = getenvInt("PROVIDER_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.SimulateUpstream, err = getenvBool("SIMULATE_UPSTREAM", false); err != nil {
		return nil, err
	}

	if cfg.TrackedLocations, err = geo.ParseCoordinates(getenvDefault("TRACKED_LOCATIONS", "48.8566,2.3522")); err != nil {
		return nil, fmt.Errorf("invalid TRACKED_LOCATIONS: %w", err)
	}
	if cfg.TrackedCities, err = geo.ParsePlaces(os.Getenv("TRACKED_CITIES")); err != nil {
		return nil, fmt.Errorf("invalid TRACKED_CITIES: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid HTTP_TIMEOUT: must be positive")
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("invalid REFRESH_INTERVAL: must be at least 1m")
	}
	if c.ProviderMaxRetries < 0 {
		return fmt.Errorf("invalid PROVIDER_MAX_RETRIES: must not be negative")
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("invalid CACHE_MAX_ENTRIES: must not be negative")
	}
	for _, ttl := range []struct {
		key string
		v   time.Duration
	}{
		{"WEATHER_CACHE_TTL", c.WeatherCacheTTL},
		{"AIRQUALITY_CACHE_TTL", c.AirQualityCacheTTL},
		{"CLIMATE_CACHE_TTL", c.ClimateCacheTTL},
	} {
		if ttl.v < 0 {
			return fmt.Errorf("invalid %s: must not be negative", ttl.key)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
