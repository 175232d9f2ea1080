package acquisition

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/binding"
	"github.com/i474232898/agritech-envdata/internal/climate"
	"github.com/i474232898/agritech-envdata/internal/fallback"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/observability"
	"github.com/i474232898/agritech-envdata/internal/providers"
	"github.com/i474232898/agritech-envdata/internal/store"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

const (
	DomainWeather    = "weather"
	DomainAirQuality = "airquality"
	DomainClimate    = "climate"
)

// Settings are the cache parameters of the layer.
type Settings struct {
	WeatherTTL    time.Duration
	AirQualityTTL time.Duration
	ClimateTTL    time.Duration
	MaxEntries    int
	MaxAge        time.Duration
}

// Providers are the clients behind the fallback chains.
type Providers struct {
	OpenWeather    *providers.OpenWeather
	AirVisual      *providers.AirVisual
	Agromonitoring *providers.Agromonitoring
	Backend        *providers.Backend
	Simulator      *weather.Simulator
}

// Layer owns one cache and one coordinator per domain and builds bindings
// over them. It is constructed once per process and shared.
type Layer struct {
	Weather    *Source[geo.Coordinate, weather.Report]
	AirQuality *Source[geo.Coordinate, airquality.Report]
	Climate    *Source[geo.Polygon, climate.Reading]

	weatherChain *fallback.Coordinator[geo.Coordinate, weather.Current]
	forecaster   *providers.OpenWeather

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewLayer wires the tier orders:
//
//	weather:    openweather -> backend -> synthetic
//	airquality: openweather -> airvisual -> backend
//	climate:    agromonitoring -> backend
func NewLayer(cfg Settings, p Providers, clock clockwork.Clock, logger *zap.Logger, metrics *observability.Metrics) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Simulator == nil {
		p.Simulator = weather.NewSimulator(nil, clockNow(clock))
	}

	l := &Layer{
		forecaster: p.OpenWeather,
		logger:     logger,
		metrics:    metrics,
	}

	l.weatherChain = fallback.New(DomainWeather, logger, metrics,
		fallback.Tier[geo.Coordinate, weather.Current]{Name: p.OpenWeather.Name(), Fetch: p.OpenWeather.Current},
		fallback.Tier[geo.Coordinate, weather.Current]{Name: p.Backend.Name(), Fetch: p.Backend.Weather},
		fallback.Tier[geo.Coordinate, weather.Current]{Name: "synthetic", Fetch: func(_ context.Context, c geo.Coordinate) (weather.Current, error) {
			return p.Simulator.Current(c), nil
		}},
	)

	aqChain := fallback.New(DomainAirQuality, logger, metrics,
		fallback.Tier[geo.Coordinate, airquality.Report]{Name: p.OpenWeather.Name(), Fetch: func(ctx context.Context, c geo.Coordinate) (airquality.Report, error) {
			s, err := p.OpenWeather.AirPollution(ctx, c)
			if err != nil {
				return airquality.Report{}, err
			}
			return airquality.FromOrdinal(s), nil
		}},
		fallback.Tier[geo.Coordinate, airquality.Report]{Name: p.AirVisual.Name(), Fetch: p.AirVisual.NearestCity},
		fallback.Tier[geo.Coordinate, airquality.Report]{Name: p.Backend.Name(), Fetch: p.Backend.AirQuality},
	)

	climateChain := fallback.New(DomainClimate, logger, metrics,
		fallback.Tier[geo.Polygon, climate.Reading]{Name: p.Agromonitoring.Name(), Fetch: p.Agromonitoring.Soil},
		fallback.Tier[geo.Polygon, climate.Reading]{Name: p.Backend.Name(), Fetch: p.Backend.Climate},
	)

	l.Weather = NewSource(DomainWeather, geo.Coordinate.Key, cfg.WeatherTTL,
		store.NewMemoryStore[weather.Report](clock, cfg.MaxEntries, cfg.MaxAge),
		l.resolveWeather, logger, metrics)
	l.AirQuality = NewSource(DomainAirQuality, geo.Coordinate.Key, cfg.AirQualityTTL,
		store.NewMemoryStore[airquality.Report](clock, cfg.MaxEntries, cfg.MaxAge),
		aqChain.Resolve, logger, metrics)
	l.Climate = NewSource(DomainClimate, geo.Polygon.Key, cfg.ClimateTTL,
		store.NewMemoryStore[climate.Reading](clock, cfg.MaxEntries, cfg.MaxAge),
		climateChain.Resolve, logger, metrics)

	return l
}

func clockNow(clock clockwork.Clock) func() time.Time {
	if clock == nil {
		return nil
	}
	return clock.Now
}

// resolveWeather fetches current conditions through the fallback chain and
// the forecast concurrently. A failed forecast leaves Forecast nil.
func (l *Layer) resolveWeather(ctx context.Context, c geo.Coordinate) (weather.Report, error) {
	var (
		current  weather.Current
		forecast *weather.Forecast
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, err := l.weatherChain.Resolve(gctx, c)
		if err != nil {
			return err
		}
		current = cur
		return nil
	})
	g.Go(func() error {
		f, err := l.forecaster.Forecast(gctx, c)
		if err != nil {
			l.logger.Info("forecast unavailable", zap.String("key", c.Key()), zap.Error(err))
			if l.metrics != nil {
				l.metrics.ForecastFailed.Inc()
			}
			return nil
		}
		forecast = &f
		return nil
	})
	if err := g.Wait(); err != nil {
		return weather.Report{}, err
	}

	return weather.Report{Current: current, Forecast: forecast}, nil
}

// WeatherBinding returns a binding over the weather source. The caller owns
// it and must Close it.
func (l *Layer) WeatherBinding(initial ...geo.Coordinate) *binding.Binding[geo.Coordinate, weather.Report] {
	return binding.New[geo.Coordinate, weather.Report](l.Weather, l.logger, l.metrics, initial...)
}

// AirQualityBinding returns a binding over the air-quality source.
func (l *Layer) AirQualityBinding(initial ...geo.Coordinate) *binding.Binding[geo.Coordinate, airquality.Report] {
	return binding.New[geo.Coordinate, airquality.Report](l.AirQuality, l.logger, l.metrics, initial...)
}

// ClimateBinding returns a binding over the climate source.
func (l *Layer) ClimateBinding(initial ...geo.Polygon) *binding.Binding[geo.Polygon, climate.Reading] {
	return binding.New[geo.Polygon, climate.Reading](l.Climate, l.logger, l.metrics, initial...)
}
