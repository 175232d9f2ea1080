package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/agritech-envdata/internal/acquisition"
	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/binding"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// jobTimeout bounds one refresh of one location.
const jobTimeout = 30 * time.Second

// tracked holds the long-lived bindings of one location.
type tracked struct {
	coord      geo.Coordinate
	weather    *binding.Binding[geo.Coordinate, weather.Report]
	airQuality *binding.Binding[geo.Coordinate, airquality.Report]
}

// Scheduler periodically refetches weather and air quality for tracked
// locations so their cache entries stay warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	layer     *acquisition.Layer
	locations []*tracked
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. Duplicate locations that share a cache key
// are tracked once.
func New(locations []geo.Coordinate, interval time.Duration, layer *acquisition.Layer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		layer:     layer,
		interval:  interval,
		logger:    logger.With(zap.String("component", "scheduler")),
	}

	seen := make(map[string]bool)
	for _, c := range locations {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		s.locations = append(s.locations, &tracked{
			coord:      c,
			weather:    layer.WeatherBinding(),
			airQuality: layer.AirQualityBinding(),
		})
	}
	return s
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("no locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval < time.Minute {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refetches every tracked location concurrently and waits for all.
func (s *Scheduler) RunOnce() {
	s.logger.Info("refreshing tracked locations", zap.Int("locations", len(s.locations)))

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			ws := loc.weather.Refetch(ctx, loc.coord)
			as := loc.airQuality.Refetch(ctx, loc.coord)
			if as.Error != "" {
				s.logger.Warn("air quality refresh failed", zap.String("key", loc.coord.Key()), zap.String("error", as.Error))
			}
			if ws.Data != nil {
				s.logger.Debug("weather refreshed",
					zap.String("key", loc.coord.Key()),
					zap.Float64("temperature", ws.Data.Current.Temperature),
				)
			}
		}()
	}
	wg.Wait()
	s.logger.Info("completed refresh")
}

// Locations returns the tracked coordinates.
func (s *Scheduler) Locations() []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(s.locations))
	for _, loc := range s.locations {
		out = append(out, loc.coord)
	}
	return out
}

// Stop stops the scheduler, cancels future jobs and tears down the bindings.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	for _, loc := range s.locations {
		loc.weather.Close()
		loc.airQuality.Close()
	}
}

// ResolveLocations merges explicit coordinates with geocoded places. Places
// the resolver cannot find are logged and skipped.
func ResolveLocations(coords []geo.Coordinate, places []geo.Place, resolver geo.Resolver, logger *zap.Logger) []geo.Coordinate {
	out := append([]geo.Coordinate(nil), coords...)
	if len(places) == 0 || resolver == nil {
		return out
	}

	resolved, errs := geo.ResolveAll(resolver, places)
	for _, err := range errs {
		logger.Warn("could not geocode tracked city", zap.Error(err))
	}
	return append(out, resolved...)
}
