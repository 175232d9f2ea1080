package httpapi

import (
	"context"
	"time"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/climate"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// Simulated answers every upstream call from the synthetic generators. It
// backs the /api service when no real provider should be contacted.
type Simulated struct {
	Weather    *weather.Simulator
	AirQuality *airquality.Simulator
	Climate    *climate.Simulator
	Now        func() time.Time
}

// NewSimulated returns a Simulated upstream with randomly seeded generators.
func NewSimulated() *Simulated {
	return &Simulated{
		Weather:    weather.NewSimulator(nil, nil),
		AirQuality: airquality.NewSimulator(nil),
		Climate:    climate.NewSimulator(nil),
		Now:        time.Now,
	}
}

func (s *Simulated) Current(_ context.Context, c geo.Coordinate) (weather.Current, error) {
	return s.Weather.Current(c), nil
}

func (s *Simulated) AirPollution(_ context.Context, _ geo.Coordinate) (airquality.Sample, error) {
	return s.AirQuality.Sample(s.Now()), nil
}

func (s *Simulated) Soil(_ context.Context, _ geo.Polygon) (climate.Reading, error) {
	return s.Climate.Reading(), nil
}
