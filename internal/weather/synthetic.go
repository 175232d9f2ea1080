package weather

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/i474232898/agritech-envdata/internal/geo"
)

var simulatedSkies = []struct {
	description string
	icon        string
}{
	{"clear sky", "01d"},
	{"few clouds", "02d"},
	{"scattered clouds", "03d"},
	{"broken clouds", "04d"},
	{"shower rain", "09d"},
	{"rain", "10d"},
	{"thunderstorm", "11d"},
	{"mist", "50d"},
}

// Simulator produces plausible readings when every network tier has failed.
// It cannot fail.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator returns a Simulator. A nil rng seeds one randomly; a nil now uses time.Now.
func NewSimulator(rng *rand.Rand, now func() time.Time) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{rng: rng, now: now}
}

func (s *Simulator) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Current synthesizes a current-weather reading for c.
func (s *Simulator) Current(c geo.Coordinate) Current {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sky := simulatedSkies[s.rng.IntN(len(simulatedSkies))]

	cur := Current{
		Temperature:   s.between(15, 25),
		Humidity:      float64(40 + s.rng.IntN(41)),
		WindSpeed:     s.between(1, 10),
		WindDirection: float64(s.rng.IntN(360)),
		Description:   sky.description,
		Icon:          sky.icon,
		Condition:     ConditionFromIcon(sky.icon),
		Pressure:      float64(1010 + s.rng.IntN(21)),
		Visibility:    float64(8000 + s.rng.IntN(2001)),
		Clouds:        float64(s.rng.IntN(101)),
		Sunrise:       day.Add(6 * time.Hour).Unix(),
		Sunset:        day.Add(20 * time.Hour).Unix(),
		Country:       "Unknown",
		CityName:      c.String(),
	}
	cur.FeelsLike = cur.Temperature - s.between(0, 2)
	if s.rng.Float64() > 0.7 {
		rain := s.between(0, 5)
		cur.Rain1h = &rain
	}
	return cur
}
