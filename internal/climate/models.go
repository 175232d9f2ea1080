package climate

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Reading is the normalized soil/vegetation result for a parcel.
type Reading struct {
	SoilMoisture  float64 `json:"soilMoisture"`  // percent
	NDVI          float64 `json:"ndvi"`          // 0..1
	Precipitation float64 `json:"precipitation"` // mm
}

// SoilMoistureCategory buckets the soil moisture percentage.
func (r Reading) SoilMoistureCategory() string {
	switch {
	case r.SoilMoisture < 20:
		return "very dry"
	case r.SoilMoisture < 35:
		return "dry"
	case r.SoilMoisture < 50:
		return "moderate"
	case r.SoilMoisture < 65:
		return "moist"
	default:
		return "very moist"
	}
}

// NDVICategory buckets the vegetation index.
func (r Reading) NDVICategory() string {
	switch {
	case r.NDVI < 0.2:
		return "sparse vegetation"
	case r.NDVI < 0.4:
		return "moderate vegetation"
	case r.NDVI < 0.6:
		return "healthy vegetation"
	default:
		return "dense vegetation"
	}
}

// PrecipitationCategory buckets recent precipitation.
func (r Reading) PrecipitationCategory() string {
	switch {
	case r.Precipitation < 5:
		return "negligible"
	case r.Precipitation < 10:
		return "light"
	case r.Precipitation < 20:
		return "moderate"
	default:
		return "heavy"
	}
}

// WeatherSignals are the atmospheric inputs DeriveFromWeather needs.
type WeatherSignals struct {
	Humidity float64
	Pressure float64
	Clouds   float64
	Rain1h   float64
	Rain3h   float64
}

// DeriveFromWeather estimates a reading from current weather when no soil
// provider answers. Soil moisture is clamped to [20, 70]; NDVI scales with a
// growing-season factor (April-September).
func DeriveFromWeather(w WeatherSignals, month time.Month) Reading {
	moisture := w.Humidity - 10 + (w.Pressure-1013)/10
	moisture = math.Max(20, math.Min(70, moisture))

	season := 0.5
	if month >= time.April && month <= time.September {
		season = 0.8
	}
	ndvi := (1 - w.Clouds/200) * season

	precip := w.Rain3h
	if precip <= 0 {
		precip = w.Rain1h * 3
	}

	return Reading{
		SoilMoisture:  round(moisture, 1),
		NDVI:          round(ndvi, 2),
		Precipitation: round(precip, 1),
	}
}

// Simulator generates synthetic readings in realistic ranges.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a Simulator; a nil rng seeds one randomly.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{rng: rng}
}

// Reading returns soil moisture in [20, 60), NDVI in [0.3, 0.8) and precipitation in [0, 30).
func (s *Simulator) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Reading{
		SoilMoisture:  round(20+s.rng.Float64()*40, 1),
		NDVI:          round(0.3+s.rng.Float64()*0.5, 2),
		Precipitation: round(s.rng.Float64()*30, 1),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
