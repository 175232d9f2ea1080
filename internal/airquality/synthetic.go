package airquality

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Simulator produces plausible ordinal samples for offline runs.
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

func (s *Simulator) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Sample returns an index in 1-5 with concentrations in typical urban ranges.
func (s *Simulator) Sample(now time.Time) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Sample{
		Index: 1 + s.rng.IntN(5),
		Components: Components{
			CO:   s.between(200, 1000),
			NO:   s.between(0, 10),
			NO2:  s.between(5, 60),
			O3:   s.between(20, 120),
			SO2:  s.between(1, 20),
			PM25: s.between(2, 35),
			PM10: s.between(5, 60),
			NH3:  s.between(0, 10),
		},
		Timestamp: now.Unix(),
	}
}
