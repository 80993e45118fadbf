package device

import (
	"math/rand"
	"sync"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

// Sensors produces simulated sensor values. The random source is injected
// so tests can seed it for deterministic runs.
type Sensors struct {
	mu  sync.Mutex
	rng *rand.Rand

	mode models.LocationMode
	lat  float64
	lon  float64

	battery int
}

// NewSensors creates a sensor source. For cellid mode lat/lon are unused.
func NewSensors(rng *rand.Rand, mode models.LocationMode, lat, lon float64) *Sensors {
	return &Sensors{
		rng:     rng,
		mode:    mode,
		lat:     lat,
		lon:     lon,
		battery: 100,
	}
}

// Temperature returns a simulated temperature in the 18-24°C band.
func (s *Sensors) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return round1(18.0 + s.rng.Float64()*6.0)
}

// Humidity returns a simulated relative humidity in the 35-50% band.
func (s *Sensors) Humidity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return round1(35.0 + s.rng.Float64()*15.0)
}

// Battery decays the battery level and returns it. 低于5%时模拟换电复位
func (s *Sensors) Battery() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() > 0.5 {
		s.battery--
	}
	if s.battery < 5 {
		s.battery = 100
	}
	return uint8(s.battery)
}

// Steps returns a simulated step count for a motion episode of the given
// duration in seconds.
func (s *Sensors) Steps(durationSec int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if durationSec < 1 {
		durationSec = 1
	}
	rate := 0.8 + s.rng.Float64()*1.0
	steps := int(rate*float64(durationSec)) + s.rng.Intn(11) - 5
	if steps < 0 {
		steps = 0
	}
	return uint32(steps)
}

// Location drifts the simulated position slightly and returns the sample.
// cellid 模式下位置静止, 坐标字段为零值
func (s *Sensors) Location() models.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == models.LocationModeCellID {
		return models.LocationSample{Mode: models.LocationModeCellID}
	}
	s.lat += (s.rng.Float64() - 0.5) * 0.0002
	s.lon += 0.0001 + s.rng.Float64()*0.0002
	return models.LocationSample{
		Mode:      models.LocationModeSimulated,
		Latitude:  round6(s.lat),
		Longitude: round6(s.lon),
	}
}

// Chance reports true with the given probability.
func (s *Sensors) Chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round6(v float64) float64 {
	if v < 0 {
		return float64(int(v*1e6-0.5)) / 1e6
	}
	return float64(int(v*1e6+0.5)) / 1e6
}
