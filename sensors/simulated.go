package sensors

import (
	"math"
	"math/rand"

	logger "github.com/sirupsen/logrus"
)

// Simulated stands in for the hardware in test mode. It wanders around a
// base reading and fails a read now and then, like a DHT on a long cable.
type Simulated struct {
	Humidity    float64
	Temperature float64
	FailureRate float64

	rnd             *rand.Rand
	lastHumidity    float64
	lastTemperature float64
}

func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		Humidity:        60,
		Temperature:     20,
		FailureRate:     0.1,
		rnd:             rand.New(rand.NewSource(seed)),
		lastHumidity:    math.NaN(),
		lastTemperature: math.NaN(),
	}
}

func (s *Simulated) Begin() error {
	logger.Info("Using simulated sensor")
	return nil
}

func (s *Simulated) ReadHumidity() float64 {
	s.lastHumidity = s.read(s.Humidity, 2)
	return s.lastHumidity
}

func (s *Simulated) ReadTemperature() float64 {
	s.lastTemperature = s.read(s.Temperature, 0.5)
	return s.lastTemperature
}

func (s *Simulated) ComputeHeatIndex(isFahrenheit bool) float64 {
	t := s.lastTemperature
	if isFahrenheit {
		t = ctof(t)
	}
	return HeatIndex(t, s.lastHumidity, isFahrenheit)
}

func (s *Simulated) read(base float64, spread float64) float64 {
	if s.rnd.Float64() < s.FailureRate {
		return math.NaN()
	}
	return base + (s.rnd.Float64()*2-1)*spread
}
