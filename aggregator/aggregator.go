package aggregator

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/gr-butler/telemetry/buffer"
	"github.com/gr-butler/telemetry/sensors"
	logger "github.com/sirupsen/logrus"
)

// SmoothedReading is the mean of the valid slots of one batch. Valid is
// false when no slot could be read, in which case the values are zero and
// must not be submitted.
type SmoothedReading struct {
	Humidity    float64 `json:"humidity_RH"`
	Temperature float64 `json:"temperature_C"`
	HeatIndex   float64 `json:"heat_index_C"`
	Valid       bool    `json:"valid"`
	Samples     int     `json:"samples"`
}

func (r SmoothedReading) String() string {
	if !r.Valid {
		return "no valid samples"
	}
	return fmt.Sprintf("RH: %.0f %%, T: %.2f C, HIC: %.2f C (%d samples)", r.Humidity, r.Temperature, r.HeatIndex, r.Samples)
}

// MarshalJSON writes NaN values, which json cannot carry, as null.
func (r SmoothedReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Humidity    *float64 `json:"humidity_RH"`
		Temperature *float64 `json:"temperature_C"`
		HeatIndex   *float64 `json:"heat_index_C"`
		Valid       bool     `json:"valid"`
		Samples     int      `json:"samples"`
	}{
		Humidity:    finite(r.Humidity),
		Temperature: finite(r.Temperature),
		HeatIndex:   finite(r.HeatIndex),
		Valid:       r.Valid,
		Samples:     r.Samples,
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Collect reads the sensor once into slot pos. Spacing between calls is up
// to the caller.
func Collect(pos int, b *buffer.Batch, s sensors.Reader) (buffer.RawSample, error) {
	sample := buffer.RawSample{
		Humidity:    s.ReadHumidity(),
		Temperature: s.ReadTemperature(),
		HeatIndex:   s.ComputeHeatIndex(false),
	}
	if err := b.Set(pos, sample); err != nil {
		return sample, err
	}
	logger.Debugf("\tMeasure %d: %v", pos, sample)
	return sample, nil
}

// Summarize averages every slot where humidity and temperature were read.
// The heat index of a valid slot is summed as is, so a NaN there makes the
// smoothed heat index NaN too.
func Summarize(b *buffer.Batch) SmoothedReading {
	var rh, temp, hic float64
	valid := 0
	samples, _ := b.GetRawData()
	for _, s := range samples {
		if !s.Valid() {
			continue
		}
		rh += s.Humidity
		temp += s.Temperature
		hic += s.HeatIndex
		valid++
	}
	if valid == 0 {
		return SmoothedReading{}
	}
	n := float64(valid)
	return SmoothedReading{
		Humidity:    rh / n,
		Temperature: temp / n,
		HeatIndex:   hic / n,
		Valid:       true,
		Samples:     valid,
	}
}
