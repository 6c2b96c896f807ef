package sensors

import "math"

// HeatIndex returns the apparent temperature for the given temperature and
// relative humidity, in the same scale as the input. Steadman's simple
// formula is used below 80F, Rothfusz' regression above it.
// https://www.wpc.ncep.noaa.gov/html/heatindex_equation.shtml
func HeatIndex(temperature float64, humidity float64, isFahrenheit bool) float64 {
	if math.IsNaN(temperature) || math.IsNaN(humidity) {
		return math.NaN()
	}
	t := temperature
	if !isFahrenheit {
		t = ctof(temperature)
	}

	hi := 0.5 * (t + 61.0 + ((t - 68.0) * 1.2) + (humidity * 0.094))

	if hi > 79 {
		hi = -42.379 +
			2.04901523*t +
			10.14333127*humidity +
			-0.22475541*t*humidity +
			-0.00683783*math.Pow(t, 2) +
			-0.05481717*math.Pow(humidity, 2) +
			0.00122874*math.Pow(t, 2)*humidity +
			0.00085282*t*math.Pow(humidity, 2) +
			-0.00000199*math.Pow(t, 2)*math.Pow(humidity, 2)

		if humidity < 13 && t >= 80.0 && t <= 112.0 {
			hi -= ((13.0 - humidity) * 0.25) * math.Sqrt((17.0-math.Abs(t-95.0))*0.05882)
		} else if humidity > 85.0 && t >= 80.0 && t <= 87.0 {
			hi += ((humidity - 85.0) * 0.1) * ((87.0 - t) * 0.2)
		}
	}

	if isFahrenheit {
		return hi
	}
	return ftoc(hi)
}

func ctof(c float64) float64 {
	//(0°C × 9/5) + 32 = 32°F
	return ((c * 9 / 5) + 32)
}

func ftoc(f float64) float64 {
	return (f - 32) * 5 / 9
}
