package sensors

// Reader is the temperature and humidity driver used by the sampling loop.
// A failed read is reported as NaN, never as an error.
type Reader interface {
	Begin() error
	ReadHumidity() float64
	ReadTemperature() float64
	// ComputeHeatIndex uses the values from the last humidity and
	// temperature reads.
	ComputeHeatIndex(isFahrenheit bool) float64
}
