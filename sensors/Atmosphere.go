package sensors

import (
	"errors"
	"math"

	"github.com/gr-butler/telemetry/env"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/devices/v3/mcp9808"
	"periph.io/x/host/v3"
)

type RelHumidity float64
type TemperatureC float64

func (r RelHumidity) Float64() float64 {
	return float64(r)
}

func (t TemperatureC) Float64() float64 {
	return float64(t)
}

type senser interface {
	Sense(e *physic.Env) error
}

// Atmosphere reads humidity from a BME280 and temperature from an MCP9808
// when one is fitted, falling back to the BME280 otherwise.
type Atmosphere struct {
	PH   senser // BME280 Pressure & humidity
	Temp senser // MCP9808 temperature sensor
	bus  i2c.BusCloser
	cfg  env.SensorConfig

	lastHumidity    RelHumidity
	lastTemperature TemperatureC
}

func NewAtmosphere(cfg env.SensorConfig) *Atmosphere {
	return &Atmosphere{
		cfg:             cfg,
		lastHumidity:    RelHumidity(math.NaN()),
		lastTemperature: TemperatureC(math.NaN()),
	}
}

func (a *Atmosphere) Begin() error {
	if _, err := host.Init(); err != nil {
		logger.Errorf("Failed to init host drivers [%v]", err)
		return err
	}

	bus, err := i2creg.Open(a.cfg.Bus)
	if err != nil {
		logger.Errorf("Failed to open I²C [%v]", err)
		return err
	}

	logger.Infof("Starting BME280 reader [%x]", a.cfg.BME280Addr)
	bme, err := bmxx80.NewI2C(bus, a.cfg.BME280Addr, &bmxx80.DefaultOpts)
	if err != nil {
		logger.Errorf("Failed to initialize bme280: %v", err)
		_ = bus.Close()
		return err
	}
	a.bus = bus
	a.PH = bme

	if a.cfg.MCP9808Addr != 0 {
		logger.Infof("Starting MCP9808 Temperature Sensor [%x]", a.cfg.MCP9808Addr)
		tempSensor, err := mcp9808.New(bus, &mcp9808.Opts{Addr: a.cfg.MCP9808Addr, Res: mcp9808.High})
		if err != nil {
			// not critical, the BME280 also reads temperature
			logger.Warnf("Failed to open MCP9808 sensor, using BME280 temperature: %v", err)
		} else {
			a.Temp = tempSensor
		}
	}
	logger.Info("Sensors initialized.")
	return nil
}

func (a *Atmosphere) Close() error {
	if a.bus == nil {
		return errors.New("bus not open")
	}
	return a.bus.Close()
}

func (a *Atmosphere) ReadHumidity() float64 {
	a.lastHumidity = RelHumidity(math.NaN())
	em := physic.Env{}
	if a.PH == nil {
		return a.lastHumidity.Float64()
	}
	if err := a.PH.Sense(&em); err != nil {
		logger.Errorf("BME280 read failed [%v]", err)
		return a.lastHumidity.Float64()
	}
	logger.Debugf("Hum raw [%v]", em.Humidity)
	a.lastHumidity = RelHumidity(float64(em.Humidity) / float64(physic.PercentRH))
	return a.lastHumidity.Float64()
}

func (a *Atmosphere) ReadTemperature() float64 {
	a.lastTemperature = TemperatureC(math.NaN())
	dev := a.Temp
	name := "MCP9808"
	if dev == nil {
		dev = a.PH
		name = "BME280"
	}
	if dev == nil {
		return a.lastTemperature.Float64()
	}
	hiT := physic.Env{}
	if err := dev.Sense(&hiT); err != nil {
		logger.Errorf("%v read failed [%v]", name, err)
		return a.lastTemperature.Float64()
	}
	a.lastTemperature = TemperatureC(hiT.Temperature.Celsius())
	return a.lastTemperature.Float64()
}

func (a *Atmosphere) ComputeHeatIndex(isFahrenheit bool) float64 {
	t := a.lastTemperature.Float64()
	if isFahrenheit {
		t = ctof(t)
	}
	return HeatIndex(t, a.lastHumidity.Float64(), isFahrenheit)
}
