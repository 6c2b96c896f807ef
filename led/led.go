package led

import (
	"sync"
	"time"

	"github.com/gr-butler/telemetry/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LED shows the agent's state: lit while the link is being joined, a short
// flash per submitted reading, a flicker when a reading was lost.
type LED struct {
	Name    string
	lock    *sync.Mutex
	on      bool
	pulse   time.Duration
	gpioPin gpio.PinIO
}

// ByName looks the pin up in the periph registry. host.Init must have run.
func ByName(name string, GPIOPin string) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", GPIOPin, name)
	pin := gpioreg.ByName(GPIOPin)
	if pin == nil {
		// a missing LED is not critical
		logger.Errorf("Failed to find %v pin", GPIOPin)
		return New(name, nil)
	}
	return New(name, pin)
}

func New(name string, pin gpio.PinIO) *LED {
	l := &LED{
		Name:    name,
		lock:    &sync.Mutex{},
		pulse:   env.LEDFlashDuration,
		gpioPin: pin,
	}
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.Low)
	}
	return l
}

func (l *LED) On() {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Off() {
	if l == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.Low)
	}
}

func (l *LED) Flash() {
	if l == nil || l.gpioPin == nil {
		return
	}
	if !l.lock.TryLock() {
		// a flash is already in progress, this one can go
		logger.Debugf("LED Locked[%v]", l.Name)
		return
	}
	defer l.lock.Unlock()
	// if the LED is currently off, then flash on
	if !l.on {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(l.pulse)
		_ = l.gpioPin.Out(gpio.Low)
	} else {
		// 'off' flash
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(l.pulse)
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Flicker(pulses int) {
	if l == nil || l.gpioPin == nil {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	for i := 0; i < pulses; i++ {
		_ = l.gpioPin.Out(gpio.High)
		time.Sleep(l.pulse)
		_ = l.gpioPin.Out(gpio.Low)
		time.Sleep(l.pulse)
	}
	if l.on {
		_ = l.gpioPin.Out(gpio.High)
	}
}
