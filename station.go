package main

import (
	"context"
	"time"

	"github.com/gr-butler/telemetry/aggregator"
	"github.com/gr-butler/telemetry/buffer"
	"github.com/gr-butler/telemetry/data"
	"github.com/gr-butler/telemetry/env"
	"github.com/gr-butler/telemetry/led"
	"github.com/gr-butler/telemetry/network"
	"github.com/gr-butler/telemetry/sensors"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

type submitter interface {
	Submit(ctx context.Context, r aggregator.SmoothedReading) error
}

type mirror interface {
	Publish(r aggregator.SmoothedReading, at time.Time) error
}

// station runs the sampling loop. Everything here happens on one goroutine;
// only latest is shared with the web handlers.
type station struct {
	cfg       *env.Config
	sensor    sensors.Reader
	net       *network.Manager
	submitter submitter // nil when submission is disabled
	mirror    mirror    // nil without a broker
	status    *led.LED
	latest    *data.Latest
	clock     clockwork.Clock

	reconnects  int
	sensorReady bool
}

func (w *station) Run(ctx context.Context) error {
	logger.Infof("Waiting [%v] before start", w.cfg.StartDelay())
	if err := w.sleep(ctx, w.cfg.StartDelay()); err != nil {
		return err
	}

	w.startSensor()
	if err := w.net.EnsureConnected(ctx); err != nil {
		return err
	}

	for {
		if _, err := w.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("Cycle failed [%v]", err)
		}
	}
}

// runCycle takes one batch, submits its mean and idles until the interval
// has passed since the cycle started.
func (w *station) runCycle(ctx context.Context) (aggregator.SmoothedReading, error) {
	start := w.clock.Now()

	w.status.On()
	err := w.net.EnsureConnected(ctx)
	w.status.Off()
	if err != nil {
		return aggregator.SmoothedReading{}, err
	}
	w.countReconnects()
	if !w.sensorReady {
		w.startSensor()
	}

	batch := buffer.NewBatch(w.cfg.Schedule.Samples)
	spacing := w.cfg.SampleSpacing()
	for i := 0; i < batch.GetSize(); i++ {
		if i > 0 {
			if err := w.sleep(ctx, spacing); err != nil {
				return aggregator.SmoothedReading{}, err
			}
		}
		if _, err := aggregator.Collect(i, batch, w.sensor); err != nil {
			return aggregator.SmoothedReading{}, err
		}
	}

	reading := aggregator.Summarize(batch)
	w.latest.SetReading(reading, w.clock.Now())
	failed := batch.GetSize() - batch.ValidCount()
	Prom_validSamples.Set(float64(reading.Samples))
	Prom_failedSamples.Add(float64(failed))
	if failed > 0 {
		logger.Debugf("[%d] of [%d] samples failed", failed, batch.GetSize())
	}
	if reading.Valid {
		w.report(ctx, reading)
	} else {
		logger.Warnf("No valid samples in [%d], nothing to submit", batch.GetSize())
		Prom_droppedCycles.Inc()
		w.status.Flicker(3)
	}

	if w.cfg.LongRest() {
		w.net.Rest()
	}

	remaining := w.cfg.Interval() - w.clock.Since(start)
	if remaining > 0 {
		logger.Debugf("Idle for [%v]", remaining)
		if err := w.sleep(ctx, remaining); err != nil {
			return reading, err
		}
	}
	return reading, nil
}

// startSensor is retried every cycle until it succeeds. Until then every
// read fails and the cycles are dropped.
func (w *station) startSensor() {
	if err := w.sensor.Begin(); err != nil {
		logger.Errorf("Failed to start sensor [%v]", err)
		return
	}
	w.sensorReady = true
}

func (w *station) countReconnects() {
	n := w.net.Reconnects()
	if n > w.reconnects {
		Prom_reconnects.Add(float64(n - w.reconnects))
		w.reconnects = n
	}
}

func (w *station) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(d):
		return nil
	}
}
