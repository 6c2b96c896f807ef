package main

import (
	"context"

	"github.com/gr-butler/telemetry/aggregator"
	"github.com/gr-butler/telemetry/thingspeak"
	logger "github.com/sirupsen/logrus"
)

// report hands a valid reading to ThingSpeak and the optional mirror. A
// failure only costs this reading.
func (w *station) report(ctx context.Context, r aggregator.SmoothedReading) {
	Prom_humidity.Set(r.Humidity)
	Prom_temperature.Set(r.Temperature)
	Prom_heatIndex.Set(r.HeatIndex)

	if w.submitter == nil {
		logger.Infof("Submission disabled, reading [%v]", r)
	} else {
		err := w.submitter.Submit(ctx, r)
		outcome := thingspeak.Outcome(err)
		Prom_submissions.WithLabelValues(outcome).Inc()
		w.latest.SetOutcome(outcome, w.clock.Now())
		if err != nil {
			logger.Warnf("Reading dropped [%v]", err)
			w.status.Flicker(2)
		} else {
			w.status.Flash()
		}
	}

	if w.mirror != nil {
		if err := w.mirror.Publish(r, w.clock.Now()); err != nil {
			logger.Warnf("Failed to publish reading [%v]", err)
		}
	}
}
