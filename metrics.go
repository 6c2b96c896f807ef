package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

var Prom_humidity = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "relative_humidity",
		Help: "Smoothed relative humidity %",
	},
)

var Prom_temperature = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "temperature",
		Help: "Smoothed temperature C",
	},
)

var Prom_heatIndex = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "heat_index",
		Help: "Smoothed heat index C",
	},
)

var Prom_validSamples = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "valid_samples",
		Help: "Number of valid samples in the last batch",
	},
)

var Prom_failedSamples = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "failed_samples_total",
		Help: "Samples where humidity or temperature could not be read",
	},
)

var Prom_submissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "thingspeak_submissions_total",
		Help: "ThingSpeak submissions by outcome",
	},
	[]string{"outcome"},
)

var Prom_reconnects = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "wifi_reconnects_total",
		Help: "Fresh WiFi joins",
	},
)

var Prom_droppedCycles = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dropped_cycles_total",
		Help: "Cycles without a single valid sample",
	},
)

// called by prometheus
func init() {
	logger.Infof("%v: Initialize prometheus...", time.Now().Format(time.RFC822))
	prometheus.MustRegister(
		Prom_humidity,
		Prom_temperature,
		Prom_heatIndex,
		Prom_validSamples,
		Prom_failedSamples,
		Prom_submissions,
		Prom_reconnects,
		Prom_droppedCycles)
}
