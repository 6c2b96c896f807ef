package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/telemetry/broker"
	"github.com/gr-butler/telemetry/data"
	"github.com/gr-butler/telemetry/env"
	"github.com/gr-butler/telemetry/led"
	"github.com/gr-butler/telemetry/network"
	"github.com/gr-butler/telemetry/sensors"
	"github.com/gr-butler/telemetry/thingspeak"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/host/v3"

	logger "github.com/sirupsen/logrus"
)

const version = "GRB-Telemetry-1.0.0"

type webdata struct {
	TimeNow string `json:"time"`
	Version string `json:"version"`
	data.Snapshot
}

func main() {
	logger.Infof("Starting telemetry agent [%v]", version)

	args := env.Args{
		Test:       flag.Bool("test", false, "test mode, simulated sensor and radio"),
		NoSubmit:   flag.Bool("nosubmit", false, "do not send data to ThingSpeak"),
		Verbose:    flag.Bool("verbose", false, "log every sample and poll"),
		ConfigFile: flag.String("config", "", "yaml profile"),
		EnvFile:    flag.String("env", ".env", "file with WIFI_SSID, WIFI_PASSWORD and CHANNEL_API_KEY"),
	}
	flag.Parse()

	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if *args.Test {
		logger.Info("TEST MODE")
	}

	if err := env.LoadDotEnv(*args.EnvFile); err != nil {
		logger.Fatalf("Failed to load secrets [%v]", err)
	}
	cfg, err := env.Load(*args.ConfigFile)
	if err != nil {
		logger.Fatalf("Failed to load config [%v]", err)
	}
	cfg.ApplyEnvironment()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config [%v]", err)
	}
	logger.Infof("Profile [%v], [%d] samples every [%v]", cfg.Profile, cfg.Schedule.Samples, cfg.Interval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := newStation(cfg, args)
	if p, ok := w.mirror.(*broker.Publisher); ok {
		defer p.Close()
	}
	if a, ok := w.sensor.(*sensors.Atmosphere); ok {
		defer func() { _ = a.Close() }()
	}

	srv := w.startWebservice(cfg)

	err = w.Run(ctx)
	if srv != nil {
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second*5)
		_ = srv.Shutdown(shutdown)
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Agent stopped [%v]", err)
	}
	logger.Info("Exiting...")
}

func newStation(cfg *env.Config, args env.Args) *station {
	clock := clockwork.NewRealClock()
	w := &station{
		cfg:    cfg,
		latest: data.CreateLatest(),
		clock:  clock,
	}

	var radio network.Radio
	if *args.Test {
		w.sensor = sensors.NewSimulated(time.Now().UnixNano())
		radio = network.NewSimulatedRadio(3)
	} else {
		w.sensor = sensors.NewAtmosphere(cfg.Sensor)
		radio = network.NewHostRadio(cfg.Wifi.Interface, cfg.Wifi.Manage)
		if _, err := host.Init(); err != nil {
			logger.Errorf("Failed to init host drivers, no status LED [%v]", err)
		} else {
			w.status = led.ByName("status", cfg.StatusLed)
		}
	}
	w.net = network.NewManager(radio, cfg.Wifi.SSID, cfg.Wifi.Password, cfg.Wifi.Poll, clock)
	w.net.SetJoinTimeout(cfg.Wifi.JoinTimeout)

	if *args.NoSubmit {
		logger.Info("ThingSpeak submission disabled")
	} else {
		if cfg.ThingSpeak.APIKey == "" {
			logger.Error("CHANNEL_API_KEY not set! ThingSpeak will reject the data.")
		}
		w.submitter = thingspeak.NewSubmitter(cfg.ThingSpeak, nil, clock)
	}

	if cfg.Mqtt.Broker != "" {
		p, err := broker.Connect(cfg.Mqtt)
		if err != nil {
			// the mirror is optional, carry on without it
			logger.Errorf("MQTT disabled [%v]", err)
		} else {
			w.mirror = p
		}
	}
	return w
}

func (w *station) startWebservice(cfg *env.Config) *http.Server {
	if cfg.Listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handler)
	if cfg.SendPromData {
		logger.Info("Serving prometheus metrics")
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		logger.Infof("Starting webservice on [%v]", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// the agent does not need the status page to do its job
			logger.Errorf("Webservice stopped [%v]", err)
		}
	}()
	return srv
}

func (w *station) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	wd := webdata{
		TimeNow:  time.Now().Format(time.RFC822),
		Version:  version,
		Snapshot: w.latest.Get(),
	}

	js, err := json.Marshal(wd)
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Debugf("Web read: \n[%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
