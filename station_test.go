package main

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gr-butler/telemetry/aggregator"
	"github.com/gr-butler/telemetry/data"
	"github.com/gr-butler/telemetry/env"
	"github.com/gr-butler/telemetry/network"
	"github.com/gr-butler/telemetry/thingspeak"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

// scriptedSensor replays rows of humidity, temperature and heat index.
type scriptedSensor struct {
	rows  [][3]float64
	pos   int
	row   [3]float64
	began bool
}

func (s *scriptedSensor) Begin() error {
	s.began = true
	return nil
}

func (s *scriptedSensor) ReadHumidity() float64 {
	s.row = s.rows[s.pos%len(s.rows)]
	s.pos++
	return s.row[0]
}

func (s *scriptedSensor) ReadTemperature() float64 { return s.row[1] }

func (s *scriptedSensor) ComputeHeatIndex(isFahrenheit bool) float64 { return s.row[2] }

// deadSensor never starts and every read fails.
type deadSensor struct {
	begins int
}

func (d *deadSensor) Begin() error {
	d.begins++
	return errors.New("no BME280 at 0x76")
}

func (d *deadSensor) ReadHumidity() float64 { return nan }

func (d *deadSensor) ReadTemperature() float64 { return nan }

func (d *deadSensor) ComputeHeatIndex(isFahrenheit bool) float64 { return nan }

type recordingSubmitter struct {
	readings []aggregator.SmoothedReading
	err      error
}

func (r *recordingSubmitter) Submit(ctx context.Context, reading aggregator.SmoothedReading) error {
	r.readings = append(r.readings, reading)
	return r.err
}

type recordingMirror struct {
	readings []aggregator.SmoothedReading
}

func (r *recordingMirror) Publish(reading aggregator.SmoothedReading, at time.Time) error {
	r.readings = append(r.readings, reading)
	return nil
}

func testStation(rows [][3]float64) (*station, *recordingSubmitter, *network.SimulatedRadio) {
	cfg := env.Default()
	cfg.Profile = env.ProfileDebug
	cfg.Schedule.StartDelaySeconds = 0
	cfg.Schedule.IntervalSeconds = 5 // 50ms, samples 10ms apart

	clock := clockwork.NewRealClock()
	radio := network.NewSimulatedRadio(2)
	sub := &recordingSubmitter{}
	w := &station{
		cfg:       cfg,
		sensor:    &scriptedSensor{rows: rows},
		net:       network.NewManager(radio, "shed", "pw", time.Millisecond, clock),
		submitter: sub,
		latest:    data.CreateLatest(),
		clock:     clock,
	}
	return w, sub, radio
}

func Test_station_runCycle(t *testing.T) {
	w, sub, _ := testStation([][3]float64{
		{60, 20, 21},
		{nan, nan, nan},
		{62, 22, 23},
		{58, 19, 20},
		{61, 21, 22},
	})
	mirror := &recordingMirror{}
	w.mirror = mirror

	failed := testutil.ToFloat64(Prom_failedSamples)
	start := time.Now()
	r, err := w.runCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, failed+1, testutil.ToFloat64(Prom_failedSamples))

	assert.GreaterOrEqual(t, time.Since(start), w.cfg.Interval())
	require.True(t, r.Valid)
	assert.Equal(t, 4, r.Samples)
	assert.InDelta(t, 60.25, r.Humidity, 1e-9)
	assert.InDelta(t, 20.5, r.Temperature, 1e-9)
	assert.InDelta(t, 21.5, r.HeatIndex, 1e-9)

	require.Len(t, sub.readings, 1)
	assert.Equal(t, r, sub.readings[0])
	require.Len(t, mirror.readings, 1)

	snap := w.latest.Get()
	assert.Equal(t, r, snap.Reading)
	assert.Equal(t, "sent", snap.Outcome)
	assert.Equal(t, network.Connected, w.net.State())
}

func Test_station_runCycleNoValidSamples(t *testing.T) {
	w, sub, _ := testStation([][3]float64{{nan, nan, nan}})
	mirror := &recordingMirror{}
	w.mirror = mirror

	r, err := w.runCycle(context.Background())
	require.NoError(t, err)

	assert.False(t, r.Valid)
	assert.Empty(t, sub.readings)
	assert.Empty(t, mirror.readings)
	assert.Equal(t, 1, w.latest.Get().DroppedCycles)
}

func Test_station_submissionFailureIsAbsorbed(t *testing.T) {
	w, sub, _ := testStation([][3]float64{{55, 18, 17.6}})
	sub.err = thingspeak.ErrConnectFailed

	_, err := w.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "connect_failed", w.latest.Get().Outcome)

	sub.err = nil
	_, err = w.runCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, sub.readings, 2)
	assert.Equal(t, "sent", w.latest.Get().Outcome)
}

func Test_station_reconnectsEveryCycle(t *testing.T) {
	w, _, radio := testStation([][3]float64{{55, 18, 17.6}})

	_, err := w.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, w.reconnects)

	radio.Drop()
	_, err = w.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, w.reconnects)
	assert.Equal(t, 2, radio.Begins)
}

func Test_station_submissionDisabled(t *testing.T) {
	w, _, _ := testStation([][3]float64{{55, 18, 17.6}})
	w.submitter = nil

	r, err := w.runCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, "", w.latest.Get().Outcome)
}

func Test_station_longRestDropsTheLink(t *testing.T) {
	w, _, radio := testStation([][3]float64{{55, 18, 17.6}})
	// any real interval above the threshold counts as a long rest
	w.cfg.Schedule.LongRestSeconds = 0

	_, err := w.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, network.Disconnected, w.net.State())
	assert.Equal(t, network.Disconnected, radio.Status())
}

func Test_station_Run(t *testing.T) {
	w, sub, _ := testStation([][3]float64{{55, 18, 17.6}})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*180)
	defer cancel()

	err := w.Run(ctx)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, w.sensor.(*scriptedSensor).began)
	// 50ms cycles
	assert.GreaterOrEqual(t, len(sub.readings), 2)
}

func Test_station_RunWithoutSensor(t *testing.T) {
	w, sub, _ := testStation(nil)
	sensor := &deadSensor{}
	w.sensor = sensor
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*180)
	defer cancel()

	err := w.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, sub.readings)
	snap := w.latest.Get()
	assert.GreaterOrEqual(t, snap.DroppedCycles, 2)
	// start up plus one retry per cycle
	assert.GreaterOrEqual(t, sensor.begins, 3)
	assert.False(t, w.sensorReady)
}

func Test_station_sensorStartIsRetried(t *testing.T) {
	w, sub, _ := testStation([][3]float64{{55, 18, 17.6}})
	w.startSensor()
	require.True(t, w.sensorReady)
	w.sensorReady = false

	_, err := w.runCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, w.sensorReady)
	assert.Len(t, sub.readings, 1)
}

func Test_station_RunCancelledDuringStartDelay(t *testing.T) {
	w, sub, _ := testStation([][3]float64{{55, 18, 17.6}})
	w.cfg.Schedule.StartDelaySeconds = 600
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
	assert.False(t, w.sensor.(*scriptedSensor).began)
	assert.Empty(t, sub.readings)
}

func Test_station_handler(t *testing.T) {
	w, _, _ := testStation([][3]float64{{55, 18, nan}})
	_, err := w.runCycle(context.Background())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	w.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `"humidity_RH":55`)
	assert.Contains(t, body, `"heat_index_C":null`)
	assert.Contains(t, body, `"version":"`+version+`"`)
}
