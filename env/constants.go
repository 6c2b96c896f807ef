package env

import "time"

const (
	GPIO20 = "GPIO20" // status LED

	StatusLed = GPIO20

	// The agent takes SamplesPerSubmission readings spread across the
	// submission interval, averages them and submits one value.
	StartDelaySeconds         = 600
	SamplesPerSubmission      = 5
	SubmissionIntervalSeconds = 3600

	// A rest longer than this drops the wifi link until the next cycle.
	LongRestSeconds = 3600

	ThingSpeakServer   = "api.thingspeak.com"
	ThingSpeakEndpoint = "/update"
	ThingSpeakPort     = 80

	ConnectAttempts = 5
	ConnectBackoff  = time.Millisecond * 100
	ResponseTimeout = time.Second * 5
	ResponsePoll    = time.Millisecond * 100

	WifiJoinTimeout = time.Second * 30
	WifiPoll        = time.Millisecond * 200

	BME280_I2C  = 0x76
	MCP9808_I2C = 0x18

	MqttTopic = "telemetry/ambient"

	LEDFlashDuration = time.Millisecond * 50

	// debug builds run the whole schedule 100x faster
	ProductionUnit = time.Second
	DebugUnit      = time.Millisecond * 10
)
