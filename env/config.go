package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ProfileProduction = "production"
	ProfileDebug      = "debug"
)

// Config is resolved once at start up and handed to every component.
type Config struct {
	Profile    string           `yaml:"profile"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	ThingSpeak ThingSpeakConfig `yaml:"thingspeak"`
	Wifi       WifiConfig       `yaml:"wifi"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Mqtt       MqttConfig       `yaml:"mqtt"`
	StatusLed  string           `yaml:"status_led"`
	Listen     string           `yaml:"listen"`
	// SendPromData exposes /metrics on the status listener.
	SendPromData bool `yaml:"prometheus"`
}

// ScheduleConfig values are in profile seconds, see Config.Unit.
type ScheduleConfig struct {
	StartDelaySeconds int `yaml:"start_delay_seconds"`
	Samples           int `yaml:"samples"`
	IntervalSeconds   int `yaml:"interval_seconds"`
	LongRestSeconds   int `yaml:"long_rest_seconds"`
}

type ThingSpeakConfig struct {
	Server          string        `yaml:"server"`
	Endpoint        string        `yaml:"endpoint"`
	Port            int           `yaml:"port"`
	APIKey          string        `yaml:"api_key"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	ResponsePoll    time.Duration `yaml:"response_poll"`
}

type WifiConfig struct {
	Interface   string        `yaml:"interface"`
	SSID        string        `yaml:"ssid"`
	Password    string        `yaml:"password"`
	Poll        time.Duration `yaml:"poll"`
	JoinTimeout time.Duration `yaml:"join_timeout"` // a join still pending after this is started over

	// Manage lets the agent join and leave the network itself (nmcli),
	// otherwise the link is only observed.
	Manage bool `yaml:"manage"`
}

type SensorConfig struct {
	Bus         string `yaml:"bus"`
	BME280Addr  uint16 `yaml:"bme280_addr"`
	MCP9808Addr int    `yaml:"mcp9808_addr"` // 0 disables the MCP9808
}

type MqttConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

func Default() *Config {
	return &Config{
		Profile: ProfileProduction,
		Schedule: ScheduleConfig{
			StartDelaySeconds: StartDelaySeconds,
			Samples:           SamplesPerSubmission,
			IntervalSeconds:   SubmissionIntervalSeconds,
			LongRestSeconds:   LongRestSeconds,
		},
		ThingSpeak: ThingSpeakConfig{
			Server:          ThingSpeakServer,
			Endpoint:        ThingSpeakEndpoint,
			Port:            ThingSpeakPort,
			ConnectAttempts: ConnectAttempts,
			ConnectBackoff:  ConnectBackoff,
			ResponseTimeout: ResponseTimeout,
			ResponsePoll:    ResponsePoll,
		},
		Wifi: WifiConfig{
			Interface: "wlan0",
			Poll:      WifiPoll,
		},
		Sensor: SensorConfig{
			BME280Addr:  BME280_I2C,
			MCP9808Addr: MCP9808_I2C,
		},
		Mqtt: MqttConfig{
			ClientID: "telemetry-agent",
			Topic:    MqttTopic,
		},
		StatusLed: StatusLed,
		Listen:    ":80",
	}
}

// Load reads a yaml profile over the defaults. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Config file [%v] not found, using defaults", filename)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv seeds the process environment from .env style files. Missing
// files are skipped, variables already set are never overwritten.
func LoadDotEnv(filenames ...string) error {
	for _, f := range filenames {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			logger.Debugf("No env file [%v]", f)
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %v: %w", f, err)
		}
	}
	return nil
}

// ApplyEnvironment overrides secrets and deployment switches from the
// process environment.
func (c *Config) ApplyEnvironment() {
	if v, ok := os.LookupEnv("WIFI_SSID"); ok {
		c.Wifi.SSID = v
	}
	if v, ok := os.LookupEnv("WIFI_PASSWORD"); ok {
		c.Wifi.Password = v
	}
	if v, ok := os.LookupEnv("CHANNEL_API_KEY"); ok {
		c.ThingSpeak.APIKey = v
	}
	if v, ok := os.LookupEnv("MQTT_BROKER"); ok {
		c.Mqtt.Broker = v
	}
	if v, ok := os.LookupEnv("SENDPROMDATA"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warnf("Ignoring SENDPROMDATA [%v]: %v", v, err)
		} else {
			c.SendPromData = b
		}
	}
	if v, ok := os.LookupEnv("TELEMETRY_PROFILE"); ok {
		c.Profile = v
	}
}

func (c *Config) Validate() error {
	if c.Profile != ProfileProduction && c.Profile != ProfileDebug {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	if c.Schedule.Samples < 1 {
		return errors.New("schedule.samples must be at least 1")
	}
	if c.Schedule.IntervalSeconds < 1 {
		return errors.New("schedule.interval_seconds must be at least 1")
	}
	if c.Schedule.StartDelaySeconds < 0 {
		return errors.New("schedule.start_delay_seconds must not be negative")
	}
	if c.ThingSpeak.Server == "" {
		return errors.New("thingspeak.server is required")
	}
	if c.ThingSpeak.ConnectAttempts < 1 {
		return errors.New("thingspeak.connect_attempts must be at least 1")
	}
	if c.ThingSpeak.ResponsePoll <= 0 || c.ThingSpeak.ResponseTimeout < c.ThingSpeak.ResponsePoll {
		return errors.New("thingspeak.response_poll must be positive and not exceed response_timeout")
	}
	if c.Wifi.Poll <= 0 {
		return errors.New("wifi.poll must be positive")
	}
	if c.Wifi.JoinTimeout < c.Wifi.Poll {
		return errors.New("wifi.join_timeout must not be shorter than wifi.poll")
	}
	return nil
}

// Unit is the length of one schedule second for the active profile.
func (c *Config) Unit() time.Duration {
	if c.Profile == ProfileDebug {
		return DebugUnit
	}
	return ProductionUnit
}

func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Schedule.StartDelaySeconds) * c.Unit()
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSeconds) * c.Unit()
}

// SampleSpacing spreads the samples evenly across the interval.
func (c *Config) SampleSpacing() time.Duration {
	return c.Interval() / time.Duration(c.Schedule.Samples)
}

// LongRest reports whether the real interval is long enough to drop the
// radio between cycles.
func (c *Config) LongRest() bool {
	return c.Interval() > time.Duration(c.Schedule.LongRestSeconds)*time.Second
}
