package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/telemetry/aggregator"
	"github.com/gr-butler/telemetry/env"
	logger "github.com/sirupsen/logrus"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher mirrors smoothed readings to an MQTT topic. Like the HTTP path
// it is fire and forget, QoS 0 and nothing is queued on failure.
type Publisher struct {
	client  publisher
	topic   string
	timeout time.Duration
	closer  func()
}

type message struct {
	Humidity    *float64  `json:"humidity_RH,omitempty"`
	Temperature *float64  `json:"temperature_C,omitempty"`
	HeatIndex   *float64  `json:"heat_index_C,omitempty"`
	Samples     int       `json:"samples"`
	Time        time.Time `json:"time"`
}

func Connect(cfg env.MqttConfig) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Infof("Connected to MQTT broker [%v]", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost [%v]", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("failed to connect to MQTT broker %v: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	p := NewPublisher(client, cfg.Topic)
	p.closer = func() { client.Disconnect(250) }
	return p, nil
}

func NewPublisher(client publisher, topic string) *Publisher {
	return &Publisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
	}
}

func (p *Publisher) Publish(r aggregator.SmoothedReading, at time.Time) error {
	if !r.Valid {
		return errors.New("refusing to publish an invalid reading")
	}
	payload, err := json.Marshal(message{
		Humidity:    finite(r.Humidity),
		Temperature: finite(r.Temperature),
		HeatIndex:   finite(r.HeatIndex),
		Samples:     r.Samples,
		Time:        at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// json has no NaN, a value that could not be computed is left out.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
