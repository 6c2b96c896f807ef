package network

import (
	"context"
	"time"

	"github.com/gr-butler/telemetry/env"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Radio is the wireless link driver.
type Radio interface {
	Disconnect(force bool) error
	Begin(ssid string, password string) error
	Status() State
	LocalAddress() string
}

// Manager keeps the link up. Each Step makes one observation of the radio
// and at most one transition; EnsureConnected drives Step until the link is
// up, waiting Poll between observations.
type Manager struct {
	radio    Radio
	ssid     string
	password string
	poll     time.Duration
	clock    clockwork.Clock

	// a join that has not come up after joinTimeout is abandoned
	joinTimeout time.Duration
	joinPolls   int

	state      State
	attempts   int
	reconnects int
}

func NewManager(radio Radio, ssid string, password string, poll time.Duration, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Manager{
		radio:    radio,
		ssid:     ssid,
		password: password,
		poll:     poll,
		clock:    clock,
		state:    Disconnected,
	}
	m.SetJoinTimeout(env.WifiJoinTimeout)
	return m
}

// SetJoinTimeout bounds how long one join may stay in Connecting before a
// fresh join is started.
func (m *Manager) SetJoinTimeout(d time.Duration) {
	m.joinTimeout = d
	m.joinPolls = 1
	if m.poll > 0 && int(d/m.poll) > 1 {
		m.joinPolls = int(d / m.poll)
	}
}

func (m *Manager) State() State {
	return m.state
}

// Attempts is the number of status polls made by the current or last join.
func (m *Manager) Attempts() int {
	return m.attempts
}

// Reconnects counts every fresh join since start up.
func (m *Manager) Reconnects() int {
	return m.reconnects
}

func (m *Manager) Step() State {
	switch m.state {
	case Connecting:
		m.attempts++
		switch status := m.radio.Status(); {
		case status == Connected:
			m.state = Connected
			logger.Infof("WiFi connected in %d ms, IP address: %v",
				time.Duration(m.attempts)*m.poll/time.Millisecond, m.radio.LocalAddress())
		case status == Disconnected:
			// the radio gave up on this join, start a fresh one next Step
			logger.Warnf("WiFi join dropped after [%d] polls", m.attempts)
			m.state = Disconnected
		case m.attempts >= m.joinPolls:
			logger.Warnf("WiFi join still pending after [%v], starting over", m.joinTimeout)
			m.state = Disconnected
		default:
			logger.Debugf("WiFi not connected yet [%d]", m.attempts)
		}
	default:
		if m.radio.Status() == Connected {
			m.state = Connected
			return m.state
		}
		if m.state == Connected {
			logger.Warn("WiFi link lost")
		}
		m.join()
	}
	return m.state
}

func (m *Manager) join() {
	if err := m.radio.Disconnect(true); err != nil {
		logger.Debugf("WiFi disconnect failed [%v]", err)
	}
	logger.Infof("Connecting to: %s", m.ssid)
	m.attempts = 0
	m.reconnects++
	if err := m.radio.Begin(m.ssid, m.password); err != nil {
		logger.Errorf("WiFi join failed [%v]", err)
		m.state = Disconnected
		return
	}
	m.state = Connecting
}

// EnsureConnected blocks until the radio reports Connected. There is no
// retry limit, only ctx stops it.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	if m.state == Connecting {
		// a join interrupted by a cancelled context is started over
		m.state = Disconnected
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Step() == Connected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.poll):
		}
	}
}

// Rest drops the link ahead of a long idle period.
func (m *Manager) Rest() {
	if m.state != Connected {
		return
	}
	logger.Info("Disconnecting WiFi for a long rest")
	if err := m.radio.Disconnect(false); err != nil {
		logger.Warnf("WiFi disconnect failed [%v]", err)
	}
	m.state = Disconnected
}
