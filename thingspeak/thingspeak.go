package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gr-butler/telemetry/aggregator"
	"github.com/gr-butler/telemetry/env"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrConnectFailed   = errors.New("failed to connect to ThingSpeak")
	ErrResponseTimeout = errors.New("ThingSpeak response timeout")
	ErrInvalidReading  = errors.New("reading has no valid samples")
)

type Dialer interface {
	DialContext(ctx context.Context, network string, address string) (net.Conn, error)
}

// Submitter sends readings to ThingSpeak and forgets them. A reading that
// could not be delivered is dropped, the next cycle brings a new one.
type Submitter struct {
	cfg    env.ThingSpeakConfig
	dialer Dialer
	clock  clockwork.Clock
}

func NewSubmitter(cfg env.ThingSpeakConfig, dialer Dialer, clock clockwork.Clock) *Submitter {
	if dialer == nil {
		dialer = &net.Dialer{Timeout: time.Second * 10}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Submitter{
		cfg:    cfg,
		dialer: dialer,
		clock:  clock,
	}
}

// Submit returns nil once the server has started to answer. The status code
// and body are not looked at.
func (s *Submitter) Submit(ctx context.Context, r aggregator.SmoothedReading) error {
	if !r.Valid {
		return ErrInvalidReading
	}
	req, err := NewRequest(s.cfg.Endpoint, s.cfg.APIKey, r)
	if err != nil {
		return err
	}
	logger.Infof("Submit values: %v", r)

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Close failed [%v]", err)
		}
		logger.Debug("\tConnection to ThingSpeak finished.")
	}()

	logger.Debugf("\tCalling endpoint %s", s.cfg.Endpoint)
	if err := req.Write(conn, s.cfg.Server); err != nil {
		logger.Errorf("Failed to send data [%v]", err)
		return fmt.Errorf("failed to send request: %w", err)
	}

	return s.awaitResponse(ctx, conn)
}

func (s *Submitter) connect(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.cfg.Server, strconv.Itoa(s.cfg.Port))
	logger.Debugf("Connecting to %s", addr)

	var lastErr error
	attempt := 0
	for attempt < s.cfg.ConnectAttempts {
		attempt++
		conn, err := s.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("connect abandoned after %d attempts: %w", attempt, ctx.Err())
		}
		lastErr = err
		logger.Debugf("Connect attempt %d failed [%v]", attempt, err)
		if attempt == s.cfg.ConnectAttempts {
			break
		}
		if err := s.pause(ctx, s.cfg.ConnectBackoff); err != nil {
			return nil, fmt.Errorf("connect abandoned after %d attempts: %w", attempt, err)
		}
	}
	logger.Errorf("/!\\ Failed to connect ThingSpeak. Aborting measure. [%v]", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectFailed, attempt, lastErr)
}

func (s *Submitter) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// awaitResponse polls the socket every ResponsePoll until a byte arrives or
// ResponseTimeout has passed. Socket deadlines are wall clock time.
func (s *Submitter) awaitResponse(ctx context.Context, conn net.Conn) error {
	polls := int(s.cfg.ResponseTimeout / s.cfg.ResponsePoll)
	if polls < 1 {
		polls = 1
	}
	buf := make([]byte, 1)
	for i := 0; i < polls; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ResponsePoll)); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
		n, err := conn.Read(buf)
		if n > 0 {
			return nil
		}
		if err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		// the server hung up without a word
		logger.Debugf("Read failed [%v]", err)
		break
	}
	logger.Warn("/!\\ ThingSpeak connection timeout.")
	return ErrResponseTimeout
}

// Outcome names the result of a submission for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, ErrConnectFailed):
		return "connect_failed"
	case errors.Is(err, ErrResponseTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidReading):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
