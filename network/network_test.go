package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedRadio() *SimulatedRadio {
	r := NewSimulatedRadio(1)
	_ = r.Begin("", "")
	r.Status()
	return r
}

func TestEnsureConnectedAlreadyUp(t *testing.T) {
	r := connectedRadio()
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)

	require.NoError(t, m.EnsureConnected(context.Background()))

	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 0, m.Reconnects())
	assert.Equal(t, 0, r.Disconnects)
}

func TestEnsureConnectedAfterKPolls(t *testing.T) {
	for k := 1; k <= 6; k++ {
		r := NewSimulatedRadio(k)
		m := NewManager(r, "shed", "pw", time.Millisecond, clockwork.NewRealClock())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)

		require.NoError(t, m.EnsureConnected(ctx))
		cancel()

		assert.Equal(t, Connected, m.State())
		assert.GreaterOrEqual(t, m.Attempts(), k)
		assert.GreaterOrEqual(t, r.StatusCalls, k)
		assert.Equal(t, 1, r.Begins)
		// stale session is torn down before the join
		assert.Equal(t, 1, r.Disconnects)
	}
}

func TestStep(t *testing.T) {
	const k = 4
	r := NewSimulatedRadio(k)
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)

	assert.Equal(t, Connecting, m.Step())
	for i := 1; i < k; i++ {
		assert.Equal(t, Connecting, m.Step())
	}
	assert.Equal(t, Connected, m.Step())
	assert.Equal(t, k, m.Attempts())
	assert.Equal(t, Connected, m.Step())
}

func TestEnsureConnectedWaitsOnTheClock(t *testing.T) {
	const k = 3
	fc := clockwork.NewFakeClock()
	r := NewSimulatedRadio(k)
	m := NewManager(r, "shed", "pw", time.Millisecond*200, fc)

	done := make(chan error, 1)
	go func() {
		done <- m.EnsureConnected(context.Background())
	}()

	for i := 0; i < k; i++ {
		fc.BlockUntil(1)
		fc.Advance(time.Millisecond * 200)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("EnsureConnected did not return")
	}
	assert.Equal(t, k, m.Attempts())
}

func TestEnsureConnectedCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := NewSimulatedRadio(1 << 30)
	m := NewManager(r, "shed", "pw", time.Millisecond*200, fc)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.EnsureConnected(ctx)
	}()

	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second * 5):
		t.Fatal("EnsureConnected ignored the cancelled context")
	}
	assert.Equal(t, Connecting, m.State())
}

func TestEnsureConnectedCancelledUpFront(t *testing.T) {
	r := NewSimulatedRadio(1)
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.EnsureConnected(ctx), context.Canceled)
	assert.Equal(t, 0, r.Begins)
}

func TestEnsureConnectedAfterLinkLoss(t *testing.T) {
	r := NewSimulatedRadio(2)
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)
	require.NoError(t, m.EnsureConnected(context.Background()))
	assert.Equal(t, 1, m.Reconnects())

	r.Drop()
	require.NoError(t, m.EnsureConnected(context.Background()))

	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 2, m.Reconnects())
	assert.Equal(t, 2, r.Begins)
}

// flakyRadio fails its first failBegins joins outright, then joins after a
// single poll. dropJoins joins are lost after they started.
type flakyRadio struct {
	SimulatedRadio
	failBegins int
	dropJoins  int
}

func (f *flakyRadio) Begin(ssid string, password string) error {
	_ = f.SimulatedRadio.Begin(ssid, password)
	if f.failBegins > 0 {
		f.failBegins--
		f.state = Disconnected
		return errors.New("no network with SSID shed")
	}
	if f.dropJoins > 0 {
		f.dropJoins--
		f.state = Disconnected
	}
	return nil
}

func TestEnsureConnectedRejoinsAfterFailedBegin(t *testing.T) {
	r := &flakyRadio{SimulatedRadio: SimulatedRadio{JoinPolls: 1}, failBegins: 2}
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()

	require.NoError(t, m.EnsureConnected(ctx))

	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 3, r.Begins)
	assert.Equal(t, 3, m.Reconnects())
}

func TestStepFailedBeginGoesBackToDisconnected(t *testing.T) {
	r := &flakyRadio{SimulatedRadio: SimulatedRadio{JoinPolls: 1}, failBegins: 1}
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)

	assert.Equal(t, Disconnected, m.Step())
	assert.Equal(t, 1, r.Begins)
	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, 2, r.Begins)
	assert.Equal(t, Connected, m.Step())
}

func TestStepDroppedJoinStartsOver(t *testing.T) {
	r := &flakyRadio{SimulatedRadio: SimulatedRadio{JoinPolls: 1}, dropJoins: 1}
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)

	assert.Equal(t, Connecting, m.Step())
	// the radio reports the join lost
	assert.Equal(t, Disconnected, m.Step())
	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, Connected, m.Step())
	assert.Equal(t, 2, r.Begins)
}

func TestStepAbandonsStalledJoin(t *testing.T) {
	r := NewSimulatedRadio(1 << 30)
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)
	m.SetJoinTimeout(time.Millisecond * 3)

	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, Disconnected, m.Step())
	assert.Equal(t, 3, m.Attempts())

	assert.Equal(t, Connecting, m.Step())
	assert.Equal(t, 2, r.Begins)
}

func TestRest(t *testing.T) {
	r := NewSimulatedRadio(1)
	m := NewManager(r, "shed", "pw", time.Millisecond, nil)
	require.NoError(t, m.EnsureConnected(context.Background()))
	disconnects := r.Disconnects

	m.Rest()

	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, disconnects+1, r.Disconnects)
	assert.Equal(t, Disconnected, r.Status())

	// resting twice is harmless
	m.Rest()
	assert.Equal(t, disconnects+1, r.Disconnects)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Unknown", State(9).String())
}
