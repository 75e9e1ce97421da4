package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinkle-astronomy/twinkle/pkg/connection"
	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// session wires a client to a scripted in-memory server.
type session struct {
	client *Client
	server *connection.Connection
	raw    net.Conn // server side, for writing raw bytes
	cancel context.CancelFunc
	done   chan error
}

// startSession starts Run and consumes the client's initial
// getProperties.
func startSession(t *testing.T, opts ...Option) *session {
	t.Helper()

	a, b := net.Pipe()
	s := &session{
		client: New(connection.New(a), opts...),
		server: connection.New(b),
		raw:    b,
		done:   make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		s.done <- s.client.Run(ctx)
	}()

	cmd, err := s.server.Read()
	require.NoError(t, err)
	get, ok := cmd.(*wire.GetProperties)
	require.True(t, ok)
	require.Equal(t, wire.INDIProtocolVersion, get.Version)

	t.Cleanup(func() {
		cancel()
		s.server.Close()
		<-s.done
	})
	return s
}

func (s *session) define(t *testing.T) {
	t.Helper()
	require.NoError(t, s.server.Send(&wire.DefSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION",
		State: wire.StateIdle, Perm: wire.PermReadWrite, Rule: wire.RuleOneOfMany,
		Timestamp: wire.Now(),
		Switches: []wire.DefSwitch{
			{Name: "CONNECT", Value: wire.SwitchOff},
			{Name: "DISCONNECT", Value: wire.SwitchOn},
		},
	}))
}

// awaitDevice blocks until the model has the device.
func awaitDevice(t *testing.T, c *Client, name string) *Device {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := c.Model().Device(name)
		return ok
	}, 5*time.Second, time.Millisecond)
	d, ok := c.GetDevice(name)
	require.True(t, ok)
	return d
}

func TestRunBuildsModel(t *testing.T) {
	s := startSession(t)
	s.define(t)

	d := awaitDevice(t, s.client, "CCD Simulator")
	handle, ok := d.Property("CONNECTION")
	require.True(t, ok)

	p := handle.Get()
	assert.Equal(t, model.KindSwitch, p.Kind)
	on, _ := p.Switch("DISCONNECT")
	assert.True(t, on)

	assert.True(t, s.client.Connected().Get().Connected)
}

func TestRunReturnsOnServerClose(t *testing.T) {
	s := startSession(t)

	sub := s.client.Connected().Subscribe()
	defer sub.Close()

	s.server.Close()

	err := <-s.done
	assert.ErrorIs(t, err, connection.ErrClosed)
	s.done <- err // for the cleanup

	require.Eventually(t, func() bool {
		return !s.client.Connected().Get().Connected
	}, 5*time.Second, time.Millisecond)
}

func TestRunContextCancel(t *testing.T) {
	s := startSession(t)

	s.cancel()
	err := <-s.done
	assert.ErrorIs(t, err, context.Canceled)
	s.done <- err
}

func TestRunSkipsUnappliableCommands(t *testing.T) {
	s := startSession(t)

	// Update for a property nobody has defined.
	require.NoError(t, s.server.Send(&wire.SetSwitchVector{
		Device: "Ghost", Name: "NOPE", State: wire.StateOk,
	}))
	s.define(t)

	awaitDevice(t, s.client, "CCD Simulator")
}

func TestRunSkipsMalformedElements(t *testing.T) {
	s := startSession(t)

	_, err := s.raw.Write([]byte(`<setSwitchVector device="D" name="P" state="Bogus"></setSwitchVector>`))
	require.NoError(t, err)
	s.define(t)

	awaitDevice(t, s.client, "CCD Simulator")
}

func TestChangeSwitches(t *testing.T) {
	s := startSession(t)
	s.define(t)
	d := awaitDevice(t, s.client, "CCD Simulator")

	go func() {
		cmd, err := s.server.Read()
		if err != nil {
			return
		}
		req, ok := cmd.(*wire.NewSwitchVector)
		if !ok || req.Device != "CCD Simulator" || req.Name != "CONNECTION" {
			return
		}
		s.server.Send(&wire.SetSwitchVector{
			Device: "CCD Simulator", Name: "CONNECTION",
			State: wire.StateBusy, Timestamp: wire.Now(),
		})
		s.server.Send(&wire.SetSwitchVector{
			Device: "CCD Simulator", Name: "CONNECTION",
			State: wire.StateOk, Timestamp: wire.Now(),
			Switches: []wire.OneSwitch{
				{Name: "CONNECT", Value: wire.SwitchOn},
				{Name: "DISCONNECT", Value: wire.SwitchOff},
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := d.ChangeSwitches(ctx, "CONNECTION", map[string]bool{"CONNECT": true})
	require.NoError(t, err)

	assert.Equal(t, wire.StateOk, p.State)
	on, _ := p.Switch("CONNECT")
	assert.True(t, on)
}

func TestChangeAlert(t *testing.T) {
	s := startSession(t)
	s.define(t)
	d := awaitDevice(t, s.client, "CCD Simulator")

	go func() {
		if _, err := s.server.Read(); err != nil {
			return
		}
		s.server.Send(&wire.SetSwitchVector{
			Device: "CCD Simulator", Name: "CONNECTION",
			State: wire.StateAlert, Timestamp: wire.Now(),
			Message: "no camera detected",
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := d.ChangeSwitches(ctx, "CONNECTION", map[string]bool{"CONNECT": true})
	assert.ErrorIs(t, err, ErrAlert)
}

func TestChangeUnknownProperty(t *testing.T) {
	s := startSession(t)
	s.define(t)
	d := awaitDevice(t, s.client, "CCD Simulator")

	ctx := context.Background()
	_, err := d.ChangeSwitches(ctx, "NOPE", map[string]bool{"X": true})
	assert.ErrorIs(t, err, model.ErrUnknownProperty)

	_, err = d.ChangeNumbers(ctx, "CONNECTION", map[string]float64{"CONNECT": 1})
	assert.ErrorIs(t, err, model.ErrTypeMismatch)
}

func TestEnableBlobTracking(t *testing.T) {
	s := startSession(t)

	go s.server.Read()
	require.NoError(t, s.client.EnableBlob("CCD Simulator", "", wire.BlobAlso))
	go s.server.Read()
	require.NoError(t, s.client.EnableBlob("CCD Simulator", "CCD1", wire.BlobOnly))

	// Property-level enablement overrides device-wide.
	assert.Equal(t, wire.BlobOnly, s.client.BlobEnabled("CCD Simulator", "CCD1"))
	assert.Equal(t, wire.BlobAlso, s.client.BlobEnabled("CCD Simulator", "CCD2"))
	assert.Equal(t, wire.BlobNever, s.client.BlobEnabled("Telescope Simulator", "X"))
}
