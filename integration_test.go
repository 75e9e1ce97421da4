package twinkle_test

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinkle-astronomy/twinkle/pkg/client"
	"github.com/twinkle-astronomy/twinkle/pkg/connection"
	"github.com/twinkle-astronomy/twinkle/pkg/log"
	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// simServer is a scripted INDI server: it defines a camera on
// getProperties and answers exposure requests with a Busy/Ok sequence.
type simServer struct {
	ln net.Listener

	mu    sync.Mutex
	conns []*connection.Connection
}

func startSimServer(t *testing.T) *simServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &simServer{ln: ln}
	go s.acceptLoop()
	t.Cleanup(s.close)
	return s
}

func (s *simServer) addr() string {
	return s.ln.Addr().String()
}

func (s *simServer) close() {
	s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// dropClients closes all live server-side connections, simulating a
// server restart.
func (s *simServer) dropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *simServer) acceptLoop() {
	for {
		raw, err := s.ln.Accept()
		if err != nil {
			return
		}
		conn := connection.New(raw)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *simServer) serve(conn *connection.Connection) {
	for {
		cmd, err := conn.Read()
		if err != nil {
			return
		}

		switch c := cmd.(type) {
		case *wire.GetProperties:
			conn.Send(&wire.DefSwitchVector{
				Device: "CCD Simulator", Name: "CONNECTION",
				State: wire.StateIdle, Perm: wire.PermReadWrite, Rule: wire.RuleOneOfMany,
				Timestamp: wire.Now(),
				Switches: []wire.DefSwitch{
					{Name: "CONNECT", Value: wire.SwitchOff},
					{Name: "DISCONNECT", Value: wire.SwitchOn},
				},
			})
			conn.Send(&wire.DefNumberVector{
				Device: "CCD Simulator", Name: "CCD_EXPOSURE",
				State: wire.StateIdle, Perm: wire.PermReadWrite,
				Timestamp: wire.Now(),
				Numbers: []wire.DefNumber{
					{Name: "CCD_EXPOSURE_VALUE", Format: "%6.3f", Min: 0, Max: 3600, Step: 0.001},
				},
			})
			conn.Send(&wire.Message{
				Device: "CCD Simulator", Timestamp: wire.Now(),
				Message: "simulator ready",
			})

		case *wire.NewNumberVector:
			if c.Name != "CCD_EXPOSURE" || len(c.Numbers) == 0 {
				continue
			}
			conn.Send(&wire.SetNumberVector{
				Device: c.Device, Name: c.Name,
				State: wire.StateBusy, Timestamp: wire.Now(),
				Numbers: []wire.OneNumber{{Name: "CCD_EXPOSURE_VALUE", Value: c.Numbers[0].Value}},
			})
			conn.Send(&wire.SetNumberVector{
				Device: c.Device, Name: c.Name,
				State: wire.StateOk, Timestamp: wire.Now(),
				Numbers: []wire.OneNumber{{Name: "CCD_EXPOSURE_VALUE", Value: c.Numbers[0].Value}},
			})

		case *wire.NewSwitchVector:
			echo := &wire.SetSwitchVector{
				Device: c.Device, Name: c.Name,
				State: wire.StateOk, Timestamp: wire.Now(),
			}
			for _, sw := range c.Switches {
				echo.Switches = append(echo.Switches, wire.OneSwitch{Name: sw.Name, Value: sw.Value})
			}
			conn.Send(echo)
		}
	}
}

func awaitDevice(t *testing.T, c *client.Client, name string) *client.Device {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := c.Model().Device(name)
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	d, ok := c.GetDevice(name)
	require.True(t, ok)
	return d
}

func TestEndToEndSession(t *testing.T) {
	server := startSimServer(t)
	capture := filepath.Join(t.TempDir(), "session.ilog")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connection.DialContext(ctx, server.addr())
	require.NoError(t, err)

	fileLog, err := log.NewFileLogger(capture)
	require.NoError(t, err)

	c := client.New(conn, client.WithProtocolLog(fileLog))
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	dev := awaitDevice(t, c, "CCD Simulator")

	// The definition round trip populates the model.
	handle, ok := dev.Property("CCD_EXPOSURE")
	require.True(t, ok)
	p := handle.Get()
	assert.Equal(t, model.KindNumber, p.Kind)
	assert.Equal(t, wire.StateIdle, p.State)

	// A change request runs the full new/set confirmation cycle.
	changeCtx, changeCancel := context.WithTimeout(ctx, 5*time.Second)
	defer changeCancel()
	p, err = dev.ChangeNumbers(changeCtx, "CCD_EXPOSURE", map[string]float64{"CCD_EXPOSURE_VALUE": 2.5})
	require.NoError(t, err)
	assert.Equal(t, wire.StateOk, p.State)
	value, ok := p.Number("CCD_EXPOSURE_VALUE")
	require.True(t, ok)
	assert.Equal(t, 2.5, value)

	// The device message lands in the device log.
	require.Eventually(t, func() bool {
		entries := dev.Messages().Get()
		return len(entries) == 1 && entries[0].Text == "simulator ready"
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-runDone
	require.NoError(t, fileLog.Close())

	// The capture holds both directions of the session.
	reader, err := log.NewReader(capture)
	require.NoError(t, err)
	defer reader.Close()

	verbs := make(map[string]int)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if event.Command != nil {
			verbs[event.Command.Verb]++
		}
	}
	assert.GreaterOrEqual(t, verbs["getProperties"], 1)
	assert.GreaterOrEqual(t, verbs["defNumberVector"], 1)
	assert.GreaterOrEqual(t, verbs["newNumberVector"], 1)
	assert.GreaterOrEqual(t, verbs["setNumberVector"], 2)
}

func TestEndToEndReconnect(t *testing.T) {
	server := startSimServer(t)

	dial := func(ctx context.Context) (*connection.Connection, error) {
		return connection.DialContext(ctx, server.addr())
	}

	manager := connection.NewManager(dial, connection.BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 2,
	})
	defer manager.Close()

	connCh := make(chan *connection.Connection, 2)
	manager.OnConnected(func(conn *connection.Connection) { connCh <- conn })
	manager.StartReconnectLoop()

	_, err := manager.Connect(context.Background())
	require.NoError(t, err)
	first := <-connCh

	// Simulated server restart: the client notices the broken read and
	// reports the loss; the manager redials.
	server.dropClients()
	_, readErr := first.Read()
	require.Error(t, readErr)
	manager.ConnectionLost()

	select {
	case second := <-connCh:
		assert.NotEqual(t, first.ID(), second.ID())
		assert.Equal(t, connection.StateConnected, manager.State())
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not reconnect")
	}
}
