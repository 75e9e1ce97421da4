package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// Connection errors.
var (
	// ErrClosed indicates the connection was closed, locally or by a
	// clean remote shutdown.
	ErrClosed = errors.New("connection closed")

	// ErrReset indicates the peer dropped the connection mid-element.
	ErrReset = errors.New("connection reset")
)

// DefaultPort is the IANA-registered INDI server port.
const DefaultPort = "7624"

// Connection is one INDI transport stream. Send may be called from any
// goroutine; Read must have a single caller.
type Connection struct {
	id uuid.UUID
	rw io.ReadWriteCloser

	writeMu sync.Mutex
	enc     *wire.Encoder
	dec     *wire.Decoder

	closeOnce sync.Once
	closeErr  error
}

// Connect dials an INDI server over TCP. A bare host gets the default
// port appended.
func Connect(addr string) (*Connection, error) {
	return DialContext(context.Background(), addr)
}

// DialContext dials an INDI server over TCP, honoring the context's
// deadline and cancellation. A bare host gets the default port
// appended.
func DialContext(ctx context.Context, addr string) (*Connection, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an established stream. Used directly for simulated
// transports in tests.
func New(rw io.ReadWriteCloser) *Connection {
	return &Connection{
		id:  uuid.New(),
		rw:  rw,
		enc: wire.NewEncoder(rw),
		dec: wire.NewDecoder(rw),
	}
}

// ID returns the connection's unique identifier, used to correlate
// protocol log events.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// RemoteAddr returns the peer address, or "" for non-network streams.
func (c *Connection) RemoteAddr() string {
	if nc, ok := c.rw.(net.Conn); ok {
		return nc.RemoteAddr().String()
	}
	return ""
}

// Send encodes and writes one command. Concurrent calls are serialized;
// commands are never interleaved on the wire.
func (c *Connection) Send(cmd wire.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.enc.Encode(cmd); err != nil {
		return c.mapError(err)
	}
	return nil
}

// Read returns the next incoming command. wire.ErrMalformed surfaces
// per-command and reading continues; a clean remote shutdown returns
// ErrClosed; a shutdown mid-element returns ErrReset.
func (c *Connection) Read() (wire.Command, error) {
	cmd, err := c.dec.Next()
	if err != nil {
		return nil, c.mapError(err)
	}
	return cmd, nil
}

// Close shuts the stream down, failing any in-flight Read or Send.
// Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// mapError translates stream errors into the connection taxonomy.
func (c *Connection) mapError(err error) error {
	switch {
	case err == io.EOF:
		return ErrClosed
	case errors.Is(err, wire.ErrTruncated):
		return ErrReset
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	case errors.Is(err, io.ErrClosedPipe):
		return ErrClosed
	}
	return err
}
