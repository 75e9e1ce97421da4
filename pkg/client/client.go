package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/connection"
	"github.com/twinkle-astronomy/twinkle/pkg/log"
	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/notify"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// Status is the observable connection status published by Connected.
type Status struct {
	Connected bool
}

// Clone returns a copy.
func (s Status) Clone() Status { return s }

// Option configures a Client.
type Option func(*Client)

// WithProtocolLog captures protocol traffic to l.
func WithProtocolLog(l log.Logger) Option {
	return func(c *Client) {
		c.protocol = l
	}
}

// blobKey identifies one enableBLOB scope: a whole device, or one
// property when Name is set.
type blobKey struct {
	Device string
	Name   string
}

// Client orchestrates one connection: it feeds incoming commands into
// its model and provides the outbound command surface.
type Client struct {
	conn     *connection.Connection
	model    *model.Model
	protocol log.Logger

	connected *notify.Value[Status]

	blobMu sync.Mutex
	blobs  map[blobKey]wire.BlobEnable
}

// New creates a client over an established connection. Run must be
// called to start the session.
func New(conn *connection.Connection, opts ...Option) *Client {
	c := &Client{
		conn:      conn,
		model:     model.New(),
		protocol:  log.NoopLogger{},
		connected: notify.NewValue(Status{}),
		blobs:     make(map[blobKey]wire.BlobEnable),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the live state graph.
func (c *Client) Model() *model.Model {
	return c.model
}

// Connection returns the underlying connection.
func (c *Client) Connection() *connection.Connection {
	return c.conn
}

// Connected returns the observable connection status. It flips to
// connected when Run starts and back when Run returns.
func (c *Client) Connected() *notify.Value[Status] {
	return c.connected
}

// GetDevice returns a command-capable wrapper for one device.
func (c *Client) GetDevice(name string) (*Device, bool) {
	d, ok := c.model.Device(name)
	if !ok {
		return nil, false
	}
	return &Device{client: c, device: d}, true
}

// Run sends getProperties and then drains the connection into the
// model until ctx is cancelled or the connection fails. Per-command
// errors (malformed elements, updates for unknown properties) are
// logged and skipped.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Send(&wire.GetProperties{Version: wire.INDIProtocolVersion}); err != nil {
		return err
	}

	c.connected.Set(Status{Connected: true})
	defer c.connected.Set(Status{})

	// Read only unblocks when the stream dies, so cancellation closes
	// the connection out from under it.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-watchDone:
		}
	}()

	for {
		cmd, err := c.conn.Read()
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				c.logError(err, "decode")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logError(err, "read")
			return err
		}

		c.logCommand(log.DirectionIn, cmd)
		if err := c.model.Apply(cmd); err != nil {
			c.logError(err, "apply")
		}
	}
}

// Send writes one command to the server.
func (c *Client) Send(cmd wire.Command) error {
	if err := c.conn.Send(cmd); err != nil {
		c.logError(err, "send")
		return err
	}
	c.logCommand(log.DirectionOut, cmd)
	return nil
}

// EnableBlob opts in to BLOB delivery for a device, or one property
// when name is non-empty, and records the enablement.
func (c *Client) EnableBlob(device, name string, mode wire.BlobEnable) error {
	if err := c.Send(&wire.EnableBlob{Device: device, Name: name, Value: mode}); err != nil {
		return err
	}
	c.blobMu.Lock()
	c.blobs[blobKey{Device: device, Name: name}] = mode
	c.blobMu.Unlock()
	return nil
}

// BlobEnabled returns the mode in effect for one property. A
// property-level enablement overrides a device-wide one; the protocol
// default is Never.
func (c *Client) BlobEnabled(device, name string) wire.BlobEnable {
	c.blobMu.Lock()
	defer c.blobMu.Unlock()
	if mode, ok := c.blobs[blobKey{Device: device, Name: name}]; ok {
		return mode
	}
	if mode, ok := c.blobs[blobKey{Device: device}]; ok {
		return mode
	}
	return wire.BlobNever
}

func (c *Client) logCommand(dir log.Direction, cmd wire.Command) {
	c.protocol.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.conn.ID().String(),
		Direction:    dir,
		Category:     log.CategoryCommand,
		RemoteAddr:   c.conn.RemoteAddr(),
		Command:      log.Summarize(cmd),
	})
}

func (c *Client) logError(err error, context string) {
	c.protocol.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.conn.ID().String(),
		Category:     log.CategoryError,
		RemoteAddr:   c.conn.RemoteAddr(),
		Error:        &log.ErrorEventData{Message: err.Error(), Context: context},
	})
}
