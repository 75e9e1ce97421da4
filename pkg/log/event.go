package log

import (
	"time"

	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// Event represents one protocol log event. CBOR encoding uses integer
// keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the peer address (host:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"6,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"8,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming command.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing command.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates a protocol command crossing the wire.
	CategoryCommand Category = 0
	// CategoryState indicates a connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent summarizes one command. BLOB payloads are not captured,
// only their total size.
type CommandEvent struct {
	// Verb is the command's element name (defNumberVector, message...).
	Verb string `cbor:"1,keyasint"`

	// Device the command addresses, if any.
	Device string `cbor:"2,keyasint,omitempty"`

	// Property the command addresses, if any.
	Property string `cbor:"3,keyasint,omitempty"`

	// State carried by def/set commands.
	State string `cbor:"4,keyasint,omitempty"`

	// Elements is the element count of vector commands.
	Elements int `cbor:"5,keyasint,omitempty"`

	// BlobBytes is the total decoded BLOB payload size.
	BlobBytes uint64 `cbor:"6,keyasint,omitempty"`

	// Message is the human-readable message attribute, if any.
	Message string `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures a connection lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error on the read or write path.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being done.
	Context string `cbor:"2,keyasint,omitempty"`
}

// Summarize builds the log summary of a command.
func Summarize(cmd wire.Command) *CommandEvent {
	e := &CommandEvent{Device: cmd.DeviceName()}

	switch c := cmd.(type) {
	case *wire.GetProperties:
		e.Verb = "getProperties"
		e.Property = c.Name
	case *wire.DefTextVector:
		e.Verb = "defTextVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Texts)
		e.Message = c.Message
	case *wire.SetTextVector:
		e.Verb = "setTextVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Texts)
		e.Message = c.Message
	case *wire.NewTextVector:
		e.Verb = "newTextVector"
		e.Property = c.Name
		e.Elements = len(c.Texts)
	case *wire.DefNumberVector:
		e.Verb = "defNumberVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Numbers)
		e.Message = c.Message
	case *wire.SetNumberVector:
		e.Verb = "setNumberVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Numbers)
		e.Message = c.Message
	case *wire.NewNumberVector:
		e.Verb = "newNumberVector"
		e.Property = c.Name
		e.Elements = len(c.Numbers)
	case *wire.DefSwitchVector:
		e.Verb = "defSwitchVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Switches)
		e.Message = c.Message
	case *wire.SetSwitchVector:
		e.Verb = "setSwitchVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Switches)
		e.Message = c.Message
	case *wire.NewSwitchVector:
		e.Verb = "newSwitchVector"
		e.Property = c.Name
		e.Elements = len(c.Switches)
	case *wire.DefLightVector:
		e.Verb = "defLightVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Lights)
		e.Message = c.Message
	case *wire.SetLightVector:
		e.Verb = "setLightVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Lights)
		e.Message = c.Message
	case *wire.DefBLOBVector:
		e.Verb = "defBLOBVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Blobs)
		e.Message = c.Message
	case *wire.SetBLOBVector:
		e.Verb = "setBLOBVector"
		e.Property = c.Name
		e.State = c.State.String()
		e.Elements = len(c.Blobs)
		e.Message = c.Message
		for _, b := range c.Blobs {
			e.BlobBytes += uint64(len(b.Value))
		}
	case *wire.Message:
		e.Verb = "message"
		e.Message = c.Message
	case *wire.DelProperty:
		e.Verb = "delProperty"
		e.Property = c.Name
		e.Message = c.Message
	case *wire.EnableBlob:
		e.Verb = "enableBLOB"
		e.Property = c.Name
		e.Message = c.Value.String()
	}
	return e
}
