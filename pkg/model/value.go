package model

import "github.com/twinkle-astronomy/twinkle/pkg/wire"

// Kind identifies the element type of a property vector.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
	KindSwitch
	KindLight
	KindBlob
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindNumber:
		return "Number"
	case KindSwitch:
		return "Switch"
	case KindLight:
		return "Light"
	case KindBlob:
		return "BLOB"
	default:
		return "Unknown"
	}
}

// Value is one element's typed payload. The set of implementations is
// closed: Number, Text, Switch, Light, and Blob. Consumers dispatch
// with a type switch.
type Value interface {
	// Kind returns the element type tag.
	Kind() Kind

	isValue()
}

// Number is a numeric element. Value is the canonical decimal form;
// Format is the INDI printf-style display format (possibly
// sexagesimal).
type Number struct {
	Value  float64
	Format string
	Min    float64
	Max    float64
	Step   float64
}

func (Number) Kind() Kind { return KindNumber }
func (Number) isValue()   {}

// Display renders the value using the element's format.
func (n Number) Display() string {
	return wire.FormatNumber(n.Value, n.Format)
}

// Text is a free-form text element.
type Text struct {
	Value string
}

func (Text) Kind() Kind { return KindText }
func (Text) isValue()   {}

// Switch is a boolean element governed by the vector's switch rule.
type Switch struct {
	On bool
}

func (Switch) Kind() Kind { return KindSwitch }
func (Switch) isValue()   {}

// Light is a read-only status indicator element.
type Light struct {
	State wire.PropertyState
}

func (Light) Kind() Kind { return KindLight }
func (Light) isValue()   {}

// Blob is a binary payload element. Data is nil until the server has
// sent a setBLOBVector for it.
type Blob struct {
	Format string
	Size   uint64
	Data   []byte
}

func (Blob) Kind() Kind { return KindBlob }
func (Blob) isValue()   {}

// cloneValue deep-copies a value. Only Blob carries mutable internals.
func cloneValue(v Value) Value {
	if b, ok := v.(Blob); ok {
		b.Data = append([]byte(nil), b.Data...)
		return b
	}
	return v
}
