package wire

import (
	"encoding/xml"
	"time"
)

// INDIProtocolVersion is the protocol version announced in getProperties.
const INDIProtocolVersion = "1.7"

// PropertyState is the overall state of a property vector or the value of
// a single light element.
type PropertyState string

const (
	StateIdle  PropertyState = "Idle"
	StateOk    PropertyState = "Ok"
	StateBusy  PropertyState = "Busy"
	StateAlert PropertyState = "Alert"
)

// Valid reports whether s is one of the four defined states.
func (s PropertyState) Valid() bool {
	switch s {
	case StateIdle, StateOk, StateBusy, StateAlert:
		return true
	}
	return false
}

// String returns the wire representation of the state.
func (s PropertyState) String() string { return string(s) }

// PropertyPerm is the client-side access permission of a property.
type PropertyPerm string

const (
	PermReadOnly  PropertyPerm = "ro"
	PermWriteOnly PropertyPerm = "wo"
	PermReadWrite PropertyPerm = "rw"
)

// Valid reports whether p is a defined permission.
func (p PropertyPerm) Valid() bool {
	switch p {
	case PermReadOnly, PermWriteOnly, PermReadWrite:
		return true
	}
	return false
}

// String returns the wire representation of the permission.
func (p PropertyPerm) String() string { return string(p) }

// SwitchState is the value of a single switch element.
type SwitchState string

const (
	SwitchOn  SwitchState = "On"
	SwitchOff SwitchState = "Off"
)

// Valid reports whether s is On or Off.
func (s SwitchState) Valid() bool { return s == SwitchOn || s == SwitchOff }

// String returns the wire representation of the switch state.
func (s SwitchState) String() string { return string(s) }

// Bool returns true for On.
func (s SwitchState) Bool() bool { return s == SwitchOn }

// SwitchStateOf converts a bool to On/Off.
func SwitchStateOf(on bool) SwitchState {
	if on {
		return SwitchOn
	}
	return SwitchOff
}

// SwitchRule constrains how many elements of a switch vector may be On.
type SwitchRule string

const (
	RuleOneOfMany SwitchRule = "OneOfMany"
	RuleAtMostOne SwitchRule = "AtMostOne"
	RuleAnyOfMany SwitchRule = "AnyOfMany"
)

// Valid reports whether r is a defined selection rule.
func (r SwitchRule) Valid() bool {
	switch r {
	case RuleOneOfMany, RuleAtMostOne, RuleAnyOfMany:
		return true
	}
	return false
}

// String returns the wire representation of the rule.
func (r SwitchRule) String() string { return string(r) }

// BlobEnable controls whether a server sends BLOB updates on a connection.
type BlobEnable string

const (
	// BlobNever suppresses all BLOB traffic (the protocol default).
	BlobNever BlobEnable = "Never"

	// BlobAlso sends BLOBs interleaved with other traffic.
	BlobAlso BlobEnable = "Also"

	// BlobOnly sends only BLOB traffic on this connection.
	BlobOnly BlobEnable = "Only"
)

// Valid reports whether b is a defined enableBLOB mode.
func (b BlobEnable) Valid() bool {
	switch b {
	case BlobNever, BlobAlso, BlobOnly:
		return true
	}
	return false
}

// String returns the wire representation of the mode.
func (b BlobEnable) String() string { return string(b) }

// Timestamp layouts accepted on the wire. INDI timestamps are naive
// (no zone designator); they are interpreted as UTC.
const (
	timestampLayout      = "2006-01-02T15:04:05.000"
	timestampLayoutShort = "2006-01-02T15:04:05"
)

// Timestamp wraps a UTC time carried in a timestamp attribute.
// The zero Timestamp marshals to nothing (attribute omitted).
type Timestamp struct {
	time.Time
}

// Now returns the current time as a wire timestamp, truncated to
// millisecond precision so it round-trips through the wire format.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Millisecond)}
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (t Timestamp) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if t.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: t.UTC().Format(timestampLayout)}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr. Unparsable timestamps
// are treated as absent; servers in the wild are sloppy about them and a
// bad timestamp is not worth rejecting the whole element for.
func (t *Timestamp) UnmarshalXMLAttr(attr xml.Attr) error {
	*t = Timestamp{}
	for _, layout := range []string{timestampLayout, timestampLayoutShort} {
		parsed, err := time.ParseInLocation(layout, attr.Value, time.UTC)
		if err == nil {
			*t = Timestamp{parsed}
			break
		}
	}
	return nil
}
