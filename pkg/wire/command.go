package wire

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Command is implemented by every INDI protocol command. The set of
// implementations is closed; consumers dispatch with a type switch.
type Command interface {
	// DeviceName returns the device attribute, or "" when the command
	// is not addressed to a device.
	DeviceName() string

	// tag returns the XML element name of the command.
	tag() string

	// finish normalizes decoded content (trims element bodies) and
	// validates required attributes. Called by the Decoder; a non-nil
	// error marks the element malformed.
	finish() error
}

// newCommand returns a fresh command value for a top-level element name,
// or nil for elements this implementation does not recognize.
func newCommand(tag string) Command {
	switch tag {
	case "getProperties":
		return &GetProperties{}
	case "defTextVector":
		return &DefTextVector{}
	case "setTextVector":
		return &SetTextVector{}
	case "newTextVector":
		return &NewTextVector{}
	case "defNumberVector":
		return &DefNumberVector{}
	case "setNumberVector":
		return &SetNumberVector{}
	case "newNumberVector":
		return &NewNumberVector{}
	case "defSwitchVector":
		return &DefSwitchVector{}
	case "setSwitchVector":
		return &SetSwitchVector{}
	case "newSwitchVector":
		return &NewSwitchVector{}
	case "defLightVector":
		return &DefLightVector{}
	case "setLightVector":
		return &SetLightVector{}
	case "defBLOBVector":
		return &DefBLOBVector{}
	case "setBLOBVector":
		return &SetBLOBVector{}
	case "message":
		return &Message{}
	case "delProperty":
		return &DelProperty{}
	case "enableBLOB":
		return &EnableBlob{}
	}
	return nil
}

// GetProperties asks devices to announce their properties. Sent by a
// client after connecting; device and name narrow the request.
type GetProperties struct {
	Version string `xml:"version,attr"`
	Device  string `xml:"device,attr,omitempty"`
	Name    string `xml:"name,attr,omitempty"`
}

func (c *GetProperties) DeviceName() string { return c.Device }

func (c *GetProperties) finish() error {
	if c.Version == "" {
		return fmt.Errorf("getProperties: missing version")
	}
	return nil
}

// DefText is one text element inside a defTextVector.
type DefText struct {
	Name  string `xml:"name,attr"`
	Label string `xml:"label,attr,omitempty"`
	Value string `xml:",chardata"`
}

// OneText is one text element inside a set/newTextVector.
type OneText struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// DefTextVector declares a text property.
type DefTextVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Texts     []DefText     `xml:"defText"`
}

func (c *DefTextVector) DeviceName() string { return c.Device }

func (c *DefTextVector) finish() error {
	for i := range c.Texts {
		c.Texts[i].Value = strings.TrimSpace(c.Texts[i].Value)
	}
	return validateDef(c.Device, c.Name, c.State, c.Perm)
}

// SetTextVector pushes new values for a declared text property.
type SetTextVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Texts     []OneText     `xml:"oneText"`
}

func (c *SetTextVector) DeviceName() string { return c.Device }

func (c *SetTextVector) finish() error {
	for i := range c.Texts {
		c.Texts[i].Value = strings.TrimSpace(c.Texts[i].Value)
	}
	return validateSet(c.Device, c.Name, c.State)
}

// NewTextVector requests a text property change (client to device).
type NewTextVector struct {
	Device    string    `xml:"device,attr"`
	Name      string    `xml:"name,attr"`
	Timestamp Timestamp `xml:"timestamp,attr"`
	Texts     []OneText `xml:"oneText"`
}

func (c *NewTextVector) DeviceName() string { return c.Device }

func (c *NewTextVector) finish() error {
	for i := range c.Texts {
		c.Texts[i].Value = strings.TrimSpace(c.Texts[i].Value)
	}
	return validateNew(c.Device, c.Name)
}

// DefNumber is one numeric element inside a defNumberVector. Value is the
// canonical decimal form of the element body, which may have been
// sexagesimal on the wire.
type DefNumber struct {
	Name   string
	Label  string
	Format string
	Min    float64
	Max    float64
	Step   float64
	Value  float64
}

// UnmarshalXML implements xml.Unmarshaler; the element body needs
// sexagesimal-aware parsing that struct tags cannot express.
func (n *DefNumber) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var err error
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			n.Name = attr.Value
		case "label":
			n.Label = attr.Value
		case "format":
			n.Format = attr.Value
		case "min":
			if n.Min, err = strconv.ParseFloat(attr.Value, 64); err != nil {
				return fmt.Errorf("defNumber min: %w", err)
			}
		case "max":
			if n.Max, err = strconv.ParseFloat(attr.Value, 64); err != nil {
				return fmt.Errorf("defNumber max: %w", err)
			}
		case "step":
			if n.Step, err = strconv.ParseFloat(attr.Value, 64); err != nil {
				return fmt.Errorf("defNumber step: %w", err)
			}
		}
	}
	var body string
	if err := d.DecodeElement(&body, &start); err != nil {
		return err
	}
	n.Value, err = ParseNumber(body)
	return err
}

// MarshalXML implements xml.Marshaler.
func (n DefNumber) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", n.Name)
	if n.Label != "" {
		start.Attr = appendAttr(start.Attr, "label", n.Label)
	}
	start.Attr = appendAttr(start.Attr, "format", n.Format)
	start.Attr = appendAttr(start.Attr, "min", formatFloat(n.Min))
	start.Attr = appendAttr(start.Attr, "max", formatFloat(n.Max))
	start.Attr = appendAttr(start.Attr, "step", formatFloat(n.Step))
	return e.EncodeElement(formatFloat(n.Value), start)
}

// OneNumber is one numeric element inside a set/newNumberVector. On the
// set side, servers may revise min/max/step alongside the value.
type OneNumber struct {
	Name  string
	Min   *float64
	Max   *float64
	Step  *float64
	Value float64
}

// UnmarshalXML implements xml.Unmarshaler.
func (n *OneNumber) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			n.Name = attr.Value
		case "min", "max", "step":
			v, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				return fmt.Errorf("oneNumber %s: %w", attr.Name.Local, err)
			}
			switch attr.Name.Local {
			case "min":
				n.Min = &v
			case "max":
				n.Max = &v
			case "step":
				n.Step = &v
			}
		}
	}
	var body string
	if err := d.DecodeElement(&body, &start); err != nil {
		return err
	}
	var err error
	n.Value, err = ParseNumber(body)
	return err
}

// MarshalXML implements xml.Marshaler.
func (n OneNumber) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", n.Name)
	if n.Min != nil {
		start.Attr = appendAttr(start.Attr, "min", formatFloat(*n.Min))
	}
	if n.Max != nil {
		start.Attr = appendAttr(start.Attr, "max", formatFloat(*n.Max))
	}
	if n.Step != nil {
		start.Attr = appendAttr(start.Attr, "step", formatFloat(*n.Step))
	}
	return e.EncodeElement(formatFloat(n.Value), start)
}

// DefNumberVector declares a numeric property.
type DefNumberVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Numbers   []DefNumber   `xml:"defNumber"`
}

func (c *DefNumberVector) DeviceName() string { return c.Device }

func (c *DefNumberVector) finish() error {
	return validateDef(c.Device, c.Name, c.State, c.Perm)
}

// SetNumberVector pushes new values for a declared numeric property.
type SetNumberVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Numbers   []OneNumber   `xml:"oneNumber"`
}

func (c *SetNumberVector) DeviceName() string { return c.Device }

func (c *SetNumberVector) finish() error {
	return validateSet(c.Device, c.Name, c.State)
}

// NewNumberVector requests a numeric property change (client to device).
type NewNumberVector struct {
	Device    string      `xml:"device,attr"`
	Name      string      `xml:"name,attr"`
	Timestamp Timestamp   `xml:"timestamp,attr"`
	Numbers   []OneNumber `xml:"oneNumber"`
}

func (c *NewNumberVector) DeviceName() string { return c.Device }

func (c *NewNumberVector) finish() error {
	return validateNew(c.Device, c.Name)
}

// DefSwitch is one switch element inside a defSwitchVector.
type DefSwitch struct {
	Name  string      `xml:"name,attr"`
	Label string      `xml:"label,attr,omitempty"`
	Value SwitchState `xml:",chardata"`
}

// OneSwitch is one switch element inside a set/newSwitchVector.
type OneSwitch struct {
	Name  string      `xml:"name,attr"`
	Value SwitchState `xml:",chardata"`
}

// DefSwitchVector declares a switch property.
type DefSwitchVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Rule      SwitchRule    `xml:"rule,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Switches  []DefSwitch   `xml:"defSwitch"`
}

func (c *DefSwitchVector) DeviceName() string { return c.Device }

func (c *DefSwitchVector) finish() error {
	if !c.Rule.Valid() {
		return fmt.Errorf("defSwitchVector %s.%s: invalid rule %q", c.Device, c.Name, string(c.Rule))
	}
	for i := range c.Switches {
		c.Switches[i].Value = SwitchState(strings.TrimSpace(string(c.Switches[i].Value)))
		if !c.Switches[i].Value.Valid() {
			return fmt.Errorf("defSwitch %s: invalid value %q", c.Switches[i].Name, string(c.Switches[i].Value))
		}
	}
	return validateDef(c.Device, c.Name, c.State, c.Perm)
}

// SetSwitchVector pushes new values for a declared switch property.
type SetSwitchVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Switches  []OneSwitch   `xml:"oneSwitch"`
}

func (c *SetSwitchVector) DeviceName() string { return c.Device }

func (c *SetSwitchVector) finish() error {
	if err := trimSwitches(c.Switches); err != nil {
		return err
	}
	return validateSet(c.Device, c.Name, c.State)
}

// NewSwitchVector requests a switch property change (client to device).
type NewSwitchVector struct {
	Device    string      `xml:"device,attr"`
	Name      string      `xml:"name,attr"`
	Timestamp Timestamp   `xml:"timestamp,attr"`
	Switches  []OneSwitch `xml:"oneSwitch"`
}

func (c *NewSwitchVector) DeviceName() string { return c.Device }

func (c *NewSwitchVector) finish() error {
	if err := trimSwitches(c.Switches); err != nil {
		return err
	}
	return validateNew(c.Device, c.Name)
}

// DefLight is one light element inside a defLightVector.
type DefLight struct {
	Name  string        `xml:"name,attr"`
	Label string        `xml:"label,attr,omitempty"`
	Value PropertyState `xml:",chardata"`
}

// OneLight is one light element inside a setLightVector.
type OneLight struct {
	Name  string        `xml:"name,attr"`
	Value PropertyState `xml:",chardata"`
}

// DefLightVector declares a light property. Lights are read-only status
// indicators and carry no permission or rule.
type DefLightVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Lights    []DefLight    `xml:"defLight"`
}

func (c *DefLightVector) DeviceName() string { return c.Device }

func (c *DefLightVector) finish() error {
	for i := range c.Lights {
		c.Lights[i].Value = PropertyState(strings.TrimSpace(string(c.Lights[i].Value)))
		if !c.Lights[i].Value.Valid() {
			return fmt.Errorf("defLight %s: invalid value %q", c.Lights[i].Name, string(c.Lights[i].Value))
		}
	}
	return validateSet(c.Device, c.Name, c.State)
}

// SetLightVector pushes new values for a declared light property.
type SetLightVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Lights    []OneLight    `xml:"oneLight"`
}

func (c *SetLightVector) DeviceName() string { return c.Device }

func (c *SetLightVector) finish() error {
	for i := range c.Lights {
		c.Lights[i].Value = PropertyState(strings.TrimSpace(string(c.Lights[i].Value)))
		if !c.Lights[i].Value.Valid() {
			return fmt.Errorf("oneLight %s: invalid value %q", c.Lights[i].Name, string(c.Lights[i].Value))
		}
	}
	return validateSet(c.Device, c.Name, c.State)
}

// DefBLOB is one BLOB element inside a defBLOBVector. Declarations carry
// no payload.
type DefBLOB struct {
	Name  string `xml:"name,attr"`
	Label string `xml:"label,attr,omitempty"`
}

// OneBLOB is one BLOB element inside a setBLOBVector. Size is the decoded
// length declared by the sender; Format is a file-extension-like type tag
// such as ".fits". Value holds the decoded payload.
type OneBLOB struct {
	Name   string
	Size   uint64
	Enclen uint64
	Format string
	Value  []byte
}

// UnmarshalXML implements xml.Unmarshaler; the element body is base64
// and is decoded here, at element boundary, rather than buffered.
func (b *OneBLOB) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var err error
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			b.Name = attr.Value
		case "size":
			if b.Size, err = strconv.ParseUint(attr.Value, 10, 64); err != nil {
				return fmt.Errorf("oneBLOB size: %w", err)
			}
		case "enclen":
			if b.Enclen, err = strconv.ParseUint(attr.Value, 10, 64); err != nil {
				return fmt.Errorf("oneBLOB enclen: %w", err)
			}
		case "format":
			b.Format = attr.Value
		}
	}
	var body string
	if err := d.DecodeElement(&body, &start); err != nil {
		return err
	}
	// Servers wrap base64 in whitespace; the decoder rejects it.
	body = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, body)
	b.Value, err = base64.StdEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("oneBLOB %s: %w", b.Name, err)
	}
	return nil
}

// MarshalXML implements xml.Marshaler.
func (b OneBLOB) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	encoded := base64.StdEncoding.EncodeToString(b.Value)
	start.Attr = appendAttr(start.Attr, "name", b.Name)
	start.Attr = appendAttr(start.Attr, "size", strconv.FormatUint(b.Size, 10))
	if b.Enclen > 0 {
		start.Attr = appendAttr(start.Attr, "enclen", strconv.FormatUint(b.Enclen, 10))
	}
	start.Attr = appendAttr(start.Attr, "format", b.Format)
	return e.EncodeElement(encoded, start)
}

// DefBLOBVector declares a BLOB property.
type DefBLOBVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Blobs     []DefBLOB     `xml:"defBLOB"`
}

func (c *DefBLOBVector) DeviceName() string { return c.Device }

func (c *DefBLOBVector) finish() error {
	return validateDef(c.Device, c.Name, c.State, c.Perm)
}

// SetBLOBVector pushes BLOB payloads for a declared BLOB property. Only
// delivered after the client opts in with enableBLOB.
type SetBLOBVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   uint          `xml:"timeout,attr,omitempty"`
	Timestamp Timestamp     `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`
	Blobs     []OneBLOB     `xml:"oneBLOB"`
}

func (c *SetBLOBVector) DeviceName() string { return c.Device }

func (c *SetBLOBVector) finish() error {
	return validateSet(c.Device, c.Name, c.State)
}

// Message is a free-form log line from a device, or from the server
// itself when no device is given.
type Message struct {
	Device    string    `xml:"device,attr,omitempty"`
	Timestamp Timestamp `xml:"timestamp,attr"`
	Message   string    `xml:"message,attr,omitempty"`
}

func (c *Message) DeviceName() string { return c.Device }

func (c *Message) finish() error { return nil }

// DelProperty removes one property, or the whole device when Name is
// empty.
type DelProperty struct {
	Device    string    `xml:"device,attr"`
	Name      string    `xml:"name,attr,omitempty"`
	Timestamp Timestamp `xml:"timestamp,attr"`
	Message   string    `xml:"message,attr,omitempty"`
}

func (c *DelProperty) DeviceName() string { return c.Device }

func (c *DelProperty) finish() error {
	if c.Device == "" {
		return fmt.Errorf("delProperty: missing device")
	}
	return nil
}

// EnableBlob opts a connection in to (or out of) BLOB delivery for a
// device or a single property.
type EnableBlob struct {
	Device string     `xml:"device,attr"`
	Name   string     `xml:"name,attr,omitempty"`
	Value  BlobEnable `xml:",chardata"`
}

func (c *EnableBlob) DeviceName() string { return c.Device }

func (c *EnableBlob) finish() error {
	c.Value = BlobEnable(strings.TrimSpace(string(c.Value)))
	if c.Device == "" {
		return fmt.Errorf("enableBLOB: missing device")
	}
	if !c.Value.Valid() {
		return fmt.Errorf("enableBLOB %s: invalid mode %q", c.Device, string(c.Value))
	}
	return nil
}

func validateDef(device, name string, state PropertyState, perm PropertyPerm) error {
	if device == "" || name == "" {
		return fmt.Errorf("def vector: missing device or name")
	}
	if !state.Valid() {
		return fmt.Errorf("def vector %s.%s: invalid state %q", device, name, string(state))
	}
	if !perm.Valid() {
		return fmt.Errorf("def vector %s.%s: invalid perm %q", device, name, string(perm))
	}
	return nil
}

func validateSet(device, name string, state PropertyState) error {
	if device == "" || name == "" {
		return fmt.Errorf("set vector: missing device or name")
	}
	if !state.Valid() {
		return fmt.Errorf("set vector %s.%s: invalid state %q", device, name, string(state))
	}
	return nil
}

func validateNew(device, name string) error {
	if device == "" || name == "" {
		return fmt.Errorf("new vector: missing device or name")
	}
	return nil
}

func trimSwitches(switches []OneSwitch) error {
	for i := range switches {
		switches[i].Value = SwitchState(strings.TrimSpace(string(switches[i].Value)))
		if !switches[i].Value.Valid() {
			return fmt.Errorf("oneSwitch %s: invalid value %q", switches[i].Name, string(switches[i].Value))
		}
	}
	return nil
}

func appendAttr(attrs []xml.Attr, name, value string) []xml.Attr {
	return append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *GetProperties) tag() string   { return "getProperties" }
func (c *DefTextVector) tag() string   { return "defTextVector" }
func (c *SetTextVector) tag() string   { return "setTextVector" }
func (c *NewTextVector) tag() string   { return "newTextVector" }
func (c *DefNumberVector) tag() string { return "defNumberVector" }
func (c *SetNumberVector) tag() string { return "setNumberVector" }
func (c *NewNumberVector) tag() string { return "newNumberVector" }
func (c *DefSwitchVector) tag() string { return "defSwitchVector" }
func (c *SetSwitchVector) tag() string { return "setSwitchVector" }
func (c *NewSwitchVector) tag() string { return "newSwitchVector" }
func (c *DefLightVector) tag() string  { return "defLightVector" }
func (c *SetLightVector) tag() string  { return "setLightVector" }
func (c *DefBLOBVector) tag() string   { return "defBLOBVector" }
func (c *SetBLOBVector) tag() string   { return "setBLOBVector" }
func (c *Message) tag() string         { return "message" }
func (c *DelProperty) tag() string     { return "delProperty" }
func (c *EnableBlob) tag() string      { return "enableBLOB" }
