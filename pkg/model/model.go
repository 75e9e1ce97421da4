package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/twinkle-astronomy/twinkle/pkg/notify"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// Model errors.
var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrUnknownProperty = errors.New("unknown property")
	ErrTypeMismatch    = errors.New("element type mismatch")
)

// Model is the live state graph of one connection. It is mutated only
// through Apply; all reads go through notify handles or accessors.
type Model struct {
	mu      sync.RWMutex
	devices map[string]*Device

	names    *notify.Value[NameList]
	messages *notify.Value[MessageLog]
}

// New creates an empty model.
func New() *Model {
	return &Model{
		devices:  make(map[string]*Device),
		names:    notify.NewValue(NameList{}),
		messages: notify.NewValue(MessageLog{}),
	}
}

// Device returns a device by name.
func (m *Model) Device(name string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[name]
	return d, ok
}

// Devices returns the handle publishing the device names, in
// announcement order. It notifies on device add and remove.
func (m *Model) Devices() *notify.Value[NameList] {
	return m.names
}

// Messages returns the handle publishing the connection-level message
// log: message commands that name no device, or an unknown one.
func (m *Model) Messages() *notify.Value[MessageLog] {
	return m.messages
}

// Apply mutates the graph according to one incoming command.
// getProperties and enableBLOB are client-to-server commands and are
// ignored. Errors are per-command; the model stays consistent and
// Apply may be called again.
func (m *Model) Apply(cmd wire.Command) error {
	switch c := cmd.(type) {
	case *wire.DefTextVector:
		m.define(textVector(c), c.Message, c.Timestamp)
	case *wire.DefNumberVector:
		m.define(numberVector(c), c.Message, c.Timestamp)
	case *wire.DefSwitchVector:
		m.define(switchVector(c), c.Message, c.Timestamp)
	case *wire.DefLightVector:
		m.define(lightVector(c), c.Message, c.Timestamp)
	case *wire.DefBLOBVector:
		m.define(blobVector(c), c.Message, c.Timestamp)

	case *wire.SetTextVector:
		return m.merge(c.Device, c.Name, KindText, setMeta(c.State, c.Timeout, c.Timestamp, c.Message), func(p *PropertyVector) {
			for _, t := range c.Texts {
				mergeElement(p, t.Name, Text{Value: t.Value})
			}
		})
	case *wire.SetNumberVector:
		return m.merge(c.Device, c.Name, KindNumber, setMeta(c.State, c.Timeout, c.Timestamp, c.Message), func(p *PropertyVector) {
			for _, n := range c.Numbers {
				mergeNumber(p, n)
			}
		})
	case *wire.SetSwitchVector:
		return m.merge(c.Device, c.Name, KindSwitch, setMeta(c.State, c.Timeout, c.Timestamp, c.Message), func(p *PropertyVector) {
			for _, s := range c.Switches {
				mergeElement(p, s.Name, Switch{On: s.Value.Bool()})
			}
		})
	case *wire.SetLightVector:
		return m.merge(c.Device, c.Name, KindLight, setMeta(c.State, 0, c.Timestamp, c.Message), func(p *PropertyVector) {
			for _, l := range c.Lights {
				mergeElement(p, l.Name, Light{State: l.Value})
			}
		})
	case *wire.SetBLOBVector:
		return m.merge(c.Device, c.Name, KindBlob, setMeta(c.State, c.Timeout, c.Timestamp, c.Message), func(p *PropertyVector) {
			for _, b := range c.Blobs {
				mergeElement(p, b.Name, Blob{Format: b.Format, Size: b.Size, Data: b.Value})
			}
		})

	case *wire.NewTextVector:
		return m.merge(c.Device, c.Name, KindText, newMeta(c.Timestamp), func(p *PropertyVector) {
			for _, t := range c.Texts {
				mergeElement(p, t.Name, Text{Value: t.Value})
			}
		})
	case *wire.NewNumberVector:
		return m.merge(c.Device, c.Name, KindNumber, newMeta(c.Timestamp), func(p *PropertyVector) {
			for _, n := range c.Numbers {
				mergeNumber(p, n)
			}
		})
	case *wire.NewSwitchVector:
		return m.merge(c.Device, c.Name, KindSwitch, newMeta(c.Timestamp), func(p *PropertyVector) {
			for _, s := range c.Switches {
				mergeElement(p, s.Name, Switch{On: s.Value.Bool()})
			}
		})

	case *wire.DelProperty:
		return m.applyDelete(c)

	case *wire.Message:
		m.applyMessage(c)
	}
	return nil
}

// define installs or replaces a property, creating the device on first
// sight.
func (m *Model) define(vector PropertyVector, message string, timestamp wire.Timestamp) {
	m.mu.Lock()
	d, ok := m.devices[vector.Device]
	if !ok {
		d = newDevice(vector.Device)
		m.devices[vector.Device] = d
	}
	m.mu.Unlock()

	if !ok {
		name := vector.Device
		m.names.Update(func(l NameList) NameList {
			return append(l, name)
		})
	}
	d.define(vector)
	if message != "" {
		d.appendMessage(LogEntry{Timestamp: timestamp, Text: message})
	}
}

// merge applies meta and element updates to one existing property.
func (m *Model) merge(device, name string, kind Kind, meta func(*PropertyVector), elements func(*PropertyVector)) error {
	d, ok := m.Device(device)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	handle, ok := d.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, device, name)
	}
	if current := handle.Get(); current.Kind != kind {
		return fmt.Errorf("%w: %s.%s is %s, update is %s", ErrTypeMismatch, device, name, current.Kind, kind)
	}

	var message string
	handle.Update(func(p PropertyVector) PropertyVector {
		meta(&p)
		elements(&p)
		message = p.Message
		return p
	})
	if message != "" {
		d.appendMessage(LogEntry{Timestamp: handle.Get().Timestamp, Text: message})
	}
	return nil
}

// setMeta updates the metadata a set command may revise. A zero
// timeout means unchanged (absent on the wire).
func setMeta(state wire.PropertyState, timeout uint, timestamp wire.Timestamp, message string) func(*PropertyVector) {
	return func(p *PropertyVector) {
		p.State = state
		if timeout != 0 {
			p.Timeout = timeout
		}
		if !timestamp.IsZero() {
			p.Timestamp = timestamp
		}
		p.Message = message
	}
}

// newMeta updates the metadata a new command carries. Client-side
// writes do not change the property state; the server confirms with a
// set.
func newMeta(timestamp wire.Timestamp) func(*PropertyVector) {
	return func(p *PropertyVector) {
		if !timestamp.IsZero() {
			p.Timestamp = timestamp
		}
		p.Message = ""
	}
}

// mergeElement updates one element in place, or appends it when the
// server sends a name the declaration did not include.
func mergeElement(p *PropertyVector, name string, value Value) {
	for i := range p.Elements {
		if p.Elements[i].Name == name {
			p.Elements[i].Value = value
			return
		}
	}
	p.Elements = append(p.Elements, Element{Name: name, Value: value})
}

// mergeNumber updates a numeric element, honouring optional
// min/max/step revisions.
func mergeNumber(p *PropertyVector, one wire.OneNumber) {
	for i := range p.Elements {
		if p.Elements[i].Name != one.Name {
			continue
		}
		n, ok := p.Elements[i].Value.(Number)
		if !ok {
			n = Number{}
		}
		n.Value = one.Value
		if one.Min != nil {
			n.Min = *one.Min
		}
		if one.Max != nil {
			n.Max = *one.Max
		}
		if one.Step != nil {
			n.Step = *one.Step
		}
		p.Elements[i].Value = n
		return
	}

	n := Number{Value: one.Value}
	if one.Min != nil {
		n.Min = *one.Min
	}
	if one.Max != nil {
		n.Max = *one.Max
	}
	if one.Step != nil {
		n.Step = *one.Step
	}
	p.Elements = append(p.Elements, Element{Name: one.Name, Value: n})
}

// applyDelete removes one property, or the whole device when the
// command names none. A device whose last property is removed is
// removed as well.
func (m *Model) applyDelete(c *wire.DelProperty) error {
	d, ok := m.Device(c.Device)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, c.Device)
	}

	if c.Name == "" {
		m.removeDevice(c.Device)
		return nil
	}

	existed, remaining := d.remove(c.Name)
	if !existed {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, c.Device, c.Name)
	}
	if remaining == 0 {
		m.removeDevice(c.Device)
	}
	return nil
}

func (m *Model) removeDevice(name string) {
	m.mu.Lock()
	delete(m.devices, name)
	m.mu.Unlock()

	m.names.Update(func(l NameList) NameList {
		return l.remove(name)
	})
}

// applyMessage routes a message command to its device's log, or to the
// connection-level log when the device is absent or unknown.
func (m *Model) applyMessage(c *wire.Message) {
	entry := LogEntry{Timestamp: c.Timestamp, Text: c.Message}
	if c.Device != "" {
		if d, ok := m.Device(c.Device); ok {
			d.appendMessage(entry)
			return
		}
	}
	m.messages.Update(func(l MessageLog) MessageLog {
		return l.appendEntry(entry)
	})
}

// textVector builds the snapshot for a defTextVector.
func textVector(c *wire.DefTextVector) PropertyVector {
	p := PropertyVector{
		Device: c.Device, Name: c.Name, Kind: KindText,
		Label: c.Label, Group: c.Group,
		State: c.State, Perm: c.Perm,
		Timeout: c.Timeout, Timestamp: c.Timestamp, Message: c.Message,
	}
	for _, t := range c.Texts {
		p.Elements = append(p.Elements, Element{Name: t.Name, Label: t.Label, Value: Text{Value: t.Value}})
	}
	return p
}

// numberVector builds the snapshot for a defNumberVector.
func numberVector(c *wire.DefNumberVector) PropertyVector {
	p := PropertyVector{
		Device: c.Device, Name: c.Name, Kind: KindNumber,
		Label: c.Label, Group: c.Group,
		State: c.State, Perm: c.Perm,
		Timeout: c.Timeout, Timestamp: c.Timestamp, Message: c.Message,
	}
	for _, n := range c.Numbers {
		p.Elements = append(p.Elements, Element{Name: n.Name, Label: n.Label, Value: Number{
			Value: n.Value, Format: n.Format, Min: n.Min, Max: n.Max, Step: n.Step,
		}})
	}
	return p
}

// switchVector builds the snapshot for a defSwitchVector.
func switchVector(c *wire.DefSwitchVector) PropertyVector {
	p := PropertyVector{
		Device: c.Device, Name: c.Name, Kind: KindSwitch,
		Label: c.Label, Group: c.Group,
		State: c.State, Perm: c.Perm, Rule: c.Rule,
		Timeout: c.Timeout, Timestamp: c.Timestamp, Message: c.Message,
	}
	for _, s := range c.Switches {
		p.Elements = append(p.Elements, Element{Name: s.Name, Label: s.Label, Value: Switch{On: s.Value.Bool()}})
	}
	return p
}

// lightVector builds the snapshot for a defLightVector.
func lightVector(c *wire.DefLightVector) PropertyVector {
	p := PropertyVector{
		Device: c.Device, Name: c.Name, Kind: KindLight,
		Label: c.Label, Group: c.Group,
		State: c.State, Perm: wire.PermReadOnly,
		Timestamp: c.Timestamp, Message: c.Message,
	}
	for _, l := range c.Lights {
		p.Elements = append(p.Elements, Element{Name: l.Name, Label: l.Label, Value: Light{State: l.Value}})
	}
	return p
}

// blobVector builds the snapshot for a defBLOBVector.
func blobVector(c *wire.DefBLOBVector) PropertyVector {
	p := PropertyVector{
		Device: c.Device, Name: c.Name, Kind: KindBlob,
		Label: c.Label, Group: c.Group,
		State: c.State, Perm: c.Perm,
		Timeout: c.Timeout, Timestamp: c.Timestamp, Message: c.Message,
	}
	for _, b := range c.Blobs {
		p.Elements = append(p.Elements, Element{Name: b.Name, Label: b.Label, Value: Blob{}})
	}
	return p
}
