package client

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/twinkle-astronomy/twinkle/pkg/model"
	"github.com/twinkle-astronomy/twinkle/pkg/notify"
	"github.com/twinkle-astronomy/twinkle/pkg/wire"
)

// ErrAlert indicates the server answered a change request by putting
// the property into the Alert state.
var ErrAlert = errors.New("property alert")

// Device wraps one model device with command-sending capability.
type Device struct {
	client *Client
	device *model.Device
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.device.Name()
}

// Property returns the handle for one property vector.
func (d *Device) Property(name string) (*notify.Value[model.PropertyVector], bool) {
	return d.device.Property(name)
}

// Properties returns the handle publishing this device's property
// names.
func (d *Device) Properties() *notify.Value[model.NameList] {
	return d.device.Properties()
}

// Messages returns the handle publishing this device's message log.
func (d *Device) Messages() *notify.Value[model.MessageLog] {
	return d.device.Messages()
}

// EnableBlob opts in to BLOB delivery for this device, or one of its
// properties when name is non-empty.
func (d *Device) EnableBlob(name string, mode wire.BlobEnable) error {
	return d.client.EnableBlob(d.Name(), name, mode)
}

// ChangeNumbers sends a newNumberVector and blocks until the server
// confirms the requested values and the property leaves Busy.
func (d *Device) ChangeNumbers(ctx context.Context, property string, values map[string]float64) (model.PropertyVector, error) {
	var numbers []wire.OneNumber
	for _, name := range sortedKeys(values) {
		numbers = append(numbers, wire.OneNumber{Name: name, Value: values[name]})
	}
	cmd := &wire.NewNumberVector{
		Device: d.Name(), Name: property,
		Timestamp: wire.Now(), Numbers: numbers,
	}
	return d.change(ctx, property, model.KindNumber, cmd, func(p model.PropertyVector) bool {
		for name, want := range values {
			got, ok := p.Number(name)
			if !ok || got != want {
				return false
			}
		}
		return true
	})
}

// ChangeTexts sends a newTextVector and blocks until confirmed.
func (d *Device) ChangeTexts(ctx context.Context, property string, values map[string]string) (model.PropertyVector, error) {
	var texts []wire.OneText
	for _, name := range sortedKeys(values) {
		texts = append(texts, wire.OneText{Name: name, Value: values[name]})
	}
	cmd := &wire.NewTextVector{
		Device: d.Name(), Name: property,
		Timestamp: wire.Now(), Texts: texts,
	}
	return d.change(ctx, property, model.KindText, cmd, func(p model.PropertyVector) bool {
		for name, want := range values {
			got, ok := p.Text(name)
			if !ok || got != want {
				return false
			}
		}
		return true
	})
}

// ChangeSwitches sends a newSwitchVector and blocks until confirmed.
func (d *Device) ChangeSwitches(ctx context.Context, property string, values map[string]bool) (model.PropertyVector, error) {
	var switches []wire.OneSwitch
	for _, name := range sortedKeys(values) {
		switches = append(switches, wire.OneSwitch{Name: name, Value: wire.SwitchStateOf(values[name])})
	}
	cmd := &wire.NewSwitchVector{
		Device: d.Name(), Name: property,
		Timestamp: wire.Now(), Switches: switches,
	}
	return d.change(ctx, property, model.KindSwitch, cmd, func(p model.PropertyVector) bool {
		for name, want := range values {
			got, ok := p.Switch(name)
			if !ok || got != want {
				return false
			}
		}
		return true
	})
}

// change subscribes before sending so the confirmation cannot be
// missed, then waits for a snapshot that reflects the request with the
// property out of Busy.
func (d *Device) change(ctx context.Context, property string, kind model.Kind, cmd wire.Command, satisfied func(model.PropertyVector) bool) (model.PropertyVector, error) {
	handle, ok := d.device.Property(property)
	if !ok {
		return model.PropertyVector{}, fmt.Errorf("%w: %s.%s", model.ErrUnknownProperty, d.Name(), property)
	}
	if current := handle.Get(); current.Kind != kind {
		return model.PropertyVector{}, fmt.Errorf("%w: %s.%s is %s", model.ErrTypeMismatch, d.Name(), property, current.Kind)
	}

	sub := handle.Subscribe()
	defer sub.Close()

	if err := d.client.Send(cmd); err != nil {
		return model.PropertyVector{}, err
	}

	// The primed snapshot predates the request; a stale Alert on it is
	// not an answer.
	first := true
	for {
		p, err := sub.Next(ctx)
		if err != nil {
			return model.PropertyVector{}, err
		}
		if p.State == wire.StateAlert {
			if !first {
				return p, fmt.Errorf("%w: %s.%s: %s", ErrAlert, d.Name(), property, p.Message)
			}
		} else if p.State != wire.StateBusy && satisfied(p) {
			return p, nil
		}
		first = false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
