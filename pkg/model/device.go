package model

import (
	"sync"

	"github.com/twinkle-astronomy/twinkle/pkg/notify"
)

// Device is one device announced by the server: a set of property
// vector handles plus a message log. Devices are created and removed by
// Model.Apply.
type Device struct {
	name string

	mu         sync.RWMutex
	properties map[string]*notify.Value[PropertyVector]

	names    *notify.Value[NameList]
	messages *notify.Value[MessageLog]
}

func newDevice(name string) *Device {
	return &Device{
		name:       name,
		properties: make(map[string]*notify.Value[PropertyVector]),
		names:      notify.NewValue(NameList{}),
		messages:   notify.NewValue(MessageLog{}),
	}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Property returns the handle for one property vector. The handle
// stays valid across redefinitions of the property; it is detached
// once the property is deleted.
func (d *Device) Property(name string) (*notify.Value[PropertyVector], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.properties[name]
	return p, ok
}

// Properties returns the handle publishing this device's property
// names, in declaration order. It notifies on property add and remove.
func (d *Device) Properties() *notify.Value[NameList] {
	return d.names
}

// Messages returns the handle publishing this device's message log.
func (d *Device) Messages() *notify.Value[MessageLog] {
	return d.messages
}

// define installs or wholesale-replaces a property vector. The existing
// handle is reused so subscribers survive a redefinition.
func (d *Device) define(vector PropertyVector) {
	d.mu.Lock()
	handle, existed := d.properties[vector.Name]
	if !existed {
		handle = notify.NewValue(vector)
		d.properties[vector.Name] = handle
	}
	d.mu.Unlock()

	if existed {
		handle.Set(vector)
		return
	}
	name := vector.Name
	d.names.Update(func(l NameList) NameList {
		return append(l, name)
	})
}

// remove deletes one property and reports whether it existed and how
// many properties remain.
func (d *Device) remove(name string) (existed bool, remaining int) {
	d.mu.Lock()
	_, existed = d.properties[name]
	if existed {
		delete(d.properties, name)
	}
	remaining = len(d.properties)
	d.mu.Unlock()

	if existed {
		d.names.Update(func(l NameList) NameList {
			return l.remove(name)
		})
	}
	return existed, remaining
}

// appendMessage adds one entry to the device message log.
func (d *Device) appendMessage(entry LogEntry) {
	d.messages.Update(func(l MessageLog) MessageLog {
		return l.appendEntry(entry)
	})
}
