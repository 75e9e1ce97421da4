package model

import "github.com/twinkle-astronomy/twinkle/pkg/wire"

// Element is one named member of a property vector.
type Element struct {
	Name  string
	Label string
	Value Value
}

// PropertyVector is an immutable snapshot of one property: its
// metadata plus its elements in declaration order. Snapshots are
// published through notify handles; Clone before mutating.
type PropertyVector struct {
	Device    string
	Name      string
	Kind      Kind
	Label     string
	Group     string
	State     wire.PropertyState
	Perm      wire.PropertyPerm
	Rule      wire.SwitchRule
	Timeout   uint
	Timestamp wire.Timestamp
	Message   string
	Elements  []Element
}

// Clone returns an independent deep copy.
func (p PropertyVector) Clone() PropertyVector {
	elements := make([]Element, len(p.Elements))
	for i, e := range p.Elements {
		e.Value = cloneValue(e.Value)
		elements[i] = e
	}
	p.Elements = elements
	return p
}

// Element returns the named element.
func (p PropertyVector) Element(name string) (Element, bool) {
	for _, e := range p.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// Number returns the named element's numeric value.
func (p PropertyVector) Number(name string) (float64, bool) {
	e, ok := p.Element(name)
	if !ok {
		return 0, false
	}
	n, ok := e.Value.(Number)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

// Text returns the named element's text value.
func (p PropertyVector) Text(name string) (string, bool) {
	e, ok := p.Element(name)
	if !ok {
		return "", false
	}
	t, ok := e.Value.(Text)
	if !ok {
		return "", false
	}
	return t.Value, true
}

// Switch returns the named element's switch position.
func (p PropertyVector) Switch(name string) (bool, bool) {
	e, ok := p.Element(name)
	if !ok {
		return false, false
	}
	s, ok := e.Value.(Switch)
	if !ok {
		return false, false
	}
	return s.On, true
}

// OnSwitch returns the name of the first element that is switched on.
// Useful for OneOfMany properties, where at most one element is on.
func (p PropertyVector) OnSwitch() (string, bool) {
	for _, e := range p.Elements {
		if s, ok := e.Value.(Switch); ok && s.On {
			return e.Name, true
		}
	}
	return "", false
}

// NameList is an ordered list of device or property names published by
// model handles.
type NameList []string

// Clone returns an independent copy.
func (l NameList) Clone() NameList {
	return append(NameList(nil), l...)
}

// Contains reports whether name is in the list.
func (l NameList) Contains(name string) bool {
	for _, n := range l {
		if n == name {
			return true
		}
	}
	return false
}

// remove returns the list with name filtered out.
func (l NameList) remove(name string) NameList {
	out := l[:0]
	for _, n := range l {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// LogEntry is one line of a device or connection message log.
type LogEntry struct {
	Timestamp wire.Timestamp
	Text      string
}

// messageLogCap bounds message logs; the oldest entries are dropped.
const messageLogCap = 256

// MessageLog is a bounded, oldest-first message log.
type MessageLog []LogEntry

// Clone returns an independent copy.
func (l MessageLog) Clone() MessageLog {
	return append(MessageLog(nil), l...)
}

// appendEntry adds an entry, dropping the oldest past messageLogCap.
func (l MessageLog) appendEntry(e LogEntry) MessageLog {
	l = append(l, e)
	if len(l) > messageLogCap {
		l = l[len(l)-messageLogCap:]
	}
	return l
}
