package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownRoom     = errors.New("room does not exist in environment")
	ErrUnknownDevice   = errors.New("device does not exist in room")
	ErrUnknownProperty = errors.New("property does not exist on device")
)

type DeviceState struct {
	Value      string `json:"value" yaml:"value"`
	Observable bool   `json:"observable" yaml:"observable"`
}

type Device struct {
	Name       string                 `json:"name" yaml:"name"`
	Display    string                 `json:"display,omitempty" yaml:"display,omitempty"`
	Properties map[string]DeviceState `json:"properties" yaml:"properties"`
}

type Room struct {
	Display string   `json:"display,omitempty" yaml:"display,omitempty"`
	Devices []Device `json:"devices" yaml:"devices"`
}

// Environment is the device/room state graph for one household. Each branch
// of a simulation owns its own copy; copies are produced with Snapshot and
// never shared by reference.
type Environment struct {
	Rooms map[string]Room `json:"rooms" yaml:"rooms"`
}

// StateChange records a single applied property mutation.
type StateChange struct {
	Room     string `json:"room"`
	Device   string `json:"device"`
	Property string `json:"property"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// Snapshot returns a fully independent deep copy. Mutating the copy never
// affects the receiver, and vice versa.
func (e *Environment) Snapshot() *Environment {
	cp := &Environment{Rooms: make(map[string]Room, len(e.Rooms))}
	for key, room := range e.Rooms {
		devices := make([]Device, len(room.Devices))
		for i, d := range room.Devices {
			props := make(map[string]DeviceState, len(d.Properties))
			for name, state := range d.Properties {
				props[name] = state
			}
			devices[i] = Device{Name: d.Name, Display: d.Display, Properties: props}
		}
		cp.Rooms[key] = Room{Display: room.Display, Devices: devices}
	}
	return cp
}

// RoomNames returns room keys in sorted order so iteration is deterministic.
func (e *Environment) RoomNames() []string {
	names := make([]string, 0, len(e.Rooms))
	for name := range e.Rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Environment) device(room, device string) (*Device, error) {
	r, ok := e.Rooms[room]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	for i := range r.Devices {
		if r.Devices[i].Name == device {
			return &r.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownDevice, room, device)
}

// HasProperty reports whether room.device.property exists.
func (e *Environment) HasProperty(room, device, property string) bool {
	d, err := e.device(room, device)
	if err != nil {
		return false
	}
	_, ok := d.Properties[property]
	return ok
}

// Value returns the current value of room.device.property.
func (e *Environment) Value(room, device, property string) (string, error) {
	d, err := e.device(room, device)
	if err != nil {
		return "", err
	}
	state, ok := d.Properties[property]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s.%s", ErrUnknownProperty, room, device, property)
	}
	return state.Value, nil
}

// Apply mutates room.device.property to newValue and returns the resulting
// StateChange. The mutation is all-or-nothing: if the target does not exist,
// nothing changes and an error is returned.
func (e *Environment) Apply(room, device, property, newValue string) (StateChange, error) {
	d, err := e.device(room, device)
	if err != nil {
		return StateChange{}, err
	}
	state, ok := d.Properties[property]
	if !ok {
		return StateChange{}, fmt.Errorf("%w: %s.%s.%s", ErrUnknownProperty, room, device, property)
	}
	before := state.Value
	state.Value = newValue
	d.Properties[property] = state
	return StateChange{Room: room, Device: device, Property: property, Before: before, After: newValue}, nil
}

// FindDevice locates a device by name, preferring preferRoom, then searching
// all rooms in sorted order. Returns the room key holding the device.
func (e *Environment) FindDevice(name, preferRoom string) (string, bool) {
	if r, ok := e.Rooms[preferRoom]; ok {
		for i := range r.Devices {
			if r.Devices[i].Name == name {
				return preferRoom, true
			}
		}
	}
	for _, room := range e.RoomNames() {
		r := e.Rooms[room]
		for i := range r.Devices {
			if r.Devices[i].Name == name {
				return room, true
			}
		}
	}
	return "", false
}

func (e *Environment) roomDisplay(room string) string {
	if r, ok := e.Rooms[room]; ok && r.Display != "" {
		return r.Display
	}
	return room
}

func (e *Environment) deviceDisplay(room, device string) string {
	if d, err := e.device(room, device); err == nil && d.Display != "" {
		return d.Display
	}
	return device
}

// observable reports whether a change touched a property flagged observable.
func (e *Environment) observable(c StateChange) bool {
	d, err := e.device(c.Room, c.Device)
	if err != nil {
		return false
	}
	state, ok := d.Properties[c.Property]
	return ok && state.Observable
}

// DescribeObservableChanges renders the state changes an outside party could
// perceive as natural-language sentences. Changes to properties not flagged
// observable are dropped entirely; their values never appear in the output.
func (e *Environment) DescribeObservableChanges(changes []StateChange) string {
	var sentences []string
	for _, c := range changes {
		if !e.observable(c) {
			continue
		}
		sentences = append(sentences, e.describeChange(c))
	}
	if len(sentences) == 0 {
		return "관측 가능한 변화 없음"
	}
	return strings.Join(sentences, " ")
}

func (e *Environment) describeChange(c StateChange) string {
	subject := strings.TrimSpace(e.roomDisplay(c.Room) + " " + e.deviceDisplay(c.Room, c.Device))
	switch c.Property {
	case "power":
		switch c.After {
		case "on":
			return fmt.Sprintf("%s%s 켜졌다", subject, subjectParticle(subject))
		case "off":
			return fmt.Sprintf("%s%s 꺼졌다", subject, subjectParticle(subject))
		}
		return fmt.Sprintf("%s 전원이 %s에서 %s%s 바뀌었다", subject, c.Before, c.After, directionParticle(c.After))
	case "temperature":
		return fmt.Sprintf("%s 온도가 %s도에서 %s도로 바뀌었다", subject, c.Before, c.After)
	case "brightness":
		return fmt.Sprintf("%s 밝기가 %s에서 %s%s 바뀌었다", subject, c.Before, c.After, directionParticle(c.After))
	case "volume":
		return fmt.Sprintf("%s 음량이 %s에서 %s%s 바뀌었다", subject, c.Before, c.After, directionParticle(c.After))
	default:
		return fmt.Sprintf("%s의 %s 상태가 %s에서 %s%s 바뀌었다", subject, c.Property, c.Before, c.After, directionParticle(c.After))
	}
}

// subjectParticle picks 이 or 가 depending on whether the word ends in a
// Hangul final consonant.
func subjectParticle(word string) string {
	if jong, ok := finalJamo(word); ok && jong != 0 {
		return "이"
	}
	return "가"
}

// directionParticle picks 으로 or 로 for the "changed to X" form. Final ㄹ
// takes 로 like open syllables do.
func directionParticle(word string) string {
	if jong, ok := finalJamo(word); ok && jong != 0 && jong != 8 {
		return "으로"
	}
	return "로"
}

// finalJamo returns the jongseong index of the last rune when it is a Hangul
// syllable, with 0 meaning no final consonant.
func finalJamo(word string) (int, bool) {
	runes := []rune(word)
	if len(runes) == 0 {
		return 0, false
	}
	last := runes[len(runes)-1]
	if last < 0xAC00 || last > 0xD7A3 {
		return 0, false
	}
	return int((last - 0xAC00) % 28), true
}
