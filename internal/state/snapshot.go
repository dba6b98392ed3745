package state

import "time"

// DeviceStatus is the top-level printer status derived from the webhooks and
// print_stats objects.
type DeviceStatus string

const (
	StatusUnknown      DeviceStatus = "unknown"
	StatusStartup      DeviceStatus = "startup"
	StatusReady        DeviceStatus = "ready"
	StatusPrinting     DeviceStatus = "printing"
	StatusPaused       DeviceStatus = "paused"
	StatusError        DeviceStatus = "error"
	StatusShutdown     DeviceStatus = "shutdown"
	StatusDisconnected DeviceStatus = "disconnected"
)

// Snapshot is an immutable view of remote printer state.
type Snapshot struct {
	Objects   Objects
	Status    DeviceStatus
	Message   string
	Synced    bool   // false until the current subscription delivered its full state
	Epoch     uint64 // subscription generation; bumped on every invalidation
	Sequence  uint64 // merges applied since the last full replace
	UpdatedAt time.Time
}

// Object returns the fields of the named object.
func (s Snapshot) Object(name string) (Fields, bool) {
	fields, ok := s.Objects[name]
	return fields, ok
}

// Field looks up object.field[.nested...].
func (s Snapshot) Field(object string, path ...string) (Value, bool) {
	fields, ok := s.Objects[object]
	if !ok || len(path) == 0 {
		return Value{}, false
	}
	v, ok := fields[path[0]]
	if !ok {
		return Value{}, false
	}
	return v.Get(path[1:]...)
}

// Float is Field narrowed to numbers.
func (s Snapshot) Float(object string, path ...string) (float64, bool) {
	v, ok := s.Field(object, path...)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Text is Field narrowed to strings.
func (s Snapshot) Text(object string, path ...string) (string, bool) {
	v, ok := s.Field(object, path...)
	if !ok {
		return "", false
	}
	return v.Str()
}

func deriveStatus(objects Objects) (DeviceStatus, string) {
	probe := Snapshot{Objects: objects}
	message, _ := probe.Text("webhooks", "state_message")
	webhooks, ok := probe.Text("webhooks", "state")
	if !ok {
		return StatusUnknown, message
	}
	switch webhooks {
	case "ready":
		printState, _ := probe.Text("print_stats", "state")
		switch printState {
		case "printing":
			return StatusPrinting, message
		case "paused":
			return StatusPaused, message
		}
		return StatusReady, message
	case "startup":
		return StatusStartup, message
	case "shutdown":
		return StatusShutdown, message
	case "error":
		return StatusError, message
	default:
		return StatusUnknown, message
	}
}
