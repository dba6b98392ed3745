package history

import (
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/notify"
)

// DefaultConsoleCapacity bounds the console ring when no capacity is configured.
const DefaultConsoleCapacity = 500

// Kind classifies a console line.
type Kind string

const (
	KindCommand  Kind = "command"
	KindResponse Kind = "response"
	KindError    Kind = "error"
	KindInfo     Kind = "info"
)

// ConsoleEntry is one line of console history.
type ConsoleEntry struct {
	Time    time.Time
	Message string
	Kind    Kind
}

// Console is the append-only command history shown by console views. It records
// what was attempted regardless of whether sending succeeded.
type Console struct {
	mu   sync.Mutex
	ring *Ring[ConsoleEntry]
	now  func() time.Time
	hub  notify.Hub[ConsoleEntry]
}

// NewConsole returns a console log holding at most capacity entries.
func NewConsole(capacity int) *Console {
	if capacity <= 0 {
		capacity = DefaultConsoleCapacity
	}
	return &Console{ring: NewRing[ConsoleEntry](capacity), now: time.Now}
}

// Append records message and notifies subscribers.
func (c *Console) Append(message string, kind Kind) ConsoleEntry {
	var entry ConsoleEntry
	c.hub.Update(func() (ConsoleEntry, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		entry = ConsoleEntry{Time: c.now(), Message: message, Kind: kind}
		c.ring.Push(entry)
		return entry, true
	})
	return entry
}

// Entries returns the retained lines, oldest first.
func (c *Console) Entries() []ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ring.Items()
}

// Subscribe registers fn for every appended line.
func (c *Console) Subscribe(fn func(ConsoleEntry)) func() {
	return c.hub.Subscribe(fn)
}
