package history

import (
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/notify"
)

// DefaultDiagnosticsCapacity bounds the diagnostics ring when no capacity is
// configured.
const DefaultDiagnosticsCapacity = 50

// Status is the lifecycle state of a diagnostic entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DiagnosticEntry records one RPC call or one synthetic connection event.
type DiagnosticEntry struct {
	ID       uint64
	Method   string
	Status   Status
	Started  time.Time
	Duration *time.Duration // nil while pending
	Error    string
}

// Diagnostics is a bounded log of RPC calls and connection transitions kept for
// operator troubleshooting. It is safe for concurrent use.
type Diagnostics struct {
	mu   sync.Mutex
	ring *Ring[DiagnosticEntry]
	seq  uint64
	now  func() time.Time
	hub  notify.Hub[DiagnosticEntry]
}

// NewDiagnostics returns a recorder holding at most capacity entries.
func NewDiagnostics(capacity int) *Diagnostics {
	if capacity <= 0 {
		capacity = DefaultDiagnosticsCapacity
	}
	return &Diagnostics{ring: NewRing[DiagnosticEntry](capacity), now: time.Now}
}

// Begin appends a pending entry for method and returns its id.
func (d *Diagnostics) Begin(method string) uint64 {
	var id uint64
	d.hub.Update(func() (DiagnosticEntry, bool) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.seq++
		id = d.seq
		entry := DiagnosticEntry{ID: id, Method: method, Status: StatusPending, Started: d.now()}
		d.ring.Push(entry)
		return entry, true
	})
	return id
}

// Finish resolves the pending entry id. A nil err marks success. Entries that
// were already evicted are ignored.
func (d *Diagnostics) Finish(id uint64, err error) {
	d.hub.Update(func() (DiagnosticEntry, bool) {
		d.mu.Lock()
		defer d.mu.Unlock()
		now := d.now()
		return d.ring.UpdateNewest(
			func(e DiagnosticEntry) bool { return e.ID == id },
			func(e *DiagnosticEntry) {
				elapsed := now.Sub(e.Started)
				e.Duration = &elapsed
				e.Status = StatusSuccess
				if err != nil {
					e.Status = StatusError
					e.Error = err.Error()
				}
			},
		)
	})
}

// Event appends an already-resolved entry, used for connection transitions and
// discarded frames.
func (d *Diagnostics) Event(method string, err error) {
	d.hub.Update(func() (DiagnosticEntry, bool) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.seq++
		var zero time.Duration
		entry := DiagnosticEntry{
			ID:       d.seq,
			Method:   method,
			Status:   StatusSuccess,
			Started:  d.now(),
			Duration: &zero,
		}
		if err != nil {
			entry.Status = StatusError
			entry.Error = err.Error()
		}
		d.ring.Push(entry)
		return entry, true
	})
}

// Entries returns the retained entries, oldest first.
func (d *Diagnostics) Entries() []DiagnosticEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ring.Items()
}

// Subscribe registers fn for every appended or updated entry.
func (d *Diagnostics) Subscribe(fn func(DiagnosticEntry)) func() {
	return d.hub.Subscribe(fn)
}
