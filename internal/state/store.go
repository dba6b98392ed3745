package state

import (
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/notify"
)

// Store owns the authoritative printer Snapshot. Only the link's synchronizer
// mutates it; any number of consumers read or subscribe. The zero value is an
// empty, unsynced store ready for use.
type Store struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	discarded uint64
	now       func() time.Time

	hub notify.Hub[Snapshot]
}

// Snapshot returns the current snapshot. The returned value is immutable and
// safe to keep.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view()
}

// Epoch returns the current subscription generation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Epoch
}

// Discarded returns how many deltas were dropped because the store was waiting
// for a full replace.
func (s *Store) Discarded() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discarded
}

// Subscribe registers fn. Its first call carries the current snapshot; every later
// call follows exactly one replace, merge, invalidation or status change.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.hub.SubscribeWith(fn, s.Snapshot)
}

// Invalidate marks the snapshot as waiting for a full replace and starts a new
// epoch. Deltas are discarded until Replace is called with the returned epoch. A
// non-empty status overrides the derived device status.
func (s *Store) Invalidate(status DeviceStatus) uint64 {
	var epoch uint64
	s.hub.Update(func() (Snapshot, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.snapshot.Epoch++
		s.snapshot.Synced = false
		if status != "" {
			s.snapshot.Status = status
		}
		s.snapshot.UpdatedAt = s.clock()
		epoch = s.snapshot.Epoch
		return s.view(), true
	})
	return epoch
}

// Replace installs objects as the complete state for epoch, discarding everything
// merged before. It reports false, changing nothing, when epoch is stale.
func (s *Store) Replace(epoch uint64, objects Objects) bool {
	var applied bool
	s.hub.Update(func() (Snapshot, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if epoch != s.snapshot.Epoch {
			return Snapshot{}, false
		}
		if objects == nil {
			objects = Objects{}
		}
		s.snapshot.Objects = objects
		s.snapshot.Synced = true
		s.snapshot.Sequence = 0
		s.snapshot.Status, s.snapshot.Message = deriveStatus(objects)
		s.snapshot.UpdatedAt = s.clock()
		applied = true
		return s.view(), true
	})
	return applied
}

// Merge deep-merges delta into the snapshot and notifies observers once. While
// the store is not synced the delta is discarded and Merge reports false.
func (s *Store) Merge(delta Objects) bool {
	var applied bool
	s.hub.Update(func() (Snapshot, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.snapshot.Synced {
			s.discarded++
			return Snapshot{}, false
		}
		s.snapshot.Objects = s.snapshot.Objects.Merge(delta)
		s.snapshot.Sequence++
		s.snapshot.Status, s.snapshot.Message = deriveStatus(s.snapshot.Objects)
		s.snapshot.UpdatedAt = s.clock()
		applied = true
		return s.view(), true
	})
	return applied
}

// SetStatus overrides the device status until the next replace or merge derives
// it again.
func (s *Store) SetStatus(status DeviceStatus, message string) {
	s.hub.Update(func() (Snapshot, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.snapshot.Status == status && s.snapshot.Message == message {
			return Snapshot{}, false
		}
		s.snapshot.Status = status
		s.snapshot.Message = message
		s.snapshot.UpdatedAt = s.clock()
		return s.view(), true
	})
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Store) view() Snapshot {
	snap := s.snapshot
	if snap.Status == "" {
		snap.Status = StatusUnknown
	}
	return snap
}
