package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/Extrutex/KATANA-Klipper-Installer/internal/moonraker"
)

// Health is the latest host health data polled over the link.
type Health struct {
	Server              moonraker.ServerInfo
	HasServer           bool
	System              moonraker.SystemInfo
	HasSystem           bool
	Proc                moonraker.ProcStats
	HasProc             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when health polls failed repeatedly.
func (h Health) IsOffline() bool {
	return h.ConsecutiveFailures >= 2
}

// MemoryPercent returns used host memory in percent. The system_info total
// stands in when proc_stats reports none; zero means unknown.
func (h Health) MemoryPercent() float64 {
	if !h.HasProc {
		return 0
	}
	total := h.Proc.SystemMemory.Total
	if total <= 0 && h.HasSystem {
		total = h.System.CPUInfo.TotalMemory
	}
	if total <= 0 {
		return 0
	}
	return float64(h.Proc.SystemMemory.Used) / float64(total) * 100
}

// HealthStore coordinates concurrent updates to Health.
type HealthStore struct {
	mu     sync.RWMutex
	health Health
}

// Update replaces the stored health. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *HealthStore) Update(server *moonraker.ServerInfo, system *moonraker.SystemInfo, proc *moonraker.ProcStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.LastUpdated = time.Now()
	if err != nil {
		s.health.LastError = err
		s.health.ConsecutiveFailures++
		return
	}

	s.health.HasServer = server != nil
	if server != nil {
		s.health.Server = *server
	}
	s.health.HasSystem = system != nil
	if system != nil {
		s.health.System = *system
	}
	s.health.HasProc = proc != nil
	if proc != nil {
		s.health.Proc = *proc
	}
	s.health.LastError = nil
	s.health.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current health.
func (s *HealthStore) Snapshot() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.health
	h.Proc.MoonrakerStats = append([]moonraker.ProcSample(nil), s.health.Proc.MoonrakerStats...)
	if s.health.LastError != nil {
		h.LastError = fmt.Errorf("%w", s.health.LastError)
	}
	return h
}
