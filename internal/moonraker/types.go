package moonraker

import (
	"encoding/json"
	"fmt"
	"time"
)

// ObjectList mirrors the printer.objects.list result.
type ObjectList struct {
	Objects []string `json:"objects"`
}

// SubscribeParams is the printer.objects.subscribe / query request. A nil field
// list asks for every field of that object.
type SubscribeParams struct {
	Objects map[string][]string `json:"objects"`
}

// NewSubscribeParams requests every field of each named object.
func NewSubscribeParams(names []string) SubscribeParams {
	objects := make(map[string][]string, len(names))
	for _, name := range names {
		objects[name] = nil
	}
	return SubscribeParams{Objects: objects}
}

// SubscribeResult mirrors the subscribe and query result. Status is left raw so
// the state package can validate it.
type SubscribeResult struct {
	EventTime float64         `json:"eventtime"`
	Status    json.RawMessage `json:"status"`
}

// GCodeScriptParams is the printer.gcode.script request.
type GCodeScriptParams struct {
	Script string `json:"script"`
}

// ServerInfo mirrors the server.info result.
type ServerInfo struct {
	KlippyConnected  bool     `json:"klippy_connected"`
	KlippyState      string   `json:"klippy_state"`
	MoonrakerVersion string   `json:"moonraker_version"`
	APIVersion       []int    `json:"api_version"`
	Components       []string `json:"components"`
	Warnings         []string `json:"warnings"`
}

// SystemInfoResult wraps the machine.system_info result.
type SystemInfoResult struct {
	SystemInfo SystemInfo `json:"system_info"`
}

// SystemInfo describes the host Moonraker runs on.
type SystemInfo struct {
	CPUInfo      CPUInfo      `json:"cpu_info"`
	Distribution Distribution `json:"distribution"`
}

// CPUInfo is the cpu_info block; TotalMemory is in MemoryUnits (usually kB).
type CPUInfo struct {
	CPUCount    int    `json:"cpu_count"`
	Bits        string `json:"bits"`
	Processor   string `json:"processor"`
	Model       string `json:"model"`
	TotalMemory int64  `json:"total_memory"`
	MemoryUnits string `json:"memory_units"`
}

// Distribution is the host OS release.
type Distribution struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	Version       string `json:"version"`
	KernelVersion string `json:"kernel_version"`
}

// ProcStats mirrors the machine.proc_stats result.
type ProcStats struct {
	MoonrakerStats []ProcSample              `json:"moonraker_stats"`
	CPUTemp        float64                   `json:"cpu_temp"`
	SystemUptime   float64                   `json:"system_uptime"`
	SystemMemory   SystemMemory              `json:"system_memory"`
	SystemCPUUsage map[string]float64        `json:"system_cpu_usage"`
	Network        map[string]NetworkCounter `json:"network"`
}

// ProcSample is one moonraker process sample.
type ProcSample struct {
	Time     float64 `json:"time"`
	CPUUsage float64 `json:"cpu_usage"`
	Memory   int64   `json:"memory"`
	MemUnits string  `json:"mem_units"`
}

// SystemMemory is reported in kilobytes.
type SystemMemory struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Used      int64 `json:"used"`
}

// NetworkCounter holds per-interface counters.
type NetworkCounter struct {
	RxBytes   int64   `json:"rx_bytes"`
	TxBytes   int64   `json:"tx_bytes"`
	Bandwidth float64 `json:"bandwidth"`
}

// LatestCPU returns the newest moonraker CPU sample, or zero.
func (p ProcStats) LatestCPU() float64 {
	if len(p.MoonrakerStats) == 0 {
		return 0
	}
	return p.MoonrakerStats[len(p.MoonrakerStats)-1].CPUUsage
}

// MemoryPercent returns used/total memory in percent, or zero when unknown.
func (p ProcStats) MemoryPercent() float64 {
	if p.SystemMemory.Total <= 0 {
		return 0
	}
	return float64(p.SystemMemory.Used) / float64(p.SystemMemory.Total) * 100
}

// Uptime returns the host uptime as a duration.
func (p ProcStats) Uptime() time.Duration {
	return time.Duration(p.SystemUptime * float64(time.Second))
}

// StatusUpdate splits notify_status_update params `[delta, eventtime]`.
func StatusUpdate(params json.RawMessage) (json.RawMessage, float64, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(params, &parts); err != nil {
		return nil, 0, fmt.Errorf("%w: status update params: %v", ErrInvalidFrame, err)
	}
	if len(parts) == 0 {
		return nil, 0, fmt.Errorf("%w: status update without delta", ErrInvalidFrame)
	}
	var eventTime float64
	if len(parts) > 1 {
		if err := json.Unmarshal(parts[1], &eventTime); err != nil {
			return nil, 0, fmt.Errorf("%w: status update eventtime: %v", ErrInvalidFrame, err)
		}
	}
	return parts[0], eventTime, nil
}

// GCodeResponse returns the lines carried by notify_gcode_response params.
func GCodeResponse(params json.RawMessage) ([]string, error) {
	var lines []string
	if err := json.Unmarshal(params, &lines); err != nil {
		return nil, fmt.Errorf("%w: gcode response params: %v", ErrInvalidFrame, err)
	}
	return lines, nil
}

// FileEntry mirrors one item of GET /server/files/list.
type FileEntry struct {
	Path        string  `json:"path"`
	Modified    float64 `json:"modified"`
	Size        int64   `json:"size"`
	Permissions string  `json:"permissions"`
}

// ModifiedTime returns Modified as a time.
func (f FileEntry) ModifiedTime() time.Time {
	if f.Modified <= 0 {
		return time.Time{}
	}
	sec := int64(f.Modified)
	nsec := int64((f.Modified - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
