// Package models defines the telemetry document structures persisted to disk.
// The JSON shape is the public contract consumed by the reporting layer; any
// change here is a breaking change for report generation.
package models

import "time"

// Sample represents one tick's worth of observed and derived system metrics.
// Every field is always present, possibly zero, so the schema never varies by
// platform. Rate fields are zero on the first sample of a run.
type Sample struct {
	Timestamp         float64 `json:"timestamp"`
	Datetime          string  `json:"datetime"`
	CPUPercent        float64 `json:"cpu_percent"`
	CPUIowaitPercent  float64 `json:"cpu_iowait_percent"`
	CPUStealPercent   float64 `json:"cpu_steal_percent"`
	ContextSwitchRate float64 `json:"context_switches_rate"`

	Memory    MemoryStats    `json:"memory"`
	Swap      SwapStats      `json:"swap"`
	DiskIO    DiskIOStats    `json:"disk_io"`
	DiskSpace DiskSpaceStats `json:"disk_space"`
	NetworkIO NetworkIOStats `json:"network_io"`
	Load      LoadStats      `json:"load"`

	ProcessCount    int                 `json:"process_count"`
	ThreadCount     int                 `json:"thread_count"`
	FileDescriptors FileDescriptorStats `json:"file_descriptors"`
	TCPConnections  TCPStats            `json:"tcp_connections"`
}

// MemoryStats holds physical memory capacity and usage in megabytes.
type MemoryStats struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	AvailableMB uint64  `json:"available_mb"`
	BuffersMB   uint64  `json:"buffers_mb"`
	CachedMB    uint64  `json:"cached_mb"`
	Percent     float64 `json:"percent"`
}

// SwapStats holds swap space capacity and usage in megabytes.
type SwapStats struct {
	TotalMB uint64  `json:"total_mb"`
	UsedMB  uint64  `json:"used_mb"`
	FreeMB  uint64  `json:"free_mb"`
	Percent float64 `json:"percent"`
}

// DiskIOStats holds cumulative disk byte counters plus the per-interval rate
// derived from them.
type DiskIOStats struct {
	ReadBytes  uint64  `json:"read_bytes"`
	WriteBytes uint64  `json:"write_bytes"`
	ReadRate   float64 `json:"read_rate"`
	WriteRate  float64 `json:"write_rate"`
}

// DiskSpaceStats holds filesystem capacity for the monitored workspace path.
type DiskSpaceStats struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	AvailableGB float64 `json:"available_gb"`
	Percent     float64 `json:"percent"`
}

// NetworkIOStats holds cumulative network byte counters plus derived rates.
type NetworkIOStats struct {
	RxBytes uint64  `json:"rx_bytes"`
	TxBytes uint64  `json:"tx_bytes"`
	RxRate  float64 `json:"rx_rate"`
	TxRate  float64 `json:"tx_rate"`
}

// LoadStats holds the 1/5/15-minute load averages. Zero on platforms without
// the concept.
type LoadStats struct {
	Load1  float64 `json:"load_1m"`
	Load5  float64 `json:"load_5m"`
	Load15 float64 `json:"load_15m"`
}

// FileDescriptorStats holds system-wide file descriptor usage.
type FileDescriptorStats struct {
	Allocated uint64  `json:"allocated"`
	Free      uint64  `json:"free"`
	Max       uint64  `json:"max"`
	Percent   float64 `json:"percent"`
}

// TCPStats counts TCP sockets by connection state.
type TCPStats struct {
	Total       int `json:"total"`
	Established int `json:"established"`
	TimeWait    int `json:"time_wait"`
	Listen      int `json:"listen"`
	Other       int `json:"other"`
}

// Step is a named, time-bounded phase of the monitored job. EndTime and the
// fields set alongside it are absent while the step is still open.
type Step struct {
	Name           string  `json:"name"`
	StartTime      float64 `json:"start_time"`
	StartDatetime  string  `json:"start_datetime"`
	EndTime        float64 `json:"end_time,omitempty"`
	EndDatetime    string  `json:"end_datetime,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	SampleStartIdx int     `json:"sample_start_idx"`
	SampleEndIdx   *int    `json:"sample_end_idx,omitempty"`
}

// Open reports whether the step has not been closed yet.
func (s *Step) Open() bool { return s.EndTime == 0 }

// ProcessInfo describes one process in a top-processes listing.
type ProcessInfo struct {
	PID     int32   `json:"pid"`
	CPU     float64 `json:"cpu"`
	Mem     float64 `json:"mem"`
	Command string  `json:"command"`
}

// TopProcesses holds the most resource-intensive processes at a point in time,
// sorted by CPU and by memory respectively.
type TopProcesses struct {
	ByCPU []ProcessInfo `json:"by_cpu"`
	ByMem []ProcessInfo `json:"by_mem"`
}

// SystemSnapshot is point-in-time system context captured at run start and
// stop. It is not part of the time series. Optional fields are captured only
// for the initial snapshot.
type SystemSnapshot struct {
	CPUCount        int                  `json:"cpu_count,omitempty"`
	Memory          MemoryStats          `json:"memory"`
	Swap            *SwapStats           `json:"swap,omitempty"`
	DiskSpace       *DiskSpaceStats      `json:"disk_space,omitempty"`
	FileDescriptors *FileDescriptorStats `json:"file_descriptors,omitempty"`
	TCPConnections  *TCPStats            `json:"tcp_connections,omitempty"`
	Processes       TopProcesses         `json:"processes"`
}

// GitHubContext is static run metadata captured once at start. Missing
// environment variables are recorded as "N/A".
type GitHubContext struct {
	Repository           string `json:"repository"`
	Workflow             string `json:"workflow"`
	Job                  string `json:"job"`
	RunID                string `json:"run_id"`
	RunNumber            string `json:"run_number"`
	Actor                string `json:"actor"`
	RunnerOS             string `json:"runner_os"`
	RunnerName           string `json:"runner_name"`
	RepositoryVisibility string `json:"repository_visibility"`
}

// Document is the root persisted object for one collection run. It is owned
// by the collection loop while the run is active and becomes read-only shared
// state once finalized.
type Document struct {
	StartTime     float64 `json:"start_time"`
	StartDatetime string  `json:"start_datetime"`
	EndTime       float64 `json:"end_time,omitempty"`
	EndDatetime   string  `json:"end_datetime,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
	LastUpdate    float64 `json:"last_update,omitempty"`
	Interval      float64 `json:"interval"`

	Samples []Sample `json:"samples"`
	Steps   []Step   `json:"steps"`

	InitialSnapshot SystemSnapshot  `json:"initial_snapshot"`
	FinalSnapshot   *SystemSnapshot `json:"final_snapshot,omitempty"`
	GitHubContext   GitHubContext   `json:"github_context"`
}

// OpenStep returns the currently open step, or nil if none is open.
func (d *Document) OpenStep() *Step {
	if len(d.Steps) == 0 {
		return nil
	}
	last := &d.Steps[len(d.Steps)-1]
	if last.Open() {
		return last
	}
	return nil
}

// Epoch converts a time to fractional seconds since the Unix epoch, the
// timestamp representation used throughout the document.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
