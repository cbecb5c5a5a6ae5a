// Package reader provides access to raw host metrics. A single Reader
// implementation is selected at process start and injected into the collection
// loop; tests substitute a stub without touching the rest of the pipeline.
//
// Readers never return errors to their callers. When a metric source is
// unavailable on the current platform the corresponding method returns a
// zero-valued structure of the correct shape, so the persisted schema stays
// identical everywhere.
package reader

import (
	"time"

	"github.com/runnerscope/runnerscope/internal/models"
)

// CPUMode distinguishes the two kinds of CPU readings a platform can expose.
type CPUMode int

const (
	// CPUCumulative means Idle and Total carry cumulative time-in-state
	// counters; busy percent is derived by differencing two readings.
	CPUCumulative CPUMode = iota

	// CPUDirect means Percent already carries an instantaneous busy
	// percentage and no delta arithmetic applies.
	CPUDirect
)

// CPUReading is the CPU reader result, a tagged union over the two modes.
type CPUReading struct {
	Mode    CPUMode
	Idle    float64 // cumulative idle (incl. iowait) time, CPUCumulative only
	Total   float64 // cumulative total time across all states, CPUCumulative only
	Percent float64 // instantaneous busy percent, CPUDirect only
}

// CPUDetail carries cumulative per-state CPU time counters, used to derive
// iowait and steal percentages between ticks.
type CPUDetail struct {
	User    float64
	Nice    float64
	System  float64
	Idle    float64
	Iowait  float64
	Irq     float64
	Softirq float64
	Steal   float64
	Total   float64
}

// DiskCounters holds cumulative disk byte counters summed across devices.
type DiskCounters struct {
	ReadBytes  uint64
	WriteBytes uint64
}

// NetCounters holds cumulative network byte counters summed across
// non-loopback interfaces.
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// Reader is the capability interface over all metric sources. Each method
// reads ambient OS state and degrades to a zero value on failure.
type Reader interface {
	CPU() CPUReading
	CPUDetail() CPUDetail
	ContextSwitches() uint64
	Memory() models.MemoryStats
	Swap() models.SwapStats
	DiskIO() DiskCounters
	DiskSpace(path string) models.DiskSpaceStats
	NetworkIO() NetCounters
	Load() models.LoadStats
	ProcessCount() int
	ThreadCount() int
	FileDescriptors() models.FileDescriptorStats
	TCPConnections() models.TCPStats
	CPUCount() int
	TopProcesses(n int) models.TopProcesses
}

// Observation is one tick's raw readings before any rate derivation. It is
// held by the collection loop as the previous-tick state and never persisted.
type Observation struct {
	Timestamp       float64
	CPU             CPUReading
	CPUDetail       CPUDetail
	ContextSwitches uint64
	Memory          models.MemoryStats
	Swap            models.SwapStats
	DiskIO          DiskCounters
	DiskSpace       models.DiskSpaceStats
	NetworkIO       NetCounters
	Load            models.LoadStats
	ProcessCount    int
	ThreadCount     int
	FileDescriptors models.FileDescriptorStats
	TCPConnections  models.TCPStats
}

// Observe reads every metric family once and stamps the result with the
// given wall-clock time.
func Observe(r Reader, workspace string, at time.Time) Observation {
	return Observation{
		Timestamp:       models.Epoch(at),
		CPU:             r.CPU(),
		CPUDetail:       r.CPUDetail(),
		ContextSwitches: r.ContextSwitches(),
		Memory:          r.Memory(),
		Swap:            r.Swap(),
		DiskIO:          r.DiskIO(),
		DiskSpace:       r.DiskSpace(workspace),
		NetworkIO:       r.NetworkIO(),
		Load:            r.Load(),
		ProcessCount:    r.ProcessCount(),
		ThreadCount:     r.ThreadCount(),
		FileDescriptors: r.FileDescriptors(),
		TCPConnections:  r.TCPConnections(),
	}
}
