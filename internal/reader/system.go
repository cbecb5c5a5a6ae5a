// gopsutil-backed Reader implementation. Metrics that gopsutil cannot supply
// (file descriptor totals, context switches, thread counts) come from
// platform-specific probes in the extras_* files.
package reader

import (
	"context"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/models"
)

const (
	// readTimeout bounds each individual metric read so a stalled source
	// cannot stall the whole sampling tick indefinitely.
	readTimeout = 10 * time.Second

	bytesPerMB = 1024 * 1024
	bytesPerGB = 1024 * 1024 * 1024
)

// SystemReader reads live host metrics through gopsutil.
type SystemReader struct {
	logger *zap.Logger
}

// New creates a SystemReader for the current platform.
func New(logger *zap.Logger) *SystemReader {
	return &SystemReader{logger: logger}
}

func (s *SystemReader) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), readTimeout)
}

func (s *SystemReader) degrade(metric string, err error) {
	s.logger.Debug("Metric unavailable, using zero value",
		zap.String("metric", metric),
		zap.Error(err))
}

// CPU returns cumulative idle/total time-in-state counters where the platform
// exposes them, falling back to an instantaneous percentage otherwise.
func (s *SystemReader) CPU() CPUReading {
	ctx, cancel := s.ctx()
	defer cancel()

	times, err := cpu.TimesWithContext(ctx, false)
	if err == nil && len(times) > 0 {
		t := times[0]
		total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
		if total > 0 {
			return CPUReading{
				Mode:  CPUCumulative,
				Idle:  t.Idle + t.Iowait,
				Total: total,
			}
		}
	}

	// No usable counters; take a non-blocking instantaneous percentage.
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(pct) == 0 {
		s.degrade("cpu", err)
		return CPUReading{Mode: CPUDirect}
	}
	return CPUReading{Mode: CPUDirect, Percent: pct[0]}
}

// CPUDetail returns cumulative per-state CPU counters for iowait/steal
// derivation. Zero on platforms without time-in-state accounting.
func (s *SystemReader) CPUDetail() CPUDetail {
	ctx, cancel := s.ctx()
	defer cancel()

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		s.degrade("cpu_detail", err)
		return CPUDetail{}
	}
	t := times[0]
	d := CPUDetail{
		User:    t.User,
		Nice:    t.Nice,
		System:  t.System,
		Idle:    t.Idle,
		Iowait:  t.Iowait,
		Irq:     t.Irq,
		Softirq: t.Softirq,
		Steal:   t.Steal,
	}
	d.Total = d.User + d.Nice + d.System + d.Idle + d.Iowait + d.Irq + d.Softirq + d.Steal
	return d
}

// ContextSwitches returns the cumulative system-wide context switch count.
// Supported on Linux only; other platforms report 0.
func (s *SystemReader) ContextSwitches() uint64 {
	n, err := readContextSwitches()
	if err != nil {
		s.degrade("context_switches", err)
		return 0
	}
	return n
}

// Memory returns physical memory capacity and usage.
func (s *SystemReader) Memory() models.MemoryStats {
	ctx, cancel := s.ctx()
	defer cancel()

	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.degrade("memory", err)
		return models.MemoryStats{}
	}
	return models.MemoryStats{
		TotalMB:     v.Total / bytesPerMB,
		UsedMB:      (v.Total - v.Available) / bytesPerMB,
		AvailableMB: v.Available / bytesPerMB,
		BuffersMB:   v.Buffers / bytesPerMB,
		CachedMB:    v.Cached / bytesPerMB,
		Percent:     round2(v.UsedPercent),
	}
}

// Swap returns swap space capacity and usage.
func (s *SystemReader) Swap() models.SwapStats {
	ctx, cancel := s.ctx()
	defer cancel()

	v, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		s.degrade("swap", err)
		return models.SwapStats{}
	}
	return models.SwapStats{
		TotalMB: v.Total / bytesPerMB,
		UsedMB:  v.Used / bytesPerMB,
		FreeMB:  v.Free / bytesPerMB,
		Percent: round2(v.UsedPercent),
	}
}

// DiskIO returns cumulative read/write byte counters summed across devices.
func (s *SystemReader) DiskIO() DiskCounters {
	ctx, cancel := s.ctx()
	defer cancel()

	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		s.degrade("disk_io", err)
		return DiskCounters{}
	}
	var c DiskCounters
	for _, v := range counters {
		c.ReadBytes += v.ReadBytes
		c.WriteBytes += v.WriteBytes
	}
	return c
}

// DiskSpace returns filesystem capacity for the given path, falling back to
// the root filesystem when the path does not exist.
func (s *SystemReader) DiskSpace(path string) models.DiskSpaceStats {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := os.Stat(path); err != nil {
		path = "/"
	}
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		s.degrade("disk_space", err)
		return models.DiskSpaceStats{}
	}
	return models.DiskSpaceStats{
		TotalGB:     round2(float64(usage.Total) / bytesPerGB),
		UsedGB:      round2(float64(usage.Used) / bytesPerGB),
		AvailableGB: round2(float64(usage.Free) / bytesPerGB),
		Percent:     round2(usage.UsedPercent),
	}
}

// NetworkIO returns cumulative RX/TX byte counters summed across interfaces,
// excluding loopback.
func (s *SystemReader) NetworkIO() NetCounters {
	ctx, cancel := s.ctx()
	defer cancel()

	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		s.degrade("network_io", err)
		return NetCounters{}
	}
	var c NetCounters
	for _, v := range counters {
		if v.Name == "lo" || strings.HasPrefix(v.Name, "lo0") {
			continue
		}
		c.RxBytes += v.BytesRecv
		c.TxBytes += v.BytesSent
	}
	return c
}

// Load returns the 1/5/15-minute load averages.
func (s *SystemReader) Load() models.LoadStats {
	ctx, cancel := s.ctx()
	defer cancel()

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		s.degrade("load", err)
		return models.LoadStats{}
	}
	return models.LoadStats{
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
	}
}

// ProcessCount returns the process table size.
func (s *SystemReader) ProcessCount() int {
	ctx, cancel := s.ctx()
	defer cancel()

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		s.degrade("process_count", err)
		return 0
	}
	return len(pids)
}

// ThreadCount returns the total thread count. Supported on Linux only;
// other platforms report 0.
func (s *SystemReader) ThreadCount() int {
	n, err := readThreadCount()
	if err != nil {
		s.degrade("thread_count", err)
		return 0
	}
	return n
}

// FileDescriptors returns system-wide file descriptor usage. Supported on
// Linux only; other platforms report zeros.
func (s *SystemReader) FileDescriptors() models.FileDescriptorStats {
	fd, err := readFileDescriptors()
	if err != nil {
		s.degrade("file_descriptors", err)
		return models.FileDescriptorStats{}
	}
	return fd
}

// TCPConnections counts TCP sockets by connection state.
func (s *SystemReader) TCPConnections() models.TCPStats {
	ctx, cancel := s.ctx()
	defer cancel()

	conns, err := net.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		s.degrade("tcp_connections", err)
		return models.TCPStats{}
	}
	var stats models.TCPStats
	for _, c := range conns {
		stats.Total++
		switch c.Status {
		case "ESTABLISHED":
			stats.Established++
		case "TIME_WAIT":
			stats.TimeWait++
		case "LISTEN":
			stats.Listen++
		default:
			stats.Other++
		}
	}
	return stats
}

// CPUCount returns the number of logical CPUs.
func (s *SystemReader) CPUCount() int {
	ctx, cancel := s.ctx()
	defer cancel()

	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		s.degrade("cpu_count", err)
		return 0
	}
	return n
}

// TopProcesses returns the top N processes by CPU and by memory usage.
// Individual process errors are skipped so a single inaccessible process
// cannot fail the whole listing.
func (s *SystemReader) TopProcesses(n int) models.TopProcesses {
	ctx, cancel := s.ctx()
	defer cancel()

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		s.degrade("top_processes", err)
		return models.TopProcesses{ByCPU: []models.ProcessInfo{}, ByMem: []models.ProcessInfo{}}
	}

	infos := make([]models.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, _ := p.NameWithContext(ctx)
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		if len(name) > 50 {
			name = name[:50]
		}
		infos = append(infos, models.ProcessInfo{
			PID:     p.Pid,
			CPU:     round2(cpuPct),
			Mem:     round2(float64(memPct)),
			Command: name,
		})
	}

	byCPU := make([]models.ProcessInfo, len(infos))
	copy(byCPU, infos)
	sort.Slice(byCPU, func(i, j int) bool { return byCPU[i].CPU > byCPU[j].CPU })
	if len(byCPU) > n {
		byCPU = byCPU[:n]
	}

	byMem := infos
	sort.Slice(byMem, func(i, j int) bool { return byMem[i].Mem > byMem[j].Mem })
	if len(byMem) > n {
		byMem = byMem[:n]
	}

	return models.TopProcesses{ByCPU: byCPU, ByMem: byMem}
}

// round2 rounds to two decimal places, matching the persisted schema's
// precision for percentages and gigabyte values.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
