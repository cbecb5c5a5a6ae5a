// Package assemble turns raw counter observations into immutable samples.
// It owns the delta arithmetic for rate-based metrics: the first sample of a
// run has no previous observation and reports all rates as zero, and a
// cumulative counter that decreases between ticks (counter reset) clamps the
// derived rate to zero instead of going negative.
package assemble

import (
	"math"
	"time"

	"github.com/runnerscope/runnerscope/internal/models"
	"github.com/runnerscope/runnerscope/internal/reader"
)

// Build assembles one Sample from the previous and current observations.
// prev is nil for the first sample of a run. Build never fails: zero-valued
// readings upstream simply produce zero-valued fields.
func Build(prev *reader.Observation, cur reader.Observation) models.Sample {
	sample := models.Sample{
		Timestamp:       cur.Timestamp,
		Datetime:        time.Unix(0, int64(cur.Timestamp*float64(time.Second))).Format(time.RFC3339),
		Memory:          cur.Memory,
		Swap:            cur.Swap,
		DiskSpace:       cur.DiskSpace,
		Load:            cur.Load,
		ProcessCount:    cur.ProcessCount,
		ThreadCount:     cur.ThreadCount,
		FileDescriptors: cur.FileDescriptors,
		TCPConnections:  cur.TCPConnections,
		DiskIO: models.DiskIOStats{
			ReadBytes:  cur.DiskIO.ReadBytes,
			WriteBytes: cur.DiskIO.WriteBytes,
		},
		NetworkIO: models.NetworkIOStats{
			RxBytes: cur.NetworkIO.RxBytes,
			TxBytes: cur.NetworkIO.TxBytes,
		},
	}

	sample.CPUPercent = cpuPercent(prev, cur)

	var dt float64
	if prev != nil {
		dt = cur.Timestamp - prev.Timestamp

		sample.CPUIowaitPercent, sample.CPUStealPercent = cpuDetailPercents(prev.CPUDetail, cur.CPUDetail)
		sample.ContextSwitchRate = math.Round(counterRate(cur.ContextSwitches, prev.ContextSwitches, dt))
		sample.DiskIO.ReadRate = counterRate(cur.DiskIO.ReadBytes, prev.DiskIO.ReadBytes, dt)
		sample.DiskIO.WriteRate = counterRate(cur.DiskIO.WriteBytes, prev.DiskIO.WriteBytes, dt)
		sample.NetworkIO.RxRate = counterRate(cur.NetworkIO.RxBytes, prev.NetworkIO.RxBytes, dt)
		sample.NetworkIO.TxRate = counterRate(cur.NetworkIO.TxBytes, prev.NetworkIO.TxBytes, dt)
	}

	return sample
}

// cpuPercent derives busy percent from the CPU reading. Direct-percentage
// readings pass through as-is; cumulative readings difference against the
// previous tick. The first cumulative sample reports 0.
func cpuPercent(prev *reader.Observation, cur reader.Observation) float64 {
	switch cur.CPU.Mode {
	case reader.CPUDirect:
		return clampPercent(round2(cur.CPU.Percent))
	case reader.CPUCumulative:
		if prev == nil || prev.CPU.Mode != reader.CPUCumulative {
			return 0
		}
		idleDelta := cur.CPU.Idle - prev.CPU.Idle
		totalDelta := cur.CPU.Total - prev.CPU.Total
		if totalDelta <= 0 {
			return 0
		}
		return clampPercent(round2(100 * (1 - idleDelta/totalDelta)))
	}
	return 0
}

// cpuDetailPercents derives iowait and steal percentages from cumulative
// per-state counters across two ticks.
func cpuDetailPercents(prev, cur reader.CPUDetail) (iowait, steal float64) {
	totalDelta := cur.Total - prev.Total
	if totalDelta <= 0 {
		return 0, 0
	}
	iowait = clampPercent(round2(100 * (cur.Iowait - prev.Iowait) / totalDelta))
	steal = clampPercent(round2(100 * (cur.Steal - prev.Steal) / totalDelta))
	return iowait, steal
}

// counterRate derives a per-second rate from two cumulative counter readings.
// A decreasing counter or non-positive elapsed time yields 0.
func counterRate(cur, prev uint64, dt float64) float64 {
	if dt <= 0 || cur < prev {
		return 0
	}
	return float64(cur-prev) / dt
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
