package assemble

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerscope/runnerscope/internal/reader"
)

func obsAt(ts float64) reader.Observation {
	return reader.Observation{Timestamp: ts}
}

func TestFirstSampleHasNoRates(t *testing.T) {
	cur := reader.Observation{
		Timestamp:       100,
		CPU:             reader.CPUReading{Mode: reader.CPUCumulative, Idle: 500, Total: 1000},
		ContextSwitches: 123456,
		DiskIO:          reader.DiskCounters{ReadBytes: 1 << 30, WriteBytes: 1 << 29},
		NetworkIO:       reader.NetCounters{RxBytes: 1 << 20, TxBytes: 1 << 19},
	}

	sample := Build(nil, cur)

	assert.Zero(t, sample.CPUPercent)
	assert.Zero(t, sample.CPUIowaitPercent)
	assert.Zero(t, sample.CPUStealPercent)
	assert.Zero(t, sample.ContextSwitchRate)
	assert.Zero(t, sample.DiskIO.ReadRate)
	assert.Zero(t, sample.DiskIO.WriteRate)
	assert.Zero(t, sample.NetworkIO.RxRate)
	assert.Zero(t, sample.NetworkIO.TxRate)

	// Cumulative counters still pass through unchanged.
	assert.Equal(t, uint64(1<<30), sample.DiskIO.ReadBytes)
	assert.Equal(t, uint64(1<<20), sample.NetworkIO.RxBytes)
}

func TestDiskReadRateSequence(t *testing.T) {
	// Cumulative read bytes 1000, 1500, 2600 at t=0,1,2 must yield
	// rates 0, 500, 1100 bytes/sec.
	readings := []uint64{1000, 1500, 2600}
	wantRates := []float64{0, 500, 1100}

	var prev *reader.Observation
	for i, bytes := range readings {
		cur := obsAt(float64(i))
		cur.DiskIO.ReadBytes = bytes

		sample := Build(prev, cur)
		assert.Equal(t, wantRates[i], sample.DiskIO.ReadRate, "sample %d", i)

		c := cur
		prev = &c
	}
}

func TestCPUBusyPercentFromCumulativeCounters(t *testing.T) {
	prev := obsAt(0)
	prev.CPU = reader.CPUReading{Mode: reader.CPUCumulative, Idle: 100, Total: 200}

	cur := obsAt(1)
	cur.CPU = reader.CPUReading{Mode: reader.CPUCumulative, Idle: 150, Total: 250}

	// Idle delta 50 over total delta 50: the interval was fully idle.
	sample := Build(&prev, cur)
	assert.Zero(t, sample.CPUPercent)

	// Idle delta 10 over total delta 50: 80% busy.
	busy := obsAt(2)
	busy.CPU = reader.CPUReading{Mode: reader.CPUCumulative, Idle: 160, Total: 300}
	sample = Build(&cur, busy)
	assert.Equal(t, 80.0, sample.CPUPercent)
}

func TestDirectPercentPassthrough(t *testing.T) {
	cur := obsAt(5)
	cur.CPU = reader.CPUReading{Mode: reader.CPUDirect, Percent: 37.25}

	// Direct percentages skip delta arithmetic entirely, even on the
	// first sample.
	sample := Build(nil, cur)
	assert.Equal(t, 37.25, sample.CPUPercent)

	// Out-of-range direct readings are clamped.
	cur.CPU.Percent = 132.0
	sample = Build(nil, cur)
	assert.Equal(t, 100.0, sample.CPUPercent)
}

func TestCounterResetClampsRatesToZero(t *testing.T) {
	prev := obsAt(0)
	prev.DiskIO = reader.DiskCounters{ReadBytes: 5000, WriteBytes: 4000}
	prev.NetworkIO = reader.NetCounters{RxBytes: 9000, TxBytes: 8000}
	prev.ContextSwitches = 777777

	// Every cumulative counter goes backwards, as after a host reboot.
	cur := obsAt(1)
	cur.DiskIO = reader.DiskCounters{ReadBytes: 100, WriteBytes: 50}
	cur.NetworkIO = reader.NetCounters{RxBytes: 10, TxBytes: 5}
	cur.ContextSwitches = 42

	sample := Build(&prev, cur)
	assert.Zero(t, sample.DiskIO.ReadRate)
	assert.Zero(t, sample.DiskIO.WriteRate)
	assert.Zero(t, sample.NetworkIO.RxRate)
	assert.Zero(t, sample.NetworkIO.TxRate)
	assert.Zero(t, sample.ContextSwitchRate)
}

func TestIowaitAndStealPercents(t *testing.T) {
	prev := obsAt(0)
	prev.CPUDetail = reader.CPUDetail{Iowait: 10, Steal: 0, Total: 1000}

	cur := obsAt(2)
	cur.CPUDetail = reader.CPUDetail{Iowait: 30, Steal: 5, Total: 1100}

	sample := Build(&prev, cur)
	assert.Equal(t, 20.0, sample.CPUIowaitPercent)
	assert.Equal(t, 5.0, sample.CPUStealPercent)
}

func TestContextSwitchRate(t *testing.T) {
	prev := obsAt(0)
	prev.ContextSwitches = 1000

	cur := obsAt(2)
	cur.ContextSwitches = 5000

	sample := Build(&prev, cur)
	assert.Equal(t, 2000.0, sample.ContextSwitchRate)
}

func TestZeroTimeDeltaYieldsZeroRates(t *testing.T) {
	prev := obsAt(10)
	prev.DiskIO.ReadBytes = 100

	cur := obsAt(10)
	cur.DiskIO.ReadBytes = 5000

	sample := Build(&prev, cur)
	assert.Zero(t, sample.DiskIO.ReadRate)
}

func TestAllZeroReadingsProduceCompleteSchema(t *testing.T) {
	// Even when every reader is unavailable, the serialized sample must
	// contain every documented field.
	sample := Build(nil, obsAt(0))

	data, err := json.Marshal(sample)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	for _, key := range []string{
		"timestamp", "cpu_percent", "cpu_iowait_percent", "cpu_steal_percent",
		"context_switches_rate", "memory", "swap", "disk_io", "disk_space",
		"network_io", "load", "process_count", "thread_count",
		"file_descriptors", "tcp_connections",
	} {
		assert.Contains(t, fields, key)
	}

	mem, ok := fields["memory"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, mem, "total_mb")
	assert.Contains(t, mem, "percent")
}
