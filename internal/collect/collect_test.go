package collect

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/config"
	"github.com/runnerscope/runnerscope/internal/models"
	"github.com/runnerscope/runnerscope/internal/reader"
	"github.com/runnerscope/runnerscope/internal/steps"
	"github.com/runnerscope/runnerscope/internal/store"
)

// stubReader is a Reader whose disk counter advances by a fixed amount per
// read and whose remaining metrics are fixed values. Metrics left at their
// zero value stand in for unsupported platforms.
type stubReader struct {
	mu       sync.Mutex
	diskRead uint64
	diskStep uint64

	cpu    reader.CPUReading
	memory models.MemoryStats
}

func (s *stubReader) CPU() reader.CPUReading {
	return s.cpu
}
func (s *stubReader) CPUDetail() reader.CPUDetail { return reader.CPUDetail{} }
func (s *stubReader) ContextSwitches() uint64     { return 0 }
func (s *stubReader) Memory() models.MemoryStats  { return s.memory }
func (s *stubReader) Swap() models.SwapStats      { return models.SwapStats{} }

func (s *stubReader) DiskIO() reader.DiskCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diskRead += s.diskStep
	return reader.DiskCounters{ReadBytes: s.diskRead}
}

func (s *stubReader) DiskSpace(string) models.DiskSpaceStats { return models.DiskSpaceStats{} }
func (s *stubReader) NetworkIO() reader.NetCounters          { return reader.NetCounters{} }
func (s *stubReader) Load() models.LoadStats                 { return models.LoadStats{} }
func (s *stubReader) ProcessCount() int                      { return 42 }
func (s *stubReader) ThreadCount() int                       { return 0 }
func (s *stubReader) FileDescriptors() models.FileDescriptorStats {
	return models.FileDescriptorStats{}
}
func (s *stubReader) TCPConnections() models.TCPStats { return models.TCPStats{} }
func (s *stubReader) CPUCount() int                   { return 4 }
func (s *stubReader) TopProcesses(int) models.TopProcesses {
	return models.TopProcesses{ByCPU: []models.ProcessInfo{}, ByMem: []models.ProcessInfo{}}
}

func newTestRunner(t *testing.T, interval time.Duration) (*Runner, *store.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataFile = filepath.Join(t.TempDir(), "telemetry_data.json")
	cfg.Collection.Interval = config.Duration{Duration: interval}
	cfg.Collection.SnapshotSamples = 3

	logger := zap.NewNop()
	st := store.New(cfg.DataFile, logger)
	runner := New(cfg, logger, &stubReader{diskStep: 1000}, st)
	runner.out = io.Discard
	return runner, st
}

func TestMarkWithoutDocumentFails(t *testing.T) {
	runner, st := newTestRunner(t, time.Second)

	_, err := runner.Mark("build")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNoDocument)

	// Marking must not create a document as a side effect.
	assert.False(t, st.Exists())
}

func TestStopWithoutDocumentFails(t *testing.T) {
	runner, _ := newTestRunner(t, time.Second)

	_, err := runner.Stop()
	assert.ErrorIs(t, err, store.ErrNoDocument)
}

func TestSnapshotProducesFinalizedDocument(t *testing.T) {
	runner, st := newTestRunner(t, time.Millisecond)

	doc, err := runner.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Samples, 3)

	assert.NotZero(t, doc.EndTime)
	assert.GreaterOrEqual(t, doc.Duration, 0.0)
	assert.NotNil(t, doc.FinalSnapshot)
	assert.Equal(t, 4, doc.InitialSnapshot.CPUCount)

	// First sample has no rate; the rest see the stub's steady counter.
	assert.Zero(t, doc.Samples[0].DiskIO.ReadRate)
	for i, sample := range doc.Samples {
		assert.GreaterOrEqual(t, sample.DiskIO.ReadRate, 0.0, "sample %d", i)
	}

	persisted, err := st.Load()
	require.NoError(t, err)
	assert.Len(t, persisted.Samples, 3)
}

func TestStartSamplesUntilCancelled(t *testing.T) {
	runner, st := newTestRunner(t, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Start(ctx) }()

	// Wait for at least two persisted samples.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for samples")
		}
		if st.Exists() {
			doc, err := st.Load()
			if err == nil && len(doc.Samples) >= 2 {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	require.NoError(t, <-done)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(doc.Samples), 2)
	assert.NotZero(t, doc.LastUpdate)
	assert.Zero(t, doc.EndTime, "start must not finalize the document")
	assert.Zero(t, doc.Samples[0].DiskIO.ReadRate)
	assert.Equal(t, 42, doc.Samples[0].ProcessCount)
}

func TestStopClosesOpenStepAndFinalizes(t *testing.T) {
	runner, st := newTestRunner(t, time.Second)

	doc := &models.Document{
		StartTime: models.Epoch(time.Now().Add(-time.Minute)),
		Interval:  2,
		Samples:   []models.Sample{{}, {}, {}},
		Steps:     []models.Step{},
	}
	steps.Mark(doc, "deploy", time.Now().Add(-30*time.Second))
	require.NoError(t, st.Save(doc))

	finalized, err := runner.Stop()
	require.NoError(t, err)

	require.Len(t, finalized.Steps, 1)
	step := finalized.Steps[0]
	assert.False(t, step.Open())
	assert.Greater(t, step.Duration, 0.0)
	require.NotNil(t, step.SampleEndIdx)
	assert.Equal(t, 2, *step.SampleEndIdx)

	assert.Greater(t, finalized.Duration, 0.0)
	assert.NotNil(t, finalized.FinalSnapshot)

	persisted, err := st.Load()
	require.NoError(t, err)
	assert.NotZero(t, persisted.EndTime)
}

func TestSampleOnceReportsZeroRates(t *testing.T) {
	runner, st := newTestRunner(t, time.Second)

	sample := runner.SampleOnce()
	assert.Zero(t, sample.DiskIO.ReadRate)
	assert.NotZero(t, sample.Timestamp)
	assert.Equal(t, 42, sample.ProcessCount)

	// sample is a pure read; it must not create the document.
	assert.False(t, st.Exists())
}

func TestMarkAppendsStepsAcrossInvocations(t *testing.T) {
	runner, st := newTestRunner(t, time.Millisecond)

	_, err := runner.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = runner.Mark("build")
	require.NoError(t, err)
	_, err = runner.Mark("test")
	require.NoError(t, err)

	doc, err := st.Load()
	require.NoError(t, err)
	require.Len(t, doc.Steps, 2)
	assert.False(t, doc.Steps[0].Open())
	assert.True(t, doc.Steps[1].Open())
	assert.Equal(t, "build", doc.Steps[0].Name)
}

func TestSnapshotStepCountersAdvance(t *testing.T) {
	// The stub advances its cumulative disk counter by 1000 per tick, so
	// every post-first sample must carry a positive read rate.
	runner, _ := newTestRunner(t, 5*time.Millisecond)

	doc, err := runner.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Samples, 3)
	for _, sample := range doc.Samples[1:] {
		assert.Greater(t, sample.DiskIO.ReadRate, 0.0)
	}
}
