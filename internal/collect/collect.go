// Package collect drives the sampling cadence and the start/stop/mark/snapshot
// operations. The operations are designed to run as separate process
// invocations coordinated only through the persisted document file: start owns
// the long-running loop, while mark and stop are brief read-modify-write
// passes over whatever is on disk.
//
// Stop does not signal the running loop. It assumes the loop process has
// already been terminated by the job supervisor and finalizes the last
// persisted state. A mark racing a sampling tick follows the same
// read-modify-write-rename discipline, so the later write wins and the earlier
// one is lost; for infrequent, human-triggered step marks this is an accepted
// race.
package collect

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/assemble"
	"github.com/runnerscope/runnerscope/internal/config"
	"github.com/runnerscope/runnerscope/internal/models"
	"github.com/runnerscope/runnerscope/internal/reader"
	"github.com/runnerscope/runnerscope/internal/steps"
	"github.com/runnerscope/runnerscope/internal/store"
	"github.com/runnerscope/runnerscope/internal/sysinfo"
)

// Runner executes the collection operations against one document path.
// The previous tick's raw counters live here, per run instance, never in
// package state.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	reader reader.Reader
	store  *store.Store

	out  io.Writer
	now  func() time.Time
	prev *reader.Observation
}

// New creates a Runner wired to the given reader and document store.
func New(cfg *config.Config, logger *zap.Logger, rdr reader.Reader, st *store.Store) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger,
		reader: rdr,
		store:  st,
		out:    os.Stdout,
		now:    time.Now,
	}
}

// Start captures the initial snapshot and run metadata, persists the fresh
// document, and samples until the context is cancelled. Each tick is
// scheduled against absolute tick times so reader latency does not accumulate
// into cadence drift.
func (r *Runner) Start(ctx context.Context) error {
	interval := r.cfg.Collection.Interval.Duration
	begin := r.now()

	doc := r.newDocument(begin)
	if err := r.store.Save(doc); err != nil {
		return fmt.Errorf("persisting initial document: %w", err)
	}

	fmt.Fprintf(r.out, "Starting telemetry collection (interval: %gs)\n", interval.Seconds())
	r.logger.Info("Collection started",
		zap.String("data_file", r.store.Path()),
		zap.Duration("interval", interval))

	next := begin.Add(interval)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "Collection stopped")
			return nil
		case <-time.After(time.Until(next)):
		}
		next = next.Add(interval)

		if err := r.tick(); err != nil {
			fmt.Fprintf(r.out, "  warning: %v\n", err)
			r.logger.Warn("Tick failed", zap.Error(err))
		}
	}
}

// tick performs one observe-assemble-append-persist cycle.
func (r *Runner) tick() error {
	obs := reader.Observe(r.reader, r.cfg.Collection.Workspace, r.now())
	sample := assemble.Build(r.prev, obs)
	r.prev = &obs

	doc, err := r.store.Load()
	if err != nil {
		return err
	}
	doc.Samples = append(doc.Samples, sample)
	doc.LastUpdate = models.Epoch(r.now())
	if err := r.store.Save(doc); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "  Sample %d: CPU=%.1f%% MEM=%.1f%% IO=%.1f%% Steal=%.1f%%\n",
		len(doc.Samples), sample.CPUPercent, sample.Memory.Percent,
		sample.CPUIowaitPercent, sample.CPUStealPercent)
	return nil
}

// Stop finalizes whatever was last persisted: it closes any open step,
// captures the final snapshot, sets the run bounds, and saves. It never
// signals the sampling loop; terminating that process is the supervisor's
// job. Returns the finalized document.
func (r *Runner) Stop() (*models.Document, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	end := r.now()
	steps.CloseOpen(doc, end)

	doc.EndTime = models.Epoch(end)
	doc.EndDatetime = end.Format(time.RFC3339)
	doc.Duration = doc.EndTime - doc.StartTime

	final := sysinfo.Final(r.reader, r.cfg.Collection.TopProcesses)
	doc.FinalSnapshot = &final

	if err := r.store.Save(doc); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.out, "Collection complete: %d samples over %.1fs\n",
		len(doc.Samples), doc.Duration)
	return doc, nil
}

// Mark records a step boundary: the open step (if any) is closed and a new
// step named name is opened. Marking before start has produced a document is
// an error, and no document is created as a side effect.
func (r *Runner) Mark(name string) (*models.Step, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	step := steps.Mark(doc, name, r.now())
	if err := r.store.Save(doc); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.out, "Step marked: %s\n", name)
	return step, nil
}

// Snapshot runs a small fixed number of ticks synchronously and finalizes
// immediately, for quick one-shot diagnostics.
func (r *Runner) Snapshot(ctx context.Context) (*models.Document, error) {
	count := r.cfg.Collection.SnapshotSamples
	interval := r.cfg.Collection.Interval.Duration

	fmt.Fprintln(r.out, "Taking telemetry snapshot...")
	doc := r.newDocument(r.now())

	for i := 0; i < count; i++ {
		obs := reader.Observe(r.reader, r.cfg.Collection.Workspace, r.now())
		sample := assemble.Build(r.prev, obs)
		r.prev = &obs
		doc.Samples = append(doc.Samples, sample)

		fmt.Fprintf(r.out, "  Sample %d/%d: CPU=%.1f%% MEM=%.1f%%\n",
			i+1, count, sample.CPUPercent, sample.Memory.Percent)

		if i < count-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	end := r.now()
	doc.EndTime = models.Epoch(end)
	doc.EndDatetime = end.Format(time.RFC3339)
	doc.Duration = doc.EndTime - doc.StartTime
	final := sysinfo.Final(r.reader, r.cfg.Collection.TopProcesses)
	doc.FinalSnapshot = &final

	if err := r.store.Save(doc); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.out, "Collected %d samples over %.1fs\n", len(doc.Samples), doc.Duration)
	return doc, nil
}

// SampleOnce collects a single sample without touching the document file.
// Rates are zero since there is no previous observation.
func (r *Runner) SampleOnce() models.Sample {
	obs := reader.Observe(r.reader, r.cfg.Collection.Workspace, r.now())
	return assemble.Build(nil, obs)
}

// newDocument builds a fresh run document with the initial snapshot and CI
// metadata captured.
func (r *Runner) newDocument(begin time.Time) *models.Document {
	return &models.Document{
		StartTime:       models.Epoch(begin),
		StartDatetime:   begin.Format(time.RFC3339),
		Interval:        r.cfg.Collection.Interval.Duration.Seconds(),
		Samples:         []models.Sample{},
		Steps:           []models.Step{},
		InitialSnapshot: sysinfo.Initial(r.reader, r.cfg.Collection.Workspace, r.cfg.Collection.TopProcesses),
		GitHubContext:   sysinfo.GitHub(),
	}
}
