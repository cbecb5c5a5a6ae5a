// Package steps maintains the named-step bookkeeping inside a telemetry
// document. Exactly one step is open at a time: marking a new step closes the
// previous one at the same instant, and finalizing the run closes whatever
// step is still open.
package steps

import (
	"time"

	"github.com/runnerscope/runnerscope/internal/models"
)

// Mark closes the currently open step (if any) and opens a new one named
// name at the given time. The closed step's sample range ends at the last
// sample already collected; the new step covers samples from the current
// count onward. The returned pointer is valid until the document's step
// slice is next modified.
func Mark(doc *models.Document, name string, at time.Time) *models.Step {
	CloseOpen(doc, at)

	doc.Steps = append(doc.Steps, models.Step{
		Name:           name,
		StartTime:      models.Epoch(at),
		StartDatetime:  at.Format(time.RFC3339),
		SampleStartIdx: len(doc.Samples),
	})
	return &doc.Steps[len(doc.Steps)-1]
}

// CloseOpen closes the currently open step at the given time, setting its
// end bounds, duration, and the inclusive end of its sample range. It is a
// no-op when no step is open.
func CloseOpen(doc *models.Document, at time.Time) {
	step := doc.OpenStep()
	if step == nil {
		return
	}
	step.EndTime = models.Epoch(at)
	step.EndDatetime = at.Format(time.RFC3339)
	step.Duration = step.EndTime - step.StartTime
	endIdx := len(doc.Samples) - 1
	step.SampleEndIdx = &endIdx
}
