package engine

import (
	"context"

	"github.com/picklr-io/ggprov/internal/logging"
)

// Teardown is the static unwind plan of a resource kind. Phases run in field
// order and the primary deletion always runs last.
type Teardown struct {
	// Release removes standalone resources that have no edges in the graph.
	Release []Step

	// Discover queries the external system for live relationships and
	// records them in the scratch area.
	Discover []Step

	// Detach unlinks many-to-many edges found during discovery.
	Detach []Step

	// Owned deletes sub-resources owned by the primary resource.
	Owned []Step

	// Primary deletes the resource identified by the prior identity.
	Primary *Step
}

// Steps returns every step of the plan in execution order.
func (t Teardown) Steps() []Step {
	var steps []Step
	steps = append(steps, t.Release...)
	steps = append(steps, t.Discover...)
	steps = append(steps, t.Detach...)
	steps = append(steps, t.Owned...)
	if t.Primary != nil {
		steps = append(steps, *t.Primary)
	}
	return steps
}

// Unwind executes a teardown plan best-effort. Every step runs with
// ContinueAndLog regardless of how it was declared, so a failure in one step
// never prevents the next, and "not found" counts as already released.
//
// Unwind has no error return: failures are reported and logged only.
func Unwind(ctx context.Context, kind string, td Teardown, sc *Scratch) *Report {
	report := &Report{Kind: kind}
	log := logging.With("kind", kind, "phase", "delete")

	for _, step := range td.Steps() {
		step.Policy = ContinueAndLog
		report.add(runStep(ctx, log, step, sc))
	}

	if err := report.Err(); err != nil {
		log.Warn("unwind finished with failures", "error", err)
	} else {
		log.Debug("unwind finished", "steps", len(report.Results))
	}
	return report
}
