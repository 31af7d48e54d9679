package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

// Sequence runs Create steps in order. The first failing step under
// AbortSequence ends the run; steps after it are never invoked and steps
// before it are not rolled back. Values flow between steps through sc.
//
// If props carries the FailCreate flag, Sequence fails before running
// anything.
func Sequence(ctx context.Context, kind string, props ir.Properties, steps []Step, sc *Scratch) (*Report, error) {
	report := &Report{Kind: kind}
	log := logging.With("kind", kind, "phase", "create")

	if props.ForceFail() {
		log.Error("create failed before first step", "reason", ir.ForceFailProperty)
		return report, ErrForcedFailure
	}

	for _, step := range steps {
		res := runStep(ctx, log, step, sc)
		report.add(res)
		if res.Outcome == Aborted {
			return report, &StepError{Kind: kind, Step: step.Name, Err: res.Err}
		}
	}

	log.Debug("create sequence finished", "steps", len(report.Results))
	return report, nil
}

func runStep(ctx context.Context, log *slog.Logger, step Step, sc *Scratch) StepResult {
	if step.Skip != nil && step.Skip(sc) {
		log.Debug("step skipped", "step", step.Name)
		return StepResult{Step: step.Name, Outcome: Skipped}
	}

	log.Debug("step started", "step", step.Name)
	start := time.Now()
	err := step.Action(ctx, sc)
	res := StepResult{Step: step.Name, Duration: time.Since(start)}

	switch {
	case err == nil:
		res.Outcome = Succeeded
		log.Debug("step finished", "step", step.Name, "duration", res.Duration)
	case step.Policy == ContinueAndLog && errors.Is(err, ir.ErrNotFound):
		res.Outcome = Succeeded
		log.Info("step target already gone", "step", step.Name, "error", err)
	case step.Policy == ContinueAndLog:
		res.Outcome = ContinuedWithError
		res.Err = err
		log.Warn("step failed, continuing", "step", step.Name, "error", err, "duration", res.Duration)
	default:
		res.Outcome = Aborted
		res.Err = err
		log.Error("step failed, aborting sequence", "step", step.Name, "error", err, "duration", res.Duration)
	}
	return res
}
