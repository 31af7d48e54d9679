package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrForcedFailure is returned when an event asks for a Create to fail
// before any external call is made.
var ErrForcedFailure = errors.New("create failed on request (FailCreate)")

// FailurePolicy decides what a failing step does to the rest of its sequence.
type FailurePolicy int

const (
	// AbortSequence stops the sequence at the failing step. Used by Create.
	AbortSequence FailurePolicy = iota

	// ContinueAndLog records the failure and moves on. Used by Delete.
	ContinueAndLog
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortSequence:
		return "abort-sequence"
	case ContinueAndLog:
		return "continue-and-log"
	default:
		return "unknown"
	}
}

// Outcome is the result of one executed (or skipped) step.
type Outcome int

const (
	Succeeded Outcome = iota
	Aborted
	ContinuedWithError
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Aborted:
		return "aborted"
	case ContinuedWithError:
		return "continued-with-error"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Step is one external call within a Create sequence or a Delete unwind.
type Step struct {
	Name   string
	Action func(ctx context.Context, sc *Scratch) error
	Policy FailurePolicy

	// Skip, when set and returning true, marks the step Skipped without
	// running Action.
	Skip func(sc *Scratch) bool
}

// StepResult records what happened to a single step.
type StepResult struct {
	Step     string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// StepError identifies the step that failed a sequence.
type StepError struct {
	Kind string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Kind, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Report is the ordered record of a sequence run.
type Report struct {
	Kind    string
	Results []StepResult
}

func (r *Report) add(res StepResult) {
	r.Results = append(r.Results, res)
}

// Failed reports whether any step aborted or continued with an error.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Completed returns the names of the steps that succeeded, in order.
func (r *Report) Completed() []string {
	var names []string
	for _, res := range r.Results {
		if res.Outcome == Succeeded {
			names = append(names, res.Step)
		}
	}
	return names
}

// Attempted reports whether the named step ran (successfully or not).
func (r *Report) Attempted(step string) bool {
	for _, res := range r.Results {
		if res.Step == step && res.Outcome != Skipped {
			return true
		}
	}
	return false
}

// Err joins every step failure in the report, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, &StepError{Kind: r.Kind, Step: res.Step, Err: res.Err})
		}
	}
	return errors.Join(errs...)
}
