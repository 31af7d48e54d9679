package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSteps builds n steps that record their invocations; the step at
// index failAt (if >= 0) returns an error.
func countingSteps(n, failAt int, calls *[]string) []Step {
	steps := make([]Step, n)
	for i := range steps {
		name := fmt.Sprintf("step-%d", i+1)
		fail := i == failAt
		steps[i] = Step{
			Name: name,
			Action: func(ctx context.Context, sc *Scratch) error {
				*calls = append(*calls, name)
				if fail {
					return errors.New("boom")
				}
				return nil
			},
		}
	}
	return steps
}

func TestSequence_AllSucceed(t *testing.T) {
	var calls []string
	report, err := Sequence(context.Background(), "Test", ir.Properties{}, countingSteps(3, -1, &calls), NewScratch())
	require.NoError(t, err)
	assert.Equal(t, []string{"step-1", "step-2", "step-3"}, calls)
	assert.Equal(t, []string{"step-1", "step-2", "step-3"}, report.Completed())
	assert.False(t, report.Failed())
}

func TestSequence_AbortsAtFailingStep(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n=%d/k=%d", n, k+1), func(t *testing.T) {
				var calls []string
				report, err := Sequence(context.Background(), "Test", ir.Properties{}, countingSteps(n, k, &calls), NewScratch())

				var stepErr *StepError
				require.ErrorAs(t, err, &stepErr)
				assert.Equal(t, fmt.Sprintf("step-%d", k+1), stepErr.Step)
				assert.Equal(t, "Test", stepErr.Kind)

				// Steps k+1..n are never invoked.
				assert.Len(t, calls, k+1)
				assert.Len(t, report.Completed(), k)
				assert.True(t, report.Failed())
				last := report.Results[len(report.Results)-1]
				assert.Equal(t, Aborted, last.Outcome)
			})
		}
	}
}

func TestSequence_ForceFailRunsNothing(t *testing.T) {
	var calls []string
	props := ir.Properties{ir.ForceFailProperty: "true"}
	report, err := Sequence(context.Background(), "Test", props, countingSteps(3, -1, &calls), NewScratch())

	assert.ErrorIs(t, err, ErrForcedFailure)
	assert.Empty(t, calls)
	assert.Empty(t, report.Results)
}

func TestSequence_ValuesFlowBetweenSteps(t *testing.T) {
	sc := NewScratch()
	steps := []Step{
		{Name: "generate", Action: func(ctx context.Context, sc *Scratch) error {
			sc.Set("credential", "secret-1")
			return nil
		}},
		{Name: "store", Action: func(ctx context.Context, sc *Scratch) error {
			if sc.Get("credential") != "secret-1" {
				return errors.New("credential not carried")
			}
			sc.Set("stored", "yes")
			return nil
		}},
	}

	_, err := Sequence(context.Background(), "Test", ir.Properties{}, steps, sc)
	require.NoError(t, err)
	assert.True(t, sc.Has("stored"))
}

func TestSequence_SkippedSteps(t *testing.T) {
	ran := false
	steps := []Step{
		{
			Name:   "optional",
			Skip:   func(*Scratch) bool { return true },
			Action: func(context.Context, *Scratch) error { ran = true; return nil },
		},
	}

	report, err := Sequence(context.Background(), "Test", ir.Properties{}, steps, NewScratch())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, Skipped, report.Results[0].Outcome)
	assert.False(t, report.Attempted("optional"))
}

func TestStepErrorUnwraps(t *testing.T) {
	err := &StepError{Kind: "K", Step: "s", Err: ir.ErrAlreadyExists}
	assert.ErrorIs(t, err, ir.ErrAlreadyExists)
	assert.Equal(t, "K: step s failed: resource already exists", err.Error())
}
