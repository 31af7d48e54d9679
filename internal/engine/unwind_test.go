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

func recordingStep(name string, calls *[]string, err error) Step {
	return Step{
		Name: name,
		Action: func(ctx context.Context, sc *Scratch) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestUnwind_RunsPhasesInOrder(t *testing.T) {
	var calls []string
	primary := recordingStep("delete-primary", &calls, nil)
	td := Teardown{
		Release:  []Step{recordingStep("release", &calls, nil)},
		Discover: []Step{recordingStep("discover", &calls, nil)},
		Detach:   []Step{recordingStep("detach", &calls, nil)},
		Owned:    []Step{recordingStep("owned", &calls, nil)},
		Primary:  &primary,
	}

	report := Unwind(context.Background(), "Test", td, NewScratch())
	assert.Equal(t, []string{"release", "discover", "detach", "owned", "delete-primary"}, calls)
	assert.False(t, report.Failed())
	assert.NoError(t, report.Err())
}

func TestUnwind_ContinuesPastEveryFailureCombination(t *testing.T) {
	const n = 4
	boom := errors.New("boom")

	for mask := 0; mask < 1<<n; mask++ {
		t.Run(fmt.Sprintf("mask=%04b", mask), func(t *testing.T) {
			var calls []string
			var steps []Step
			for i := 0; i < n; i++ {
				var err error
				if mask&(1<<i) != 0 {
					err = boom
				}
				steps = append(steps, recordingStep(fmt.Sprintf("s%d", i), &calls, err))
			}
			primary := recordingStep("primary", &calls, boom)
			td := Teardown{Discover: steps[:2], Detach: steps[2:], Primary: &primary}

			report := Unwind(context.Background(), "Test", td, NewScratch())

			require.Len(t, calls, n+1)
			assert.Equal(t, "primary", calls[len(calls)-1])
			for _, res := range report.Results {
				assert.NotEqual(t, Aborted, res.Outcome)
			}
			assert.Error(t, report.Err())
		})
	}
}

func TestUnwind_NotFoundCountsAsReleased(t *testing.T) {
	var calls []string
	primary := recordingStep("primary", &calls, fmt.Errorf("delete thing: %w", ir.ErrNotFound))
	report := Unwind(context.Background(), "Test", Teardown{Primary: &primary}, NewScratch())

	assert.False(t, report.Failed())
	assert.Equal(t, Succeeded, report.Results[0].Outcome)
}

func TestScratchRelations(t *testing.T) {
	sc := NewScratch()
	sc.Relate(Relationship{Kind: "principal", From: "thing", To: "cert-1"})
	sc.Relate(Relationship{Kind: "policy", From: "cert-1", To: "p1"})
	sc.Relate(Relationship{Kind: "principal", From: "thing", To: "cert-2"})

	rels := sc.Relations("principal")
	require.Len(t, rels, 2)
	assert.Equal(t, "cert-1", rels[0].To)
	assert.Equal(t, "cert-2", rels[1].To)
	assert.Empty(t, sc.Relations("missing"))
}
