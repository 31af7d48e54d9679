package provider

import (
	"context"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
)

// Kind defines one compound resource type: how it is created, what identity
// and outputs it publishes, and how it is torn down.
//
// Implementations hold no per-invocation state; everything an invocation
// produces lives in the Scratch passed to the steps.
type Kind interface {
	// Name is the registry key, also accepted as "Custom::<Name>".
	Name() string

	// Validate checks the properties of a Create event without calling out.
	Validate(props ir.Properties) error

	// CreateSteps returns the ordered Create sequence for an event.
	CreateSteps(ev *ir.Event) []engine.Step

	// Identity returns the identity token from whatever the Create steps
	// managed to produce. It may be partial or empty after a failure.
	Identity(sc *engine.Scratch) string

	// Outputs resolves the output attributes after a successful Create.
	Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error)

	// Teardown returns the unwind plan for the identity in ev.
	Teardown(ev *ir.Event) engine.Teardown
}

// StepNames lists the Create and Delete step names of a kind, in order.
func StepNames(k Kind) (create, del []string) {
	probe := &ir.Event{Properties: ir.Properties{}}
	for _, s := range k.CreateSteps(probe) {
		create = append(create, s.Name)
	}
	for _, s := range k.Teardown(probe).Steps() {
		del = append(del, s.Name)
	}
	return create, del
}
