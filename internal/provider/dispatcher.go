package provider

import (
	"context"
	"fmt"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

// Dispatcher routes lifecycle events to the registered kinds.
type Dispatcher struct {
	registry    *Registry
	defaultKind string
}

// NewDispatcher returns a dispatcher over registry. defaultKind is used when
// an event's ResourceType does not name a registered kind.
func NewDispatcher(registry *Registry, defaultKind string) *Dispatcher {
	return &Dispatcher{registry: registry, defaultKind: defaultKind}
}

// KindFor returns the kind name an event will be dispatched to.
func (d *Dispatcher) KindFor(ev *ir.Event) string {
	if k := ev.Kind(); k != "" && d.registry.Has(k) {
		return k
	}
	return d.defaultKind
}

// Handle reconciles one event.
//
// It returns an error for an invalid envelope and for a failed Create; in the
// latter case the result still carries whatever partial identity was
// captured. Update and Delete always succeed and echo the prior identity.
func (d *Dispatcher) Handle(ctx context.Context, ev *ir.Event) (ir.Result, error) {
	if err := ev.Validate(); err != nil {
		return ir.Result{}, err
	}

	name := d.KindFor(ev)
	log := logging.With("kind", name, "intent", string(ev.Intent), "request_id", ev.RequestID)

	switch ev.Intent {
	case ir.IntentUpdate:
		log.Info("update keeps the existing identity", "identity", ev.PriorIdentity)
		return ir.Echo(ev), nil
	case ir.IntentDelete:
		d.delete(ctx, name, ev)
		return ir.Echo(ev), nil
	default:
		return d.create(ctx, name, ev)
	}
}

func (d *Dispatcher) create(ctx context.Context, name string, ev *ir.Event) (ir.Result, error) {
	log := logging.With("kind", name, "intent", string(ev.Intent), "request_id", ev.RequestID)
	failed := ir.Result{Data: map[string]string{}}

	kind, err := d.registry.LoadKind(ctx, name)
	if err != nil {
		return failed, err
	}

	if !ev.Properties.ForceFail() {
		if err := kind.Validate(ev.Properties); err != nil {
			return failed, fmt.Errorf("%s: invalid properties: %w", name, err)
		}
	}

	sc := engine.NewScratch()
	report, err := engine.Sequence(ctx, name, ev.Properties, kind.CreateSteps(ev), sc)
	identity := kind.Identity(sc)
	if err != nil {
		log.Error("create failed", "error", err, "completed", report.Completed(), "partial_identity", identity)
		failed.PhysicalResourceID = identity
		return failed, err
	}

	outputs, err := kind.Outputs(ctx, ev, sc)
	if err != nil {
		log.Error("create failed resolving outputs", "error", err, "identity", identity)
		failed.PhysicalResourceID = identity
		return failed, fmt.Errorf("%s: resolve outputs: %w", name, err)
	}

	log.Info("create completed", "identity", identity, "steps", report.Completed())
	return ir.Result{PhysicalResourceID: identity, Data: outputs}, nil
}

func (d *Dispatcher) delete(ctx context.Context, name string, ev *ir.Event) {
	log := logging.With("kind", name, "intent", string(ev.Intent), "request_id", ev.RequestID, "identity", ev.PriorIdentity)

	kind, err := d.registry.LoadKind(ctx, name)
	if err != nil {
		log.Error("cannot load kind, reporting delete as complete", "error", err)
		return
	}

	report := engine.Unwind(ctx, name, kind.Teardown(ev), engine.NewScratch())
	if report.Failed() {
		log.Warn("delete completed with failed steps", "error", report.Err())
		return
	}
	log.Info("delete completed")
}
