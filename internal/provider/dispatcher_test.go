package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKind creates two records and deletes them again, recording each call.
type fakeKind struct {
	calls      []string
	failCreate string
	failDelete map[string]bool
}

func (k *fakeKind) Name() string { return "Fake" }

func (k *fakeKind) Validate(props ir.Properties) error {
	_, err := props.Require("Name")
	return err
}

func (k *fakeKind) step(name string, fail bool) engine.Step {
	return engine.Step{Name: name, Action: func(ctx context.Context, sc *engine.Scratch) error {
		k.calls = append(k.calls, name)
		if fail {
			return errors.New(name + " broke")
		}
		sc.Set(name, "done")
		return nil
	}}
}

func (k *fakeKind) CreateSteps(ev *ir.Event) []engine.Step {
	return []engine.Step{
		k.step("make-a", k.failCreate == "make-a"),
		k.step("make-b", k.failCreate == "make-b"),
	}
}

func (k *fakeKind) Identity(sc *engine.Scratch) string {
	if sc.Has("make-a") {
		return "id-a"
	}
	return ""
}

func (k *fakeKind) Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error) {
	return map[string]string{"Name": ev.Properties.String("Name")}, nil
}

func (k *fakeKind) Teardown(ev *ir.Event) engine.Teardown {
	primary := k.step("remove-a", k.failDelete["remove-a"])
	return engine.Teardown{
		Detach:  []engine.Step{k.step("unlink-b", k.failDelete["unlink-b"])},
		Primary: &primary,
	}
}

func newTestDispatcher(k *fakeKind) *Dispatcher {
	reg := NewRegistry()
	reg.Register("Fake", func(context.Context) (Kind, error) { return k, nil })
	return NewDispatcher(reg, "Fake")
}

func TestHandle_Create(t *testing.T) {
	k := &fakeKind{}
	d := newTestDispatcher(k)

	res, err := d.Handle(context.Background(), &ir.Event{
		Intent:     ir.IntentCreate,
		Properties: ir.Properties{"Name": "n1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-a", res.PhysicalResourceID)
	assert.Equal(t, map[string]string{"Name": "n1"}, res.Data)
	assert.Equal(t, []string{"make-a", "make-b"}, k.calls)
}

func TestHandle_CreateFailureKeepsPartialIdentity(t *testing.T) {
	k := &fakeKind{failCreate: "make-b"}
	d := newTestDispatcher(k)

	res, err := d.Handle(context.Background(), &ir.Event{
		Intent:     ir.IntentCreate,
		Properties: ir.Properties{"Name": "n1"},
	})
	var stepErr *engine.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "make-b", stepErr.Step)
	assert.Equal(t, "id-a", res.PhysicalResourceID)
	assert.Empty(t, res.Data)
}

func TestHandle_CreateForceFail(t *testing.T) {
	k := &fakeKind{}
	d := newTestDispatcher(k)

	_, err := d.Handle(context.Background(), &ir.Event{
		Intent:     ir.IntentCreate,
		Properties: ir.Properties{ir.ForceFailProperty: true},
	})
	assert.ErrorIs(t, err, engine.ErrForcedFailure)
	assert.Empty(t, k.calls)
}

func TestHandle_CreateInvalidProperties(t *testing.T) {
	k := &fakeKind{}
	d := newTestDispatcher(k)

	_, err := d.Handle(context.Background(), &ir.Event{Intent: ir.IntentCreate, Properties: ir.Properties{}})
	assert.ErrorIs(t, err, ir.ErrMissingProperty)
	assert.Empty(t, k.calls)
}

func TestHandle_UpdateEchoesIdentity(t *testing.T) {
	k := &fakeKind{}
	d := newTestDispatcher(k)

	res, err := d.Handle(context.Background(), &ir.Event{
		Intent:        ir.IntentUpdate,
		PriorIdentity: "id-a",
		Properties:    ir.Properties{"Name": "changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-a", res.PhysicalResourceID)
	assert.Empty(t, res.Data)
	assert.Empty(t, k.calls)
}

func TestHandle_DeleteNeverFails(t *testing.T) {
	tests := []struct {
		name  string
		fails map[string]bool
	}{
		{"clean", nil},
		{"detach fails", map[string]bool{"unlink-b": true}},
		{"primary fails", map[string]bool{"remove-a": true}},
		{"everything fails", map[string]bool{"unlink-b": true, "remove-a": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := &fakeKind{failDelete: tt.fails}
			d := newTestDispatcher(k)

			res, err := d.Handle(context.Background(), &ir.Event{
				Intent:        ir.IntentDelete,
				PriorIdentity: "id-a",
			})
			require.NoError(t, err)
			assert.Equal(t, "id-a", res.PhysicalResourceID)
			assert.Equal(t, []string{"unlink-b", "remove-a"}, k.calls)
		})
	}
}

func TestHandle_InvalidEnvelope(t *testing.T) {
	d := newTestDispatcher(&fakeKind{})

	_, err := d.Handle(context.Background(), &ir.Event{Intent: "Replace"})
	assert.ErrorIs(t, err, ir.ErrInvalidIntent)

	_, err = d.Handle(context.Background(), &ir.Event{Intent: ir.IntentDelete})
	assert.ErrorIs(t, err, ir.ErrMissingIdentity)
}

func TestHandle_UnknownKind(t *testing.T) {
	d := NewDispatcher(NewRegistry(), "")

	_, err := d.Handle(context.Background(), &ir.Event{Intent: ir.IntentCreate, ResourceType: "Custom::Nope"})
	assert.ErrorIs(t, err, ErrUnknownKind)

	// Delete still reports success so the control plane is not wedged.
	res, err := d.Handle(context.Background(), &ir.Event{Intent: ir.IntentDelete, PriorIdentity: "x", ResourceType: "Custom::Nope"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.PhysicalResourceID)
}

func TestKindFor(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Fake", func(context.Context) (Kind, error) { return &fakeKind{}, nil })
	reg.Register("Other", func(context.Context) (Kind, error) { return &fakeKind{}, nil })
	d := NewDispatcher(reg, "Fake")

	assert.Equal(t, "Other", d.KindFor(&ir.Event{ResourceType: "Custom::Other"}))
	assert.Equal(t, "Fake", d.KindFor(&ir.Event{ResourceType: "Custom::Missing"}))
	assert.Equal(t, "Fake", d.KindFor(&ir.Event{}))
}

func TestStepNames(t *testing.T) {
	create, del := StepNames(&fakeKind{})
	assert.Equal(t, []string{"make-a", "make-b"}, create)
	assert.Equal(t, []string{"unlink-b", "remove-a"}, del)
}
