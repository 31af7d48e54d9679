package iot_test

import (
	"context"
	"testing"
	"time"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/provider"
	"github.com/picklr-io/ggprov/providers/iot"
	"github.com/picklr-io/ggprov/providers/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOptions = iot.Options{
	CallTimeout: time.Second,
	Retry:       &engine.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
}

func newDispatcher(t *testing.T, c iot.Client) *provider.Dispatcher {
	t.Helper()
	reg := provider.NewRegistry()
	iot.Register(reg, func(context.Context) (iot.Client, error) { return c, nil }, testOptions)
	return provider.NewDispatcher(reg, "")
}

func createEvent(kind string, props ir.Properties) *ir.Event {
	return &ir.Event{Intent: ir.IntentCreate, ResourceType: "Custom::" + kind, Properties: props}
}

func deleteEvent(kind, identity string, props ir.Properties) *ir.Event {
	return &ir.Event{Intent: ir.IntentDelete, ResourceType: "Custom::" + kind, PriorIdentity: identity, Properties: props}
}

// sampleProps holds a valid Create property set for every kind.
var sampleProps = map[string]ir.Properties{
	iot.KindCredentialBinding: {"RoleName": "gg-token-exchange", "RoleAliasName": "gg-alias"},
	iot.KindDeviceIdentity:    {"ThingName": "dev-1"},
	iot.KindDeviceGroup:       {"ThingGroupName": "fleet", "ThingArnList": []any{"arn:thing/a"}},
	iot.KindFleetDeployment: {
		"DeploymentName": "rollout-1",
		"TargetArn":      "arn:aws:iot:us-east-1:123456789012:thinggroup/fleet",
		"JobDocument":    `{"operation":"install"}`,
	},
}

func TestRegister_AllKinds(t *testing.T) {
	reg := provider.NewRegistry()
	iot.Register(reg, func(context.Context) (iot.Client, error) { return null.New(), nil }, testOptions)

	assert.Equal(t, []string{
		iot.KindCredentialBinding,
		iot.KindDeviceGroup,
		iot.KindDeviceIdentity,
		iot.KindFleetDeployment,
	}, reg.Names())

	for _, name := range reg.Names() {
		k, err := reg.LoadKind(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, name, k.Name())

		create, del := provider.StepNames(k)
		assert.NotEmpty(t, create, name)
		assert.NotEmpty(t, del, name)
	}
}

func TestKinds_ForceFailMakesNoCalls(t *testing.T) {
	for kind, props := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			c := null.New()
			d := newDispatcher(t, c)

			p := ir.Properties{ir.ForceFailProperty: "true"}
			for k, v := range props {
				p[k] = v
			}
			_, err := d.Handle(context.Background(), createEvent(kind, p))

			assert.ErrorIs(t, err, engine.ErrForcedFailure)
			assert.Empty(t, c.Calls())
		})
	}
}

func TestKinds_UpdateEchoesIdentity(t *testing.T) {
	for kind, props := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			c := null.New()
			d := newDispatcher(t, c)

			res, err := d.Handle(context.Background(), &ir.Event{
				Intent:        ir.IntentUpdate,
				ResourceType:  "Custom::" + kind,
				PriorIdentity: "existing-id",
				Properties:    props,
			})
			require.NoError(t, err)
			assert.Equal(t, "existing-id", res.PhysicalResourceID)
			assert.Empty(t, res.Data)
			assert.Empty(t, c.Calls())
		})
	}
}

func TestKinds_CreateIsIdempotent(t *testing.T) {
	for kind, props := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			c := null.New()
			d := newDispatcher(t, c)

			first, err := d.Handle(context.Background(), createEvent(kind, props))
			require.NoError(t, err)
			require.NotEmpty(t, first.PhysicalResourceID)

			second, err := d.Handle(context.Background(), createEvent(kind, props))
			require.NoError(t, err)
			assert.Equal(t, first.PhysicalResourceID, second.PhysicalResourceID)
			assert.Equal(t, first.Data, second.Data)
		})
	}
}

func TestKinds_DeleteNeverFails(t *testing.T) {
	for kind, props := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			c := null.New()
			d := newDispatcher(t, c)

			created, err := d.Handle(context.Background(), createEvent(kind, props))
			require.NoError(t, err)

			for _, method := range []string{
				"DeleteRoleAlias", "DeleteSecret", "DescribeCertificate", "ListThingPrincipals",
				"ListAttachedPolicies", "ListPolicyVersions", "DetachThingPrincipal", "DetachPolicy",
				"DeletePolicyVersion", "DeletePolicy", "UpdateCertificateStatus", "DeleteCertificate",
				"DeleteThing", "ListThingGroups", "DeleteThingGroup", "CancelJob",
			} {
				c.Fail(method, assert.AnError)
			}

			res, err := d.Handle(context.Background(), deleteEvent(kind, created.PhysicalResourceID, props))
			require.NoError(t, err)
			assert.Equal(t, created.PhysicalResourceID, res.PhysicalResourceID)
			assert.Empty(t, res.Data)
		})
	}
}

func TestKinds_DeleteOfMissingResourceSucceeds(t *testing.T) {
	for kind, props := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			d := newDispatcher(t, null.New())
			res, err := d.Handle(context.Background(), deleteEvent(kind, "never-created", props))
			require.NoError(t, err)
			assert.Equal(t, "never-created", res.PhysicalResourceID)
		})
	}
}

func TestKinds_ValidateRejectsMissingProperties(t *testing.T) {
	for kind := range sampleProps {
		t.Run(kind, func(t *testing.T) {
			c := null.New()
			d := newDispatcher(t, c)

			_, err := d.Handle(context.Background(), createEvent(kind, ir.Properties{}))
			assert.ErrorIs(t, err, ir.ErrMissingProperty)
			assert.Empty(t, c.Calls())
		})
	}
}
