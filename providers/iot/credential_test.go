package iot_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/providers/iot"
	"github.com/picklr-io/ggprov/providers/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingProps() ir.Properties {
	return ir.Properties{
		"RoleName":          "gg-token-exchange",
		"RoleAliasName":     "gg-alias",
		"ManagedPolicyArns": []any{"arn:aws:iam::aws:policy/AWSIoTLogging", "arn:aws:iam::aws:policy/S3ReadOnly"},
	}
}

func TestCredentialBinding_Create(t *testing.T) {
	c := null.New()
	res, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindCredentialBinding, bindingProps()))
	require.NoError(t, err)

	assert.Equal(t, "gg-alias", res.PhysicalResourceID)

	role, policies, ok := c.Role("gg-token-exchange")
	require.True(t, ok)
	assert.Len(t, policies, 2)

	alias, ok := c.RoleAlias("gg-alias")
	require.True(t, ok)
	assert.Equal(t, role.ARN, alias.RoleARN)
	assert.Equal(t, 3600, alias.DurationSeconds)

	assert.Equal(t, map[string]string{
		"RoleAliasName": "gg-alias",
		"RoleAliasArn":  alias.ARN,
		"RoleName":      "gg-token-exchange",
		"RoleArn":       role.ARN,
	}, res.Data)
}

func TestCredentialBinding_WaitsForRolePropagation(t *testing.T) {
	c := null.New()
	c.FailTimes("CreateRoleAlias", fmt.Errorf("role not assumable yet: %w", iot.ErrNotFound), 2)

	res, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindCredentialBinding, bindingProps()))
	require.NoError(t, err)
	assert.Equal(t, "gg-alias", res.PhysicalResourceID)
	assert.Equal(t, 3, c.CallCount("CreateRoleAlias"))
}

func TestCredentialBinding_AliasBoundToOtherRole(t *testing.T) {
	c := null.New()
	_, err := c.CreateRoleAlias(context.Background(), "gg-alias", "arn:aws:iam::1:role/someone-else", 3600)
	require.NoError(t, err)

	res, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindCredentialBinding, bindingProps()))
	assert.ErrorContains(t, err, "already points at")
	assert.Empty(t, res.PhysicalResourceID)
}

func TestCredentialBinding_Validate(t *testing.T) {
	k := iot.NewCredentialBinding(null.New(), testOptions)

	assert.NoError(t, k.Validate(bindingProps()))

	p := bindingProps()
	p["CredentialDurationSeconds"] = "60"
	assert.ErrorContains(t, k.Validate(p), "between 900 and 43200")

	p = bindingProps()
	p["AssumeRolePolicyDocument"] = "{not json"
	assert.Error(t, k.Validate(p))
}

func TestCredentialBinding_DeleteKeepsRole(t *testing.T) {
	c := null.New()
	d := newDispatcher(t, c)
	created, err := d.Handle(context.Background(), createEvent(iot.KindCredentialBinding, bindingProps()))
	require.NoError(t, err)

	_, err = d.Handle(context.Background(), deleteEvent(iot.KindCredentialBinding, created.PhysicalResourceID, bindingProps()))
	require.NoError(t, err)

	_, ok := c.RoleAlias("gg-alias")
	assert.False(t, ok)
	_, _, ok = c.Role("gg-token-exchange")
	assert.True(t, ok)
}
