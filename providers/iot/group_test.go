package iot_test

import (
	"context"
	"testing"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/providers/iot"
	"github.com/picklr-io/ggprov/providers/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceGroup_CreateWithMembers(t *testing.T) {
	c := null.New()
	props := ir.Properties{
		"ThingGroupName": "G",
		"ThingArnList":   []any{"arn:aws:iot:us-east-1:123456789012:thing/a1", "arn:aws:iot:us-east-1:123456789012:thing/a2"},
	}

	res, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindDeviceGroup, props))
	require.NoError(t, err)

	assert.Equal(t, 1, c.CallCount("CreateThingGroup"))
	assert.Equal(t, 2, c.CallCount("AddThingToGroup"))

	group, members, ok := c.Group("G")
	require.True(t, ok)
	assert.Len(t, members, 2)
	assert.Equal(t, group.ID, res.PhysicalResourceID)
	assert.Equal(t, group.ARN, res.Data["ThingGroupArn"])
	assert.Equal(t, group.ID, res.Data["ThingGroupId"])
	assert.Equal(t, "G", res.Data["ThingGroupName"])
}

func TestDeviceGroup_MembersFromCommaList(t *testing.T) {
	c := null.New()
	props := ir.Properties{"ThingGroupName": "G", "ThingArnList": "arn:a, arn:b ,arn:c"}

	_, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindDeviceGroup, props))
	require.NoError(t, err)
	assert.Equal(t, 3, c.CallCount("AddThingToGroup"))
}

func TestDeviceGroup_NoMembersSkipsAdd(t *testing.T) {
	c := null.New()
	_, err := newDispatcher(t, c).Handle(context.Background(), createEvent(iot.KindDeviceGroup, ir.Properties{"ThingGroupName": "G"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateThingGroup"}, c.Calls())
}

func TestDeviceGroup_DeleteByIdentityOnly(t *testing.T) {
	c := null.New()
	d := newDispatcher(t, c)
	ctx := context.Background()

	_, err := c.CreateThingGroup(ctx, "other", "")
	require.NoError(t, err)
	created, err := d.Handle(ctx, createEvent(iot.KindDeviceGroup, ir.Properties{"ThingGroupName": "G"}))
	require.NoError(t, err)

	_, err = d.Handle(ctx, deleteEvent(iot.KindDeviceGroup, created.PhysicalResourceID, ir.Properties{}))
	require.NoError(t, err)

	_, _, ok := c.Group("G")
	assert.False(t, ok)
	_, _, ok = c.Group("other")
	assert.True(t, ok)
	assert.Equal(t, 1, c.CallCount("ListThingGroups"))
}

func TestDeviceGroup_DeleteUsesPropertyName(t *testing.T) {
	c := null.New()
	d := newDispatcher(t, c)
	ctx := context.Background()

	props := ir.Properties{"ThingGroupName": "G"}
	created, err := d.Handle(ctx, createEvent(iot.KindDeviceGroup, props))
	require.NoError(t, err)
	c.ResetCalls()

	_, err = d.Handle(ctx, deleteEvent(iot.KindDeviceGroup, created.PhysicalResourceID, props))
	require.NoError(t, err)
	assert.Equal(t, []string{"DeleteThingGroup"}, c.Calls())
}
