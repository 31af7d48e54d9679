package iot

import (
	"context"
	"errors"
	"fmt"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
)

const (
	keyGroupName = "group.name"
	keyGroupArn  = "group.arn"
	keyGroupID   = "group.id"
)

// DeviceGroup is a thing group and its initial members.
type DeviceGroup struct {
	client Client
	opts   Options
}

func NewDeviceGroup(c Client, opts Options) *DeviceGroup {
	return &DeviceGroup{client: c, opts: opts}
}

func (k *DeviceGroup) Name() string { return KindDeviceGroup }

func (k *DeviceGroup) Validate(props ir.Properties) error {
	_, err := props.Require("ThingGroupName")
	return err
}

func (k *DeviceGroup) CreateSteps(ev *ir.Event) []engine.Step {
	name := ev.Properties.String("ThingGroupName")
	description := ev.Properties.String("ThingGroupDescription")
	members := ev.Properties.Strings("ThingArnList")

	add := k.opts.step("add-group-members", func(ctx context.Context, sc *engine.Scratch) error {
		for _, arn := range members {
			if err := k.client.AddThingToGroup(ctx, name, arn); err != nil {
				return fmt.Errorf("failed to add %s to group %s: %w", arn, name, err)
			}
		}
		return nil
	})
	add.Skip = func(*engine.Scratch) bool { return len(members) == 0 }

	return []engine.Step{
		k.opts.step("create-thing-group", func(ctx context.Context, sc *engine.Scratch) error {
			group, err := k.client.CreateThingGroup(ctx, name, description)
			if errors.Is(err, ErrAlreadyExists) {
				group, err = k.client.DescribeThingGroup(ctx, name)
			}
			if err != nil {
				return fmt.Errorf("failed to create thing group %s: %w", name, err)
			}
			sc.Set(keyGroupName, group.Name)
			sc.Set(keyGroupArn, group.ARN)
			sc.Set(keyGroupID, group.ID)
			return nil
		}),
		add,
	}
}

func (k *DeviceGroup) Identity(sc *engine.Scratch) string {
	return sc.Get(keyGroupID)
}

func (k *DeviceGroup) Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error) {
	return map[string]string{
		"ThingGroupName": sc.Get(keyGroupName),
		"ThingGroupArn":  sc.Get(keyGroupArn),
		"ThingGroupId":   sc.Get(keyGroupID),
	}, nil
}

// Teardown deletes the group. The identity is the group id, so the name is
// taken from the event or else found by listing groups.
func (k *DeviceGroup) Teardown(ev *ir.Event) engine.Teardown {
	id := ev.PriorIdentity
	name := ev.Properties.String("ThingGroupName")

	primary := k.opts.step("delete-thing-group", func(ctx context.Context, sc *engine.Scratch) error {
		group := sc.Get(keyGroupName)
		if group == "" {
			return fmt.Errorf("no thing group found with id %s", id)
		}
		return k.client.DeleteThingGroup(ctx, group)
	})

	return engine.Teardown{
		Discover: []engine.Step{
			k.opts.step("resolve-group-name", func(ctx context.Context, sc *engine.Scratch) error {
				if name != "" {
					sc.Set(keyGroupName, name)
					return nil
				}
				return k.findGroup(ctx, id, sc)
			}),
		},
		Primary: &primary,
	}
}

func (k *DeviceGroup) findGroup(ctx context.Context, id string, sc *engine.Scratch) error {
	names, err := k.client.ListThingGroups(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		group, err := k.client.DescribeThingGroup(ctx, n)
		if err != nil {
			continue
		}
		if group.ID == id {
			sc.Set(keyGroupName, group.Name)
			return nil
		}
	}
	return fmt.Errorf("thing group %s: %w", id, ErrNotFound)
}
