package iot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
)

// DefaultTrustPolicy lets the IoT credential provider assume the role.
const DefaultTrustPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"credentials.iot.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

const defaultCredentialDuration = 3600

const (
	keyRoleName  = "role.name"
	keyRoleArn   = "role.arn"
	keyAliasName = "alias.name"
	keyAliasArn  = "alias.arn"
)

// CredentialBinding is an IAM role the device credential
// provider may assume, exposed to devices through a role alias.
type CredentialBinding struct {
	client Client
	opts   Options
}

func NewCredentialBinding(c Client, opts Options) *CredentialBinding {
	return &CredentialBinding{client: c, opts: opts}
}

type roleAliasConfig struct {
	RoleName        string
	AliasName       string
	TrustPolicy     string
	ManagedPolicies []string
	Duration        int
}

func parseRoleAlias(p ir.Properties) (roleAliasConfig, error) {
	cfg := roleAliasConfig{
		RoleName:        p.String("RoleName"),
		AliasName:       p.String("RoleAliasName"),
		ManagedPolicies: p.Strings("ManagedPolicyArns"),
	}

	doc, err := p.Document("AssumeRolePolicyDocument")
	if err != nil {
		return cfg, err
	}
	if doc == "" {
		doc = DefaultTrustPolicy
	}
	cfg.TrustPolicy = doc

	cfg.Duration, err = p.Int("CredentialDurationSeconds", defaultCredentialDuration)
	return cfg, err
}

func (k *CredentialBinding) Name() string { return KindCredentialBinding }

func (k *CredentialBinding) Validate(props ir.Properties) error {
	if _, err := props.Require("RoleName"); err != nil {
		return err
	}
	if _, err := props.Require("RoleAliasName"); err != nil {
		return err
	}
	cfg, err := parseRoleAlias(props)
	if err != nil {
		return err
	}
	if !json.Valid([]byte(cfg.TrustPolicy)) {
		return fmt.Errorf("AssumeRolePolicyDocument is not valid JSON")
	}
	if cfg.Duration < 900 || cfg.Duration > 43200 {
		return fmt.Errorf("CredentialDurationSeconds must be between 900 and 43200, got %d", cfg.Duration)
	}
	return nil
}

func (k *CredentialBinding) CreateSteps(ev *ir.Event) []engine.Step {
	cfg, _ := parseRoleAlias(ev.Properties)

	attach := k.opts.step("attach-role-policies", func(ctx context.Context, sc *engine.Scratch) error {
		for _, arn := range cfg.ManagedPolicies {
			if err := k.client.AttachRolePolicy(ctx, cfg.RoleName, arn); err != nil {
				return fmt.Errorf("failed to attach %s to role %s: %w", arn, cfg.RoleName, err)
			}
		}
		return nil
	})
	attach.Skip = func(*engine.Scratch) bool { return len(cfg.ManagedPolicies) == 0 }

	// The alias step retries on its own clock, so it is not wrapped in a
	// single call timeout.
	alias := engine.Step{
		Name: "create-role-alias",
		Action: func(ctx context.Context, sc *engine.Scratch) error {
			return k.createAlias(ctx, cfg, sc)
		},
	}

	return []engine.Step{
		k.opts.step("create-role", func(ctx context.Context, sc *engine.Scratch) error {
			role, err := k.client.CreateRole(ctx, cfg.RoleName, cfg.TrustPolicy)
			if errors.Is(err, ErrAlreadyExists) {
				role, err = k.client.GetRole(ctx, cfg.RoleName)
			}
			if err != nil {
				return fmt.Errorf("failed to create role %s: %w", cfg.RoleName, err)
			}
			sc.Set(keyRoleName, role.Name)
			sc.Set(keyRoleArn, role.ARN)
			return nil
		}),
		attach,
		alias,
	}
}

func (k *CredentialBinding) createAlias(ctx context.Context, cfg roleAliasConfig, sc *engine.Scratch) error {
	roleArn := sc.Get(keyRoleArn)

	var alias RoleAlias
	err := k.opts.retry(ctx, func(ctx context.Context) error {
		var err error
		alias, err = k.client.CreateRoleAlias(ctx, cfg.AliasName, roleArn, cfg.Duration)
		return err
	})
	if errors.Is(err, ErrAlreadyExists) {
		alias, err = k.describeAlias(ctx, cfg.AliasName)
		if err == nil && alias.RoleARN != roleArn {
			return fmt.Errorf("role alias %s already points at %s", cfg.AliasName, alias.RoleARN)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create role alias %s: %w", cfg.AliasName, err)
	}

	sc.Set(keyAliasName, alias.Name)
	sc.Set(keyAliasArn, alias.ARN)
	return nil
}

func (k *CredentialBinding) describeAlias(ctx context.Context, name string) (RoleAlias, error) {
	ctx, cancel := engine.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	return k.client.DescribeRoleAlias(ctx, name)
}

func (k *CredentialBinding) Identity(sc *engine.Scratch) string {
	return sc.Get(keyAliasName)
}

func (k *CredentialBinding) Outputs(ctx context.Context, ev *ir.Event, sc *engine.Scratch) (map[string]string, error) {
	return map[string]string{
		"RoleAliasName": sc.Get(keyAliasName),
		"RoleAliasArn":  sc.Get(keyAliasArn),
		"RoleName":      sc.Get(keyRoleName),
		"RoleArn":       sc.Get(keyRoleArn),
	}, nil
}

// Teardown removes the alias only. The role may be shared with other
// aliases and is left in place.
func (k *CredentialBinding) Teardown(ev *ir.Event) engine.Teardown {
	alias := ev.PriorIdentity
	primary := k.opts.step("delete-role-alias", func(ctx context.Context, sc *engine.Scratch) error {
		return k.client.DeleteRoleAlias(ctx, alias)
	})
	return engine.Teardown{Primary: &primary}
}
