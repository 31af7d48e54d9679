package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/picklr-io/ggprov/providers/iot"
)

func (c *Client) CreateRole(ctx context.Context, name, trustPolicy string) (iot.Role, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Role{}, err
	}
	out, err := c.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 &name,
		AssumeRolePolicyDocument: &trustPolicy,
	})
	if err != nil {
		return iot.Role{}, fmt.Errorf("failed to create role %s: %w", name, classify(err))
	}
	return iot.Role{Name: aws.ToString(out.Role.RoleName), ARN: aws.ToString(out.Role.Arn)}, nil
}

func (c *Client) GetRole(ctx context.Context, name string) (iot.Role, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Role{}, err
	}
	out, err := c.iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: &name})
	if err != nil {
		return iot.Role{}, fmt.Errorf("failed to get role %s: %w", name, classify(err))
	}
	return iot.Role{Name: aws.ToString(out.Role.RoleName), ARN: aws.ToString(out.Role.Arn)}, nil
}

// AttachRolePolicy is idempotent on the IAM side; attaching an already
// attached managed policy succeeds.
func (c *Client) AttachRolePolicy(ctx context.Context, role, policyArn string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iamClient.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  &role,
		PolicyArn: &policyArn,
	})
	if err != nil {
		return fmt.Errorf("failed to attach %s to role %s: %w", policyArn, role, classify(err))
	}
	return nil
}
