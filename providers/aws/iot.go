package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiot "github.com/aws/aws-sdk-go-v2/service/iot"
	iottypes "github.com/aws/aws-sdk-go-v2/service/iot/types"

	"github.com/picklr-io/ggprov/providers/iot"
)

// Things

func (c *Client) CreateThing(ctx context.Context, name string) (iot.Thing, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Thing{}, err
	}
	out, err := c.iotClient.CreateThing(ctx, &awsiot.CreateThingInput{ThingName: &name})
	if err != nil {
		return iot.Thing{}, fmt.Errorf("failed to create thing %s: %w", name, classify(err))
	}
	return iot.Thing{Name: aws.ToString(out.ThingName), ARN: aws.ToString(out.ThingArn)}, nil
}

func (c *Client) DescribeThing(ctx context.Context, name string) (iot.Thing, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Thing{}, err
	}
	out, err := c.iotClient.DescribeThing(ctx, &awsiot.DescribeThingInput{ThingName: &name})
	if err != nil {
		return iot.Thing{}, fmt.Errorf("failed to describe thing %s: %w", name, classify(err))
	}
	return iot.Thing{Name: aws.ToString(out.ThingName), ARN: aws.ToString(out.ThingArn)}, nil
}

func (c *Client) DeleteThing(ctx context.Context, name string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	if _, err := c.iotClient.DeleteThing(ctx, &awsiot.DeleteThingInput{ThingName: &name}); err != nil {
		return fmt.Errorf("failed to delete thing %s: %w", name, classify(err))
	}
	return nil
}

func (c *Client) AttachThingPrincipal(ctx context.Context, thing, principal string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.AttachThingPrincipal(ctx, &awsiot.AttachThingPrincipalInput{
		ThingName: &thing,
		Principal: &principal,
	})
	if err != nil {
		return fmt.Errorf("failed to attach principal to thing %s: %w", thing, classify(err))
	}
	return nil
}

func (c *Client) DetachThingPrincipal(ctx context.Context, thing, principal string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.DetachThingPrincipal(ctx, &awsiot.DetachThingPrincipalInput{
		ThingName: &thing,
		Principal: &principal,
	})
	if err != nil {
		return fmt.Errorf("failed to detach principal from thing %s: %w", thing, classify(err))
	}
	return nil
}

func (c *Client) ListThingPrincipals(ctx context.Context, thing string) ([]string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	var principals []string
	var next *string
	for {
		out, err := c.iotClient.ListThingPrincipals(ctx, &awsiot.ListThingPrincipalsInput{
			ThingName: &thing,
			NextToken: next,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list principals of thing %s: %w", thing, classify(err))
		}
		principals = append(principals, out.Principals...)
		if aws.ToString(out.NextToken) == "" {
			return principals, nil
		}
		next = out.NextToken
	}
}

func (c *Client) ListPrincipalThings(ctx context.Context, principal string) ([]string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	var things []string
	var next *string
	for {
		out, err := c.iotClient.ListPrincipalThings(ctx, &awsiot.ListPrincipalThingsInput{
			Principal: &principal,
			NextToken: next,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list things of principal: %w", classify(err))
		}
		things = append(things, out.Things...)
		if aws.ToString(out.NextToken) == "" {
			return things, nil
		}
		next = out.NextToken
	}
}

// Certificates

func (c *Client) CreateKeysAndCertificate(ctx context.Context) (iot.Certificate, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Certificate{}, err
	}
	out, err := c.iotClient.CreateKeysAndCertificate(ctx, &awsiot.CreateKeysAndCertificateInput{
		SetAsActive: true,
	})
	if err != nil {
		return iot.Certificate{}, fmt.Errorf("failed to create keys and certificate: %w", classify(err))
	}

	cert := iot.Certificate{
		ID:     aws.ToString(out.CertificateId),
		ARN:    aws.ToString(out.CertificateArn),
		Status: iot.CertificateActive,
		PEM:    aws.ToString(out.CertificatePem),
	}
	if out.KeyPair != nil {
		cert.PrivateKey = aws.ToString(out.KeyPair.PrivateKey)
	}
	return cert, nil
}

func (c *Client) DescribeCertificate(ctx context.Context, id string) (iot.Certificate, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Certificate{}, err
	}
	out, err := c.iotClient.DescribeCertificate(ctx, &awsiot.DescribeCertificateInput{CertificateId: &id})
	if err != nil {
		return iot.Certificate{}, fmt.Errorf("failed to describe certificate %s: %w", id, classify(err))
	}
	if out.CertificateDescription == nil {
		return iot.Certificate{}, fmt.Errorf("certificate %s: %w", id, iot.ErrNotFound)
	}
	d := out.CertificateDescription
	return iot.Certificate{
		ID:     aws.ToString(d.CertificateId),
		ARN:    aws.ToString(d.CertificateArn),
		Status: iot.CertificateStatus(d.Status),
	}, nil
}

func (c *Client) UpdateCertificateStatus(ctx context.Context, id string, status iot.CertificateStatus) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.UpdateCertificate(ctx, &awsiot.UpdateCertificateInput{
		CertificateId: &id,
		NewStatus:     iottypes.CertificateStatus(status),
	})
	if err != nil {
		return fmt.Errorf("failed to set certificate %s to %s: %w", id, status, classify(err))
	}
	return nil
}

func (c *Client) DeleteCertificate(ctx context.Context, id string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	if _, err := c.iotClient.DeleteCertificate(ctx, &awsiot.DeleteCertificateInput{CertificateId: &id}); err != nil {
		return fmt.Errorf("failed to delete certificate %s: %w", id, classify(err))
	}
	return nil
}

// Policies

func (c *Client) CreatePolicy(ctx context.Context, name, document string) (iot.Policy, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Policy{}, err
	}
	out, err := c.iotClient.CreatePolicy(ctx, &awsiot.CreatePolicyInput{
		PolicyName:     &name,
		PolicyDocument: &document,
	})
	if err != nil {
		return iot.Policy{}, fmt.Errorf("failed to create policy %s: %w", name, classify(err))
	}
	return iot.Policy{
		Name:             aws.ToString(out.PolicyName),
		ARN:              aws.ToString(out.PolicyArn),
		Document:         aws.ToString(out.PolicyDocument),
		DefaultVersionID: aws.ToString(out.PolicyVersionId),
	}, nil
}

func (c *Client) GetPolicy(ctx context.Context, name string) (iot.Policy, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Policy{}, err
	}
	out, err := c.iotClient.GetPolicy(ctx, &awsiot.GetPolicyInput{PolicyName: &name})
	if err != nil {
		return iot.Policy{}, fmt.Errorf("failed to get policy %s: %w", name, classify(err))
	}
	return iot.Policy{
		Name:             aws.ToString(out.PolicyName),
		ARN:              aws.ToString(out.PolicyArn),
		Document:         aws.ToString(out.PolicyDocument),
		DefaultVersionID: aws.ToString(out.DefaultVersionId),
	}, nil
}

func (c *Client) DeletePolicy(ctx context.Context, name string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	if _, err := c.iotClient.DeletePolicy(ctx, &awsiot.DeletePolicyInput{PolicyName: &name}); err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", name, classify(err))
	}
	return nil
}

func (c *Client) CreatePolicyVersion(ctx context.Context, name, document string, setDefault bool) (iot.PolicyVersion, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.PolicyVersion{}, err
	}
	out, err := c.iotClient.CreatePolicyVersion(ctx, &awsiot.CreatePolicyVersionInput{
		PolicyName:     &name,
		PolicyDocument: &document,
		SetAsDefault:   setDefault,
	})
	if err != nil {
		return iot.PolicyVersion{}, fmt.Errorf("failed to create version of policy %s: %w", name, classify(err))
	}
	return iot.PolicyVersion{
		ID:        aws.ToString(out.PolicyVersionId),
		IsDefault: out.IsDefaultVersion,
	}, nil
}

func (c *Client) ListPolicyVersions(ctx context.Context, name string) ([]iot.PolicyVersion, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}
	out, err := c.iotClient.ListPolicyVersions(ctx, &awsiot.ListPolicyVersionsInput{PolicyName: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of policy %s: %w", name, classify(err))
	}

	versions := make([]iot.PolicyVersion, 0, len(out.PolicyVersions))
	for _, v := range out.PolicyVersions {
		versions = append(versions, iot.PolicyVersion{
			ID:        aws.ToString(v.VersionId),
			IsDefault: v.IsDefaultVersion,
			CreatedAt: aws.ToTime(v.CreateDate),
		})
	}
	return versions, nil
}

func (c *Client) DeletePolicyVersion(ctx context.Context, name, versionID string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.DeletePolicyVersion(ctx, &awsiot.DeletePolicyVersionInput{
		PolicyName:      &name,
		PolicyVersionId: &versionID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete version %s of policy %s: %w", versionID, name, classify(err))
	}
	return nil
}

func (c *Client) AttachPolicy(ctx context.Context, policy, target string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.AttachPolicy(ctx, &awsiot.AttachPolicyInput{PolicyName: &policy, Target: &target})
	if err != nil {
		return fmt.Errorf("failed to attach policy %s: %w", policy, classify(err))
	}
	return nil
}

func (c *Client) DetachPolicy(ctx context.Context, policy, target string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.DetachPolicy(ctx, &awsiot.DetachPolicyInput{PolicyName: &policy, Target: &target})
	if err != nil {
		return fmt.Errorf("failed to detach policy %s: %w", policy, classify(err))
	}
	return nil
}

func (c *Client) ListAttachedPolicies(ctx context.Context, target string) ([]string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	var names []string
	var marker *string
	for {
		out, err := c.iotClient.ListAttachedPolicies(ctx, &awsiot.ListAttachedPoliciesInput{
			Target: &target,
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list attached policies: %w", classify(err))
		}
		for _, p := range out.Policies {
			names = append(names, aws.ToString(p.PolicyName))
		}
		if aws.ToString(out.NextMarker) == "" {
			return names, nil
		}
		marker = out.NextMarker
	}
}

// Thing groups

func (c *Client) CreateThingGroup(ctx context.Context, name, description string) (iot.ThingGroup, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.ThingGroup{}, err
	}
	input := &awsiot.CreateThingGroupInput{ThingGroupName: &name}
	if description != "" {
		input.ThingGroupProperties = &iottypes.ThingGroupProperties{ThingGroupDescription: &description}
	}
	out, err := c.iotClient.CreateThingGroup(ctx, input)
	if err != nil {
		return iot.ThingGroup{}, fmt.Errorf("failed to create thing group %s: %w", name, classify(err))
	}
	return iot.ThingGroup{
		Name: aws.ToString(out.ThingGroupName),
		ARN:  aws.ToString(out.ThingGroupArn),
		ID:   aws.ToString(out.ThingGroupId),
	}, nil
}

func (c *Client) DescribeThingGroup(ctx context.Context, name string) (iot.ThingGroup, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.ThingGroup{}, err
	}
	out, err := c.iotClient.DescribeThingGroup(ctx, &awsiot.DescribeThingGroupInput{ThingGroupName: &name})
	if err != nil {
		return iot.ThingGroup{}, fmt.Errorf("failed to describe thing group %s: %w", name, classify(err))
	}
	return iot.ThingGroup{
		Name: aws.ToString(out.ThingGroupName),
		ARN:  aws.ToString(out.ThingGroupArn),
		ID:   aws.ToString(out.ThingGroupId),
	}, nil
}

func (c *Client) ListThingGroups(ctx context.Context) ([]string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	var names []string
	var next *string
	for {
		out, err := c.iotClient.ListThingGroups(ctx, &awsiot.ListThingGroupsInput{NextToken: next})
		if err != nil {
			return nil, fmt.Errorf("failed to list thing groups: %w", classify(err))
		}
		for _, g := range out.ThingGroups {
			names = append(names, aws.ToString(g.GroupName))
		}
		if aws.ToString(out.NextToken) == "" {
			return names, nil
		}
		next = out.NextToken
	}
}

func (c *Client) AddThingToGroup(ctx context.Context, group, thingArn string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.AddThingToThingGroup(ctx, &awsiot.AddThingToThingGroupInput{
		ThingGroupName: &group,
		ThingArn:       &thingArn,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to thing group %s: %w", thingArn, group, classify(err))
	}
	return nil
}

func (c *Client) DeleteThingGroup(ctx context.Context, name string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	if _, err := c.iotClient.DeleteThingGroup(ctx, &awsiot.DeleteThingGroupInput{ThingGroupName: &name}); err != nil {
		return fmt.Errorf("failed to delete thing group %s: %w", name, classify(err))
	}
	return nil
}

// Role aliases

func (c *Client) CreateRoleAlias(ctx context.Context, alias, roleArn string, durationSeconds int) (iot.RoleAlias, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.RoleAlias{}, err
	}
	input := &awsiot.CreateRoleAliasInput{RoleAlias: &alias, RoleArn: &roleArn}
	if durationSeconds > 0 {
		input.CredentialDurationSeconds = aws.Int32(int32(durationSeconds))
	}
	out, err := c.iotClient.CreateRoleAlias(ctx, input)
	if err != nil {
		return iot.RoleAlias{}, fmt.Errorf("failed to create role alias %s: %w", alias, classify(err))
	}
	return iot.RoleAlias{
		Name:            aws.ToString(out.RoleAlias),
		ARN:             aws.ToString(out.RoleAliasArn),
		RoleARN:         roleArn,
		DurationSeconds: durationSeconds,
	}, nil
}

func (c *Client) DescribeRoleAlias(ctx context.Context, alias string) (iot.RoleAlias, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.RoleAlias{}, err
	}
	out, err := c.iotClient.DescribeRoleAlias(ctx, &awsiot.DescribeRoleAliasInput{RoleAlias: &alias})
	if err != nil {
		return iot.RoleAlias{}, fmt.Errorf("failed to describe role alias %s: %w", alias, classify(err))
	}
	if out.RoleAliasDescription == nil {
		return iot.RoleAlias{}, fmt.Errorf("role alias %s: %w", alias, iot.ErrNotFound)
	}
	d := out.RoleAliasDescription
	return iot.RoleAlias{
		Name:            aws.ToString(d.RoleAlias),
		ARN:             aws.ToString(d.RoleAliasArn),
		RoleARN:         aws.ToString(d.RoleArn),
		DurationSeconds: int(aws.ToInt32(d.CredentialDurationSeconds)),
	}, nil
}

func (c *Client) DeleteRoleAlias(ctx context.Context, alias string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	if _, err := c.iotClient.DeleteRoleAlias(ctx, &awsiot.DeleteRoleAliasInput{RoleAlias: &alias}); err != nil {
		return fmt.Errorf("failed to delete role alias %s: %w", alias, classify(err))
	}
	return nil
}

// Endpoints

func (c *Client) DescribeEndpoint(ctx context.Context, endpointType iot.EndpointType) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}
	out, err := c.iotClient.DescribeEndpoint(ctx, &awsiot.DescribeEndpointInput{
		EndpointType: aws.String(string(endpointType)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe %s endpoint: %w", endpointType, classify(err))
	}
	return aws.ToString(out.EndpointAddress), nil
}
