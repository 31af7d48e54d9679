package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiot "github.com/aws/aws-sdk-go-v2/service/iot"
	iottypes "github.com/aws/aws-sdk-go-v2/service/iot/types"

	"github.com/picklr-io/ggprov/providers/iot"
)

func (c *Client) CreateJob(ctx context.Context, spec iot.JobSpec) (iot.Job, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Job{}, err
	}

	input := &awsiot.CreateJobInput{
		JobId:           &spec.ID,
		Targets:         spec.Targets,
		Document:        &spec.Document,
		TargetSelection: iottypes.TargetSelection(spec.TargetSelection),
	}
	if spec.Description != "" {
		input.Description = &spec.Description
	}

	out, err := c.iotClient.CreateJob(ctx, input)
	if err != nil {
		return iot.Job{}, fmt.Errorf("failed to create job %s: %w", spec.ID, classify(err))
	}
	return iot.Job{
		ID:     aws.ToString(out.JobId),
		ARN:    aws.ToString(out.JobArn),
		Status: string(iottypes.JobStatusInProgress),
	}, nil
}

func (c *Client) DescribeJob(ctx context.Context, id string) (iot.Job, error) {
	if err := c.ensureClient(ctx); err != nil {
		return iot.Job{}, err
	}
	out, err := c.iotClient.DescribeJob(ctx, &awsiot.DescribeJobInput{JobId: &id})
	if err != nil {
		return iot.Job{}, fmt.Errorf("failed to describe job %s: %w", id, classify(err))
	}
	if out.Job == nil {
		return iot.Job{}, fmt.Errorf("job %s: %w", id, iot.ErrNotFound)
	}
	return iot.Job{
		ID:     aws.ToString(out.Job.JobId),
		ARN:    aws.ToString(out.Job.JobArn),
		Status: string(out.Job.Status),
	}, nil
}

func (c *Client) CancelJob(ctx context.Context, id string, force bool) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}
	_, err := c.iotClient.CancelJob(ctx, &awsiot.CancelJobInput{JobId: &id, Force: force})
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", id, classify(err))
	}
	return nil
}
