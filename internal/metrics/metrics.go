// Package metrics publishes per-request reconcile counts and durations.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/picklr-io/ggprov/internal/logging"
)

// Sample is the outcome of one handled request.
type Sample struct {
	Kind     string
	Intent   string
	Status   string
	Duration time.Duration
}

// Recorder receives one sample per handled request. Implementations must
// not fail the request: errors are logged and dropped.
type Recorder interface {
	Record(ctx context.Context, s Sample)
}

// Nop discards samples.
type Nop struct{}

func (Nop) Record(context.Context, Sample) {}

type putMetricAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch publishes a Reconciles count and a Duration in milliseconds,
// both dimensioned by Kind, Intent and Status.
type CloudWatch struct {
	client    putMetricAPI
	namespace string
	now       func() time.Time
}

func NewCloudWatch(client putMetricAPI, namespace string) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, now: time.Now}
}

func (c *CloudWatch) Record(ctx context.Context, s Sample) {
	kind := s.Kind
	if kind == "" {
		kind = "unknown"
	}
	dims := []cwtypes.Dimension{
		{Name: aws.String("Kind"), Value: aws.String(kind)},
		{Name: aws.String("Intent"), Value: aws.String(s.Intent)},
		{Name: aws.String("Status"), Value: aws.String(s.Status)},
	}
	ts := c.now()

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String("Reconciles"),
				Dimensions: dims,
				Timestamp:  aws.Time(ts),
				Unit:       cwtypes.StandardUnitCount,
				Value:      aws.Float64(1),
			},
			{
				MetricName: aws.String("Duration"),
				Dimensions: dims,
				Timestamp:  aws.Time(ts),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Value:      aws.Float64(float64(s.Duration.Milliseconds())),
			},
		},
	})
	if err != nil {
		logging.Warn("failed to publish metrics", "namespace", c.namespace, "error", err)
	}
}

// Open returns a CloudWatch recorder for namespace, or Nop when namespace
// is empty.
func Open(ctx context.Context, namespace, region string) (Recorder, error) {
	if namespace == "" {
		return Nop{}, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewCloudWatch(cloudwatch.NewFromConfig(cfg), namespace), nil
}
