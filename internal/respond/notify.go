package respond

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

// subjectLimit is the longest subject SNS accepts.
const subjectLimit = 100

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notify publishes failed outcomes to an SNS topic before handing every
// outcome to Next. A failed publish is logged and does not stop the
// response.
type Notify struct {
	client   publishAPI
	topicARN string
	Next     Responder
}

func NewNotify(client publishAPI, topicARN string, next Responder) *Notify {
	return &Notify{client: client, topicARN: topicARN, Next: next}
}

// WithNotify wraps next in a Notify for topicARN. An empty topic returns
// next unchanged.
func WithNotify(ctx context.Context, topicARN, region string, next Responder) (Responder, error) {
	if topicARN == "" {
		return next, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewNotify(sns.NewFromConfig(cfg), topicARN, next), nil
}

type failureNotice struct {
	RequestID          string `json:"RequestId"`
	RequestType        string `json:"RequestType"`
	ResourceType       string `json:"ResourceType,omitempty"`
	StackID            string `json:"StackId,omitempty"`
	LogicalResourceID  string `json:"LogicalResourceId,omitempty"`
	PhysicalResourceID string `json:"PhysicalResourceId"`
	Reason             string `json:"Reason"`
}

func (n *Notify) Respond(ctx context.Context, ev *ir.Event, res ir.Result, err error) error {
	if err != nil {
		if pubErr := n.publish(ctx, ev, res, err); pubErr != nil {
			logging.Warn("failed to publish failure notice", "request_id", ev.RequestID, "topic", n.topicARN, "error", pubErr)
		}
	}
	return n.Next.Respond(ctx, ev, res, err)
}

func (n *Notify) publish(ctx context.Context, ev *ir.Event, res ir.Result, reconcileErr error) error {
	r := NewResponse(ev, res, reconcileErr)
	body, err := json.Marshal(failureNotice{
		RequestID:          ev.RequestID,
		RequestType:        string(ev.Intent),
		ResourceType:       ev.ResourceType,
		StackID:            ev.StackID,
		LogicalResourceID:  ev.LogicalResourceID,
		PhysicalResourceID: r.PhysicalResourceID,
		Reason:             r.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notice: %w", err)
	}

	kind := ev.Kind()
	if kind == "" {
		kind = "unknown"
	}
	subject := fmt.Sprintf("ggprov %s %s failed", kind, ev.Intent)
	if len(subject) > subjectLimit {
		subject = subject[:subjectLimit]
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Kind":   {DataType: aws.String("String"), StringValue: aws.String(kind)},
			"Intent": {DataType: aws.String("String"), StringValue: aws.String(string(ev.Intent))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.topicARN, err)
	}
	return nil
}
