package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awsiot "github.com/aws/aws-sdk-go-v2/service/iot"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/picklr-io/ggprov/providers/iot"
)

// Options configures how the SDK clients are built.
type Options struct {
	// Region overrides the region from the environment when set.
	Region string

	// MaxAttempts bounds the SDK standard retryer. Zero keeps the SDK default.
	MaxAttempts int
}

// Client implements iot.Client on top of AWS IoT Core, IAM, SSM Parameter
// Store, Secrets Manager and STS. The SDK clients are built on first
// successful use from the default credential chain and shared afterwards.
type Client struct {
	opts Options

	// initMu guards lazy construction. A failed load is retried on the
	// next call instead of being remembered.
	initMu sync.Mutex
	ready  bool
	load   func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error)
	cfg    aws.Config

	iotClient            *awsiot.Client
	iamClient            *iam.Client
	ssmClient            *ssm.Client
	secretsmanagerClient *secretsmanager.Client
	stsClient            *sts.Client

	accountMu sync.Mutex
	account   string
}

var _ iot.Client = (*Client)(nil)

func New(opts Options) *Client {
	return &Client{opts: opts, load: config.LoadDefaultConfig}
}

func (c *Client) ensureClient(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.ready {
		return nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if c.opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(c.opts.Region))
	}
	if c.opts.MaxAttempts > 0 {
		maxAttempts := c.opts.MaxAttempts
		loadOpts = append(loadOpts, config.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), maxAttempts)
		}))
	}

	cfg, err := c.load(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("unable to load SDK config: %w", err)
	}
	c.cfg = cfg

	c.iotClient = awsiot.NewFromConfig(cfg)
	c.iamClient = iam.NewFromConfig(cfg)
	c.ssmClient = ssm.NewFromConfig(cfg)
	c.secretsmanagerClient = secretsmanager.NewFromConfig(cfg)
	c.stsClient = sts.NewFromConfig(cfg)
	c.ready = true
	return nil
}

// Region returns the region calls are made in.
func (c *Client) Region() string {
	if c.cfg.Region != "" {
		return c.cfg.Region
	}
	return c.opts.Region
}

// AccountID returns the account of the calling identity. The answer is
// cached for the life of the process.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	c.accountMu.Lock()
	defer c.accountMu.Unlock()
	if c.account != "" {
		return c.account, nil
	}

	out, err := c.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", classify(err))
	}
	c.account = aws.ToString(out.Account)
	return c.account, nil
}
