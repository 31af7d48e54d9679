package cli

import (
	"context"

	"github.com/picklr-io/ggprov/internal/config"
	"github.com/picklr-io/ggprov/internal/provider"
	"github.com/picklr-io/ggprov/providers/aws"
	"github.com/picklr-io/ggprov/providers/iot"
	"github.com/picklr-io/ggprov/providers/null"
)

func kindOptions(c *config.Config) iot.Options {
	retry := c.Retry
	return iot.Options{
		CallTimeout: c.CallTimeout,
		Retry:       &retry,
		SecretStore: c.SecretStore,
	}
}

// newDispatcher registers every kind against client.
func newDispatcher(c *config.Config, client iot.Client) *provider.Dispatcher {
	reg := provider.NewRegistry()
	iot.Register(reg, func(context.Context) (iot.Client, error) { return client, nil }, kindOptions(c))
	return provider.NewDispatcher(reg, c.Kind)
}

// newClient returns the in-memory client for dry runs and the AWS client
// otherwise.
func newClient(c *config.Config) iot.Client {
	if c.DryRun {
		return null.New()
	}
	return aws.New(aws.Options{Region: c.Region, MaxAttempts: c.AWSMaxAttempts})
}
