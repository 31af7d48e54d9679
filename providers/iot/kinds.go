package iot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/provider"
)

// Kind names as they appear in a ResourceType of "Custom::<Name>".
const (
	KindCredentialBinding = "CredentialBinding"
	KindDeviceIdentity    = "DeviceIdentity"
	KindDeviceGroup       = "DeviceGroup"
	KindFleetDeployment   = "FleetDeployment"
)

// ClientFactory returns the client a kind reconciles against.
type ClientFactory func(ctx context.Context) (Client, error)

// Options tunes how the kinds call the client.
type Options struct {
	// CallTimeout bounds each step. Zero means engine.DefaultTimeout.
	CallTimeout time.Duration

	// Retry is used while waiting for IAM changes to propagate.
	Retry *engine.RetryPolicy

	// SecretStore is used when an event does not choose one.
	SecretStore SecretStore
}

// Register adds every kind to reg. Each kind asks newClient for its client
// the first time it is loaded.
func Register(reg *provider.Registry, newClient ClientFactory, opts Options) {
	add := func(name string, build func(Client, Options) provider.Kind) {
		reg.Register(name, func(ctx context.Context) (provider.Kind, error) {
			c, err := newClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to build client: %w", err)
			}
			return build(c, opts), nil
		})
	}

	add(KindCredentialBinding, func(c Client, o Options) provider.Kind { return NewCredentialBinding(c, o) })
	add(KindDeviceIdentity, func(c Client, o Options) provider.Kind { return NewDeviceIdentity(c, o) })
	add(KindDeviceGroup, func(c Client, o Options) provider.Kind { return NewDeviceGroup(c, o) })
	add(KindFleetDeployment, func(c Client, o Options) provider.Kind { return NewFleetDeployment(c, o) })
}

// step builds a step whose action runs under the per-call timeout.
func (o Options) step(name string, action func(ctx context.Context, sc *engine.Scratch) error) engine.Step {
	timeout := o.CallTimeout
	return engine.Step{
		Name: name,
		Action: func(ctx context.Context, sc *engine.Scratch) error {
			ctx, cancel := engine.WithTimeout(ctx, timeout)
			defer cancel()
			return action(ctx, sc)
		},
	}
}

// retry runs fn with backoff while it fails with a transient or not-found
// error. Each attempt gets its own timeout.
func (o Options) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return o.retryOn(ctx, ErrNotFound, fn)
}

// retryOn runs fn with backoff while it fails with a transient error or
// one wrapping target. Each attempt gets its own timeout.
func (o Options) retryOn(ctx context.Context, target error, fn func(ctx context.Context) error) error {
	return engine.RetryWithBackoff(ctx, o.Retry, func() error {
		callCtx, cancel := engine.WithTimeout(ctx, o.CallTimeout)
		defer cancel()
		return fn(callCtx)
	}, func(err error) bool {
		return engine.IsTransientError(err) || errors.Is(err, target)
	})
}

// ignoreNotFound drops "not found" so that joined unwind errors only carry
// real failures.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
