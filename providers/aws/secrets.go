package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/picklr-io/ggprov/providers/iot"
)

// PutSecret writes value under name and returns the location it was
// stored at. Existing values are overwritten.
func (c *Client) PutSecret(ctx context.Context, store iot.SecretStore, name, value string) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	switch store {
	case iot.StoreSecretsManager:
		return c.putSecretsManager(ctx, name, value)
	default:
		_, err := c.ssmClient.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      &name,
			Value:     &value,
			Type:      ssmtypes.ParameterTypeSecureString,
			Overwrite: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("failed to put parameter %s: %w", name, classify(err))
		}
		return name, nil
	}
}

func (c *Client) putSecretsManager(ctx context.Context, name, value string) (string, error) {
	_, err := c.secretsmanagerClient.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: &value,
	})
	if err == nil {
		return name, nil
	}
	if err = classify(err); !errors.Is(err, iot.ErrAlreadyExists) {
		return "", fmt.Errorf("failed to create secret %s: %w", name, err)
	}

	_, err = c.secretsmanagerClient.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &name,
		SecretString: &value,
	})
	if err != nil {
		return "", fmt.Errorf("failed to update secret %s: %w", name, classify(err))
	}
	return name, nil
}

// LookupSecret reports the location of name if it exists. The value itself
// is never read back.
func (c *Client) LookupSecret(ctx context.Context, store iot.SecretStore, name string) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	switch store {
	case iot.StoreSecretsManager:
		out, err := c.secretsmanagerClient.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: &name})
		if err != nil {
			return "", fmt.Errorf("failed to describe secret %s: %w", name, classify(err))
		}
		return aws.ToString(out.Name), nil
	default:
		out, err := c.ssmClient.GetParameter(ctx, &ssm.GetParameterInput{Name: &name})
		if err != nil {
			return "", fmt.Errorf("failed to get parameter %s: %w", name, classify(err))
		}
		if out.Parameter == nil {
			return "", fmt.Errorf("parameter %s: %w", name, iot.ErrNotFound)
		}
		return aws.ToString(out.Parameter.Name), nil
	}
}

func (c *Client) DeleteSecret(ctx context.Context, store iot.SecretStore, name string) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}

	switch store {
	case iot.StoreSecretsManager:
		_, err := c.secretsmanagerClient.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
			SecretId:                   &name,
			ForceDeleteWithoutRecovery: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("failed to delete secret %s: %w", name, classify(err))
		}
	default:
		if _, err := c.ssmClient.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: &name}); err != nil {
			return fmt.Errorf("failed to delete parameter %s: %w", name, classify(err))
		}
	}
	return nil
}
