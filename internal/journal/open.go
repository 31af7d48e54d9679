package journal

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config selects where the journal lives. An empty Bucket disables it.
type Config struct {
	Bucket    string
	Prefix    string
	LockTable string
	Region    string

	// Entries are sealed with KMSKeyID when set, else with EncryptionKey
	// when set, else stored as plain JSON.
	KMSKeyID      string
	EncryptionKey string
}

func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// Open builds an S3-backed journal, with DynamoDB leases when LockTable is
// set. It returns nil, nil when the journal is disabled.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	var sealer Sealer
	switch {
	case cfg.KMSKeyID != "":
		sealer = NewKMSSealer(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	case cfg.EncryptionKey != "":
		c, err := NewCipher(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		sealer = c
	}

	store, err := NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, sealer)
	if err != nil {
		return nil, err
	}

	var locker Locker
	if cfg.LockTable != "" {
		locker = NewDynamoLocker(dynamodb.NewFromConfig(awsCfg), cfg.LockTable)
	}
	return New(store, locker), nil
}
