// Package config resolves runtime settings from flags and GGPROV_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/journal"
	"github.com/picklr-io/ggprov/providers/iot"
)

// EnvPrefix is prepended to every key when read from the environment,
// with dashes turned into underscores: call-timeout is GGPROV_CALL_TIMEOUT.
const EnvPrefix = "GGPROV"

const (
	KeyRegion         = "region"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyKind           = "kind"
	KeyCallTimeout    = "call-timeout"
	KeyAWSMaxAttempts = "aws-max-attempts"
	KeyRetryBaseDelay = "retry-base-delay"
	KeyRetryMaxDelay  = "retry-max-delay"
	KeyRetryMax       = "retry-max"
	KeySecretStore    = "secret-store"
	KeyDryRun         = "dry-run"
	KeyJournalBucket  = "journal-bucket"
	KeyJournalPrefix  = "journal-prefix"
	KeyJournalTable   = "journal-lock-table"
	KeyJournalKey     = "journal-encryption-key"
	KeyJournalKMSKey  = "journal-kms-key-id"
	KeyMetricsNS      = "metrics-namespace"
	KeyNotifyTopic    = "notify-topic-arn"
)

type Config struct {
	Region         string
	LogLevel       string
	LogFormat      string
	Kind           string
	CallTimeout    time.Duration
	AWSMaxAttempts int
	Retry          engine.RetryPolicy
	SecretStore    iot.SecretStore
	DryRun         bool
	Journal        journal.Config

	// MetricsNamespace enables CloudWatch reconcile metrics when set.
	MetricsNamespace string
	// NotifyTopicARN receives an SNS message for every failed request.
	NotifyTopicARN string
}

// New returns a viper instance reading GGPROV_* variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := engine.DefaultRetryPolicy()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyCallTimeout, engine.DefaultTimeout)
	v.SetDefault(KeyRetryBaseDelay, def.BaseDelay)
	v.SetDefault(KeyRetryMaxDelay, def.MaxDelay)
	v.SetDefault(KeyRetryMax, def.MaxRetries)
	v.SetDefault(KeySecretStore, string(iot.StoreParameters))
	v.SetDefault(KeyJournalPrefix, journal.DefaultPrefix)
	return v
}

// AddFlags registers the persistent flags every command shares and binds
// them to v.
func AddFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String(KeyRegion, "", "AWS region (defaults to the SDK credential chain)")
	flags.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(KeyLogFormat, "text", "log format (text, json)")
	flags.String(KeyKind, "", "kind to dispatch to when ResourceType names none")
	flags.Duration(KeyCallTimeout, engine.DefaultTimeout, "timeout for each external call")
	flags.Int(KeyAWSMaxAttempts, 0, "max attempts for the AWS SDK retryer (0 keeps the SDK default)")
	flags.String(KeySecretStore, string(iot.StoreParameters), "where device credentials are stored (ssm, secretsmanager)")
	flags.String(KeyJournalBucket, "", "S3 bucket for the request journal (empty disables it)")
	flags.String(KeyJournalTable, "", "DynamoDB table for per-resource leases")
	flags.String(KeyMetricsNS, "", "CloudWatch namespace for reconcile metrics (empty disables them)")
	flags.String(KeyNotifyTopic, "", "SNS topic notified when a request fails")

	for _, key := range []string{
		KeyRegion, KeyLogLevel, KeyLogFormat, KeyKind, KeyCallTimeout,
		KeyAWSMaxAttempts, KeySecretStore, KeyJournalBucket, KeyJournalTable,
		KeyMetricsNS, KeyNotifyTopic,
	} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads and checks the settings.
func Load(v *viper.Viper) (*Config, error) {
	store, err := iot.ParseSecretStore(v.GetString(KeySecretStore))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Region:         v.GetString(KeyRegion),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		Kind:           v.GetString(KeyKind),
		CallTimeout:    v.GetDuration(KeyCallTimeout),
		AWSMaxAttempts: v.GetInt(KeyAWSMaxAttempts),
		Retry: engine.RetryPolicy{
			MaxRetries: v.GetInt(KeyRetryMax),
			BaseDelay:  v.GetDuration(KeyRetryBaseDelay),
			MaxDelay:   v.GetDuration(KeyRetryMaxDelay),
		},
		SecretStore: store,
		DryRun:      v.GetBool(KeyDryRun),
		Journal: journal.Config{
			Bucket:        v.GetString(KeyJournalBucket),
			Prefix:        v.GetString(KeyJournalPrefix),
			LockTable:     v.GetString(KeyJournalTable),
			Region:        v.GetString(KeyRegion),
			KMSKeyID:      v.GetString(KeyJournalKMSKey),
			EncryptionKey: v.GetString(KeyJournalKey),
		},
		MetricsNamespace: v.GetString(KeyMetricsNS),
		NotifyTopicARN:   v.GetString(KeyNotifyTopic),
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("%s must be positive", KeyCallTimeout)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("%s must not be negative", KeyRetryMax)
	}
	if cfg.Journal.KMSKeyID != "" && cfg.Journal.EncryptionKey != "" {
		return nil, fmt.Errorf("%s and %s are mutually exclusive", KeyJournalKMSKey, KeyJournalKey)
	}
	if cfg.Journal.LockTable != "" && !cfg.Journal.Enabled() {
		return nil, fmt.Errorf("%s requires %s", KeyJournalTable, KeyJournalBucket)
	}
	return cfg, nil
}
