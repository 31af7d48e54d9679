package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/providers/iot"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, engine.DefaultTimeout, cfg.CallTimeout)
	assert.Equal(t, *engine.DefaultRetryPolicy(), cfg.Retry)
	assert.Equal(t, iot.StoreParameters, cfg.SecretStore)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.Journal.Enabled())
	assert.Equal(t, "ggprov/journal", cfg.Journal.Prefix)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GGPROV_CALL_TIMEOUT", "5s")
	t.Setenv("GGPROV_SECRET_STORE", "secretsmanager")
	t.Setenv("GGPROV_JOURNAL_BUCKET", "journal-bucket")
	t.Setenv("GGPROV_JOURNAL_ENCRYPTION_KEY", "k")
	t.Setenv("GGPROV_RETRY_MAX", "2")
	t.Setenv("GGPROV_REGION", "eu-central-1")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, iot.StoreSecretsManager, cfg.SecretStore)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.True(t, cfg.Journal.Enabled())
	assert.Equal(t, "k", cfg.Journal.EncryptionKey)
	assert.Equal(t, "eu-central-1", cfg.Journal.Region)
}

func TestLoad_Outputs(t *testing.T) {
	t.Setenv("GGPROV_METRICS_NAMESPACE", "Fleet/Provisioning")
	t.Setenv("GGPROV_NOTIFY_TOPIC_ARN", "arn:aws:sns:eu-west-1:123456789012:ggprov-failures")
	t.Setenv("GGPROV_JOURNAL_BUCKET", "journal-bucket")
	t.Setenv("GGPROV_JOURNAL_KMS_KEY_ID", "alias/journal")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "Fleet/Provisioning", cfg.MetricsNamespace)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:ggprov-failures", cfg.NotifyTopicARN)
	assert.Equal(t, "alias/journal", cfg.Journal.KMSKeyID)
}

func TestLoad_Flags(t *testing.T) {
	v := New()
	cmd := &cobra.Command{Use: "test"}
	require.NoError(t, AddFlags(cmd, v))
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"--kind", "DeviceGroup", "--log-format", "json"}))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "DeviceGroup", cfg.Kind)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"secret store", map[string]string{"GGPROV_SECRET_STORE": "vault"}, "unknown secret store"},
		{"log format", map[string]string{"GGPROV_LOG_FORMAT": "xml"}, "unknown log format"},
		{"timeout", map[string]string{"GGPROV_CALL_TIMEOUT": "0s"}, "call-timeout"},
		{"lock table without bucket", map[string]string{"GGPROV_JOURNAL_LOCK_TABLE": "locks"}, "requires journal-bucket"},
		{"two journal keys", map[string]string{"GGPROV_JOURNAL_KMS_KEY_ID": "alias/j", "GGPROV_JOURNAL_ENCRYPTION_KEY": "k"}, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
