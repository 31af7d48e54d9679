package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/journal"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseBindings(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"pairs", []string{"a=1", "b=x=y"}, map[string]string{"a": "1", "b": "x=y"}, false},
		{"empty value", []string{"a="}, map[string]string{"a": ""}, false},
		{"missing separator", []string{"a"}, nil, true},
		{"missing key", []string{"=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBindings(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ggprov version dev")
}

func TestKindsCommand(t *testing.T) {
	out, err := execute(t, "kinds")
	require.NoError(t, err)
	for _, s := range []string{"CredentialBinding", "DeviceIdentity", "DeviceGroup", "FleetDeployment", "create-thing", "delete-thing"} {
		assert.Contains(t, out, s)
	}
}

func TestRenderCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"deployment":"${DeploymentName}"}`), 0o600))

	out, err := execute(t, "render", "-t", path, "-b", "DeploymentName=rollout-1", "-r", "DeploymentName")
	require.NoError(t, err)
	assert.Contains(t, out, `"deployment": "rollout-1"`)

	_, err = execute(t, "render", "-t", path, "-b", "Other=x", "-r", "DeploymentName")
	assert.Error(t, err)
}

func TestInvokeDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "create.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"RequestType": "Create",
		"RequestId": "r-1",
		"ResourceType": "Custom::DeviceGroup",
		"ResourceProperties": {"ThingGroupName": "fleet", "ThingArnList": ["arn:thing/a"]}
	}`), 0o600))

	out, err := execute(t, "invoke", "-f", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, `"Status": "SUCCESS"`)
	assert.Contains(t, out, "CreateThingGroup")
	assert.Contains(t, out, "AddThingToGroup")
}

func TestShowEntry(t *testing.T) {
	j := journal.New(journal.NewMemoryStore(), nil)
	ctx := context.Background()
	ev := &ir.Event{Intent: ir.IntentCreate, RequestID: "r-1"}
	require.NoError(t, j.Record(ctx, ev, ir.Result{PhysicalResourceID: "g-1"}, nil))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(ctx)

	require.NoError(t, showEntry(cmd, j, "r-1"))
	assert.Contains(t, out.String(), `"physicalResourceId": "g-1"`)

	assert.Error(t, showEntry(cmd, j, "r-2"))
}

func TestJournalShowWithoutBucket(t *testing.T) {
	_, err := execute(t, "journal", "show", "r-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal configured")
}
