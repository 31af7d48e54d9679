package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/ggprov/internal/ir"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{
		"RequestType": "Create",
		"ResourceType": "Custom::DeviceGroup",
		"LogicalResourceId": "Fleet",
		"ResourceProperties": {
			"ThingGroupName": "fleet",
			"ThingArnList": ["arn:thing/a", "arn:thing/b"],
			"DurationSeconds": 3600
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, ir.IntentCreate, ev.Intent)
	assert.Equal(t, "DeviceGroup", ev.Kind())
	assert.Equal(t, "fleet", ev.Properties.String("ThingGroupName"))
	assert.Equal(t, []string{"arn:thing/a", "arn:thing/b"}, ev.Properties.Strings("ThingArnList"))
	assert.NotEmpty(t, ev.RequestID)
}

func TestDecodeEvent_KeepsRequestID(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"RequestType":"Delete","RequestId":"r-1","PhysicalResourceId":"g-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "r-1", ev.RequestID)
	assert.Equal(t, "g-1", ev.PriorIdentity)
	assert.NotNil(t, ev.Properties)
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{"unknown intent", `{"RequestType":"Replace"}`, ir.ErrInvalidIntent},
		{"delete without identity", `{"RequestType":"Delete"}`, ir.ErrMissingIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.input))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestEvaluator_LoadEventJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "create.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"RequestType":"Create","ResourceProperties":{"ThingName":"dev-1"}}`), 0o600))

	ev, err := NewEvaluator("").LoadEvent(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", ev.Properties.String("ThingName"))
}

func TestEvaluator_LoadEventMissingFile(t *testing.T) {
	_, err := NewEvaluator("").LoadEvent(context.Background(), filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.Error(t, err)
}
