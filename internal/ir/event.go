package ir

import (
	"fmt"
	"strings"
)

// Intent is the lifecycle action requested by the control plane.
type Intent string

const (
	// IntentCreate asks for a new resource instance.
	IntentCreate Intent = "Create"

	// IntentUpdate asks to converge an existing instance to new properties.
	IntentUpdate Intent = "Update"

	// IntentDelete asks to release an existing instance.
	IntentDelete Intent = "Delete"
)

// Valid reports whether the intent is one of the three recognized values.
func (i Intent) Valid() bool {
	switch i {
	case IntentCreate, IntentUpdate, IntentDelete:
		return true
	}
	return false
}

// Event is the lifecycle envelope for one resource instance.
//
// The JSON field names match the CloudFormation custom resource request so a
// raw request body can be decoded directly.
type Event struct {
	Intent        Intent     `json:"RequestType"`
	Properties    Properties `json:"ResourceProperties"`
	PriorIdentity string     `json:"PhysicalResourceId,omitempty"`

	RequestID         string     `json:"RequestId,omitempty"`
	ResponseURL       string     `json:"ResponseURL,omitempty"`
	ResourceType      string     `json:"ResourceType,omitempty"`
	LogicalResourceID string     `json:"LogicalResourceId,omitempty"`
	StackID           string     `json:"StackId,omitempty"`
	OldProperties     Properties `json:"OldResourceProperties,omitempty"`
}

// Validate checks the envelope invariants: a recognized intent, and a
// non-empty prior identity for Update and Delete.
func (e *Event) Validate() error {
	if !e.Intent.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidIntent, string(e.Intent))
	}
	if e.Intent != IntentCreate && strings.TrimSpace(e.PriorIdentity) == "" {
		return fmt.Errorf("%w for %s", ErrMissingIdentity, e.Intent)
	}
	return nil
}

// Kind returns the resource kind named by ResourceType, stripping the
// CloudFormation "Custom::" prefix. Returns "" when no type is set.
func (e *Event) Kind() string {
	return strings.TrimPrefix(e.ResourceType, "Custom::")
}
