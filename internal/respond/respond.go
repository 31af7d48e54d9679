// Package respond delivers reconcile results out of band: to the
// CloudFormation pre-signed response URL, or to a writer for local runs.
package respond

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

// Responder reports the outcome of one event to the control plane.
type Responder interface {
	Respond(ctx context.Context, ev *ir.Event, res ir.Result, err error) error
}

// NewResponse builds the CloudFormation response for an outcome. The
// physical id falls back to the prior identity, then to the log stream
// name, then to the request id, since CloudFormation rejects an empty one.
func NewResponse(ev *ir.Event, res ir.Result, err error) *cfn.Response {
	r := cfn.NewResponse(ToCFN(ev))

	r.PhysicalResourceID = res.PhysicalResourceID
	if r.PhysicalResourceID == "" {
		r.PhysicalResourceID = fallbackIdentity(ev)
		logging.Debug("physical resource id not set, using fallback", "identity", r.PhysicalResourceID)
	}

	if err != nil {
		r.Status = cfn.StatusFailed
		r.Reason = err.Error()
		return r
	}

	r.Status = cfn.StatusSuccess
	if len(res.Data) > 0 {
		r.Data = make(map[string]interface{}, len(res.Data))
		for k, v := range res.Data {
			r.Data[k] = v
		}
	}
	return r
}

func fallbackIdentity(ev *ir.Event) string {
	if ev.PriorIdentity != "" {
		return ev.PriorIdentity
	}
	if lambdacontext.LogStreamName != "" {
		return lambdacontext.LogStreamName
	}
	return ev.RequestID
}

// CloudFormation sends responses to the event's ResponseURL.
type CloudFormation struct{}

func (CloudFormation) Respond(_ context.Context, ev *ir.Event, res ir.Result, err error) error {
	if ev.ResponseURL == "" {
		return fmt.Errorf("event %s has no response URL", ev.RequestID)
	}

	r := NewResponse(ev, res, err)
	if sendErr := r.Send(); sendErr != nil {
		return fmt.Errorf("failed to send %s response: %w", r.Status, sendErr)
	}
	logging.Info("response sent", "request_id", ev.RequestID, "status", string(r.Status), "identity", r.PhysicalResourceID)
	return nil
}

// Writer prints responses as indented JSON.
type Writer struct {
	W io.Writer
}

func (w Writer) Respond(_ context.Context, ev *ir.Event, res ir.Result, err error) error {
	enc := json.NewEncoder(w.W)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(NewResponse(ev, res, err)); encErr != nil {
		return fmt.Errorf("failed to write response: %w", encErr)
	}
	return nil
}

// FromCFN converts a CloudFormation custom resource request.
func FromCFN(e cfn.Event) *ir.Event {
	return &ir.Event{
		Intent:            ir.Intent(e.RequestType),
		Properties:        ir.Properties(e.ResourceProperties),
		PriorIdentity:     e.PhysicalResourceID,
		RequestID:         e.RequestID,
		ResponseURL:       e.ResponseURL,
		ResourceType:      e.ResourceType,
		LogicalResourceID: e.LogicalResourceID,
		StackID:           e.StackID,
		OldProperties:     ir.Properties(e.OldResourceProperties),
	}
}

// ToCFN converts an event back into a CloudFormation request.
func ToCFN(ev *ir.Event) *cfn.Event {
	return &cfn.Event{
		RequestType:           cfn.RequestType(ev.Intent),
		RequestID:             ev.RequestID,
		ResponseURL:           ev.ResponseURL,
		ResourceType:          ev.ResourceType,
		PhysicalResourceID:    ev.PriorIdentity,
		LogicalResourceID:     ev.LogicalResourceID,
		StackID:               ev.StackID,
		ResourceProperties:    ev.Properties,
		OldResourceProperties: ev.OldProperties,
	}
}
