package respond

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/journal"
	"github.com/picklr-io/ggprov/internal/logging"
	"github.com/picklr-io/ggprov/internal/metrics"
)

// Reconciler handles one lifecycle event.
type Reconciler interface {
	Handle(ctx context.Context, ev *ir.Event) (ir.Result, error)
}

// kindResolver is implemented by reconcilers that route events to kinds,
// such as provider.Dispatcher.
type kindResolver interface {
	KindFor(ev *ir.Event) string
}

// Handler is the Lambda entry point: it reconciles a custom resource
// request and always answers it out of band, even when reconciling
// panics.
type Handler struct {
	Reconciler Reconciler
	Responder  Responder

	// Journal is optional. When set, redelivered requests are answered
	// from the recorded outcome and requests for the same logical
	// resource are serialized.
	Journal *journal.Journal

	// Metrics receives one sample per reconciled request. Replays are not
	// counted.
	Metrics metrics.Recorder
}

// HandleCFN has the signature lambda.Start expects.
func (h *Handler) HandleCFN(ctx context.Context, e cfn.Event) error {
	return h.Handle(ctx, FromCFN(e))
}

func (h *Handler) Handle(ctx context.Context, ev *ir.Event) (err error) {
	log := logging.With("request_id", ev.RequestID, "intent", string(ev.Intent), "resource_type", ev.ResourceType)

	if h.Journal != nil {
		if replayed, err := h.replay(ctx, ev); replayed || err != nil {
			return err
		}

		release, err := h.Journal.Acquire(ctx, leaseKey(ev))
		if err != nil {
			log.Warn("reconciling without lease", "error", err)
		}
		defer release(ctx)

		// The request may have finished while we waited for the lease.
		if replayed, err := h.replay(ctx, ev); replayed || err != nil {
			return err
		}
	}

	start := time.Now()
	res, recErr := h.reconcile(ctx, ev)
	h.observe(ctx, ev, recErr, time.Since(start))

	if h.Journal != nil {
		if err := h.Journal.Record(ctx, ev, res, recErr); err != nil {
			log.Warn("failed to journal outcome", "error", err)
		}
	}

	return h.Responder.Respond(ctx, ev, res, recErr)
}

func (h *Handler) reconcile(ctx context.Context, ev *ir.Event) (res ir.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("reconciler panicked", "request_id", ev.RequestID, "panic", r)
			res = ir.Result{PhysicalResourceID: ev.PriorIdentity, Data: map[string]string{}}
			err = fmt.Errorf("reconciler panicked, see log stream for details")
			if ev.Intent == ir.IntentDelete {
				err = nil
			}
		}
	}()
	return h.Reconciler.Handle(ctx, ev)
}

func (h *Handler) observe(ctx context.Context, ev *ir.Event, err error, d time.Duration) {
	if h.Metrics == nil {
		return
	}
	status := cfn.StatusSuccess
	if err != nil {
		status = cfn.StatusFailed
	}
	kind := ev.Kind()
	if r, ok := h.Reconciler.(kindResolver); ok {
		kind = r.KindFor(ev)
	}
	h.Metrics.Record(ctx, metrics.Sample{
		Kind:     kind,
		Intent:   string(ev.Intent),
		Status:   string(status),
		Duration: d,
	})
}

func (h *Handler) replay(ctx context.Context, ev *ir.Event) (bool, error) {
	entry, found, err := h.Journal.Lookup(ctx, ev.RequestID)
	if err != nil {
		logging.Warn("journal lookup failed", "request_id", ev.RequestID, "error", err)
		return false, nil
	}
	if !found {
		return false, nil
	}
	logging.Info("replaying recorded response", "request_id", ev.RequestID, "status", string(entry.Status))
	return true, h.Responder.Respond(ctx, ev, entry.Result(), entry.Err())
}

func leaseKey(ev *ir.Event) string {
	if ev.LogicalResourceID == "" {
		return ""
	}
	return ev.StackID + "/" + ev.LogicalResourceID
}
