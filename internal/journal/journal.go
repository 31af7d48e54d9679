// Package journal records the outcome of every lifecycle request so a
// redelivered request is answered from the record instead of being
// reconciled twice, and serializes concurrent requests for one resource.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/internal/ir"
	"github.com/picklr-io/ggprov/internal/logging"
)

var (
	// ErrNotFound is returned by a Store when no entry exists for a request.
	ErrNotFound = errors.New("journal entry not found")

	// ErrLeaseHeld is returned by a Locker when another holder owns the lease.
	ErrLeaseHeld = errors.New("lease held by another invocation")
)

// Status is the response status recorded for a request.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Entry is the recorded response for one request.
type Entry struct {
	RequestID          string            `json:"requestId"`
	LogicalResourceID  string            `json:"logicalResourceId,omitempty"`
	Kind               string            `json:"kind,omitempty"`
	Intent             ir.Intent         `json:"intent"`
	Status             Status            `json:"status"`
	Reason             string            `json:"reason,omitempty"`
	PhysicalResourceID string            `json:"physicalResourceId"`
	Data               map[string]string `json:"data,omitempty"`
	RecordedAt         time.Time         `json:"recordedAt"`
}

// Result returns the entry as a reconciler result.
func (e *Entry) Result() ir.Result {
	data := e.Data
	if data == nil {
		data = map[string]string{}
	}
	return ir.Result{PhysicalResourceID: e.PhysicalResourceID, Data: data}
}

// Err returns the recorded failure, or nil for a successful entry.
func (e *Entry) Err() error {
	if e.Status == StatusSuccess {
		return nil
	}
	return errors.New(e.Reason)
}

// Store persists entries by request id.
type Store interface {
	Get(ctx context.Context, requestID string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
}

// Locker grants exclusive, expiring leases on a key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (leaseID string, err error)
	Release(ctx context.Context, key, leaseID string) error
}

// DefaultLeaseTTL bounds how long a crashed invocation can block others.
const DefaultLeaseTTL = 15 * time.Minute

// Journal combines a Store with an optional Locker.
type Journal struct {
	store  Store
	locker Locker

	LeaseTTL time.Duration
	Wait     *engine.RetryPolicy
}

func New(store Store, locker Locker) *Journal {
	return &Journal{
		store:    store,
		locker:   locker,
		LeaseTTL: DefaultLeaseTTL,
		Wait:     engine.DefaultRetryPolicy(),
	}
}

// Lookup returns the entry recorded for requestID, if any.
func (j *Journal) Lookup(ctx context.Context, requestID string) (*Entry, bool, error) {
	if requestID == "" {
		return nil, false, nil
	}
	entry, err := j.store.Get(ctx, requestID)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read journal entry %s: %w", requestID, err)
	}
	return entry, true, nil
}

// Record stores the outcome of ev. A failure here is returned but the
// response has usually already been decided; callers log it.
func (j *Journal) Record(ctx context.Context, ev *ir.Event, res ir.Result, reconcileErr error) error {
	if ev.RequestID == "" {
		return nil
	}

	entry := &Entry{
		RequestID:          ev.RequestID,
		LogicalResourceID:  ev.LogicalResourceID,
		Kind:               ev.Kind(),
		Intent:             ev.Intent,
		Status:             StatusSuccess,
		PhysicalResourceID: res.PhysicalResourceID,
		Data:               res.Data,
		RecordedAt:         time.Now().UTC(),
	}
	if reconcileErr != nil {
		entry.Status = StatusFailed
		entry.Reason = reconcileErr.Error()
	}

	if err := j.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to record journal entry %s: %w", ev.RequestID, err)
	}
	return nil
}

// Acquire takes the lease for key, waiting with backoff while another
// invocation holds it. The returned release function is never nil.
func (j *Journal) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	noop := func(context.Context) {}
	if j.locker == nil || key == "" {
		return noop, nil
	}

	var leaseID string
	err := engine.RetryWithBackoff(ctx, j.Wait, func() error {
		id, err := j.locker.Acquire(ctx, key, j.LeaseTTL)
		if err != nil {
			return err
		}
		leaseID = id
		return nil
	}, func(err error) bool {
		if errors.Is(err, ErrLeaseHeld) {
			logging.Debug("waiting for lease", "key", key)
			return true
		}
		return engine.IsTransientError(err)
	})
	if err != nil {
		return noop, fmt.Errorf("failed to acquire lease on %s: %w", key, err)
	}

	return func(ctx context.Context) {
		if err := j.locker.Release(ctx, key, leaseID); err != nil {
			logging.Warn("failed to release lease", "key", key, "error", err)
		}
	}, nil
}
