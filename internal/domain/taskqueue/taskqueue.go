package taskqueue

import (
	"context"
	"encoding/json"
	"sync"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

// Handler processes one task payload
type Handler func(ctx context.Context, payload json.RawMessage) error

// TaskQueue abstracts the async task broker. The core never depends on the
// broker's identity: long work (webhook fan-out, alert evaluation, PDF
// generation) is enqueued here and executed by whatever backend is wired.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
	Register(name string, handler Handler)
}

// Task names used by the core
const (
	TaskWebhookDispatch = "webhook.dispatch"
	TaskUsageAlertCheck = "usage_alert.check"
	TaskInvoicePostProc = "invoice.post_process"
)

// InProcessQueue runs handlers synchronously in the caller's goroutine. It
// is the default backend for local mode and tests.
type InProcessQueue struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewInProcessQueue() *InProcessQueue {
	return &InProcessQueue{handlers: make(map[string]Handler)}
}

func (q *InProcessQueue) Register(name string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = handler
}

func (q *InProcessQueue) Enqueue(ctx context.Context, name string, payload any) error {
	q.mu.RLock()
	handler, ok := q.handlers[name]
	q.mu.RUnlock()
	if !ok {
		// Unroutable tasks are dropped, not failed: collaborators that
		// handle them may simply not be deployed
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Task payload is not serializable").
			Mark(ierr.ErrValidation)
	}
	return handler(ctx, raw)
}
