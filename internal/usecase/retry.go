package usecase

import (
	"log/slog"
	"sync"
	"time"

	"supplysim/internal/pkg/ident"
)

// FailedRequest is a buy that closed Failed, queued for re-initiation. The
// retry is a brand new request: the original id is kept only for tracing.
type FailedRequest struct {
	Resource   string
	Quantity   int
	Responders []ident.Ref
	FailedID   ident.RequestID
	FailedAt   time.Time
}

// RetryQueue holds failed requests oldest-first. It is bounded: when full,
// the newest entry is dropped with a warning, since a market that rejects a
// buyer for long stretches gains nothing from an unbounded backlog.
type RetryQueue struct {
	mu    sync.Mutex
	max   int
	items []FailedRequest
}

func NewRetryQueue(max int) *RetryQueue {
	if max <= 0 {
		max = 1
	}
	return &RetryQueue{max: max}
}

func (q *RetryQueue) Push(fr FailedRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.max {
		slog.Warn("Retry queue full, dropping failed request",
			"request_id", fr.FailedID, "resource", fr.Resource, "quantity", fr.Quantity)
		return false
	}
	q.items = append(q.items, fr)
	return true
}

func (q *RetryQueue) Pop() (FailedRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return FailedRequest{}, false
	}
	fr := q.items[0]
	q.items = q.items[1:]
	return fr, true
}

func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
