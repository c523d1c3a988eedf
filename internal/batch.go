package internal

import (
	"log"
	"sync"
)

const DefaultBatchLimit = 1000

// BatchCallback receives the outcome of one queued request, keyed by the
// request id it was queued under. Invocation order is not tied to queue order.
type BatchCallback func(requestID string, response interface{}, err error)

type batchRequest struct {
	id   string
	call func() (interface{}, error)
}

// Batch accumulates remote requests from concurrent workers and flushes them
// all at once. Workers only append; the owner flushes after all workers have
// been joined. The size limit is soft: exceeding it logs a warning, it never
// rejects a request.
type Batch struct {
	mu       sync.Mutex
	limit    int
	requests []batchRequest
}

func NewBatch(limit int) *Batch {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &Batch{limit: limit}
}

func (b *Batch) Queue(requestID string, call func() (interface{}, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, batchRequest{id: requestID, call: call})
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Flush executes every queued request and reports each outcome through the
// callback. An empty batch is a no-op. Returns the number of requests executed.
func (b *Batch) Flush(callback BatchCallback) int {
	b.mu.Lock()
	requests := b.requests
	b.requests = nil
	b.mu.Unlock()

	if len(requests) == 0 {
		return 0
	}

	if len(requests) > b.limit {
		log.Printf("Warning: batch size %v exceeds limit %v, executing anyway\n", len(requests), b.limit)
	}

	for _, req := range requests {
		response, err := req.call()
		if callback != nil {
			callback(req.id, response, err)
		}
	}

	return len(requests)
}
