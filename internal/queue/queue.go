package queue

import "context"

// EventQueue is the at-least-once delivery contract the worker drains.
// Pop and push-back are independent operations; a crash between them can
// lose the popped event, which small batches keep tolerable.
type EventQueue interface {
	// PopFront returns the next raw event, or (nil, nil) when the queue
	// is empty.
	PopFront(ctx context.Context) ([]byte, error)
	// PushBack appends a raw event to the tail, used both for initial
	// enqueueing and for requeueing failures.
	PushBack(ctx context.Context, raw []byte) error
	Len(ctx context.Context) (int64, error)
}

// Outbox receives one entry id per successfully ingested event, for
// downstream consumers.
type Outbox interface {
	Push(ctx context.Context, id string) error
}
