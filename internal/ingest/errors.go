package ingest

import (
	"fmt"
	"strings"
)

// ValidationError marks a raw event that can never be ingested. It is
// dropped after logging, never requeued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}

// WriteError wraps a failed transactional write. Retried via requeue;
// unexpected failures at the worker boundary are treated the same way.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "entry write failed: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// ReadError wraps a failed post-write fetch. Retried, since the write
// may have partially landed.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "entry read-back failed: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// MismatchError reports a write that nominally succeeded but whose
// read-back aggregate disagrees with the recorded expectation.
type MismatchError struct {
	Diffs []CategoryDiff
}

type CategoryDiff struct {
	Category string
	Expected int
	Actual   int
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Diffs))
	for i, d := range e.Diffs {
		parts[i] = fmt.Sprintf("%s: expected %d, got %d", d.Category, d.Expected, d.Actual)
	}
	return "graph state mismatch: " + strings.Join(parts, ", ")
}
