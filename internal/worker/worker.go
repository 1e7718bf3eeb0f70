// Package worker drains a bounded batch of queued raw events per
// invocation. Throughput comes from an external scheduler calling Run
// repeatedly; within one batch everything is sequential.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storygraph/internal/config"
	"storygraph/internal/ingest"
	"storygraph/internal/queue"
)

// Pipeline ingests one raw event and returns the new entry id.
type Pipeline interface {
	Process(ctx context.Context, raw []byte) (string, error)
}

// Summary is the batch result the external scheduler consumes. Item
// failures surface through logs and the requeue side effect, not here.
type Summary struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ProcessedCount int    `json:"processed_count"`
	RemainingCount int64  `json:"remaining_count,omitempty"`
}

type Worker struct {
	queue     queue.EventQueue
	outbox    queue.Outbox
	pipeline  Pipeline
	batchSize int
	budget    time.Duration
	log       *zap.SugaredLogger

	// now is swappable in tests to exercise the time budget.
	now func() time.Time
}

func New(q queue.EventQueue, out queue.Outbox, p Pipeline, cfg config.WorkerConfig, log *zap.SugaredLogger) *Worker {
	return &Worker{
		queue:     q,
		outbox:    out,
		pipeline:  p,
		batchSize: cfg.BatchSize,
		budget:    cfg.Budget,
		log:       log,
		now:       time.Now,
	}
}

// Run processes up to batchSize events within the wall-clock budget.
// The budget is checked between items only; a running item is never
// interrupted. Two consecutive failures on the same message id trip the
// poison breaker: the event is requeued once more and the batch stops
// early. No failure escapes past the batch boundary.
func (w *Worker) Run(ctx context.Context) (summary Summary) {
	start := w.now()
	processed := 0
	failed := 0

	var lastFailedID int64
	haveLastFailed := false

	defer func() {
		if r := recover(); r != nil {
			w.log.Errorw("batch aborted", "panic", r)
			summary = Summary{
				Status:         "error",
				Message:        fmt.Sprintf("batch aborted: %v", r),
				ProcessedCount: processed,
			}
		}
	}()

	for i := 0; i < w.batchSize; i++ {
		if w.now().Sub(start) > w.budget {
			w.log.Infow("approaching execution budget, stopping batch")
			break
		}

		raw, err := w.queue.PopFront(ctx)
		if err != nil {
			w.log.Errorw("queue pop failed", "err", err)
			return Summary{Status: "error", Message: err.Error(), ProcessedCount: processed}
		}
		if raw == nil {
			break
		}

		id, err := w.pipeline.Process(ctx, raw)
		if err == nil {
			processed++
			haveLastFailed = false
			if err := w.outbox.Push(ctx, id); err != nil {
				// The entry is already persisted; requeueing would
				// duplicate it. Downstream catches up on the next one.
				w.log.Errorw("outbox push failed", "entry_id", id, "err", err)
			}
			continue
		}

		failed++

		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			// Can never succeed; retrying is pointless.
			w.log.Warnw("dropping invalid event", "err", err)
			continue
		}

		w.log.Errorw("event processing failed", "err", err)

		mid := messageID(raw)
		if err := w.queue.PushBack(ctx, raw); err != nil {
			w.log.Errorw("requeue failed", "err", err)
			return Summary{Status: "error", Message: err.Error(), ProcessedCount: processed}
		}

		if haveLastFailed && lastFailedID == mid {
			w.log.Warnw("repeated failure on same message, stopping batch",
				"message_id", mid)
			break
		}
		lastFailedID = mid
		haveLastFailed = true
	}

	remaining, err := w.queue.Len(ctx)
	if err != nil {
		w.log.Errorw("queue depth sample failed", "err", err)
		return Summary{Status: "error", Message: err.Error(), ProcessedCount: processed}
	}

	w.log.Infow("batch finished",
		"processed", processed,
		"failed", failed,
		"remaining", remaining,
	)

	return Summary{
		Status:         "success",
		Message:        fmt.Sprintf("processed %d events, %d failed", processed, failed),
		ProcessedCount: processed,
		RemainingCount: remaining,
	}
}

// messageID digs the Telegram message id out of a raw event for poison
// detection. Zero when absent; that still trips the breaker for two
// consecutive id-less failures, which is the safe direction.
func messageID(raw []byte) int64 {
	var probe struct {
		Message struct {
			MessageID int64 `json:"message_id"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return probe.Message.MessageID
}
