package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storygraph/internal/config"
	"storygraph/internal/ingest"
)

type fakeQueue struct {
	items   [][]byte
	popErr  error
	pushErr error
	lenErr  error
}

func (q *fakeQueue) PopFront(context.Context) ([]byte, error) {
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.items) == 0 {
		return nil, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, nil
}

func (q *fakeQueue) PushBack(_ context.Context, raw []byte) error {
	if q.pushErr != nil {
		return q.pushErr
	}
	q.items = append(q.items, raw)
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	if q.lenErr != nil {
		return 0, q.lenErr
	}
	return int64(len(q.items)), nil
}

type fakeOutbox struct {
	ids     []string
	pushErr error
}

func (o *fakeOutbox) Push(_ context.Context, id string) error {
	if o.pushErr != nil {
		return o.pushErr
	}
	o.ids = append(o.ids, id)
	return nil
}

// scriptedPipeline returns errors per raw payload, by content.
type scriptedPipeline struct {
	results map[string]error
	calls   []string
}

func (p *scriptedPipeline) Process(_ context.Context, raw []byte) (string, error) {
	p.calls = append(p.calls, string(raw))
	if err, ok := p.results[string(raw)]; ok && err != nil {
		return "", err
	}
	return "id-" + string(raw), nil
}

func event(messageID int64) []byte {
	return []byte(fmt.Sprintf(`{"message":{"message_id":%d}}`, messageID))
}

func newTestWorker(q *fakeQueue, out *fakeOutbox, p Pipeline, batchSize int) *Worker {
	return New(q, out, p, config.WorkerConfig{
		BatchSize: batchSize,
		Budget:    8 * time.Second,
	}, zap.NewNop().Sugar())
}

func TestRunEmptyQueue(t *testing.T) {
	q := &fakeQueue{}
	w := newTestWorker(q, &fakeOutbox{}, &scriptedPipeline{}, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, "processed 0 events, 0 failed", summary.Message)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Equal(t, int64(0), summary.RemainingCount)
}

func TestRunProcessesBatch(t *testing.T) {
	q := &fakeQueue{items: [][]byte{event(1), event(2), event(3)}}
	out := &fakeOutbox{}
	p := &scriptedPipeline{}
	w := newTestWorker(q, out, p, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 3, summary.ProcessedCount)
	assert.Len(t, out.ids, 3)
	assert.Empty(t, q.items)
}

func TestRunRespectsBatchSize(t *testing.T) {
	q := &fakeQueue{items: [][]byte{event(1), event(2), event(3), event(4)}}
	p := &scriptedPipeline{}
	w := newTestWorker(q, &fakeOutbox{}, p, 2)

	summary := w.Run(context.Background())

	assert.Equal(t, 2, summary.ProcessedCount)
	assert.Equal(t, int64(2), summary.RemainingCount)
}

func TestRunDropsInvalidEvents(t *testing.T) {
	bad := event(1)
	good := event(2)
	q := &fakeQueue{items: [][]byte{bad, good}}
	p := &scriptedPipeline{results: map[string]error{
		string(bad): &ingest.ValidationError{Reason: "no message"},
	}}
	w := newTestWorker(q, &fakeOutbox{}, p, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 1, summary.ProcessedCount)
	// Invalid events are dropped, never requeued.
	assert.Empty(t, q.items)
}

func TestRunRequeuesRetryableFailures(t *testing.T) {
	failing := event(1)
	q := &fakeQueue{items: [][]byte{failing, event(2)}}
	p := &scriptedPipeline{results: map[string]error{
		string(failing): &ingest.WriteError{Err: errors.New("neo4j down")},
	}}
	w := newTestWorker(q, &fakeOutbox{}, p, 2)

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 1, summary.ProcessedCount)
	// The failed event went to the back of the queue.
	require.Len(t, q.items, 1)
	assert.Equal(t, failing, q.items[0])
}

func TestRunPoisonBreaker(t *testing.T) {
	poison := event(7)
	q := &fakeQueue{items: [][]byte{poison, event(8), event(9)}}
	p := &scriptedPipeline{results: map[string]error{
		string(poison): &ingest.WriteError{Err: errors.New("always fails")},
	}}
	w := newTestWorker(q, &fakeOutbox{}, p, 10)

	summary := w.Run(context.Background())

	// Batch order: poison fails and is requeued, 8 and 9 succeed and
	// reset the breaker, then poison fails twice in a row -> batch
	// stops with the event requeued for a later run.
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 2, summary.ProcessedCount)
	require.Len(t, q.items, 1)
	assert.Equal(t, poison, q.items[0])
	assert.Len(t, p.calls, 5)
}

func TestRunPoisonBreakerConsecutive(t *testing.T) {
	poison := event(7)
	q := &fakeQueue{items: [][]byte{poison}}
	p := &scriptedPipeline{results: map[string]error{
		string(poison): &ingest.WriteError{Err: errors.New("always fails")},
	}}
	w := newTestWorker(q, &fakeOutbox{}, p, 10)

	summary := w.Run(context.Background())

	// Exactly two attempts, then the batch halts instead of burning
	// the remaining eight slots on the same event.
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, "processed 0 events, 2 failed", summary.Message)
	assert.Len(t, p.calls, 2)
	// The event stays queued for inspection.
	require.Len(t, q.items, 1)
	assert.Equal(t, int64(1), summary.RemainingCount)
}

func TestRunPoisonBreakerResetsOnSuccess(t *testing.T) {
	// Two failures on different ids with a success between them must
	// not trip the breaker.
	failA := event(1)
	failB := event(2)
	q := &fakeQueue{}
	q.items = [][]byte{failA, event(3), failB}
	p := &scriptedPipeline{results: map[string]error{
		string(failA): &ingest.WriteError{Err: errors.New("boom")},
		string(failB): &ingest.WriteError{Err: errors.New("boom")},
	}}
	// Cap the batch so the requeued failures are not retried within
	// this run.
	w := newTestWorker(q, &fakeOutbox{}, p, 3)

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Len(t, q.items, 2)
}

func TestRunBudgetStopsBatch(t *testing.T) {
	q := &fakeQueue{items: [][]byte{event(1), event(2), event(3)}}
	p := &scriptedPipeline{}
	w := newTestWorker(q, &fakeOutbox{}, p, 10)

	// Each clock read advances five seconds, so the second item is
	// already over the eight second budget.
	var tick int
	base := time.Unix(1700000000, 0)
	w.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 5 * time.Second)
	}

	summary := w.Run(context.Background())

	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Equal(t, int64(2), summary.RemainingCount)
}

func TestRunPopFailure(t *testing.T) {
	q := &fakeQueue{popErr: errors.New("redis gone")}
	w := newTestWorker(q, &fakeOutbox{}, &scriptedPipeline{}, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "error", summary.Status)
	assert.Equal(t, "redis gone", summary.Message)
}

func TestRunRequeueFailure(t *testing.T) {
	failing := event(1)
	q := &fakeQueue{items: [][]byte{failing}, pushErr: errors.New("redis full")}
	p := &scriptedPipeline{results: map[string]error{
		string(failing): &ingest.WriteError{Err: errors.New("boom")},
	}}
	w := newTestWorker(q, &fakeOutbox{}, p, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "error", summary.Status)
	assert.Equal(t, "redis full", summary.Message)
}

func TestRunOutboxFailureDoesNotRequeue(t *testing.T) {
	q := &fakeQueue{items: [][]byte{event(1)}}
	out := &fakeOutbox{pushErr: errors.New("outbox gone")}
	w := newTestWorker(q, out, &scriptedPipeline{}, 10)

	summary := w.Run(context.Background())

	// The entry is persisted; losing the outbox notification must not
	// duplicate it.
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Empty(t, q.items)
}

type panickyPipeline struct{ after int }

func (p *panickyPipeline) Process(context.Context, []byte) (string, error) {
	if p.after == 0 {
		panic("pipeline exploded")
	}
	p.after--
	return "id", nil
}

func TestRunRecoversPanic(t *testing.T) {
	q := &fakeQueue{items: [][]byte{event(1), event(2)}}
	w := newTestWorker(q, &fakeOutbox{}, &panickyPipeline{after: 1}, 10)

	summary := w.Run(context.Background())

	assert.Equal(t, "error", summary.Status)
	assert.Contains(t, summary.Message, "pipeline exploded")
	// Work done before the panic is still reported.
	assert.Equal(t, 1, summary.ProcessedCount)
}
