package ingest

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"storygraph/internal/graph"
	"storygraph/internal/telegram"
)

// GraphStore is the slice of the graph layer the pipeline drives.
type GraphStore interface {
	CreateEntry(ctx context.Context, in graph.EntryInput) (string, error)
	ReadEntry(ctx context.Context, id string) (graph.EntryAggregate, error)
}

type Pipeline struct {
	store GraphStore
	log   *zap.SugaredLogger
}

func NewPipeline(store GraphStore, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{store: store, log: log}
}

// Process runs one raw event through normalize -> expect -> write ->
// read -> verify and returns the new entry id. Every failure is typed:
// ValidationError means the event can never succeed, everything else is
// retryable.
func (p *Pipeline) Process(ctx context.Context, raw []byte) (string, error) {
	var upd telegram.Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return "", &ValidationError{Reason: "malformed payload: " + err.Error()}
	}

	in, err := Normalize(upd)
	if err != nil {
		return "", err
	}

	expected := Expect(in)
	p.log.Infow("ingesting event",
		"update_id", in.Entry.UpdateID,
		"message_id", in.Entry.MessageID,
		"chat_type", in.Conversation.Type,
		"expected", expected,
	)

	id, err := p.store.CreateEntry(ctx, in)
	if err != nil {
		return "", &WriteError{Err: err}
	}

	agg, err := p.store.ReadEntry(ctx, id)
	if err != nil {
		return "", &ReadError{Err: err}
	}

	if err := Verify(expected, agg); err != nil {
		return "", err
	}

	return id, nil
}
