// Package graph persists ingested events as a labeled property graph in
// Neo4j: (Entry)-[:SENT_BY]->(Participant), (Entry)-[:FROM_CHAT]->
// (Conversation), one optional edge per attached sub-entity, and
// (Entry)-[:REPLIED_TO]->(Entry) when the reply target exists.
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type Store struct {
	driver neo4j.DriverWithContext
	log    *zap.SugaredLogger
}

func NewStore(ctx context.Context, uri, username, password string, log *zap.SugaredLogger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	log.Infow("connected to neo4j", "uri", uri)

	return &Store{driver: driver, log: log}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Session hands out a raw session for collaborators that keep their own
// entities in the same graph (the exchange workflow).
func (s *Store) Session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
}
