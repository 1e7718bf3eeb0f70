package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

const readEntryQuery = `MATCH (e:Entry {id: $entryId})
OPTIONAL MATCH (e)-[:SENT_BY]->(p:Participant)
OPTIONAL MATCH (e)-[:FROM_CHAT]->(c:Conversation)
OPTIONAL MATCH (e)-[:HAS_TEXT]->(t:TextContent)
OPTIONAL MATCH (e)-[:HAS_CAPTION]->(cap:CaptionContent)
OPTIONAL MATCH (e)-[:HAS_ANNOTATION]->(a:Annotation)
OPTIONAL MATCH (e)-[:HAS_PHOTO]->(ph:Photo)
OPTIONAL MATCH (e)-[:HAS_VOICE]->(v:Voice)
OPTIONAL MATCH (e)-[:HAS_VIDEO]->(vid:Video)
OPTIONAL MATCH (e)-[:HAS_VIDEO_NOTE]->(vn:VideoNote)
RETURN e, p, c, t, cap,
       collect(DISTINCT a) AS annotations,
       collect(DISTINCT ph) AS photos,
       v,
       collect(DISTINCT vid) AS videos,
       vn`

// ReadEntry reconstructs the full aggregate for an entry id in a single
// read. An unknown id yields the zero aggregate, not an error; the
// verifier is the place that turns that into a failure.
func (s *Store) ReadEntry(ctx context.Context, entryID string) (EntryAggregate, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	agg, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, readEntryQuery, map[string]any{"entryId": entryID})
		if err != nil {
			return nil, err
		}

		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return EntryAggregate{}, nil
		}

		return mapEntryAggregate(result.Record()), nil
	})
	if err != nil {
		return EntryAggregate{}, err
	}

	return agg.(EntryAggregate), nil
}

func mapEntryAggregate(record *db.Record) EntryAggregate {
	agg := EntryAggregate{}

	if n, ok := recordNode(record, "e"); ok {
		agg.Entry = &EntryNode{
			ID:        propString(n, "id"),
			UpdateID:  propInt64(n, "updateId"),
			MessageID: propInt64(n, "messageId"),
			Date:      propTime(n, "date"),
		}
	}
	if n, ok := recordNode(record, "p"); ok {
		agg.Participant = &ParticipantNode{Handle: propString(n, "handle")}
	}
	if n, ok := recordNode(record, "c"); ok {
		agg.Conversation = &ConversationNode{
			ID:       propInt64(n, "id"),
			Type:     propString(n, "type"),
			Title:    propString(n, "title"),
			Username: propString(n, "username"),
			Topic:    propString(n, "topic"),
		}
	}
	if n, ok := recordNode(record, "t"); ok {
		agg.Text = &TextNode{ID: propString(n, "id"), Text: propString(n, "text")}
	}
	if n, ok := recordNode(record, "cap"); ok {
		agg.Caption = &CaptionNode{ID: propString(n, "id"), Caption: propString(n, "caption")}
	}
	for _, n := range recordNodes(record, "annotations") {
		agg.Annotations = append(agg.Annotations, AnnotationNode{
			ID:       propString(n, "id"),
			Offset:   propInt(n, "offset"),
			Length:   propInt(n, "length"),
			Category: propString(n, "category"),
		})
	}
	for _, n := range recordNodes(record, "photos") {
		agg.Photos = append(agg.Photos, PhotoNode{
			ID:           propString(n, "id"),
			FileID:       propString(n, "fileId"),
			FileUniqueID: propString(n, "fileUniqueId"),
			FileSize:     propInt64(n, "fileSize"),
			Width:        propInt(n, "width"),
			Height:       propInt(n, "height"),
		})
	}
	if n, ok := recordNode(record, "v"); ok {
		agg.Voice = &VoiceNode{
			ID:           propString(n, "id"),
			FileID:       propString(n, "fileId"),
			FileUniqueID: propString(n, "fileUniqueId"),
			FileSize:     propInt64(n, "fileSize"),
			Duration:     propInt(n, "duration"),
			MimeType:     propString(n, "mimeType"),
		}
	}
	for _, n := range recordNodes(record, "videos") {
		agg.Videos = append(agg.Videos, VideoNode{
			ID:           propString(n, "id"),
			Duration:     propInt(n, "duration"),
			Width:        propInt(n, "width"),
			Height:       propInt(n, "height"),
			MimeType:     propString(n, "mimeType"),
			FileID:       propString(n, "fileId"),
			FileUniqueID: propString(n, "fileUniqueId"),
			FileSize:     propInt64(n, "fileSize"),
		})
	}
	if n, ok := recordNode(record, "vn"); ok {
		agg.VideoNote = &VideoNoteNode{
			ID:           propString(n, "id"),
			Duration:     propInt(n, "duration"),
			Length:       propInt(n, "length"),
			FileID:       propString(n, "fileId"),
			FileUniqueID: propString(n, "fileUniqueId"),
			FileSize:     propInt64(n, "fileSize"),
		}
	}

	return agg
}

func recordNode(record *db.Record, key string) (neo4j.Node, bool) {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return neo4j.Node{}, false
	}
	node, ok := v.(neo4j.Node)
	return node, ok
}

func recordNodes(record *db.Record, key string) []neo4j.Node {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	nodes := make([]neo4j.Node, 0, len(raw))
	for _, item := range raw {
		if node, ok := item.(neo4j.Node); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func propString(n neo4j.Node, key string) string {
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return ""
}

func propInt64(n neo4j.Node, key string) int64 {
	if v, ok := n.Props[key].(int64); ok {
		return v
	}
	return 0
}

func propInt(n neo4j.Node, key string) int {
	return int(propInt64(n, key))
}

func propTime(n neo4j.Node, key string) time.Time {
	if v, ok := n.Props[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
