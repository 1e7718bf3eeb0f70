package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Read models for the story API.

type ConversationSummary struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Username    string `json:"username,omitempty"`
	Topic       string `json:"topic"`
	DisplayName string `json:"display_name"`
}

type TimelineEntry struct {
	ID        string    `json:"id"`
	MessageID int64     `json:"message_id"`
	Date      time.Time `json:"date"`
	Handle    string    `json:"handle,omitempty"`
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
}

type TopicGroup struct {
	Topic    string          `json:"topic"`
	ChatType string          `json:"chat_type"`
	Entries  []TimelineEntry `json:"entries"`
}

type ParticipantStats struct {
	Handle        string `json:"handle"`
	Entries       int64  `json:"entries"`
	Texts         int64  `json:"texts"`
	Captions      int64  `json:"captions"`
	Annotations   int64  `json:"annotations"`
	Photos        int64  `json:"photos"`
	Voices        int64  `json:"voices"`
	Videos        int64  `json:"videos"`
	VideoNotes    int64  `json:"video_notes"`
	Conversations int64  `json:"conversations"`
}

// ListConversations returns every known conversation, optionally
// filtered by chat type, with a coalesced display name.
func (s *Store) ListConversations(ctx context.Context, typeFilter string) ([]ConversationSummary, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `MATCH (c:Conversation)
`
	params := map[string]any{}
	if typeFilter != "" {
		query += `WHERE c.type = $type
`
		params["type"] = typeFilter
	}
	query += `RETURN c.id AS id, c.type AS type, c.title AS title,
       c.username AS username, c.topic AS topic,
       coalesce(c.title, c.username, toString(c.id)) AS displayName
ORDER BY displayName`

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var list []ConversationSummary
		for result.Next(ctx) {
			record := result.Record()
			list = append(list, ConversationSummary{
				ID:          recordInt64(record, "id"),
				Type:        recordString(record, "type"),
				Title:       recordString(record, "title"),
				Username:    recordString(record, "username"),
				Topic:       recordString(record, "topic"),
				DisplayName: recordString(record, "displayName"),
			})
		}
		return list, result.Err()
	})
	if err != nil {
		return nil, err
	}

	return out.([]ConversationSummary), nil
}

// ConversationTimeline returns a conversation's entries grouped by topic
// in chronological order.
func (s *Store) ConversationTimeline(ctx context.Context, chatID int64) ([]TopicGroup, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `MATCH (c:Conversation {id: $chatId})<-[:FROM_CHAT]-(e:Entry)
OPTIONAL MATCH (e)-[:SENT_BY]->(p:Participant)
OPTIONAL MATCH (e)-[:HAS_TEXT]->(t:TextContent)
OPTIONAL MATCH (e)-[:HAS_CAPTION]->(cap:CaptionContent)
RETURN coalesce(c.topic, 'no-topic') AS topic, c.type AS chatType,
       e.id AS id, e.messageId AS messageId, e.date AS date,
       p.handle AS handle, t.text AS text, cap.caption AS caption
ORDER BY topic, date`

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"chatId": chatID})
		if err != nil {
			return nil, err
		}

		var groups []TopicGroup
		for result.Next(ctx) {
			record := result.Record()
			topic := recordString(record, "topic")

			entry := TimelineEntry{
				ID:        recordString(record, "id"),
				MessageID: recordInt64(record, "messageId"),
				Handle:    recordString(record, "handle"),
				Text:      recordString(record, "text"),
				Caption:   recordString(record, "caption"),
			}
			if v, ok := record.Get("date"); ok {
				if t, ok := v.(time.Time); ok {
					entry.Date = t
				}
			}

			if len(groups) == 0 || groups[len(groups)-1].Topic != topic {
				groups = append(groups, TopicGroup{
					Topic:    topic,
					ChatType: recordString(record, "chatType"),
				})
			}
			last := &groups[len(groups)-1]
			last.Entries = append(last.Entries, entry)
		}
		return groups, result.Err()
	})
	if err != nil {
		return nil, err
	}

	return out.([]TopicGroup), nil
}

// ParticipantSummary counts every node category linked to a
// participant's entries.
func (s *Store) ParticipantSummary(ctx context.Context, handle string) (ParticipantStats, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `MATCH (p:Participant {handle: $handle})<-[:SENT_BY]-(e:Entry)
OPTIONAL MATCH (e)-[:HAS_TEXT]->(t:TextContent)
OPTIONAL MATCH (e)-[:HAS_CAPTION]->(cap:CaptionContent)
OPTIONAL MATCH (e)-[:HAS_ANNOTATION]->(a:Annotation)
OPTIONAL MATCH (e)-[:HAS_PHOTO]->(ph:Photo)
OPTIONAL MATCH (e)-[:HAS_VOICE]->(v:Voice)
OPTIONAL MATCH (e)-[:HAS_VIDEO]->(vid:Video)
OPTIONAL MATCH (e)-[:HAS_VIDEO_NOTE]->(vn:VideoNote)
OPTIONAL MATCH (e)-[:FROM_CHAT]->(c:Conversation)
RETURN count(DISTINCT e) AS entries,
       count(DISTINCT t) AS texts,
       count(DISTINCT cap) AS captions,
       count(DISTINCT a) AS annotations,
       count(DISTINCT ph) AS photos,
       count(DISTINCT v) AS voices,
       count(DISTINCT vid) AS videos,
       count(DISTINCT vn) AS videoNotes,
       count(DISTINCT c) AS conversations`

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"handle": handle})
		if err != nil {
			return nil, err
		}

		stats := ParticipantStats{Handle: handle}
		if result.Next(ctx) {
			record := result.Record()
			stats.Entries = recordInt64(record, "entries")
			stats.Texts = recordInt64(record, "texts")
			stats.Captions = recordInt64(record, "captions")
			stats.Annotations = recordInt64(record, "annotations")
			stats.Photos = recordInt64(record, "photos")
			stats.Voices = recordInt64(record, "voices")
			stats.Videos = recordInt64(record, "videos")
			stats.VideoNotes = recordInt64(record, "videoNotes")
			stats.Conversations = recordInt64(record, "conversations")
		}
		return stats, result.Err()
	})
	if err != nil {
		return ParticipantStats{}, err
	}

	return out.(ParticipantStats), nil
}

func recordString(record *db.Record, key string) string {
	if v, ok := record.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recordInt64(record *db.Record, key string) int64 {
	if v, ok := record.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}
