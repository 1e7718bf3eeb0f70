package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// The entry write is assembled from a fixed sequence of optional
// segments. A segment contributes query text and parameters only when
// its data is present, so an absent sub-entity never reaches the store
// as a null placeholder (which would create phantom nodes).
type segment struct {
	name    string
	applies func(in EntryInput) bool
	cypher  string
	bind    func(in EntryInput, params map[string]any)
}

var entrySegments = []segment{
	{
		name:    "text",
		applies: func(in EntryInput) bool { return in.Text != nil },
		cypher: `CREATE (t:TextContent {id: randomUUID(), text: $text})
CREATE (e)-[:HAS_TEXT]->(t)
WITH e
`,
		bind: func(in EntryInput, params map[string]any) {
			params["text"] = in.Text.Text
		},
	},
	{
		name:    "caption",
		applies: func(in EntryInput) bool { return in.Caption != nil },
		cypher: `CREATE (cap:CaptionContent {id: randomUUID(), caption: $caption})
CREATE (e)-[:HAS_CAPTION]->(cap)
WITH e
`,
		bind: func(in EntryInput, params map[string]any) {
			params["caption"] = in.Caption.Caption
		},
	},
	{
		name:    "annotations",
		applies: func(in EntryInput) bool { return len(in.Annotations) > 0 },
		cypher: `UNWIND range(0, size($annOffsets) - 1) AS annIdx
CREATE (a:Annotation {
  id: randomUUID(),
  offset: $annOffsets[annIdx],
  length: $annLengths[annIdx],
  category: $annCategories[annIdx]
})
CREATE (e)-[:HAS_ANNOTATION]->(a)
WITH DISTINCT e
`,
		bind: func(in EntryInput, params map[string]any) {
			offsets := make([]int, len(in.Annotations))
			lengths := make([]int, len(in.Annotations))
			categories := make([]string, len(in.Annotations))
			for i, a := range in.Annotations {
				offsets[i] = a.Offset
				lengths[i] = a.Length
				categories[i] = a.Category
			}
			params["annOffsets"] = offsets
			params["annLengths"] = lengths
			params["annCategories"] = categories
		},
	},
	{
		// Deliberate reduction: only the last (highest resolution)
		// variant of the source photo set is persisted.
		name:    "photo",
		applies: func(in EntryInput) bool { return len(in.Photos) > 0 },
		cypher: `CREATE (ph:Photo {
  id: randomUUID(),
  fileId: $photoFileId,
  fileUniqueId: $photoFileUniqueId,
  fileSize: $photoFileSize,
  width: $photoWidth,
  height: $photoHeight
})
CREATE (e)-[:HAS_PHOTO]->(ph)
WITH e
`,
		bind: func(in EntryInput, params map[string]any) {
			best := in.Photos[len(in.Photos)-1]
			params["photoFileId"] = best.FileID
			params["photoFileUniqueId"] = best.FileUniqueID
			params["photoFileSize"] = best.FileSize
			params["photoWidth"] = best.Width
			params["photoHeight"] = best.Height
		},
	},
	{
		name:    "voice",
		applies: func(in EntryInput) bool { return in.Voice != nil },
		cypher: `CREATE (v:Voice {
  id: randomUUID(),
  fileId: $voiceFileId,
  fileUniqueId: $voiceFileUniqueId,
  fileSize: $voiceFileSize,
  duration: $voiceDuration,
  mimeType: $voiceMimeType
})
CREATE (e)-[:HAS_VOICE]->(v)
WITH e
`,
		bind: func(in EntryInput, params map[string]any) {
			params["voiceFileId"] = in.Voice.FileID
			params["voiceFileUniqueId"] = in.Voice.FileUniqueID
			params["voiceFileSize"] = in.Voice.FileSize
			params["voiceDuration"] = in.Voice.Duration
			params["voiceMimeType"] = in.Voice.MimeType
		},
	},
	{
		name:    "videos",
		applies: func(in EntryInput) bool { return len(in.Videos) > 0 },
		cypher: `UNWIND range(0, size($videoFileIds) - 1) AS vidIdx
CREATE (vid:Video {
  id: randomUUID(),
  duration: $videoDurations[vidIdx],
  width: $videoWidths[vidIdx],
  height: $videoHeights[vidIdx],
  mimeType: $videoMimeTypes[vidIdx],
  fileId: $videoFileIds[vidIdx],
  fileUniqueId: $videoFileUniqueIds[vidIdx],
  fileSize: $videoFileSizes[vidIdx]
})
CREATE (e)-[:HAS_VIDEO]->(vid)
WITH DISTINCT e
`,
		bind: func(in EntryInput, params map[string]any) {
			durations := make([]int, len(in.Videos))
			widths := make([]int, len(in.Videos))
			heights := make([]int, len(in.Videos))
			mimeTypes := make([]string, len(in.Videos))
			fileIDs := make([]string, len(in.Videos))
			fileUniqueIDs := make([]string, len(in.Videos))
			fileSizes := make([]int64, len(in.Videos))
			for i, v := range in.Videos {
				durations[i] = v.Duration
				widths[i] = v.Width
				heights[i] = v.Height
				mimeTypes[i] = v.MimeType
				fileIDs[i] = v.FileID
				fileUniqueIDs[i] = v.FileUniqueID
				fileSizes[i] = v.FileSize
			}
			params["videoDurations"] = durations
			params["videoWidths"] = widths
			params["videoHeights"] = heights
			params["videoMimeTypes"] = mimeTypes
			params["videoFileIds"] = fileIDs
			params["videoFileUniqueIds"] = fileUniqueIDs
			params["videoFileSizes"] = fileSizes
		},
	},
	{
		name:    "videoNote",
		applies: func(in EntryInput) bool { return in.VideoNote != nil },
		cypher: `CREATE (vn:VideoNote {
  id: randomUUID(),
  duration: $videoNoteDuration,
  length: $videoNoteLength,
  fileId: $videoNoteFileId,
  fileUniqueId: $videoNoteFileUniqueId,
  fileSize: $videoNoteFileSize
})
CREATE (e)-[:HAS_VIDEO_NOTE]->(vn)
WITH e
`,
		bind: func(in EntryInput, params map[string]any) {
			params["videoNoteDuration"] = in.VideoNote.Duration
			params["videoNoteLength"] = in.VideoNote.Length
			params["videoNoteFileId"] = in.VideoNote.FileID
			params["videoNoteFileUniqueId"] = in.VideoNote.FileUniqueID
			params["videoNoteFileSize"] = in.VideoNote.FileSize
		},
	},
}

const entryBase = `MERGE (p:Participant {handle: $senderHandle})
MERGE (c:Conversation {id: $chatId, topic: $chatTopic})
ON CREATE SET
  c.type = $chatType,
  c.title = $chatTitle,
  c.username = $chatUsername
CREATE (e:Entry {id: $entryId, updateId: $updateId, messageId: $messageId, date: $date})
CREATE (e)-[:SENT_BY]->(p)
CREATE (e)-[:FROM_CHAT]->(c)
WITH e
`

const replySegment = `MATCH (prior:Entry {id: $replyTargetId})
CREATE (e)-[:REPLIED_TO]->(prior)
WITH e
`

// buildEntryQuery assembles the single transactional statement for one
// entry. replyTargetID is the pre-resolved id of the replied-to entry,
// empty when the input names none or it does not exist. The returned
// names list which optional segments were included, for logging and
// verification against the read-back aggregate.
func buildEntryQuery(in EntryInput, entryID, replyTargetID string) (string, map[string]any, []string) {
	var b strings.Builder
	b.WriteString(entryBase)

	params := map[string]any{
		"senderHandle": in.Participant.Handle,
		"chatId":       in.Conversation.ID,
		"chatTopic":    in.Conversation.Topic,
		"chatType":     in.Conversation.Type,
		"chatTitle":    nullable(in.Conversation.Title),
		"chatUsername": nullable(in.Conversation.Username),
		"entryId":      entryID,
		"updateId":     in.Entry.UpdateID,
		"messageId":    in.Entry.MessageID,
		"date":         in.Entry.Date,
	}

	var included []string
	for _, seg := range entrySegments {
		if !seg.applies(in) {
			continue
		}
		b.WriteString(seg.cypher)
		seg.bind(in, params)
		included = append(included, seg.name)
	}

	if replyTargetID != "" {
		b.WriteString(replySegment)
		params["replyTargetId"] = replyTargetID
		included = append(included, "reply")
	}

	b.WriteString("RETURN e.id AS id")

	return b.String(), params, included
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateEntry persists one normalized event as a single atomic write:
// participant and conversation are upserted, the entry and every present
// sub-entity created and linked, the reply edge added when its target
// exists. Returns the generated entry id.
func (s *Store) CreateEntry(ctx context.Context, in EntryInput) (string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	entryID := uuid.New().String()

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		replyTargetID := ""
		if in.ReplyTo != nil {
			id, err := resolveReplyTarget(ctx, tx, in.ReplyTo.MessageID)
			if err != nil {
				return nil, err
			}
			replyTargetID = id
		}

		query, params, included := buildEntryQuery(in, entryID, replyTargetID)

		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("no record returned from entry write: %w", err)
		}

		id, _ := record.Get("id")
		s.log.Infow("created entry",
			"id", id,
			"message_id", in.Entry.MessageID,
			"segments", included,
		)
		return id, nil
	})
	if err != nil {
		return "", err
	}

	id, ok := created.(string)
	if !ok || id == "" {
		return "", errors.New("entry write returned no id")
	}
	return id, nil
}

// resolveReplyTarget looks the replied-to entry up inside the same
// transaction. A missing target is not an error: the reply edge is
// simply omitted.
func resolveReplyTarget(ctx context.Context, tx neo4j.ManagedTransaction, messageID int64) (string, error) {
	result, err := tx.Run(ctx, `MATCH (prior:Entry {messageId: $messageId})
RETURN prior.id AS id
ORDER BY prior.date DESC
LIMIT 1`, map[string]any{"messageId": messageID})
	if err != nil {
		return "", err
	}

	if result.Next(ctx) {
		if v, ok := result.Record().Get("id"); ok {
			if id, ok := v.(string); ok {
				return id, nil
			}
		}
	}
	return "", result.Err()
}
