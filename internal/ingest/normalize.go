// Package ingest drives raw webhook updates through the
// normalize -> expect -> write -> read -> verify pipeline.
package ingest

import (
	"fmt"
	"strconv"
	"time"

	"storygraph/internal/graph"
	"storygraph/internal/telegram"
)

// UnknownHandle is the participant handle of record when the event
// carries neither a sender username nor a sender id.
const UnknownHandle = "unknown"

// Normalize maps a raw update onto a fully-typed entry input. It is
// pure: no I/O, deterministic, and the only two fields without a
// fallback — the message itself and its chat — produce a
// ValidationError when missing.
func Normalize(upd telegram.Update) (graph.EntryInput, error) {
	msg := upd.Message
	if msg == nil {
		return graph.EntryInput{}, &ValidationError{Reason: "update has no message"}
	}
	if msg.Chat == nil {
		return graph.EntryInput{}, &ValidationError{Reason: "message has no chat"}
	}

	in := graph.EntryInput{
		Entry: graph.EntryMeta{
			UpdateID:  upd.UpdateID,
			MessageID: msg.MessageID,
			Date:      time.Unix(msg.Date, 0).UTC(),
		},
		Participant: graph.ParticipantInput{
			Handle: senderHandle(msg.From),
		},
		Conversation: normalizeConversation(msg),
	}

	// A reply that only marks forum topic creation names the topic, not
	// a prior entry.
	if msg.ReplyTo != nil && msg.ReplyTo.ForumTopicCreated == nil {
		in.ReplyTo = &graph.ReplyRef{MessageID: msg.ReplyTo.MessageID}
	}

	if msg.Text != "" {
		in.Text = &graph.TextInput{Text: msg.Text}
	}
	if msg.Caption != "" {
		in.Caption = &graph.CaptionInput{Caption: msg.Caption}
	}

	for _, e := range msg.Entities {
		in.Annotations = append(in.Annotations, graph.AnnotationInput{
			Offset:   e.Offset,
			Length:   e.Length,
			Category: e.Type,
		})
	}

	for _, p := range msg.Photo {
		in.Photos = append(in.Photos, graph.PhotoInput{
			FileID:       p.FileID,
			FileUniqueID: p.FileUniqueID,
			FileSize:     p.FileSize,
			Width:        p.Width,
			Height:       p.Height,
		})
	}

	if msg.Voice != nil {
		in.Voice = &graph.VoiceInput{
			FileID:       msg.Voice.FileID,
			FileUniqueID: msg.Voice.FileUniqueID,
			FileSize:     msg.Voice.FileSize,
			Duration:     msg.Voice.Duration,
			MimeType:     msg.Voice.MimeType,
		}
	}

	for _, v := range msg.Video {
		in.Videos = append(in.Videos, graph.VideoInput{
			Duration:     v.Duration,
			Width:        v.Width,
			Height:       v.Height,
			MimeType:     v.MimeType,
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			FileSize:     v.FileSize,
		})
	}

	if msg.VideoNote != nil {
		in.VideoNote = &graph.VideoNoteInput{
			Duration:     msg.VideoNote.Duration,
			Length:       msg.VideoNote.Length,
			FileID:       msg.VideoNote.FileID,
			FileUniqueID: msg.VideoNote.FileUniqueID,
			FileSize:     msg.VideoNote.FileSize,
		}
	}

	return in, nil
}

func senderHandle(from *telegram.User) string {
	switch {
	case from == nil:
		return UnknownHandle
	case from.Username != "":
		return from.Username
	case from.ID != 0:
		return strconv.FormatInt(from.ID, 10)
	default:
		return UnknownHandle
	}
}

func normalizeConversation(msg *telegram.Message) graph.ConversationInput {
	conv := graph.ConversationInput{
		ID:   msg.Chat.ID,
		Type: msg.Chat.Type,
	}

	// The topic doubles as half of the conversation key and therefore
	// always gets a value: the forum topic name when the event arrived
	// inside one, otherwise a type/username composite.
	if msg.ReplyTo != nil && msg.ReplyTo.ForumTopicCreated != nil {
		conv.Topic = msg.ReplyTo.ForumTopicCreated.Name
	} else {
		conv.Topic = fmt.Sprintf("%s_%s", msg.Chat.Type, msg.Chat.Username)
	}

	// First-writer-wins descriptive fields: title is only meaningful for
	// supergroups, username only for private chats.
	if msg.Chat.Type == "supergroup" {
		conv.Title = msg.Chat.Title
	}
	if msg.Chat.Type == "private" {
		conv.Username = msg.Chat.Username
	}

	return conv
}
