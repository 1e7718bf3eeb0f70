package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storygraph/internal/telegram"
)

func TestNormalizeValidation(t *testing.T) {
	tests := []struct {
		name string
		upd  telegram.Update
	}{
		{name: "no message", upd: telegram.Update{UpdateID: 1}},
		{
			name: "no chat",
			upd:  telegram.Update{UpdateID: 1, Message: &telegram.Message{MessageID: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.upd)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestNormalizeTextMessage(t *testing.T) {
	upd := telegram.Update{
		UpdateID: 42,
		Message: &telegram.Message{
			MessageID: 7,
			Date:      1700000000,
			From:      &telegram.User{ID: 101, Username: "alice"},
			Chat:      &telegram.Chat{ID: 555, Type: "private", Username: "alice"},
			Text:      "hello world",
		},
	}

	in, err := Normalize(upd)
	require.NoError(t, err)

	assert.Equal(t, int64(42), in.Entry.UpdateID)
	assert.Equal(t, int64(7), in.Entry.MessageID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), in.Entry.Date)
	assert.Equal(t, "alice", in.Participant.Handle)

	assert.Equal(t, int64(555), in.Conversation.ID)
	assert.Equal(t, "private", in.Conversation.Type)
	assert.Equal(t, "private_alice", in.Conversation.Topic)
	assert.Equal(t, "alice", in.Conversation.Username)
	assert.Empty(t, in.Conversation.Title)

	require.NotNil(t, in.Text)
	assert.Equal(t, "hello world", in.Text.Text)
	assert.Nil(t, in.Caption)
	assert.Nil(t, in.Voice)
	assert.Nil(t, in.VideoNote)
	assert.Nil(t, in.ReplyTo)
	assert.Empty(t, in.Annotations)
	assert.Empty(t, in.Photos)
	assert.Empty(t, in.Videos)
}

func TestSenderHandleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		from *telegram.User
		want string
	}{
		{name: "username wins", from: &telegram.User{ID: 9, Username: "bob"}, want: "bob"},
		{name: "id fallback", from: &telegram.User{ID: 9}, want: "9"},
		{name: "no sender", from: nil, want: UnknownHandle},
		{name: "empty sender", from: &telegram.User{}, want: UnknownHandle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Normalize(telegram.Update{Message: &telegram.Message{
				From: tt.from,
				Chat: &telegram.Chat{ID: 1, Type: "private"},
			}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Participant.Handle)
		})
	}
}

func TestNormalizeForumTopic(t *testing.T) {
	upd := telegram.Update{
		Message: &telegram.Message{
			MessageID: 10,
			Chat:      &telegram.Chat{ID: -100, Type: "supergroup", Title: "storying", IsForum: true},
			Text:      "inside a topic",
			ReplyTo: &telegram.Message{
				MessageID:         2,
				ForumTopicCreated: &telegram.ForumTopicCreated{Name: "alpha_bot"},
			},
		},
	}

	in, err := Normalize(upd)
	require.NoError(t, err)

	assert.Equal(t, "alpha_bot", in.Conversation.Topic)
	assert.Equal(t, "storying", in.Conversation.Title)
	// The topic-creation service message is not a reply target.
	assert.Nil(t, in.ReplyTo)
}

func TestNormalizeRealReply(t *testing.T) {
	upd := telegram.Update{
		Message: &telegram.Message{
			MessageID: 11,
			Chat:      &telegram.Chat{ID: -100, Type: "supergroup"},
			Text:      "replying",
			ReplyTo:   &telegram.Message{MessageID: 4},
		},
	}

	in, err := Normalize(upd)
	require.NoError(t, err)
	require.NotNil(t, in.ReplyTo)
	assert.Equal(t, int64(4), in.ReplyTo.MessageID)
}

func TestNormalizeMedia(t *testing.T) {
	upd := telegram.Update{
		Message: &telegram.Message{
			MessageID: 12,
			Chat:      &telegram.Chat{ID: 3, Type: "private"},
			Caption:   "look at this",
			Entities: []telegram.Entity{
				{Offset: 0, Length: 4, Type: "bold"},
				{Offset: 5, Length: 2, Type: "url"},
			},
			Photo: telegram.PhotoSizes{
				{FileID: "small", Width: 90},
				{FileID: "big", Width: 800},
			},
			Voice:     &telegram.Voice{FileID: "voice1", Duration: 9},
			Video:     telegram.Videos{{FileID: "vid1", Duration: 30}},
			VideoNote: &telegram.VideoNote{FileID: "note1", Duration: 5, Length: 240},
		},
	}

	in, err := Normalize(upd)
	require.NoError(t, err)

	require.NotNil(t, in.Caption)
	assert.Equal(t, "look at this", in.Caption.Caption)

	require.Len(t, in.Annotations, 2)
	assert.Equal(t, "bold", in.Annotations[0].Category)
	assert.Equal(t, 5, in.Annotations[1].Offset)

	require.Len(t, in.Photos, 2)
	assert.Equal(t, "big", in.Photos[1].FileID)

	require.NotNil(t, in.Voice)
	assert.Equal(t, 9, in.Voice.Duration)
	require.Len(t, in.Videos, 1)
	require.NotNil(t, in.VideoNote)
	assert.Equal(t, 240, in.VideoNote.Length)
}
