package graph

import "time"

// EntryInput is the normalized, fully-typed form of one ingested event.
// Optional sub-entities are pointers or slices; the writer creates a
// node (and edge) only for what is present.
type EntryInput struct {
	Entry        EntryMeta
	Participant  ParticipantInput
	Conversation ConversationInput
	ReplyTo      *ReplyRef
	Text         *TextInput
	Caption      *CaptionInput
	Annotations  []AnnotationInput
	Photos       []PhotoInput
	Voice        *VoiceInput
	Videos       []VideoInput
	VideoNote    *VideoNoteInput
}

type EntryMeta struct {
	UpdateID  int64
	MessageID int64
	Date      time.Time
}

type ParticipantInput struct {
	Handle string
}

type ConversationInput struct {
	ID       int64
	Type     string
	Title    string
	Username string
	// Topic is always set by the normalizer and forms the second half of
	// the conversation merge key.
	Topic string
}

type ReplyRef struct {
	MessageID int64
}

type TextInput struct {
	Text string
}

type CaptionInput struct {
	Caption string
}

type AnnotationInput struct {
	Offset   int
	Length   int
	Category string
}

type PhotoInput struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	Width        int
	Height       int
}

type VoiceInput struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	Duration     int
	MimeType     string
}

type VideoInput struct {
	Duration     int
	Width        int
	Height       int
	MimeType     string
	FileID       string
	FileUniqueID string
	FileSize     int64
}

type VideoNoteInput struct {
	Duration     int
	Length       int
	FileID       string
	FileUniqueID string
	FileSize     int64
}

// Persisted node views, as reconstructed by the reader.

type EntryNode struct {
	ID        string    `json:"id"`
	UpdateID  int64     `json:"update_id"`
	MessageID int64     `json:"message_id"`
	Date      time.Time `json:"date"`
}

type ParticipantNode struct {
	Handle string `json:"handle"`
}

type ConversationNode struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	Topic    string `json:"topic"`
}

type TextNode struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type CaptionNode struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

type AnnotationNode struct {
	ID       string `json:"id"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	Category string `json:"category"`
}

type PhotoNode struct {
	ID           string `json:"id"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type VoiceNode struct {
	ID           string `json:"id"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
	Duration     int    `json:"duration"`
	MimeType     string `json:"mime_type"`
}

type VideoNode struct {
	ID           string `json:"id"`
	Duration     int    `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	MimeType     string `json:"mime_type"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
}

type VideoNoteNode struct {
	ID           string `json:"id"`
	Duration     int    `json:"duration"`
	Length       int    `json:"length"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size"`
}

// EntryAggregate is an entry plus everything directly linked to it. An
// unknown id reads back as the zero aggregate; that is not an error and
// the verifier is expected to flag it instead.
type EntryAggregate struct {
	Entry        *EntryNode        `json:"entry,omitempty"`
	Participant  *ParticipantNode  `json:"participant,omitempty"`
	Conversation *ConversationNode `json:"conversation,omitempty"`
	Text         *TextNode         `json:"text,omitempty"`
	Caption      *CaptionNode      `json:"caption,omitempty"`
	Annotations  []AnnotationNode  `json:"annotations,omitempty"`
	Photos       []PhotoNode       `json:"photos,omitempty"`
	Voice        *VoiceNode        `json:"voice,omitempty"`
	Videos       []VideoNode       `json:"videos,omitempty"`
	VideoNote    *VideoNoteNode    `json:"video_note,omitempty"`
}
