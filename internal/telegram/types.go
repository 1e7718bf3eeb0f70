package telegram

import "encoding/json"

// Update is the raw webhook payload. Almost every field is optional;
// the ingest normalizer turns this into a fully-typed entry input.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID         int64              `json:"message_id"`
	From              *User              `json:"from,omitempty"`
	Chat              *Chat              `json:"chat,omitempty"`
	Date              int64              `json:"date"`
	Text              string             `json:"text,omitempty"`
	Caption           string             `json:"caption,omitempty"`
	Entities          []Entity           `json:"entities,omitempty"`
	ReplyTo           *Message           `json:"reply_to_message,omitempty"`
	Photo             PhotoSizes         `json:"photo,omitempty"`
	Voice             *Voice             `json:"voice,omitempty"`
	Video             Videos             `json:"video,omitempty"`
	VideoNote         *VideoNote         `json:"video_note,omitempty"`
	Location          *Location          `json:"location,omitempty"`
	ForumTopicCreated *ForumTopicCreated `json:"forum_topic_created,omitempty"`
}

type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type Chat struct {
	ID       int64  `json:"id"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type"`
	IsForum  bool   `json:"is_forum,omitempty"`
}

type Entity struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Type   string `json:"type"`
}

type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// PhotoSizes accepts either a single photo object or an array of
// variants; both decode to a uniform slice.
type PhotoSizes []PhotoSize

func (p *PhotoSizes) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		var list []PhotoSize
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	var one PhotoSize
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*p = PhotoSizes{one}
	return nil
}

type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	Duration     int    `json:"duration"`
	MimeType     string `json:"mime_type,omitempty"`
}

type Video struct {
	Duration     int    `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	MimeType     string `json:"mime_type,omitempty"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Videos accepts a single video object or an array, like PhotoSizes.
type Videos []Video

func (v *Videos) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		var list []Video
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = list
		return nil
	}
	var one Video
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*v = Videos{one}
	return nil
}

type VideoNote struct {
	Duration     int    `json:"duration"`
	Length       int    `json:"length"`
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

type ForumTopicCreated struct {
	Name      string `json:"name"`
	IconColor int    `json:"icon_color,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func isArray(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
