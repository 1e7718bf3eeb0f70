package ingest

import "storygraph/internal/graph"

// Verification categories, in reporting order.
const (
	CatEntry        = "entry"
	CatParticipant  = "participant"
	CatConversation = "conversation"
	CatText         = "text"
	CatCaption      = "caption"
	CatAnnotations  = "annotations"
	CatPhotos       = "photos"
	CatVoice        = "voice"
	CatVideos       = "videos"
	CatVideoNote    = "videoNote"
)

var categoryOrder = []string{
	CatEntry, CatParticipant, CatConversation,
	CatText, CatCaption, CatAnnotations, CatPhotos,
	CatVoice, CatVideos, CatVideoNote,
}

// Expectation maps a category to the node count a correct write must
// produce for one entry.
type Expectation map[string]int

// Expect derives the expectation from an entry input. Presence flags
// collapse to one, list lengths are preserved — except photos, which
// expect exactly one node for any non-empty input because the writer
// keeps only the best variant. The reply edge is not a category here:
// whether it gets created depends on store state the recorder cannot
// observe.
func Expect(in graph.EntryInput) Expectation {
	exp := Expectation{
		CatEntry:        1,
		CatParticipant:  1,
		CatConversation: 1,
	}

	if in.Text != nil {
		exp[CatText] = 1
	}
	if in.Caption != nil {
		exp[CatCaption] = 1
	}
	if len(in.Annotations) > 0 {
		exp[CatAnnotations] = len(in.Annotations)
	}
	if len(in.Photos) > 0 {
		exp[CatPhotos] = 1
	}
	if in.Voice != nil {
		exp[CatVoice] = 1
	}
	if len(in.Videos) > 0 {
		exp[CatVideos] = len(in.Videos)
	}
	if in.VideoNote != nil {
		exp[CatVideoNote] = 1
	}

	return exp
}
