package ingest

import "storygraph/internal/graph"

// Verify recomputes the aggregate's actual cardinalities with the same
// rules the recorder used and compares category by category. It exists
// to catch writes where the store reported nominal success but the
// conditional query assembly silently dropped a node or relationship.
func Verify(expected Expectation, agg graph.EntryAggregate) error {
	actual := actualCounts(agg)

	var diffs []CategoryDiff
	for _, cat := range categoryOrder {
		want, ok := expected[cat]
		if !ok {
			continue
		}
		if got := actual[cat]; got != want {
			diffs = append(diffs, CategoryDiff{Category: cat, Expected: want, Actual: got})
		}
	}

	if len(diffs) > 0 {
		return &MismatchError{Diffs: diffs}
	}
	return nil
}

func actualCounts(agg graph.EntryAggregate) map[string]int {
	return map[string]int{
		CatEntry:        presence(agg.Entry != nil),
		CatParticipant:  presence(agg.Participant != nil),
		CatConversation: presence(agg.Conversation != nil),
		CatText:         presence(agg.Text != nil),
		CatCaption:      presence(agg.Caption != nil),
		CatAnnotations:  len(agg.Annotations),
		CatPhotos:       len(agg.Photos),
		CatVoice:        presence(agg.Voice != nil),
		CatVideos:       len(agg.Videos),
		CatVideoNote:    presence(agg.VideoNote != nil),
	}
}

func presence(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
