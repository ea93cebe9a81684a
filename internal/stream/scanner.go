package stream

import "strings"

// TagPair is one recognized structured block delimiter.
type TagPair struct {
	Open  string
	Close string
}

var (
	TagPlanUpdate         = TagPair{Open: "<plan_update>", Close: "</plan_update>"}
	TagReplaceDocument    = TagPair{Open: "<replace_document>", Close: "</replace_document>"}
	TagEditDocument       = TagPair{Open: "<edit_document>", Close: "</edit_document>"}
	TagOpenQuestions      = TagPair{Open: "<open_questions>", Close: "</open_questions>"}
	TagSuggestedResponses = TagPair{Open: "<suggested_responses>", Close: "</suggested_responses>"}
)

// blockTags in priority order; when two openings share a position the
// earliest index still wins, so the order only matters for ties, which
// cannot happen with distinct literal tags.
var blockTags = []TagPair{
	TagPlanUpdate,
	TagReplaceDocument,
	TagEditDocument,
	TagOpenQuestions,
	TagSuggestedResponses,
}

var maxOpenTagLen = func() int {
	max := 0
	for _, t := range blockTags {
		if len(t.Open) > max {
			max = len(t.Open)
		}
	}
	return max
}()

// FindBlockStart returns the index of the earliest complete opening tag
// in text, or false when no recognized opening tag is present.
func FindBlockStart(text string) (int, bool) {
	best := -1
	for _, t := range blockTags {
		idx := strings.Index(text, t.Open)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// SafeStreamEnd returns the largest boundary n such that text[:n] cannot
// end inside a recognized opening tag. Text past the boundary is held
// back until more input arrives; a boundary once declared safe stays
// safe no matter what is appended.
func SafeStreamEnd(text string) int {
	n := len(text)
	start := n - maxOpenTagLen
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		if text[i] != '<' {
			continue
		}
		rest := text[i:]
		for _, t := range blockTags {
			if len(rest) < len(t.Open) {
				if strings.HasPrefix(t.Open, rest) {
					return i
				}
			} else if strings.HasPrefix(rest, t.Open) {
				return i
			}
		}
	}
	return n
}
