package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlanPhase is one phase of an idea development plan.
type PlanPhase struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Status string   `json:"status"` // "pending" | "active" | "done"
	Tasks  []string `json:"tasks,omitempty"`
}

// PlanUpdate is the parsed payload of a plan_update block.
type PlanUpdate struct {
	Phases []PlanPhase `json:"phases"`
}

// OpenQuestion is one question the model wants answered before it can
// continue refining the idea.
type OpenQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// DocumentEdit is one structural edit against the working document.
type DocumentEdit struct {
	Op      string `json:"op"` // "replace_section" | "insert_after" | "delete_section" | "append"
	Heading string `json:"heading,omitempty"`
	Content string `json:"content,omitempty"`
}

// extractRegion removes the first complete pair-delimited region from
// text. An opening tag without its closing tag leaves text untouched.
func extractRegion(text string, pair TagPair) (inner, remaining string, found bool) {
	start := strings.Index(text, pair.Open)
	if start < 0 {
		return "", text, false
	}
	rest := text[start+len(pair.Open):]
	end := strings.Index(rest, pair.Close)
	if end < 0 {
		return "", text, false
	}
	return rest[:end], text[:start] + rest[end+len(pair.Close):], true
}

// ExtractPlanUpdate pulls the first plan_update block out of text. A
// malformed payload fails open: nil plan, original text preserved, and
// the parse error surfaced for logging.
func ExtractPlanUpdate(text string) (*PlanUpdate, string, error) {
	inner, remaining, found := extractRegion(text, TagPlanUpdate)
	if !found {
		return nil, text, nil
	}
	var plan PlanUpdate
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &plan); err != nil {
		return nil, text, fmt.Errorf("parse plan_update: %w", err)
	}
	return &plan, remaining, nil
}

// ExtractDocumentReplacement pulls a replace_document block. The inner
// markdown is taken verbatim apart from outer newline trimming.
func ExtractDocumentReplacement(text string) (string, string, bool) {
	inner, remaining, found := extractRegion(text, TagReplaceDocument)
	if !found {
		return "", text, false
	}
	return strings.Trim(inner, "\r\n"), remaining, true
}

// ExtractDocumentEdits pulls an edit_document block holding a JSON list
// of structural edits. Malformed JSON fails open like plan updates.
func ExtractDocumentEdits(text string) ([]DocumentEdit, string, error) {
	inner, remaining, found := extractRegion(text, TagEditDocument)
	if !found {
		return nil, text, nil
	}
	var edits []DocumentEdit
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &edits); err != nil {
		return nil, text, fmt.Errorf("parse edit_document: %w", err)
	}
	return edits, remaining, nil
}

// ExtractOpenQuestions pulls an open_questions block holding a JSON list
// of questions.
func ExtractOpenQuestions(text string) ([]OpenQuestion, string, error) {
	inner, remaining, found := extractRegion(text, TagOpenQuestions)
	if !found {
		return nil, text, nil
	}
	var questions []OpenQuestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &questions); err != nil {
		return nil, text, fmt.Errorf("parse open_questions: %w", err)
	}
	return questions, remaining, nil
}

// ExtractSuggestedResponses pulls a suggested_responses block holding a
// JSON string array of quick replies.
func ExtractSuggestedResponses(text string) ([]string, string, error) {
	inner, remaining, found := extractRegion(text, TagSuggestedResponses)
	if !found {
		return nil, text, nil
	}
	var responses []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &responses); err != nil {
		return nil, text, fmt.Errorf("parse suggested_responses: %w", err)
	}
	return responses, remaining, nil
}
