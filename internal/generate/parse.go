package generate

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// Fallback is returned when the model's reply looks like JSON but does not
// decode.
func Fallback() []question.Draft {
	return []question.Draft{{
		"id":             "1",
		"type":           string(question.TypeChoice),
		"title":          "Sample question",
		"content":        "This is a sample question shown because generation failed.",
		"options":        []any{"A. Option 1", "B. Option 2", "C. Option 3", "D. Option 4"},
		"correct_answer": "A",
		"explanation":    "This is a sample explanation.",
	}}
}

// ParseDrafts extracts the "questions" array from a model reply. A reply
// that is a JSON object is decoded directly; otherwise the outermost {...}
// block is used. Replies without any JSON yield no drafts and undecodable
// JSON yields Fallback.
func ParseDrafts(content string) []question.Draft {
	content = strings.TrimSpace(content)
	raw := content
	if !strings.HasPrefix(content, "{") {
		raw = jsonBlock.FindString(content)
		if raw == "" {
			return []question.Draft{}
		}
	}

	var data struct {
		Questions []json.RawMessage `json:"questions"`
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&data); err != nil {
		return Fallback()
	}
	out := make([]question.Draft, 0, len(data.Questions))
	for _, q := range data.Questions {
		d := question.Draft{}
		qd := json.NewDecoder(bytes.NewReader(q))
		qd.UseNumber()
		if err := qd.Decode(&d); err != nil {
			// non-object entries become empty drafts and get defaults
			d = question.Draft{}
		}
		out = append(out, d)
	}
	return out
}
