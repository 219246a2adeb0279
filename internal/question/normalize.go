package question

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Alias lists are checked in order; the first non-empty value wins.
var (
	answerKeys      = []string{"correct_answer", "correctAnswer", "reference_answer", "referenceAnswer", "final_answer", "finalAnswer", "answer"}
	explanationKeys = []string{"explanation", "solution_steps", "solutionSteps"}
)

// Normalize converts a draft into a canonical Question. It never fails:
// absent or malformed fields fall back to defaults derived from c.
func Normalize(d Draft, c Context) Question {
	q := Question{
		ID:            firstString(d, "id"),
		Title:         firstString(d, "title"),
		Content:       firstString(d, "content"),
		Options:       stringSlice(d["options"]),
		CorrectAnswer: firstString(d, answerKeys...),
		Explanation:   firstString(d, explanationKeys...),
		Subject:       firstString(d, "subject"),
		Grade:         firstString(d, "grade"),
	}

	if q.ID == "" {
		prefix := c.IDPrefix
		if prefix == "" {
			prefix = "q"
		}
		q.ID = fmt.Sprintf("%s_%d", prefix, c.Index+1)
	}

	if t, ok := ParseType(firstString(d, "type")); ok {
		q.Type = t
	} else if c.RequestedType.Valid() {
		q.Type = c.RequestedType
	} else {
		q.Type = TypeChoice
	}

	if q.Title == "" {
		q.Title = fmt.Sprintf(defaultTitleFormat, c.Index+1)
	}
	if q.Content == "" {
		q.Content = DefaultContent
	}
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = NoAnswer
	}
	if q.Explanation == "" {
		q.Explanation = NoExplanation
	}
	if q.Subject == "" {
		q.Subject = strings.TrimSpace(c.Subject)
	}
	if q.Grade == "" {
		q.Grade = strings.TrimSpace(c.Grade)
	}

	switch n, ok := intValue(d["difficulty"]); {
	case ok && validDifficulty(n):
		q.Difficulty = n
	case validDifficulty(c.Difficulty):
		q.Difficulty = c.Difficulty
	default:
		q.Difficulty = DefaultDifficulty
	}
	return q
}

// NormalizeAll normalizes drafts in order, using each position as the index.
func NormalizeAll(drafts []Draft, c Context) []Question {
	out := make([]Question, 0, len(drafts))
	for i, d := range drafts {
		c.Index = i
		out = append(out, Normalize(d, c))
	}
	return out
}

func firstString(d Draft, keys ...string) string {
	for _, k := range keys {
		if s, ok := stringValue(d[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return clean(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// stringSlice keeps option order and text but drops blank entries: a blank
// option renders as an empty span that extraction cannot tell apart from no
// option, so keeping it would break the view round trip.
func stringSlice(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			if s = clean(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, e := range x {
			if s, ok := stringValue(e); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// clean trims the value and folds line endings so that text survives a
// render/extract cycle through the HTML view unchanged.
func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

func intValue(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}
