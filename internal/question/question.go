package question

import "strings"

type Type string

const (
	TypeChoice      Type = "choice"
	TypeFill        Type = "fill"
	TypeEssay       Type = "essay"
	TypeCalculation Type = "calculation"
)

// Placeholder values used when a draft omits a field.
const (
	DefaultContent     = "Question content"
	NoAnswer           = "No answer"
	NoExplanation      = "No explanation"
	DefaultDifficulty  = 3
	defaultTitleFormat = "Question %d"
)

var knownTypes = map[Type]struct{}{
	TypeChoice:      {},
	TypeFill:        {},
	TypeEssay:       {},
	TypeCalculation: {},
}

// ParseType accepts the canonical type names, case-insensitively.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", false
	}
	return t, true
}

func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Draft is an unvalidated question object as produced by generation.
type Draft map[string]any

// Question is the canonical, fully populated record used downstream of
// normalization.
type Question struct {
	ID            string   `json:"id"`
	Type          Type     `json:"type"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Subject       string   `json:"subject"`
	Grade         string   `json:"grade"`
	Difficulty    int      `json:"difficulty"` // 1-5
}

// Context carries the generation request defaults for Normalize.
type Context struct {
	RequestedType Type
	Subject       string
	Grade         string
	Difficulty    int
	Index         int
	IDPrefix      string // synthetic ids become "<IDPrefix>_<Index+1>"
}

func validDifficulty(d int) bool { return d >= 1 && d <= 5 }
