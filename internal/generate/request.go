// Package generate produces question drafts from a chat-completion model.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

const MaxCount = 20

var ErrInvalidRequest = errors.New("invalid generation request")

type Request struct {
	Subject            string `json:"subject"`
	Grade              string `json:"grade"`
	QuestionType       string `json:"question_type"`
	Difficulty         int    `json:"difficulty"`
	Count              int    `json:"question_count"`
	KnowledgePoints    string `json:"knowledge_points"`
	CustomRequirements string `json:"custom_requirements"`
}

// Generator returns raw drafts; callers normalize them.
type Generator interface {
	Generate(ctx context.Context, r Request) ([]question.Draft, error)
}

// Validate checks required fields and fills defaults in place.
func (r *Request) Validate() error {
	r.Subject = strings.TrimSpace(r.Subject)
	r.Grade = strings.TrimSpace(r.Grade)
	r.QuestionType = strings.TrimSpace(r.QuestionType)
	r.KnowledgePoints = strings.TrimSpace(r.KnowledgePoints)
	r.CustomRequirements = strings.TrimSpace(r.CustomRequirements)

	var missing []string
	if r.Subject == "" {
		missing = append(missing, "subject")
	}
	if r.Grade == "" {
		missing = append(missing, "grade")
	}
	if r.QuestionType == "" {
		missing = append(missing, "question_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	t, ok := question.ParseType(r.QuestionType)
	if !ok {
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidRequest, r.QuestionType)
	}
	r.QuestionType = string(t)
	if r.Count < 1 || r.Count > MaxCount {
		return fmt.Errorf("%w: question count must be between 1 and %d", ErrInvalidRequest, MaxCount)
	}
	if r.Difficulty < 1 || r.Difficulty > 5 {
		r.Difficulty = question.DefaultDifficulty
	}
	return nil
}

// Context is the normalization context for drafts generated from r.
func (r Request) Context() question.Context {
	t, _ := question.ParseType(r.QuestionType)
	return question.Context{
		RequestedType: t,
		Subject:       r.Subject,
		Grade:         r.Grade,
		Difficulty:    r.Difficulty,
	}
}
