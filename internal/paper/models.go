package paper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

const (
	DefaultTimeLimit  = 60 // minutes
	DefaultTotalScore = 100
	DefaultItemScore  = 10.0
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalid    = errors.New("invalid input")
	ErrDuplicate  = errors.New("question already attached to paper")
	ErrEmptyPaper = errors.New("paper has no questions")
)

type Paper struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Subject     string     `json:"subject"`
	Grade       string     `json:"grade"`
	TimeLimit   int        `json:"time_limit"`
	TotalScore  int        `json:"total_score"`
	Status      Status     `json:"status"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   int64      `json:"created_at"`
	PublishedAt *int64     `json:"published_at,omitempty"`
	Questions   []Attached `json:"questions,omitempty"`
}

// Summary is a list row: the paper plus its attached question count.
type Summary struct {
	Paper
	QuestionCount int `json:"question_count"`
}

// Stored is a question persisted by the question service.
type Stored struct {
	ID            int64         `json:"id"`
	Type          question.Type `json:"type"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Options       []string      `json:"options"`
	CorrectAnswer string        `json:"correct_answer"`
	Explanation   string        `json:"explanation"`
	Subject       string        `json:"subject"`
	Grade         string        `json:"grade"`
	Difficulty    int           `json:"difficulty"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     int64         `json:"created_at"`
}

// Attached is a stored question as it appears on a paper.
type Attached struct {
	Stored
	Score float64 `json:"score"`
	Order int     `json:"question_order"`
}

// CreateFields is the input for creating a paper.
type CreateFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Grade       string `json:"grade"`
	TimeLimit   int    `json:"time_limit"`
	TotalScore  int    `json:"total_score"`
	CreatedBy   int64  `json:"created_by"`
}

// Missing lists the required fields that are blank.
func (f CreateFields) Missing() []string {
	var out []string
	if strings.TrimSpace(f.Title) == "" {
		out = append(out, "title")
	}
	if strings.TrimSpace(f.Subject) == "" {
		out = append(out, "subject")
	}
	if strings.TrimSpace(f.Grade) == "" {
		out = append(out, "grade")
	}
	return out
}

func (f CreateFields) Validate() error {
	if m := f.Missing(); len(m) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalid, strings.Join(m, ", "))
	}
	return nil
}

// WithDefaults fills time limit, total score and author.
func (f CreateFields) WithDefaults() CreateFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Grade = strings.TrimSpace(f.Grade)
	if f.TimeLimit <= 0 {
		f.TimeLimit = DefaultTimeLimit
	}
	if f.TotalScore <= 0 {
		f.TotalScore = DefaultTotalScore
	}
	if f.CreatedBy <= 0 {
		f.CreatedBy = 1
	}
	return f
}

// Overview aggregates an author's papers and questions.
type Overview struct {
	Papers struct {
		Total     int `json:"total"`
		Draft     int `json:"draft"`
		Published int `json:"published"`
		Closed    int `json:"closed"`
	} `json:"papers"`
	Questions struct {
		Attached int                   `json:"attached"`
		Authored int                   `json:"authored"`
		ByType   map[question.Type]int `json:"by_type"`
	} `json:"questions"`
}
