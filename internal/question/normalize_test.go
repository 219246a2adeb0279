package question_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

func TestNormalize_EmptyDraftIsFullyPopulated(t *testing.T) {
	q := question.Normalize(question.Draft{}, question.Context{})

	if q.ID == "" || q.Title == "" || q.Content == "" {
		t.Fatalf("expected id/title/content defaults, got %+v", q)
	}
	if q.Type != question.TypeChoice {
		t.Fatalf("expected fallback type choice, got %q", q.Type)
	}
	if q.Options == nil || len(q.Options) != 0 {
		t.Fatalf("expected empty non-nil options, got %#v", q.Options)
	}
	if q.CorrectAnswer != question.NoAnswer || q.Explanation != question.NoExplanation {
		t.Fatalf("expected sentinels, got answer=%q explanation=%q", q.CorrectAnswer, q.Explanation)
	}
	if q.Difficulty != question.DefaultDifficulty {
		t.Fatalf("expected difficulty 3, got %d", q.Difficulty)
	}
}

func TestNormalize_NilDraft(t *testing.T) {
	q := question.Normalize(nil, question.Context{Index: 4})
	if q.Title != "Question 5" {
		t.Fatalf("expected placeholder title, got %q", q.Title)
	}
}

func TestNormalize_AnswerAliasPriority(t *testing.T) {
	cases := []struct {
		name  string
		draft question.Draft
		want  string
	}{
		{"correct over reference", question.Draft{"correct_answer": "A", "reference_answer": "B", "answer": "C"}, "A"},
		{"reference over answer", question.Draft{"reference_answer": "ref", "answer": "plain"}, "ref"},
		{"final over answer", question.Draft{"final_answer": "42", "answer": "plain"}, "42"},
		{"reference over final", question.Draft{"reference_answer": "ref", "final_answer": "42"}, "ref"},
		{"empty alias skipped", question.Draft{"correct_answer": "  ", "answer": "x"}, "x"},
		{"numeric answer", question.Draft{"final_answer": float64(12.5)}, "12.5"},
		{"camel case", question.Draft{"correctAnswer": "B"}, "B"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := question.Normalize(tc.draft, question.Context{})
			if q.CorrectAnswer != tc.want {
				t.Fatalf("want %q, got %q", tc.want, q.CorrectAnswer)
			}
		})
	}
}

func TestNormalize_ExplanationAlias(t *testing.T) {
	q := question.Normalize(question.Draft{"solution_steps": "step 1"}, question.Context{})
	if q.Explanation != "step 1" {
		t.Fatalf("expected solution_steps fallback, got %q", q.Explanation)
	}
	q = question.Normalize(question.Draft{"explanation": "why", "solution_steps": "step 1"}, question.Context{})
	if q.Explanation != "why" {
		t.Fatalf("expected explanation to win, got %q", q.Explanation)
	}
}

func TestNormalize_ContextDefaults(t *testing.T) {
	c := question.Context{RequestedType: question.TypeEssay, Subject: "physics", Grade: "grade8", Difficulty: 4, Index: 1, IDPrefix: "batch"}
	q := question.Normalize(question.Draft{"type": "unknown-kind", "difficulty": 9}, c)

	if q.ID != "batch_2" {
		t.Fatalf("expected synthetic id batch_2, got %q", q.ID)
	}
	if q.Type != question.TypeEssay {
		t.Fatalf("expected requested type, got %q", q.Type)
	}
	if q.Subject != "physics" || q.Grade != "grade8" {
		t.Fatalf("expected subject/grade from context, got %q/%q", q.Subject, q.Grade)
	}
	if q.Difficulty != 4 {
		t.Fatalf("out of range difficulty should fall back to context, got %d", q.Difficulty)
	}
}

func TestNormalize_DraftFieldsWin(t *testing.T) {
	var d question.Draft
	raw := `{"id": 7, "type": "Fill", "title": " T ", "content": "C", "options": ["x", 2, ""],
		"subject": "chinese", "grade": "grade1", "difficulty": "5"}`
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatal(err)
	}
	q := question.Normalize(d, question.Context{RequestedType: question.TypeChoice, Subject: "math", Grade: "grade3", Difficulty: 2})

	want := question.Question{
		ID: "7", Type: question.TypeFill, Title: "T", Content: "C",
		Options:       []string{"x", "2"},
		CorrectAnswer: question.NoAnswer, Explanation: question.NoExplanation,
		Subject: "chinese", Grade: "grade1", Difficulty: 5,
	}
	if !reflect.DeepEqual(q, want) {
		t.Fatalf("unexpected question:\n got %+v\nwant %+v", q, want)
	}
}

func TestNormalize_OptionsKeptForNonChoice(t *testing.T) {
	q := question.Normalize(question.Draft{"type": "essay", "options": []string{"a", "b"}}, question.Context{})
	if len(q.Options) != 2 {
		t.Fatalf("options must pass through for any type, got %v", q.Options)
	}
}

func TestNormalize_BlankOptionsDropped(t *testing.T) {
	q := question.Normalize(question.Draft{"options": []any{"  first ", "", "   ", 2, nil, "last"}}, question.Context{})
	if want := []string{"first", "2", "last"}; !reflect.DeepEqual(q.Options, want) {
		t.Fatalf("got %q, want %q", q.Options, want)
	}
	q = question.Normalize(question.Draft{"options": []string{"", " "}}, question.Context{})
	if q.Options == nil || len(q.Options) != 0 {
		t.Fatalf("all-blank options must normalize to an empty slice, got %#v", q.Options)
	}
}

func TestNormalizeAll_Scenario(t *testing.T) {
	c := question.Context{RequestedType: question.TypeChoice, Subject: "math", Grade: "grade3", Difficulty: 2}
	qs := question.NormalizeAll([]question.Draft{{}, {"answer": "x"}}, c)

	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Title != "Question 1" || qs[0].CorrectAnswer != question.NoAnswer {
		t.Fatalf("first question: %+v", qs[0])
	}
	if qs[1].CorrectAnswer != "x" || qs[1].Title != "Question 2" {
		t.Fatalf("second question: %+v", qs[1])
	}
	for _, q := range qs {
		if q.Type != question.TypeChoice || q.Subject != "math" || q.Grade != "grade3" || q.Difficulty != 2 {
			t.Fatalf("context defaults not applied: %+v", q)
		}
	}
	if qs[0].ID == qs[1].ID {
		t.Fatalf("expected distinct ids, got %q twice", qs[0].ID)
	}
}

func TestParseType(t *testing.T) {
	if ty, ok := question.ParseType(" CALCULATION "); !ok || ty != question.TypeCalculation {
		t.Fatalf("expected calculation, got %q %v", ty, ok)
	}
	if _, ok := question.ParseType("essayish"); ok {
		t.Fatalf("unexpected parse success")
	}
}
