package workspace_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mind-engage/mindengage-papers/internal/question"
	"github.com/mind-engage/mindengage-papers/internal/workspace"
)

var mathCtx = question.Context{RequestedType: question.TypeChoice, Subject: "math", Grade: "grade3", Difficulty: 2}

func sampleDrafts() []question.Draft {
	return []question.Draft{
		{
			"id": "q1", "type": "choice", "title": "Add <small> numbers & \"quotes\"",
			"content": "What is 2 + 2?\nPick one.",
			"options": []any{"A. 3", "4", "5", "6"}, "correct_answer": "B",
			"explanation": "2 + 2 = 4",
		},
		{"type": "fill", "content": "The capital of France is ______.", "answer": "Paris"},
		{},
		{"type": "calculation", "final_answer": "12", "solution_steps": "3 * 4", "difficulty": 5, "subject": "physics"},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := workspace.New()
	loaded := s.Load(sampleDrafts(), mathCtx)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !reflect.DeepEqual(loaded, snap) {
		t.Fatalf("round trip mismatch:\nloaded   %+v\nsnapshot %+v", loaded, snap)
	}
	if snap[0].Options[0] != "A. 3" {
		t.Fatalf("option text must keep its own prefix, got %q", snap[0].Options[0])
	}
}

func TestStore_RoundTripThroughRenderedBytes(t *testing.T) {
	s := workspace.New()
	loaded := s.Load(sampleDrafts(), mathCtx)

	other, err := workspace.FromView(s.View())
	if err != nil {
		t.Fatalf("from view: %v", err)
	}
	snap, err := other.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, snap) {
		t.Fatalf("round trip through bytes mismatch")
	}
}

func TestStore_LoadAssignsUniqueIDs(t *testing.T) {
	s := workspace.New()
	qs := s.Load([]question.Draft{{"id": 1}, {"id": 1}, {}, {}}, mathCtx)

	seen := map[string]bool{}
	for _, q := range qs {
		if seen[q.ID] {
			t.Fatalf("duplicate id %q in %+v", q.ID, qs)
		}
		seen[q.ID] = true
	}
	if qs[0].ID != "1" || qs[1].ID != "1-2" {
		t.Fatalf("expected sequence suffix on collision, got %q and %q", qs[0].ID, qs[1].ID)
	}
}

func TestStore_LoadReplacesContents(t *testing.T) {
	s := workspace.New()
	s.Load(sampleDrafts(), mathCtx)
	s.Load([]question.Draft{{"title": "only"}}, mathCtx)

	snap, _ := s.Snapshot()
	if len(snap) != 1 || snap[0].Title != "only" {
		t.Fatalf("expected reload to replace contents, got %+v", snap)
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	s := workspace.New()
	s.Load(sampleDrafts(), mathCtx)

	removed, err := s.Remove("q1")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	removed, err = s.Remove("q1")
	if err != nil || removed {
		t.Fatalf("second removal should be a no-op, got %v %v", removed, err)
	}
	if _, err := s.Remove("missing"); err != nil {
		t.Fatalf("unknown id must not error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 questions left, got %d", s.Len())
	}
}

func TestStore_EmptyAfterRemovingAll(t *testing.T) {
	s := workspace.New()
	qs := s.Load([]question.Draft{{}, {}}, mathCtx)
	for _, q := range qs {
		if _, err := s.Remove(q.ID); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %d", len(snap))
	}
	if len(s.View()) != 0 {
		t.Fatalf("expected empty view")
	}
}

func TestStore_AddAppendsWithUniqueID(t *testing.T) {
	s := workspace.New()
	s.Load([]question.Draft{{"id": "x"}}, mathCtx)

	q, err := s.Add(question.Draft{"id": "x", "answer": "y"}, mathCtx)
	if err != nil {
		t.Fatal(err)
	}
	if q.ID != "x-2" || q.Title != "Question 2" {
		t.Fatalf("unexpected added question %+v", q)
	}
	snap, _ := s.Snapshot()
	if len(snap) != 2 || snap[1].CorrectAnswer != "y" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStore_SnapshotReflectsEditsToView(t *testing.T) {
	s := workspace.New()
	s.Load([]question.Draft{{"id": "q1", "title": "Old title", "answer": "old"}}, mathCtx)

	edited := bytes.Replace(s.View(), []byte("Old title"), []byte("New title"), 1)
	edited = bytes.Replace(edited, []byte(">old<"), []byte(">new<"), 1)
	if err := s.Adopt(edited); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	snap, _ := s.Snapshot()
	if snap[0].Title != "New title" || snap[0].CorrectAnswer != "new" {
		t.Fatalf("edits not reflected: %+v", snap[0])
	}
}

func TestStore_AdoptHandwrittenCard(t *testing.T) {
	view := `<div class="question-card" data-question-id="h1" data-difficulty="9">
		<h4>Hand written</h4><p>Body</p>
		<div class="question-options"><div class="option-item">A. first</div><div class="option-item">B. second</div></div>
		<div class="question-answer"><strong>Answer:</strong> B</div>
	</div>`
	s, err := workspace.FromView([]byte(view))
	if err != nil {
		t.Fatal(err)
	}
	snap, _ := s.Snapshot()
	q := snap[0]
	if q.ID != "h1" || q.Title != "Hand written" || q.Content != "Body" {
		t.Fatalf("unexpected fields %+v", q)
	}
	if !reflect.DeepEqual(q.Options, []string{"first", "second"}) {
		t.Fatalf("unexpected options %v", q.Options)
	}
	if q.CorrectAnswer != "B" || q.Explanation != question.NoExplanation {
		t.Fatalf("unexpected answer/explanation %q/%q", q.CorrectAnswer, q.Explanation)
	}
	if q.Type != question.TypeChoice || q.Difficulty != question.DefaultDifficulty {
		t.Fatalf("expected defaults for type/difficulty, got %q/%d", q.Type, q.Difficulty)
	}
}

func TestStore_AdoptRejectsDuplicateIDs(t *testing.T) {
	card := `<div class="question-card" data-question-id="dup"><h4>t</h4></div>`
	err := workspace.New().Adopt([]byte(card + card))
	if !errors.Is(err, workspace.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestStore_ResetClears(t *testing.T) {
	s := workspace.New()
	s.Load(sampleDrafts(), mathCtx)
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after reset")
	}
}

func TestRender_EscapesMarkup(t *testing.T) {
	view, err := workspace.Render([]question.Question{{ID: "1", Title: "<script>x</script>", Options: []string{}}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(view), "<script>") {
		t.Fatalf("markup not escaped: %s", view)
	}
}

func TestViews_OpenSave(t *testing.T) {
	ctx := context.Background()
	views := workspace.NewMemoryViews()

	s, err := workspace.Open(ctx, views, "teacher-1")
	if err != nil || s.Len() != 0 {
		t.Fatalf("expected empty workspace, got %v %v", s, err)
	}
	s.Load(sampleDrafts(), mathCtx)
	if err := workspace.Save(ctx, views, "teacher-1", s); err != nil {
		t.Fatal(err)
	}

	again, err := workspace.Open(ctx, views, "teacher-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Len() != 4 {
		t.Fatalf("expected 4 questions after reopen, got %d", again.Len())
	}

	again.Reset()
	if err := workspace.Save(ctx, views, "teacher-1", again); err != nil {
		t.Fatal(err)
	}
	if v, _ := views.Get(ctx, "teacher-1"); v != nil {
		t.Fatalf("expected empty workspace to be deleted")
	}
}
