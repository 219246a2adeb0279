package assembly_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-papers/internal/assembly"
	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/question"
)

// fakeServices records every call. Attach rejects a second attachment of the
// same question to the same paper, like the SQL store does.
type fakeServices struct {
	mu       sync.Mutex
	calls    []string
	attached map[[2]int64]bool
	nextID   int64

	createErr  error
	saveErr    error
	publishErr error
	failAttach map[int64]error

	inFlight    int32
	overlapped  atomic.Bool
	attachDelay time.Duration
}

func newFakes() *fakeServices {
	return &fakeServices{attached: map[[2]int64]bool{}, failAttach: map[int64]error{}, nextID: 100}
}

func (f *fakeServices) record(c string) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeServices) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeServices) Create(_ context.Context, fl paper.CreateFields) (int64, error) {
	f.record("create")
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 7, nil
}

func (f *fakeServices) Publish(_ context.Context, id int64) error {
	f.record(fmt.Sprintf("publish %d", id))
	return f.publishErr
}

func (f *fakeServices) BulkSave(_ context.Context, qs []question.Question, _ int64) ([]int64, error) {
	f.record(fmt.Sprintf("save %d", len(qs)))
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	ids := make([]int64, len(qs))
	for i := range qs {
		f.nextID++
		ids[i] = f.nextID
	}
	return ids, nil
}

func (f *fakeServices) Attach(_ context.Context, paperID, questionID int64, _ float64) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		f.overlapped.Store(true)
	}
	defer atomic.AddInt32(&f.inFlight, -1)
	if f.attachDelay > 0 {
		time.Sleep(f.attachDelay)
	}
	f.record(fmt.Sprintf("attach %d", questionID))
	if err := f.failAttach[questionID]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{paperID, questionID}
	if f.attached[k] {
		return paper.ErrDuplicate
	}
	f.attached[k] = true
	return nil
}

func snapshotOf(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Normalize(nil, question.Context{Index: i, Subject: "math", Grade: "grade3"})
	}
	return qs
}

var fields = paper.CreateFields{Title: "Unit test", Subject: "math", Grade: "grade3", CreatedBy: 1}

func TestNewPaper_AttachesSequentiallyInOrder(t *testing.T) {
	f := newFakes()
	f.attachDelay = 2 * time.Millisecond
	rec := &assembly.Recorder{}
	s := assembly.New(f, f, rec)

	run, err := s.NewPaper(context.Background(), snapshotOf(5), assembly.NewPaperRequest{Fields: fields, AttachAll: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"create", "save 5", "attach 101", "attach 102", "attach 103", "attach 104", "attach 105"}
	if got := f.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if f.overlapped.Load() {
		t.Fatalf("attach calls overlapped")
	}
	if run.Step != assembly.StepFinalized || run.SuccessCount != 5 || run.Total() != 5 || run.Completed() != 5 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.PublishAttempted {
		t.Fatalf("publish must not be attempted without auto publish")
	}

	var progress []int
	for _, e := range rec.Events() {
		if e.Kind == assembly.KindProgress {
			progress = append(progress, e.Index)
		}
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("progress = %v", progress)
	}
	wantSteps := []assembly.Step{assembly.StepCreatingOrSelectingPaper, assembly.StepSavingQuestions,
		assembly.StepAttachingQuestions, assembly.StepFinalized}
	if got := rec.Steps(); !reflect.DeepEqual(got, wantSteps) {
		t.Fatalf("steps = %v", got)
	}
	events := rec.Events()
	if last := events[len(events)-1]; last.Kind != assembly.KindCompleted || last.SuccessCount != 5 || last.Total != 5 {
		t.Fatalf("unexpected completion %+v", last)
	}
}

func TestNewPaper_ContinuesPastFailedAttach(t *testing.T) {
	f := newFakes()
	f.failAttach[103] = errors.New("boom")
	s := assembly.New(f, f, nil)

	run, err := s.NewPaper(context.Background(), snapshotOf(5), assembly.NewPaperRequest{Fields: fields, AttachAll: true})
	if err != nil {
		t.Fatal(err)
	}
	if run.SuccessCount != 4 || len(run.Results) != 5 {
		t.Fatalf("expected 4 of 5, got %d of %d", run.SuccessCount, len(run.Results))
	}
	if r := run.Results[2]; r.Succeeded || r.QuestionID != 103 || r.Message != "boom" {
		t.Fatalf("unexpected failed result %+v", r)
	}
	if !run.Results[3].Succeeded || !run.Results[4].Succeeded {
		t.Fatalf("items after the failure must still be attempted")
	}
	if run.Step != assembly.StepFinalized || run.Failure != nil {
		t.Fatalf("per-item failure must not fail the run: %+v", run)
	}
}

func TestNewPaper_EmptySnapshotIsRejected(t *testing.T) {
	f := newFakes()
	rec := &assembly.Recorder{}
	s := assembly.New(f, f, rec)

	run, err := s.NewPaper(context.Background(), nil, assembly.NewPaperRequest{Fields: fields, AttachAll: true})
	var ve *assembly.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if run.Step != assembly.StepAborted {
		t.Fatalf("expected aborted, got %s", run.Step)
	}
	if calls := f.Calls(); len(calls) != 0 {
		t.Fatalf("no remote call expected, got %v", calls)
	}
	for _, e := range rec.Events() {
		if e.Kind == assembly.KindCompleted {
			t.Fatalf("aborted run must not report completion")
		}
	}
}

func TestNewPaper_MissingFieldsAreRejected(t *testing.T) {
	f := newFakes()
	s := assembly.New(f, f, nil)

	_, err := s.NewPaper(context.Background(), snapshotOf(1), assembly.NewPaperRequest{Fields: paper.CreateFields{Title: "x"}})
	var ve *assembly.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 2 {
		t.Fatalf("expected two problems, got %v", err)
	}
	if len(f.Calls()) != 0 {
		t.Fatalf("no remote call expected")
	}
}

func TestNewPaper_WithoutAttachAllOnlyCreates(t *testing.T) {
	f := newFakes()
	s := assembly.New(f, f, nil)

	run, err := s.NewPaper(context.Background(), snapshotOf(3), assembly.NewPaperRequest{Fields: fields, AutoPublish: true})
	if err != nil {
		t.Fatal(err)
	}
	if calls := f.Calls(); !reflect.DeepEqual(calls, []string{"create"}) {
		t.Fatalf("expected exactly one create call, got %v", calls)
	}
	if run.Step != assembly.StepFinalized || run.TargetPaperID != 7 || run.Total() != 0 || run.PublishAttempted {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestNewPaper_CreateFailureFinalizes(t *testing.T) {
	f := newFakes()
	f.createErr = errors.New("service unavailable")
	s := assembly.New(f, f, nil)

	run, err := s.NewPaper(context.Background(), snapshotOf(2), assembly.NewPaperRequest{Fields: fields, AttachAll: true, AutoPublish: true})
	if err != nil {
		t.Fatalf("step failure must not be returned as error: %v", err)
	}
	if run.Step != assembly.StepFinalized || run.Failure == nil || run.Failure.Step != assembly.StepCreatingOrSelectingPaper {
		t.Fatalf("unexpected run %+v", run)
	}
	if !errors.Is(run.Failure, f.createErr) {
		t.Fatalf("failure should wrap the service error")
	}
	if calls := f.Calls(); len(calls) != 1 {
		t.Fatalf("expected only the create call, got %v", calls)
	}
}

func TestNewPaper_SaveFailureSkipsAttachAndPublish(t *testing.T) {
	f := newFakes()
	f.saveErr = errors.New("disk full")
	s := assembly.New(f, f, nil)

	run, _ := s.NewPaper(context.Background(), snapshotOf(2), assembly.NewPaperRequest{Fields: fields, AttachAll: true, AutoPublish: true})
	if run.Failure == nil || run.Failure.Step != assembly.StepSavingQuestions {
		t.Fatalf("expected save failure, got %+v", run.Failure)
	}
	if run.SuccessCount != 0 || run.PublishAttempted {
		t.Fatalf("unexpected run %+v", run)
	}
	if calls := f.Calls(); !reflect.DeepEqual(calls, []string{"create", "save 2"}) {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestNewPaper_AutoPublish(t *testing.T) {
	f := newFakes()
	s := assembly.New(f, f, nil)

	run, _ := s.NewPaper(context.Background(), snapshotOf(2), assembly.NewPaperRequest{Fields: fields, AttachAll: true, AutoPublish: true})
	if !run.PublishAttempted || !run.Published {
		t.Fatalf("expected publish, got %+v", run)
	}
	if calls := f.Calls(); calls[len(calls)-1] != "publish 7" {
		t.Fatalf("publish must come after the attach loop: %v", calls)
	}
}

func TestNewPaper_PublishFailureKeepsAttachments(t *testing.T) {
	f := newFakes()
	f.publishErr = paper.ErrEmptyPaper
	s := assembly.New(f, f, nil)

	run, _ := s.NewPaper(context.Background(), snapshotOf(2), assembly.NewPaperRequest{Fields: fields, AttachAll: true, AutoPublish: true})
	if !run.PublishAttempted || run.Published || run.PublishMessage == "" {
		t.Fatalf("expected failed publish to be reported, got %+v", run)
	}
	if run.SuccessCount != 2 || run.Failure != nil || run.Step != assembly.StepFinalized {
		t.Fatalf("publish failure must not change attachments: %+v", run)
	}
}

func TestExistingPaper(t *testing.T) {
	f := newFakes()
	rec := &assembly.Recorder{}
	s := assembly.New(f, f, rec)

	run, err := s.ExistingPaper(context.Background(), snapshotOf(3), assembly.ExistingPaperRequest{PaperID: 42, CreatedBy: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"save 3", "attach 101", "attach 102", "attach 103"}
	if calls := f.Calls(); !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v", calls)
	}
	if run.TargetPaperID != 42 || run.SuccessCount != 3 || run.PublishAttempted {
		t.Fatalf("unexpected run %+v", run)
	}
	if steps := rec.Steps(); steps[0] != assembly.StepCreatingOrSelectingPaper {
		t.Fatalf("expected selection step first, got %v", steps)
	}

	if _, err := s.ExistingPaper(context.Background(), snapshotOf(1), assembly.ExistingPaperRequest{}); err == nil {
		t.Fatalf("expected validation error without a paper id")
	}
}

func TestAttach_DuplicateIsRejectedAndCounted(t *testing.T) {
	f := newFakes()
	s := assembly.New(f, f, nil)

	if _, err := s.ExistingPaper(context.Background(), snapshotOf(2), assembly.ExistingPaperRequest{PaperID: 9}); err != nil {
		t.Fatal(err)
	}
	// re-attaching an already attached question leaves the paper unchanged
	if err := f.Attach(context.Background(), 9, 101, 10); !errors.Is(err, paper.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if len(f.attached) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(f.attached))
	}
}

func TestRunsAreIndependent(t *testing.T) {
	f := newFakes()
	s := assembly.New(f, f, nil)

	a, _ := s.ExistingPaper(context.Background(), snapshotOf(1), assembly.ExistingPaperRequest{PaperID: 1})
	b, _ := s.ExistingPaper(context.Background(), snapshotOf(2), assembly.ExistingPaperRequest{PaperID: 2})
	if a.ID == b.ID || a.Total() != 1 || b.Total() != 2 {
		t.Fatalf("runs share state: %+v %+v", a, b)
	}
}

func TestChannelReporterNeverBlocks(t *testing.T) {
	c := assembly.NewChannelReporter(2)
	s := assembly.New(newFakes(), newFakes(), c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.NewPaper(context.Background(), snapshotOf(5), assembly.NewPaperRequest{Fields: fields, AttachAll: true})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("saga blocked on a full reporter channel")
	}
	if c.Dropped() == 0 {
		t.Fatalf("expected dropped events with a tiny buffer")
	}
	c.Close()
	c.OnStepChanged(assembly.StepIdle, "after close")
	n := 0
	for range c.Events() {
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 buffered events, got %d", n)
	}
}
