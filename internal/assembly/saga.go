// Package assembly turns a workspace snapshot into a paper: create or select
// the paper, bulk-save the questions, attach them one by one and optionally
// publish. Every run reaches a terminal step and reports progress as it goes.
package assembly

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/question"
)

type PaperService interface {
	Create(ctx context.Context, f paper.CreateFields) (int64, error)
	Publish(ctx context.Context, paperID int64) error
}

type QuestionService interface {
	BulkSave(ctx context.Context, qs []question.Question, createdBy int64) ([]int64, error)
	Attach(ctx context.Context, paperID, questionID int64, score float64) error
}

type Step string

const (
	StepIdle                     Step = "idle"
	StepCreatingOrSelectingPaper Step = "creating_or_selecting_paper"
	StepSavingQuestions          Step = "saving_questions"
	StepAttachingQuestions       Step = "attaching_questions"
	StepPublishing               Step = "publishing"
	StepFinalized                Step = "finalized"
	StepAborted                  Step = "aborted"
)

type Mode string

const (
	ModeNewPaper      Mode = "new_paper"
	ModeExistingPaper Mode = "existing_paper"
)

type AttachmentResult struct {
	QuestionID int64  `json:"question_id"`
	Succeeded  bool   `json:"succeeded"`
	Message    string `json:"message,omitempty"`
}

// SagaRun is the state of one assembly run. Each invocation owns its own
// run; nothing is shared between runs.
type SagaRun struct {
	ID               string             `json:"id"`
	Mode             Mode               `json:"mode"`
	Step             Step               `json:"step"`
	TargetPaperID    int64              `json:"target_paper_id,omitempty"`
	SavedQuestionIDs []int64            `json:"saved_question_ids"`
	Results          []AttachmentResult `json:"results"`
	SuccessCount     int                `json:"success_count"`
	AutoPublish      bool               `json:"auto_publish"`
	PublishAttempted bool               `json:"publish_attempted"`
	Published        bool               `json:"published"`
	PublishMessage   string             `json:"publish_message,omitempty"`
	Failure          *StepFailure       `json:"failure,omitempty"`
}

// Completed is the number of attach attempts made so far.
func (r *SagaRun) Completed() int { return len(r.Results) }

// Total is the number of questions to attach.
func (r *SagaRun) Total() int { return len(r.SavedQuestionIDs) }

type NewPaperRequest struct {
	Fields      paper.CreateFields `json:"paper"`
	AttachAll   bool               `json:"attach_all"`
	AutoPublish bool               `json:"auto_publish"`
}

type ExistingPaperRequest struct {
	PaperID   int64 `json:"paper_id"`
	CreatedBy int64 `json:"created_by"`
}

type Saga struct {
	Papers    PaperService
	Questions QuestionService
	Reporter  Reporter
	// Score is the weight given to each attached question.
	Score float64
}

func New(papers PaperService, questions QuestionService, r Reporter) *Saga {
	return &Saga{Papers: papers, Questions: questions, Reporter: r, Score: paper.DefaultItemScore}
}

// NewPaper creates a paper from req.Fields and, when req.AttachAll is set,
// saves and attaches every question in snapshot. The snapshot is a copy
// taken by the caller; later workspace edits do not affect the run.
//
// The returned error is non-nil only for validation failures, in which case
// the run is StepAborted and no service was called.
func (s *Saga) NewPaper(ctx context.Context, snapshot []question.Question, req NewPaperRequest) (*SagaRun, error) {
	run := s.start(ModeNewPaper)
	run.AutoPublish = req.AutoPublish

	var problems []string
	if len(snapshot) == 0 {
		problems = append(problems, "no questions to add")
	}
	for _, f := range req.Fields.Missing() {
		problems = append(problems, "missing "+f)
	}
	if len(problems) > 0 {
		return s.abort(run, &ValidationError{Problems: problems})
	}

	s.step(run, StepCreatingOrSelectingPaper, "creating paper "+req.Fields.Title)
	id, err := s.Papers.Create(ctx, req.Fields)
	if err != nil {
		run.Failure = &StepFailure{Step: StepCreatingOrSelectingPaper, Err: err}
		return s.finalize(run), nil
	}
	run.TargetPaperID = id

	if !req.AttachAll {
		return s.finalize(run), nil
	}
	if !s.saveAndAttach(ctx, run, snapshot, req.Fields.CreatedBy) {
		return s.finalize(run), nil
	}
	if req.AutoPublish {
		s.publish(ctx, run)
	}
	return s.finalize(run), nil
}

// ExistingPaper saves snapshot and attaches it to an existing paper. It
// never publishes.
func (s *Saga) ExistingPaper(ctx context.Context, snapshot []question.Question, req ExistingPaperRequest) (*SagaRun, error) {
	run := s.start(ModeExistingPaper)

	var problems []string
	if len(snapshot) == 0 {
		problems = append(problems, "no questions to add")
	}
	if req.PaperID <= 0 {
		problems = append(problems, "no paper selected")
	}
	if len(problems) > 0 {
		return s.abort(run, &ValidationError{Problems: problems})
	}

	run.TargetPaperID = req.PaperID
	s.step(run, StepCreatingOrSelectingPaper, fmt.Sprintf("using paper %d", req.PaperID))
	s.saveAndAttach(ctx, run, snapshot, req.CreatedBy)
	return s.finalize(run), nil
}

// saveAndAttach reports false when the bulk save failed.
func (s *Saga) saveAndAttach(ctx context.Context, run *SagaRun, snapshot []question.Question, createdBy int64) bool {
	s.step(run, StepSavingQuestions, fmt.Sprintf("saving %d questions", len(snapshot)))
	ids, err := s.Questions.BulkSave(ctx, snapshot, createdBy)
	if err != nil {
		run.Failure = &StepFailure{Step: StepSavingQuestions, Err: err}
		return false
	}
	run.SavedQuestionIDs = append([]int64(nil), ids...)

	total := len(run.SavedQuestionIDs)
	s.step(run, StepAttachingQuestions, fmt.Sprintf("attaching %d questions", total))
	for i, qid := range run.SavedQuestionIDs {
		res := AttachmentResult{QuestionID: qid, Succeeded: true}
		if err := s.Questions.Attach(ctx, run.TargetPaperID, qid, s.score()); err != nil {
			res.Succeeded = false
			res.Message = err.Error()
		} else {
			run.SuccessCount++
		}
		run.Results = append(run.Results, res)
		s.reporter().OnItemProgress(i+1, total)
	}
	return true
}

func (s *Saga) publish(ctx context.Context, run *SagaRun) {
	s.step(run, StepPublishing, fmt.Sprintf("publishing paper %d", run.TargetPaperID))
	run.PublishAttempted = true
	if err := s.Papers.Publish(ctx, run.TargetPaperID); err != nil {
		run.PublishMessage = (&StepFailure{Step: StepPublishing, Err: err}).Error()
		return
	}
	run.Published = true
	run.PublishMessage = "published"
}

func (s *Saga) start(m Mode) *SagaRun {
	return &SagaRun{
		ID:               uuid.NewString(),
		Mode:             m,
		Step:             StepIdle,
		SavedQuestionIDs: []int64{},
		Results:          []AttachmentResult{},
	}
}

func (s *Saga) abort(run *SagaRun, err *ValidationError) (*SagaRun, error) {
	s.step(run, StepAborted, err.Error())
	return run, err
}

func (s *Saga) finalize(run *SagaRun) *SagaRun {
	detail := fmt.Sprintf("attached %d/%d", run.SuccessCount, run.Total())
	if run.Failure != nil {
		detail = run.Failure.Error()
	}
	s.step(run, StepFinalized, detail)
	s.reporter().OnCompleted(run.SuccessCount, run.Total(), run.PublishAttempted)
	return run
}

func (s *Saga) step(run *SagaRun, st Step, detail string) {
	run.Step = st
	s.reporter().OnStepChanged(st, detail)
}

func (s *Saga) reporter() Reporter {
	if s.Reporter == nil {
		return Discard
	}
	return s.Reporter
}

func (s *Saga) score() float64 {
	if s.Score <= 0 {
		return paper.DefaultItemScore
	}
	return s.Score
}
