package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-papers/internal/assembly"
	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/generate"
	qtiexport "github.com/mind-engage/mindengage-papers/internal/qti/export"
	"github.com/mind-engage/mindengage-papers/internal/question"
	"github.com/mind-engage/mindengage-papers/internal/rbac"
	"github.com/mind-engage/mindengage-papers/internal/storage"
	syncx "github.com/mind-engage/mindengage-papers/internal/sync"
	"github.com/mind-engage/mindengage-papers/internal/workspace"
)

const maxViewBytes = 2 << 20

// Authoring serves the per-author workspace, generation, export and paper
// assembly endpoints.
type Authoring struct {
	Views     workspace.Views
	Generator generate.Generator
	Blobs     storage.BlobStore
	Papers    assembly.PaperService
	Questions assembly.QuestionService
	Events    *syncx.EventRepo // optional
	SiteID    string
	Score     float64

	// RunTimeout bounds one assembly run. Runs are detached from the
	// request so a dropped connection does not cut the attach loop short.
	RunTimeout time.Duration

	locks    sync.Map // owner -> *sync.Mutex
	inflight sync.Map // owner -> *int token of the running assembly
}

func (a *Authoring) Routes(r chi.Router) {
	r.With(rbac.Require("question:generate")).Post("/generate-questions", a.generateQuestions)

	r.With(rbac.Require("workspace:view")).Get("/workspace", a.getWorkspace)
	r.With(rbac.Require("workspace:view")).Get("/workspace/view", a.getView)
	r.With(rbac.Require("workspace:edit")).Put("/workspace/view", a.putView)
	r.With(rbac.Require("workspace:edit")).Post("/workspace/questions", a.addQuestion)
	r.With(rbac.Require("workspace:edit")).Delete("/workspace/questions/{id}", a.removeQuestion)
	r.With(rbac.Require("workspace:edit")).Delete("/workspace", a.resetWorkspace)

	r.With(rbac.Require("paper:assemble")).Post("/assembly/new", a.assembleNew)
	r.With(rbac.Require("paper:assemble")).Post("/assembly/existing", a.assembleExisting)
	r.With(rbac.Require("paper:assemble")).Get("/assembly/history", a.history)

	r.With(rbac.Require("question:export")).Post("/export-questions", a.exportQuestions)
	r.With(rbac.Require("question:export")).Get("/exports/*", a.download)
}

func owner(r *http.Request) string { return auth.SubjectFromContext(r.Context()) }

func (a *Authoring) lock(owner string) func() {
	m, _ := a.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// edit opens the author's workspace, applies fn and saves the result while
// holding the author's lock.
func (a *Authoring) edit(r *http.Request, fn func(s *workspace.Store) error) (*workspace.Store, error) {
	o := owner(r)
	defer a.lock(o)()
	s, err := workspace.Open(r.Context(), a.Views, o)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := workspace.Save(r.Context(), a.Views, o, s); err != nil {
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	return s, nil
}

// snapshot reads the author's current questions.
func (a *Authoring) snapshot(r *http.Request) ([]question.Question, error) {
	s, err := workspace.Open(r.Context(), a.Views, owner(r))
	if err != nil {
		return nil, err
	}
	return s.Snapshot()
}

func workspaceBody(s *workspace.Store) (map[string]any, error) {
	qs, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return map[string]any{"questions": qs, "count": len(qs), "view": string(s.View())}, nil
}

// ---- generation ----

func (a *Authoring) generateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := req.Validate(); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	drafts, err := a.Generator.Generate(r.Context(), req)
	if err != nil {
		log.Printf("generate: %v", err)
		fail(w, http.StatusBadGateway, "generation failed: "+err.Error())
		return
	}
	if len(drafts) == 0 {
		fail(w, http.StatusBadGateway, "generation returned no questions")
		return
	}
	s, err := a.edit(r, func(s *workspace.Store) error {
		s.Load(drafts, req.Context())
		return nil
	})
	if err != nil {
		failErr(w, "generate", err)
		return
	}
	body, err := workspaceBody(s)
	if err != nil {
		failErr(w, "generate", err)
		return
	}
	body["message"] = fmt.Sprintf("generated %d questions", len(drafts))
	ok(w, body)
}

// ---- workspace ----

func (a *Authoring) getWorkspace(w http.ResponseWriter, r *http.Request) {
	qs, err := a.snapshot(r)
	if err != nil {
		failErr(w, "workspace", err)
		return
	}
	ok(w, map[string]any{"questions": qs, "count": len(qs)})
}

func (a *Authoring) getView(w http.ResponseWriter, r *http.Request) {
	s, err := workspace.Open(r.Context(), a.Views, owner(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.View())
}

func (a *Authoring) putView(w http.ResponseWriter, r *http.Request) {
	view, err := io.ReadAll(io.LimitReader(r.Body, maxViewBytes+1))
	if err != nil {
		fail(w, http.StatusBadRequest, "read body")
		return
	}
	if len(view) > maxViewBytes {
		fail(w, http.StatusRequestEntityTooLarge, "view too large")
		return
	}
	s, err := a.edit(r, func(s *workspace.Store) error {
		return s.Adopt(bytes.TrimSpace(view))
	})
	if errors.Is(err, workspace.ErrDuplicateID) {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		failErr(w, "update view", err)
		return
	}
	body, err := workspaceBody(s)
	if err != nil {
		failErr(w, "update view", err)
		return
	}
	ok(w, body)
}

type addQuestionReq struct {
	Question     question.Draft `json:"question"`
	Subject      string         `json:"subject"`
	Grade        string         `json:"grade"`
	QuestionType string         `json:"question_type"`
	Difficulty   int            `json:"difficulty"`
}

func (a *Authoring) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req addQuestionReq
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	t, _ := question.ParseType(req.QuestionType)
	c := question.Context{RequestedType: t, Subject: req.Subject, Grade: req.Grade, Difficulty: req.Difficulty}

	var added question.Question
	_, err := a.edit(r, func(s *workspace.Store) error {
		var err error
		added, err = s.Add(req.Question, c)
		return err
	})
	if err != nil {
		failErr(w, "add question", err)
		return
	}
	ok(w, map[string]any{"question": added})
}

func (a *Authoring) removeQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var removed bool
	s, err := a.edit(r, func(s *workspace.Store) error {
		var err error
		removed, err = s.Remove(id)
		return err
	})
	if err != nil {
		failErr(w, "remove question", err)
		return
	}
	ok(w, map[string]any{"removed": removed, "count": s.Len()})
}

func (a *Authoring) resetWorkspace(w http.ResponseWriter, r *http.Request) {
	if _, err := a.edit(r, func(s *workspace.Store) error {
		s.Reset()
		return nil
	}); err != nil {
		failErr(w, "reset workspace", err)
		return
	}
	ok(w, map[string]any{"message": "workspace cleared"})
}

// ---- export ----

type exportDoc struct {
	ExportedAt time.Time           `json:"exported_at"`
	ExportedBy string              `json:"exported_by"`
	Count      int                 `json:"count"`
	Questions  []question.Question `json:"questions"`
}

func exportPrefix(owner string) string { return "exports/" + owner + "/" }

func (a *Authoring) exportQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := a.snapshot(r)
	if err != nil {
		failErr(w, "export", err)
		return
	}
	if len(qs) == 0 {
		fail(w, http.StatusBadRequest, "no questions to export")
		return
	}
	var (
		doc []byte
		ext = ".json"
	)
	switch r.URL.Query().Get("format") {
	case "", "json":
		doc, err = json.MarshalIndent(exportDoc{
			ExportedAt: time.Now().UTC(),
			ExportedBy: owner(r),
			Count:      len(qs),
			Questions:  qs,
		}, "", "  ")
	case "qti":
		doc, err = qtiexport.BuildPackage(qs)
		ext = ".zip"
	default:
		fail(w, http.StatusBadRequest, "format must be json or qti")
		return
	}
	if err != nil {
		failErr(w, "export", err)
		return
	}
	key, err := a.Blobs.Put(exportPrefix(owner(r))+uuid.NewString()+ext, bytes.NewReader(doc))
	if err != nil {
		failErr(w, "export", err)
		return
	}
	u, _ := a.Blobs.SignedURL(key)
	ok(w, map[string]any{"key": key, "url": u, "count": len(qs), "message": fmt.Sprintf("exported %d questions", len(qs))})
}

// GET /api/exports/*  -> only the caller's own exports
func (a *Authoring) download(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(path.Clean("/exports/"+chi.URLParam(r, "*")), "/")
	prefix := exportPrefix(owner(r))
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	rc, err := a.Blobs.Get(key)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer rc.Close()
	ct := "application/json"
	if strings.HasSuffix(key, ".zip") {
		ct = "application/zip"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = io.Copy(w, rc)
}
