package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/question"
	"github.com/mind-engage/mindengage-papers/internal/rbac"
)

// PaperAPI serves the paper and question service over JSON. Every response
// carries the {success, message} envelope.
type PaperAPI struct {
	Store *paper.SQLStore
}

func (a *PaperAPI) Routes(r chi.Router) {
	r.With(rbac.Require("paper:create")).Post("/papers", a.createPaper)
	r.With(rbac.Require("paper:view")).Get("/papers", a.listPapers)
	r.With(rbac.Require("paper:view")).Get("/papers/{id}", a.getPaper)
	r.With(rbac.Require("paper:delete_own")).Delete("/papers/{id}", a.deletePaper)
	r.With(rbac.Require("paper:create")).Post("/papers/{id}/questions", a.attachQuestion)
	r.With(rbac.Require("paper:create")).Delete("/papers/{id}/questions/{qid}", a.removeQuestion)
	r.With(rbac.Require("paper:publish")).Post("/papers/{id}/publish", a.publish)
	r.With(rbac.Require("paper:publish")).Post("/papers/{id}/close", a.close)
	r.With(rbac.Require("question:save")).Post("/save-questions", a.saveQuestions)
	r.With(rbac.Require("paper:view")).Get("/questions", a.listQuestions)
	r.With(rbac.Require("stats:view")).Get("/statistics/overview", a.overview)
}

func (a *PaperAPI) createPaper(w http.ResponseWriter, r *http.Request) {
	var f paper.CreateFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	f.CreatedBy = authorFor(r, f.CreatedBy)
	id, err := a.Store.CreatePaper(r.Context(), f)
	if err != nil {
		failErr(w, "create paper", err)
		return
	}
	ok(w, map[string]any{"paper_id": id, "message": "paper created"})
}

func (a *PaperAPI) listPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := a.Store.ListPapers(r.Context(), teacherParam(r))
	if err != nil {
		failErr(w, "list papers", err)
		return
	}
	ok(w, map[string]any{"papers": papers})
}

func (a *PaperAPI) getPaper(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "bad paper id")
		return
	}
	p, err := a.Store.GetPaper(r.Context(), id)
	if err != nil {
		failErr(w, "get paper", err)
		return
	}
	ok(w, map[string]any{"paper": p})
}

// ownPaper loads the paper and checks the caller created it, unless the
// role may act on any paper.
func (a *PaperAPI) ownPaper(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, valid := idParam(r, "id")
	if !valid {
		fail(w, http.StatusBadRequest, "bad paper id")
		return 0, false
	}
	p, err := a.Store.GetPaper(r.Context(), id)
	if err != nil {
		failErr(w, "get paper", err)
		return 0, false
	}
	self, _ := auth.TeacherID(r.Context())
	if p.CreatedBy != self && !rbac.Allowed(r.Context(), "paper:manage_all") {
		fail(w, http.StatusForbidden, "not your paper")
		return 0, false
	}
	return id, true
}

func (a *PaperAPI) deletePaper(w http.ResponseWriter, r *http.Request) {
	id, allowed := a.ownPaper(w, r)
	if !allowed {
		return
	}
	if err := a.Store.DeletePaper(r.Context(), id); err != nil {
		failErr(w, "delete paper", err)
		return
	}
	ok(w, map[string]any{"message": "paper deleted"})
}

func (a *PaperAPI) attachQuestion(w http.ResponseWriter, r *http.Request) {
	id, allowed := a.ownPaper(w, r)
	if !allowed {
		return
	}
	var req struct {
		QuestionID int64   `json:"question_id"`
		Score      float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID <= 0 {
		fail(w, http.StatusBadRequest, "question_id required")
		return
	}
	if err := a.Store.AttachQuestion(r.Context(), id, req.QuestionID, req.Score); err != nil {
		failErr(w, "attach question", err)
		return
	}
	ok(w, map[string]any{"message": "question attached"})
}

func (a *PaperAPI) removeQuestion(w http.ResponseWriter, r *http.Request) {
	id, allowed := a.ownPaper(w, r)
	if !allowed {
		return
	}
	qid, valid := idParam(r, "qid")
	if !valid {
		fail(w, http.StatusBadRequest, "bad question id")
		return
	}
	if err := a.Store.RemoveQuestion(r.Context(), id, qid); err != nil {
		failErr(w, "remove question", err)
		return
	}
	ok(w, map[string]any{"message": "question removed"})
}

func (a *PaperAPI) publish(w http.ResponseWriter, r *http.Request) {
	id, allowed := a.ownPaper(w, r)
	if !allowed {
		return
	}
	if err := a.Store.PublishPaper(r.Context(), id); err != nil {
		failErr(w, "publish paper", err)
		return
	}
	ok(w, map[string]any{"message": "paper published"})
}

func (a *PaperAPI) close(w http.ResponseWriter, r *http.Request) {
	id, allowed := a.ownPaper(w, r)
	if !allowed {
		return
	}
	if err := a.Store.ClosePaper(r.Context(), id); err != nil {
		failErr(w, "close paper", err)
		return
	}
	ok(w, map[string]any{"message": "paper closed"})
}

func (a *PaperAPI) saveQuestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Questions []question.Question `json:"questions"`
		CreatedBy int64               `json:"created_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	req.CreatedBy = authorFor(r, req.CreatedBy)
	ids, err := a.Store.SaveQuestions(r.Context(), req.Questions, req.CreatedBy)
	if err != nil {
		failErr(w, "save questions", err)
		return
	}
	ok(w, map[string]any{"question_ids": ids, "message": fmt.Sprintf("saved %d questions", len(ids))})
}

func (a *PaperAPI) listQuestions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	qs, err := a.Store.ListQuestions(r.Context(), teacherParam(r), limit)
	if err != nil {
		failErr(w, "list questions", err)
		return
	}
	ok(w, map[string]any{"questions": qs})
}

func (a *PaperAPI) overview(w http.ResponseWriter, r *http.Request) {
	ov, err := a.Store.Overview(r.Context(), teacherParam(r))
	if err != nil {
		failErr(w, "statistics", err)
		return
	}
	ok(w, map[string]any{"statistics": ov})
}
