package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/paper"
	"github.com/mind-engage/mindengage-papers/internal/rbac"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ok writes {success:true, ...fields}.
func ok(w http.ResponseWriter, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["success"] = true
	writeJSON(w, http.StatusOK, fields)
}

// fail writes the {success:false, message} envelope.
func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

// failErr maps service errors onto HTTP statuses.
func failErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, paper.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, paper.ErrDuplicate):
		fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, paper.ErrInvalid), errors.Is(err, paper.ErrEmptyPaper):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s: %v", op, err)
		fail(w, http.StatusInternalServerError, op+" failed")
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// authorFor returns the author a write is recorded under. Only roles with
// paper:manage_all may act for someone else.
func authorFor(r *http.Request, requested int64) int64 {
	self, _ := auth.TeacherID(r.Context())
	if requested > 0 && rbac.Allowed(r.Context(), "paper:manage_all") {
		return requested
	}
	return self
}

// teacherParam reads ?teacher_id=. Only roles with paper:view_all may look
// at another teacher's data; everyone else gets their own.
func teacherParam(r *http.Request) int64 {
	self, _ := auth.TeacherID(r.Context())
	v := r.URL.Query().Get("teacher_id")
	if v == "" {
		return self
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return self
	}
	if id != self && !rbac.Allowed(r.Context(), "paper:view_all") {
		return self
	}
	return id
}
