package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/rbac"
)

// mountAdmin wires account roles and service tokens under /api/admin.
func mountAdmin(r chi.Router, db *sql.DB, a *auth.AuthService) {
	r.Route("/admin", func(ar chi.Router) {
		ar.With(rbac.Require("admin:identity")).Patch("/users/{username}/role", setRole(db))
		ar.With(rbac.Require("admin:apikeys")).Post("/service-tokens", serviceToken(a))
	})
}

// PATCH /api/admin/users/{username}/role  { "role": "reviewer" }
func setRole(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, http.StatusBadRequest, "bad json")
			return
		}
		username := chi.URLParam(r, "username")
		switch err := auth.SetRole(r.Context(), db, username, req.Role); {
		case errors.Is(err, auth.ErrUnknownRole):
			fail(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrNoSuchTeacher):
			fail(w, http.StatusNotFound, err.Error())
		case err != nil:
			log.Printf("set role %s: %v", username, err)
			fail(w, http.StatusInternalServerError, "internal error")
		default:
			ok(w, map[string]any{"username": username, "role": req.Role})
		}
	}
}

// POST /api/admin/service-tokens  { "client": "gateway-eu", "ttl": "720h" }
func serviceToken(a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Client string `json:"client"`
			TTL    string `json:"ttl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Client == "" {
			fail(w, http.StatusBadRequest, "client required")
			return
		}
		var ttl time.Duration
		if req.TTL != "" {
			d, err := time.ParseDuration(req.TTL)
			if err != nil || d <= 0 {
				fail(w, http.StatusBadRequest, "bad ttl")
				return
			}
			ttl = d
		}
		tok, err := a.IssueServiceToken(req.Client, ttl)
		if err != nil {
			fail(w, http.StatusInternalServerError, "issue token")
			return
		}
		ok(w, map[string]any{"access_token": tok, "role": auth.RoleService})
	}
}
