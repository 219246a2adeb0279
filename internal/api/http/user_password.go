package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	authmw "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
)

const minPasswordLen = 6

// ChangePasswordHandler serves POST /api/users/change-password for the
// signed-in teacher.
func ChangePasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teacherID, signedIn := authmw.TeacherID(r.Context())
		if !signedIn {
			fail(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fail(w, http.StatusBadRequest, "bad request")
			return
		}
		if len(req.NewPassword) < minPasswordLen {
			fail(w, http.StatusBadRequest, "new password must have at least 6 characters")
			return
		}

		switch err := authmw.ChangePassword(r.Context(), db, teacherID, req.OldPassword, req.NewPassword); {
		case errors.Is(err, authmw.ErrInvalidCredentials):
			fail(w, http.StatusForbidden, "incorrect old password")
		case err != nil:
			log.Printf("change password teacher=%d: %v", teacherID, err)
			fail(w, http.StatusInternalServerError, "internal error")
		default:
			ok(w, map[string]any{"message": "password changed"})
		}
	}
}
