package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-papers/internal/rbac"
)

const bcryptCost = 12

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownRole        = errors.New("unknown role")
	ErrNoSuchTeacher      = errors.New("no such account")
)

type Teacher struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Authenticate checks username/password against the teachers table.
func Authenticate(ctx context.Context, db *sql.DB, username, password string) (Teacher, error) {
	var t Teacher
	var hash string
	err := db.QueryRowContext(ctx,
		`SELECT id, username, name, email, role, password_hash FROM teachers WHERE username=$1`,
		strings.TrimSpace(username),
	).Scan(&t.ID, &t.Username, &t.Name, &t.Email, &t.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, ErrInvalidCredentials
	}
	if err != nil {
		return Teacher{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Teacher{}, ErrInvalidCredentials
	}
	return t, nil
}

func CreateTeacher(ctx context.Context, db *sql.DB, username, password, name string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, err
	}
	if name == "" {
		name = username
	}
	var id int64
	err = db.QueryRowContext(ctx,
		`INSERT INTO teachers (username, password_hash, name, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		username, string(hash), name, time.Now().Unix(),
	).Scan(&id)
	return id, err
}

// EnsureTeacher creates the given account when no teacher exists yet.
// It reports whether an account was created.
func EnsureTeacher(ctx context.Context, db *sql.DB, username, password string) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teachers`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := CreateTeacher(ctx, db, username, password, ""); err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword verifies the old password and stores a new hash.
func ChangePassword(ctx context.Context, db *sql.DB, id int64, oldPassword, newPassword string) error {
	var hash string
	err := db.QueryRowContext(ctx, `SELECT password_hash FROM teachers WHERE id=$1`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `UPDATE teachers SET password_hash=$1 WHERE id=$2`, string(next), id)
	return err
}

// SetRole changes the role an account logs in with. The role must exist in
// the rbac policy.
func SetRole(ctx context.Context, db *sql.DB, username, role string) error {
	if _, known := rbac.RolePermissions[role]; !known || role == RoleService {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	res, err := db.ExecContext(ctx, `UPDATE teachers SET role=$1 WHERE username=$2`, role, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoSuchTeacher
	}
	return nil
}
