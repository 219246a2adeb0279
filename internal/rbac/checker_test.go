package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	if !c.Has("teacher", "workspace:edit") {
		t.Fatalf("wildcard permission not matched")
	}
	if !c.Has("teacher", "question:generate") || !c.Has("teacher", "paper:assemble") {
		t.Fatalf("teacher should assemble papers")
	}
	if c.Has("reviewer", "paper:assemble") || !c.Any("reviewer", "paper:assemble", "paper:view") {
		t.Fatalf("unexpected reviewer permissions")
	}
	if !c.Has("admin", "anything") || c.Has("", "paper:view") {
		t.Fatalf("unexpected admin/anonymous permissions")
	}
	if !c.Has("service", "paper:manage_all") || c.Has("service", "workspace:view") {
		t.Fatalf("unexpected service permissions")
	}
}

func TestChecker_CustomPolicy(t *testing.T) {
	c := NewChecker(map[string][]string{"x": {"paper:"}})
	if c.Has("x", "paper:view") {
		t.Fatalf("grant without * must match exactly")
	}
}

func TestAllowed(t *testing.T) {
	if Allowed(context.Background(), "paper:view") {
		t.Fatalf("no role must not be allowed")
	}
	ctx := WithRole(context.Background(), "reviewer")
	if !Allowed(ctx, "paper:view_all") || Allowed(ctx, "paper:manage_all") {
		t.Fatalf("unexpected reviewer checks")
	}
}

func TestRequire(t *testing.T) {
	h := Require("paper:assemble")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{"teacher": 204, "reviewer": 403, "": 403} {
		req := httptest.NewRequest(http.MethodPost, "/api/assembly/new", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %q: got %d, want %d", role, rec.Code, want)
		}
	}
}
