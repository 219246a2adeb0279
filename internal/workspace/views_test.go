package workspace_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-papers/internal/workspace"
)

func newRedisViews(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, workspace.Views) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, workspace.NewRedisViews(client, ttl)
}

func TestRedisViews_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, views := newRedisViews(t, time.Hour)

	if v, err := views.Get(ctx, "7"); err != nil || v != nil {
		t.Fatalf("missing workspace must be (nil, nil), got %q %v", v, err)
	}
	if err := views.Put(ctx, "7", []byte("<div>view</div>")); err != nil {
		t.Fatal(err)
	}
	if got, _ := mr.Get("workspace:7"); got != "<div>view</div>" {
		t.Fatalf("unexpected stored value %q", got)
	}
	if ttl := mr.TTL("workspace:7"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	if err := views.Delete(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("workspace:7") {
		t.Fatalf("expected key to be deleted")
	}
}

func TestRedisViews_ReadSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	mr, views := newRedisViews(t, time.Hour)

	if err := views.Put(ctx, "7", []byte("v")); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(40 * time.Minute)
	if v, err := views.Get(ctx, "7"); err != nil || string(v) != "v" {
		t.Fatalf("get: %q %v", v, err)
	}
	if ttl := mr.TTL("workspace:7"); ttl != time.Hour {
		t.Fatalf("read must reset the ttl, got %v", ttl)
	}
	mr.FastForward(40 * time.Minute)
	if v, _ := views.Get(ctx, "7"); string(v) != "v" {
		t.Fatalf("workspace expired despite being read")
	}
	mr.FastForward(2 * time.Hour)
	if v, err := views.Get(ctx, "7"); err != nil || v != nil {
		t.Fatalf("expected expiry after idle ttl, got %q %v", v, err)
	}
}

func TestRedisViews_DefaultTTLAndOwners(t *testing.T) {
	ctx := context.Background()
	mr, views := newRedisViews(t, 0)

	s, err := workspace.Open(ctx, views, "a")
	if err != nil {
		t.Fatal(err)
	}
	s.Load(sampleDrafts(), mathCtx)
	if err := workspace.Save(ctx, views, "a", s); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("workspace:a"); ttl != 24*time.Hour {
		t.Fatalf("expected default 24h ttl, got %v", ttl)
	}
	if other, _ := workspace.Open(ctx, views, "b"); other.Len() != 0 {
		t.Fatalf("authors must not share workspaces")
	}
	again, err := workspace.Open(ctx, views, "a")
	if err != nil || again.Len() != 4 {
		t.Fatalf("reopen: %v %v", again, err)
	}
}
