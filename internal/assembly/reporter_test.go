package assembly_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mind-engage/mindengage-papers/internal/assembly"
	"github.com/mind-engage/mindengage-papers/internal/db"
	syncx "github.com/mind-engage/mindengage-papers/internal/sync"
)

func TestEventLogReporter_RecordsOutcome(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	events := syncx.NewEventRepo(conn)

	f := newFakes()
	f.failAttach[102] = errors.New("rejected")
	rep := &assembly.EventLogReporter{Events: events, Owner: "alice", Mode: assembly.ModeNewPaper}
	s := assembly.New(f, f, assembly.Multi{rep, assembly.LogReporter{Prefix: "test "}})

	if _, err := s.NewPaper(ctx, snapshotOf(3), assembly.NewPaperRequest{Fields: fields, AttachAll: true}); err != nil {
		t.Fatal(err)
	}

	got, err := events.Recent(ctx, assembly.EventTypeCompleted, "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	var data struct {
		SuccessCount int    `json:"success_count"`
		Total        int    `json:"total"`
		Detail       string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(got[0].DataJSON), &data); err != nil {
		t.Fatal(err)
	}
	if data.SuccessCount != 2 || data.Total != 3 || data.Detail != "attached 2/3" {
		t.Fatalf("unexpected event data %+v", data)
	}
	if other, _ := events.Recent(ctx, assembly.EventTypeCompleted, "bob", 10); len(other) != 0 {
		t.Fatalf("events must be keyed by owner")
	}
}
