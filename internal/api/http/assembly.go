package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mind-engage/mindengage-papers/internal/assembly"
)

const defaultRunTimeout = 5 * time.Minute

// runFunc executes one saga with the given reporter.
type runFunc func(ctx context.Context, s *assembly.Saga) (*assembly.SagaRun, error)

func (a *Authoring) assembleNew(w http.ResponseWriter, r *http.Request) {
	var req assembly.NewPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Fields.CreatedBy = authorFor(r, req.Fields.CreatedBy)
	a.assemble(w, r, assembly.ModeNewPaper, func(ctx context.Context, s *assembly.Saga) (*assembly.SagaRun, error) {
		snap, err := a.snapshot(r)
		if err != nil {
			return nil, err
		}
		return s.NewPaper(ctx, snap, req)
	})
}

func (a *Authoring) assembleExisting(w http.ResponseWriter, r *http.Request) {
	var req assembly.ExistingPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "bad json")
		return
	}
	req.CreatedBy = authorFor(r, req.CreatedBy)
	a.assemble(w, r, assembly.ModeExistingPaper, func(ctx context.Context, s *assembly.Saga) (*assembly.SagaRun, error) {
		snap, err := a.snapshot(r)
		if err != nil {
			return nil, err
		}
		return s.ExistingPaper(ctx, snap, req)
	})
}

// assemble enforces one in-flight run per author, then runs the saga either
// streaming its events (?stream=1) or returning them with the run.
func (a *Authoring) assemble(w http.ResponseWriter, r *http.Request, mode assembly.Mode, run runFunc) {
	o := owner(r)
	token := new(int)
	if _, busy := a.inflight.LoadOrStore(o, token); busy {
		fail(w, http.StatusConflict, "an assembly run is already in progress")
		return
	}
	// released before the outcome is written
	release := func() { a.inflight.CompareAndDelete(o, token) }
	defer release()

	timeout := a.RunTimeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
	defer cancel()

	reporters := assembly.Multi{assembly.LogReporter{Prefix: "[" + o + "] "}}
	if a.Events != nil {
		reporters = append(reporters, &assembly.EventLogReporter{Events: a.Events, SiteID: a.SiteID, Owner: o, Mode: mode})
	}

	if r.URL.Query().Get("stream") == "1" {
		a.stream(ctx, w, reporters, run, release)
		return
	}

	rec := &assembly.Recorder{}
	res, err := run(ctx, a.saga(append(reporters, rec)))
	release()
	writeRun(w, res, err, rec.Events())
}

func (a *Authoring) saga(rep assembly.Reporter) *assembly.Saga {
	s := assembly.New(a.Papers, a.Questions, rep)
	if a.Score > 0 {
		s.Score = a.Score
	}
	return s
}

// stream writes reporter events as Server-Sent Events followed by a final
// "run" event carrying the outcome.
func (a *Authoring) stream(ctx context.Context, w http.ResponseWriter, reporters assembly.Multi, run runFunc, release func()) {
	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := assembly.NewChannelReporter(128)
	type outcome struct {
		run *assembly.SagaRun
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := run(ctx, a.saga(append(reporters, ch)))
		ch.Close()
		done <- outcome{res, err}
	}()

	for e := range ch.Events() {
		writeEvent(w, e.Kind, e)
		if canFlush {
			flusher.Flush()
		}
	}
	out := <-done
	release()
	if n := ch.Dropped(); n > 0 {
		log.Printf("assembly stream: dropped %d events", n)
	}
	writeEvent(w, "run", runBody(out.run, out.err, nil))
	if canFlush {
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func runBody(run *assembly.SagaRun, err error, events []assembly.Event) map[string]any {
	body := map[string]any{"run": run}
	if events != nil {
		body["events"] = events
	}
	var ve *assembly.ValidationError
	switch {
	case errors.As(err, &ve):
		body["success"] = false
		body["message"] = ve.Error()
	case err != nil:
		body["success"] = false
		body["message"] = err.Error()
	default:
		body["success"] = run.Failure == nil
		body["message"] = summary(run)
	}
	return body
}

func writeRun(w http.ResponseWriter, run *assembly.SagaRun, err error, events []assembly.Event) {
	status := http.StatusOK
	var ve *assembly.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case err != nil:
		log.Printf("assembly: %v", err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, runBody(run, err, events))
}

// summary is the user-facing outcome of a finished run.
func summary(run *assembly.SagaRun) string {
	if run.Failure != nil {
		return run.Failure.Error()
	}
	msg := fmt.Sprintf("attached %d of %d questions to paper %d", run.SuccessCount, run.Total(), run.TargetPaperID)
	if run.Mode == assembly.ModeNewPaper && run.Total() == 0 {
		msg = fmt.Sprintf("created paper %d", run.TargetPaperID)
	}
	if run.PublishAttempted {
		if run.Published {
			msg += "; paper published"
		} else {
			msg += "; " + run.PublishMessage
		}
	}
	return msg
}

// ---- history ----

func (a *Authoring) history(w http.ResponseWriter, r *http.Request) {
	if a.Events == nil {
		ok(w, map[string]any{"runs": []any{}})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	evs, err := a.Events.Recent(r.Context(), assembly.EventTypeCompleted, owner(r), limit)
	if err != nil {
		failErr(w, "history", err)
		return
	}
	runs := make([]map[string]any, 0, len(evs))
	for _, e := range evs {
		var data map[string]any
		if err := json.Unmarshal([]byte(e.DataJSON), &data); err != nil {
			continue
		}
		data["created_at"] = e.CreatedAt
		runs = append(runs, data)
	}
	ok(w, map[string]any{"runs": runs})
}
