package assembly

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	syncx "github.com/mind-engage/mindengage-papers/internal/sync"
)

// Reporter receives progress notifications. Calls are made on the saga's
// goroutine, so implementations must return promptly.
type Reporter interface {
	OnStepChanged(step Step, detail string)
	// OnItemProgress is called after each attach attempt with the number of
	// attempts made so far.
	OnItemProgress(index, total int)
	OnCompleted(successCount, total int, publishAttempted bool)
}

type discard struct{}

func (discard) OnStepChanged(Step, string) {}
func (discard) OnItemProgress(int, int)    {}
func (discard) OnCompleted(int, int, bool) {}

// Discard ignores every notification.
var Discard Reporter = discard{}

// Event is a single notification in a form that can be stored or streamed.
type Event struct {
	Kind             string `json:"kind"`
	Step             Step   `json:"step,omitempty"`
	Detail           string `json:"detail,omitempty"`
	Index            int    `json:"index,omitempty"`
	Total            int    `json:"total"`
	SuccessCount     int    `json:"success_count,omitempty"`
	PublishAttempted bool   `json:"publish_attempted,omitempty"`
}

const (
	KindStep      = "step"
	KindProgress  = "progress"
	KindCompleted = "completed"
)

// ---- log ----

type LogReporter struct {
	Prefix string
}

func (l LogReporter) OnStepChanged(step Step, detail string) {
	log.Printf("%sassembly step=%s %s", l.Prefix, step, detail)
}

func (l LogReporter) OnItemProgress(index, total int) {
	log.Printf("%sassembly progress %d/%d", l.Prefix, index, total)
}

func (l LogReporter) OnCompleted(successCount, total int, publishAttempted bool) {
	log.Printf("%sassembly completed attached=%d/%d publish_attempted=%t", l.Prefix, successCount, total, publishAttempted)
}

// ---- recorder ----

// Recorder keeps every event in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) OnStepChanged(step Step, detail string) {
	r.add(Event{Kind: KindStep, Step: step, Detail: detail})
}

func (r *Recorder) OnItemProgress(index, total int) {
	r.add(Event{Kind: KindProgress, Index: index, Total: total})
}

func (r *Recorder) OnCompleted(successCount, total int, publishAttempted bool) {
	r.add(Event{Kind: KindCompleted, SuccessCount: successCount, Total: total, PublishAttempted: publishAttempted})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Steps lists the step transitions seen so far.
func (r *Recorder) Steps() []Step {
	var out []Step
	for _, e := range r.Events() {
		if e.Kind == KindStep {
			out = append(out, e.Step)
		}
	}
	return out
}

// ---- channel ----

// ChannelReporter forwards events to a buffered channel without blocking.
// Events that do not fit are dropped and counted.
type ChannelReporter struct {
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

func (c *ChannelReporter) Events() <-chan Event { return c.ch }

func (c *ChannelReporter) send(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped++
	}
}

func (c *ChannelReporter) OnStepChanged(step Step, detail string) {
	c.send(Event{Kind: KindStep, Step: step, Detail: detail})
}

func (c *ChannelReporter) OnItemProgress(index, total int) {
	c.send(Event{Kind: KindProgress, Index: index, Total: total})
}

func (c *ChannelReporter) OnCompleted(successCount, total int, publishAttempted bool) {
	c.send(Event{Kind: KindCompleted, SuccessCount: successCount, Total: total, PublishAttempted: publishAttempted})
}

func (c *ChannelReporter) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close ends the stream. Later events are discarded.
func (c *ChannelReporter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// ---- fan-out ----

type Multi []Reporter

func (m Multi) OnStepChanged(step Step, detail string) {
	for _, r := range m {
		r.OnStepChanged(step, detail)
	}
}

func (m Multi) OnItemProgress(index, total int) {
	for _, r := range m {
		r.OnItemProgress(index, total)
	}
}

func (m Multi) OnCompleted(successCount, total int, publishAttempted bool) {
	for _, r := range m {
		r.OnCompleted(successCount, total, publishAttempted)
	}
}

// ---- event log ----

// EventTypeCompleted is the event_log type written for finished runs.
const EventTypeCompleted = "assembly.completed"

// EventLogReporter appends the outcome of a run to the event log, keyed by
// the author. It remembers the last step detail so failures are kept.
type EventLogReporter struct {
	Events *syncx.EventRepo
	SiteID string
	Owner  string
	Mode   Mode

	mu         sync.Mutex
	lastStep   Step
	lastDetail string
}

func (e *EventLogReporter) OnStepChanged(step Step, detail string) {
	e.mu.Lock()
	e.lastStep, e.lastDetail = step, detail
	e.mu.Unlock()
}

func (e *EventLogReporter) OnItemProgress(int, int) {}

func (e *EventLogReporter) OnCompleted(successCount, total int, publishAttempted bool) {
	e.mu.Lock()
	detail := e.lastDetail
	e.mu.Unlock()

	data, _ := json.Marshal(map[string]any{
		"mode":              e.Mode,
		"success_count":     successCount,
		"total":             total,
		"publish_attempted": publishAttempted,
		"detail":            detail,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	site := e.SiteID
	if site == "" {
		site = "local"
	}
	if err := e.Events.Append(ctx, syncx.Event{SiteID: site, Type: EventTypeCompleted, Key: e.Owner, DataJSON: string(data)}); err != nil {
		log.Printf("assembly: event log append: %v", err)
	}
}
