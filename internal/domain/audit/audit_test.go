package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (m *memorySink) Record(_ context.Context, evt Event) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.err
}

type inlineJobs struct{ accept bool }

func (j inlineJobs) Submit(_ string, run func(context.Context) (any, error)) bool {
	if !j.accept {
		return false
	}
	_, _ = run(context.Background())
	return true
}

type failCounter struct {
	mu sync.Mutex
	n  int
}

func (f *failCounter) AuditFailed() {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
}

func TestLogEventStampsAndRecords(t *testing.T) {
	sink := &memorySink{}
	svc := NewService(sink, inlineJobs{accept: true}, zerolog.Nop(), nil)

	svc.LogEvent(Event{UserID: "u1", Username: "hr@example.edu", Action: "final_approve", Module: "leave"})

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	evt := sink.events[0]
	if _, err := ulid.Parse(evt.ID); err != nil {
		t.Fatalf("expected ulid id, got %q: %v", evt.ID, err)
	}
	if evt.Status != StatusSuccess || evt.Timestamp.IsZero() {
		t.Fatalf("event not stamped: %+v", evt)
	}
}

func TestLogEventSwallowsSinkErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("insert failed")}
	counter := &failCounter{}
	svc := NewService(sink, inlineJobs{accept: true}, zerolog.Nop(), counter)

	svc.LogEvent(Event{Action: "reject", Module: "leave"})
	if counter.n != 1 {
		t.Fatalf("expected failure to be counted, got %d", counter.n)
	}
}

func TestLogEventCountsDroppedEvents(t *testing.T) {
	sink := &memorySink{}
	counter := &failCounter{}
	svc := NewService(sink, inlineJobs{accept: false}, zerolog.Nop(), counter)

	svc.LogEvent(Event{Action: "cancel", Module: "leave"})
	if len(sink.events) != 0 || counter.n != 1 {
		t.Fatalf("expected dropped event to be counted, events=%d failures=%d", len(sink.events), counter.n)
	}
}

func TestLogEventWithoutJobsRunsInBackground(t *testing.T) {
	sink := &memorySink{done: make(chan struct{}, 1)}
	svc := NewService(sink, nil, zerolog.Nop(), nil)

	svc.LogEvent(Event{Action: "login", Module: "auth"})
	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not written")
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *Service
	svc.LogEvent(Event{Action: "noop"})
}

func TestLogSinkWritesFields(t *testing.T) {
	var buf strings.Builder
	sink := NewLogSink(zerolog.New(&buf))
	if err := sink.Record(context.Background(), Event{ID: "01J", Action: "bypass_approve", Module: "leave", Status: StatusSuccess}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"action":"bypass_approve"`, `"module":"leave"`, `"message":"audit"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}
}

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{Action: "reject", UserID: "u1"})
	if !strings.Contains(query, "action = $1") || !strings.Contains(query, "user_id = $2") {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}
