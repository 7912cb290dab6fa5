package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublishPrefixesSubjectAndEncodesJSON(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "hrims.", zerolog.Nop())

	err := p.Publish(context.Background(), "leave.approved", map[string]string{"requestId": "r1"})
	if err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if len(conn.subjects) != 1 || conn.subjects[0] != "hrims.leave.approved" {
		t.Fatalf("unexpected subjects: %v", conn.subjects)
	}
	var body map[string]string
	if err := json.Unmarshal(conn.payloads[0], &body); err != nil || body["requestId"] != "r1" {
		t.Fatalf("unexpected payload %s: %v", conn.payloads[0], err)
	}

	p.Close()
	if !conn.drained {
		t.Fatal("expected drain on close")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), "leave.created", struct{}{}); err != nil {
		t.Fatalf("nil publisher should drop silently, got %v", err)
	}
	p.Close()

	disabled, err := Connect("", "hrims", zerolog.Nop())
	if err != nil || disabled != nil {
		t.Fatalf("empty url should disable publishing, got %v %v", disabled, err)
	}
}

func TestPublishReturnsConnError(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, "hrims", zerolog.Nop())
	if err := p.Publish(context.Background(), "leave.rejected", struct{}{}); err == nil {
		t.Fatal("expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, "leave.rejected", struct{}{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
