package queue

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type attempt struct {
	event string
	to    string
}

func newTestQueue() (*Queue, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(logger), &buf
}

func TestFlushEmptyQueueIsNoop(t *testing.T) {
	q, _ := newTestQueue()
	calls := 0
	res := q.Flush(context.Background(), func(context.Context, Event, string) error {
		calls++
		return nil
	})
	if calls != 0 || res.Attempts != 0 || res.Events != 0 {
		t.Fatalf("expected no attempts, got calls=%d result=%+v", calls, res)
	}

	// repeated empty flushes stay harmless
	q.Flush(context.Background(), func(context.Context, Event, string) error { return errors.New("unexpected") })
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestFlushIsFIFOAcrossEvents(t *testing.T) {
	q, _ := newTestQueue()
	rcpt := []string{"a@example.com", "b@example.com"}
	e1 := NewEvent("first", "body", time.Now(), rcpt)
	e2 := NewEvent("second", "body", time.Now(), rcpt)
	q.Enqueue(e1)
	q.Enqueue(e2)

	var got []attempt
	q.Flush(context.Background(), func(_ context.Context, evt Event, to string) error {
		got = append(got, attempt{event: evt.Subject, to: to})
		return nil
	})

	want := []attempt{
		{"first", "a@example.com"},
		{"first", "b@example.com"},
		{"second", "a@example.com"},
		{"second", "b@example.com"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d attempts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue drained, got %d", q.Len())
	}
}

func TestFlushRecipientFailureDoesNotBlockOthers(t *testing.T) {
	q, buf := newTestQueue()
	q.Enqueue(NewEvent("lost", "body", time.Now(), []string{"a", "b", "c"}))

	var tried []string
	res := q.Flush(context.Background(), func(_ context.Context, _ Event, to string) error {
		tried = append(tried, to)
		if to == "b" {
			return errors.New("smtp unreachable")
		}
		return nil
	})

	if strings.Join(tried, ",") != "a,b,c" {
		t.Fatalf("expected a,b,c attempted in order, got %v", tried)
	}
	if res.Failures != 1 || res.Attempts != 3 {
		t.Fatalf("expected 3 attempts and 1 failure, got %+v", res)
	}
	if q.Len() != 0 {
		t.Fatalf("expected event removed after one pass, got %d pending", q.Len())
	}
	if n := strings.Count(buf.String(), "level=ERROR"); n != 1 {
		t.Fatalf("expected exactly one error line, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "to=b") {
		t.Fatalf("expected failure logged for b:\n%s", buf.String())
	}
}

func TestNewEventCopiesRecipients(t *testing.T) {
	rcpt := []string{"a"}
	evt := NewEvent("s", "b", time.Now(), rcpt)
	rcpt[0] = "changed"
	if evt.Recipients[0] != "a" {
		t.Fatalf("expected recipients to be copied, got %v", evt.Recipients)
	}
	if evt.ID == "" {
		t.Fatalf("expected event id to be set")
	}
}
