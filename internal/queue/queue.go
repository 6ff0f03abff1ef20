package queue

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Event is a notification waiting to be delivered to every recipient.
type Event struct {
	ID         string
	Subject    string
	Body       string
	CreatedAt  time.Time
	Recipients []string
}

// NewEvent builds an event with a fresh ID. The recipient slice is copied.
func NewEvent(subject, body string, createdAt time.Time, recipients []string) Event {
	rcpt := make([]string, len(recipients))
	copy(rcpt, recipients)
	return Event{
		ID:         uuid.NewString(),
		Subject:    subject,
		Body:       body,
		CreatedAt:  createdAt,
		Recipients: rcpt,
	}
}

// SendFunc delivers one event to one recipient.
type SendFunc func(ctx context.Context, evt Event, recipient string) error

// FlushResult summarises a flush.
type FlushResult struct {
	Events   int
	Attempts int
	Failures int
}

// Queue is an unbounded FIFO of pending events. It is owned by a single
// goroutine and does no locking.
type Queue struct {
	events []Event
	logger *slog.Logger
}

// New returns an empty queue.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return &Queue{logger: logger}
}

// Enqueue appends an event.
func (q *Queue) Enqueue(evt Event) {
	q.events = append(q.events, evt)
	q.logger.Info("email notification queued", "event", evt.ID, "recipients", len(evt.Recipients), "pending", len(q.events))
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Flush drains the queue in FIFO order, calling send once per recipient.
// Every event is dropped after one pass over its recipients whatever the
// outcome; failures are logged, not re-queued.
func (q *Queue) Flush(ctx context.Context, send SendFunc) FlushResult {
	var res FlushResult
	for len(q.events) > 0 {
		evt := q.events[0]
		q.events[0] = Event{}
		q.events = q.events[1:]
		res.Events++

		for _, rcpt := range evt.Recipients {
			res.Attempts++
			if err := send(ctx, evt, rcpt); err != nil {
				res.Failures++
				q.logger.Error("failed to send queued email", "event", evt.ID, "to", rcpt, "err", err)
				continue
			}
			q.logger.Info("queued email sent", "event", evt.ID, "to", rcpt)
		}
	}
	// release the backing array once drained
	q.events = nil
	return res
}
