package notifier

import (
	"context"

	"github.com/venkytv/connwatch/pkg/connevent"
)

// Publisher is the part of connevent.Publisher the NATS channel needs.
type Publisher interface {
	Publish(ctx context.Context, msg connevent.Message) error
}

// NATS publishes every transition as a connevent.Message. The nats client
// buffers publishes while it is reconnecting, so events raised during an
// outage go out once the server is reachable again.
type NATS struct {
	Publisher Publisher
}

func (n NATS) Alert(ctx context.Context, evt Event) error {
	return n.Publisher.Publish(ctx, message(evt))
}

func (n NATS) Resolved(ctx context.Context, evt Event) error {
	return n.Publisher.Publish(ctx, message(evt))
}

func message(evt Event) connevent.Message {
	return connevent.Message{
		Target:    evt.Target,
		From:      evt.From.String(),
		To:        evt.To.String(),
		ChangedAt: evt.At.UTC(),
		Check:     evt.Check,
		Downtime:  evt.Downtime,
	}
}
