package connevent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "connwatch"

// Publisher sends connectivity messages to NATS under a subject prefix.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

var hostname = os.Hostname

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{
		nc:     nc,
		prefix: prefix,
	}
}

// Publish sends a transition to NATS on <prefix>.<host>. The message ID
// doubles as the JetStream dedup header so a retried publish is dropped.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := p.natsMsg(msg)
	if err != nil {
		return err
	}
	return p.nc.PublishMsg(out)
}

func (p *Publisher) natsMsg(msg Message) (*nats.Msg, error) {
	if msg.ChangedAt.IsZero() {
		msg.ChangedAt = time.Now().UTC()
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg = applyHostDefault(msg)
	payload, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	out := nats.NewMsg(p.Subject(msg.Host))
	out.Data = payload
	out.Header.Set(nats.MsgIdHdr, msg.ID)
	return out, nil
}

// Subject returns the full subject for a watchdog host.
func (p *Publisher) Subject(host string) string {
	return Subject(p.prefix, host)
}

// Subject joins a prefix and a host name into a NATS subject. Dots and
// wildcards in the host are replaced so it stays a single token.
func Subject(prefix, host string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if host == "" {
		host = "unknown"
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, host)
	return fmt.Sprintf("%s.%s", prefix, token)
}

// Wildcard returns the subject matching every host under prefix.
func Wildcard(prefix string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ".>"
}

func applyHostDefault(msg Message) Message {
	if msg.Host != "" {
		return msg
	}
	if host, err := hostname(); err == nil && host != "" {
		msg.Host = host
	}
	return msg
}
