package connevent

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message describes a connectivity transition exchanged over NATS.
type Message struct {
	ID        string        `json:"id"`
	Host      string        `json:"host,omitempty"` // machine running the watchdog
	Target    string        `json:"target"`         // probed host
	From      string        `json:"from"`
	To        string        `json:"to"`
	ChangedAt time.Time     `json:"changed_at"`
	Check     uint64        `json:"check"`
	Downtime  time.Duration `json:"downtime,omitempty"` // set on recovery
}

var states = map[string]bool{
	"Connected":    true,
	"Disconnected": true,
}

// Marshal renders the message as JSON for transport.
func (m Message) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Unmarshal decodes a connectivity message from JSON.
func Unmarshal(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, msg.Validate()
}

// Validate ensures required fields are present and well-formed.
func (m Message) Validate() error {
	if m.Target == "" {
		return errors.New("target is required")
	}
	if m.ChangedAt.IsZero() {
		return errors.New("changed_at is required")
	}
	if !states[m.From] || !states[m.To] {
		return fmt.Errorf("invalid transition %q -> %q", m.From, m.To)
	}
	if m.From == m.To {
		return fmt.Errorf("transition must change state, got %q twice", m.To)
	}
	if m.Downtime < 0 {
		return errors.New("downtime cannot be negative")
	}
	return nil
}
