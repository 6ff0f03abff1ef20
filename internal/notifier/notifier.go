package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venkytv/connwatch/internal/state"
)

// Event captures a connectivity transition.
type Event struct {
	Target   string
	From     state.State
	To       state.State
	At       time.Time
	Check    uint64
	Downtime time.Duration // how long the link was down, set on recovery
}

// Notifier sends alerts and resolutions to downstream channels.
type Notifier interface {
	Alert(ctx context.Context, evt Event) error
	Resolved(ctx context.Context, evt Event) error
}

// Nop is a no-op notifier useful in tests.
type Nop struct{}

func (Nop) Alert(_ context.Context, _ Event) error    { return nil }
func (Nop) Resolved(_ context.Context, _ Event) error { return nil }

// Named pairs a notifier with the name used in logs.
type Named struct {
	Name     string
	Notifier Notifier
}

// Multi fans a transition out to every channel. A failing channel never
// prevents the others from being called; all failures come back joined.
type Multi struct {
	channels []Named
}

func NewMulti(channels ...Named) *Multi {
	return &Multi{channels: channels}
}

// Add registers another channel.
func (m *Multi) Add(name string, n Notifier) {
	m.channels = append(m.channels, Named{Name: name, Notifier: n})
}

// Len returns the number of registered channels.
func (m *Multi) Len() int {
	return len(m.channels)
}

func (m *Multi) Alert(ctx context.Context, evt Event) error {
	return m.each(func(n Notifier) error { return n.Alert(ctx, evt) })
}

func (m *Multi) Resolved(ctx context.Context, evt Event) error {
	return m.each(func(n Notifier) error { return n.Resolved(ctx, evt) })
}

func (m *Multi) each(call func(Notifier) error) error {
	var errs []error
	for _, ch := range m.channels {
		if err := safeCall(ch.Notifier, call); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}
	return errors.Join(errs...)
}

// safeCall turns a panicking channel into an error.
func safeCall(n Notifier, call func(Notifier) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return call(n)
}
