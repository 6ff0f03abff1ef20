package state

import "time"

// State is the last known connectivity of the probe target.
type State int

const (
	Unknown State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// FromProbe maps a probe outcome to a state.
func FromProbe(ok bool) State {
	if ok {
		return Connected
	}
	return Disconnected
}

// Transition is the outcome of feeding one reading to a Tracker.
type Transition struct {
	From State
	To   State
	At   time.Time
	// Since is the time the previous state was entered. Zero for the first
	// observation.
	Since time.Time
}

// Initial reports whether this is the first observed state.
func (t Transition) Initial() bool {
	return t.From == Unknown && t.To != Unknown
}

// Changed reports a genuine flip between Connected and Disconnected.
func (t Transition) Changed() bool {
	return t.From != Unknown && t.From != t.To
}

// Lost reports a Connected -> Disconnected edge.
func (t Transition) Lost() bool {
	return t.From == Connected && t.To == Disconnected
}

// Recovered reports a Disconnected -> Connected edge.
func (t Transition) Recovered() bool {
	return t.From == Disconnected && t.To == Connected
}

// Duration is how long the previous state lasted.
func (t Transition) Duration() time.Duration {
	if t.Since.IsZero() {
		return 0
	}
	return t.At.Sub(t.Since)
}

// Tracker holds the current connectivity state and turns probe readings
// into transitions. It is not safe for concurrent use.
type Tracker struct {
	current  State
	since    time.Time
	debounce int

	pending      State
	pendingCount int
}

// NewTracker returns a tracker in the Unknown state. A debounce of n
// requires n consecutive readings that disagree with the current state
// before a flip is declared; values below 1 mean every reading counts.
func NewTracker(debounce int) *Tracker {
	if debounce < 1 {
		debounce = 1
	}
	return &Tracker{debounce: debounce}
}

// Current returns the last declared state.
func (t *Tracker) Current() State {
	return t.current
}

// Since returns the time the current state was entered.
func (t *Tracker) Since() time.Time {
	return t.since
}

// Observe records a probe outcome taken at the given time.
func (t *Tracker) Observe(ok bool, at time.Time) Transition {
	next := FromProbe(ok)
	prev := t.current

	// the first reading is always accepted as is
	if prev == Unknown {
		t.current = next
		t.since = at
		t.resetPending()
		return Transition{From: Unknown, To: next, At: at}
	}

	if next == prev {
		t.resetPending()
		return Transition{From: prev, To: prev, At: at, Since: t.since}
	}

	if t.pending != next {
		t.pending = next
		t.pendingCount = 0
	}
	t.pendingCount++
	if t.pendingCount < t.debounce {
		return Transition{From: prev, To: prev, At: at, Since: t.since}
	}

	since := t.since
	t.current = next
	t.since = at
	t.resetPending()
	return Transition{From: prev, To: next, At: at, Since: since}
}

func (t *Tracker) resetPending() {
	t.pending = Unknown
	t.pendingCount = 0
}
