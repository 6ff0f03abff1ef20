package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/venkytv/connwatch/internal/notifier"
	"github.com/venkytv/connwatch/internal/probe"
	"github.com/venkytv/connwatch/internal/queue"
	"github.com/venkytv/connwatch/internal/state"
)

var ErrAlreadyStarted = errors.New("monitor already started")

type Config struct {
	Target       string
	Interval     time.Duration
	ProbeTimeout time.Duration
	Recipients   []string
	Debounce     int
	StatusAddr   string
	Debug        bool
	Logger       *slog.Logger
}

// Phase is the lifecycle of a Monitor.
type Phase int

const (
	Idle Phase = iota
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Monitor probes the target on a fixed cadence, tracks connectivity and
// dispatches notifications on transitions. Probe, tracker, queue and
// dispatch all run on the goroutine calling Run.
type Monitor struct {
	cfg      Config
	prober   probe.Prober
	notifier notifier.Notifier
	mailer   notifier.Mailer
	logger   *slog.Logger

	tracker *state.Tracker
	queue   *queue.Queue
	checks  uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu     sync.Mutex
	phase  Phase
	status Status
}

func New(p probe.Prober, n notifier.Notifier, m notifier.Mailer, cfg Config) (*Monitor, error) {
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if p == nil {
		return nil, errors.New("prober is required")
	}
	if m == nil {
		return nil, errors.New("mailer is required")
	}
	if n == nil {
		n = notifier.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}
	recipients := make([]string, len(cfg.Recipients))
	copy(recipients, cfg.Recipients)
	cfg.Recipients = recipients

	return &Monitor{
		cfg:      cfg,
		prober:   p,
		notifier: n,
		mailer:   m,
		logger:   logger,
		tracker:  state.NewTracker(cfg.Debounce),
		queue:    queue.New(logger),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		status: Status{
			Target:   cfg.Target,
			State:    state.Unknown.String(),
			Phase:    Idle.String(),
			Interval: cfg.Interval.String(),
		},
	}, nil
}

// Run loops until ctx is cancelled or Stop is called. Either is honoured
// between iterations; an iteration in progress always completes. Run
// returns an error only when the loop had to give up: a probe that could
// not be invoked, or a panic in the loop body.
func (m *Monitor) Run(ctx context.Context) (err error) {
	m.mu.Lock()
	if m.phase != Idle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.phase = Running
	m.status.Phase = Running.String()
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitor loop crashed", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("monitor loop panic: %v", r)
		}
		m.mu.Lock()
		m.phase = Stopped
		m.status.Phase = Stopped.String()
		m.mu.Unlock()
		close(m.doneCh)
	}()

	if m.cfg.StatusAddr != "" {
		stopStatus := m.serveStatus(m.cfg.StatusAddr)
		defer stopStatus()
	}

	m.logger.Info("starting connection monitoring", "target", m.cfg.Target, "interval", m.cfg.Interval, "recipients", len(m.cfg.Recipients))
	for {
		if m.stopping(ctx) {
			break
		}
		if err := m.step(ctx); err != nil {
			m.logger.Error("monitor stopping on probe failure", "err", err)
			return err
		}
		if !m.wait(ctx) {
			break
		}
	}
	m.logger.Info("monitoring stopped", "checks", m.checks, "pending_emails", m.queue.Len())
	return nil
}

// Stop asks the loop to exit after the current iteration. It does not wait;
// use Done for that.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Done is closed once Run has returned.
func (m *Monitor) Done() <-chan struct{} {
	return m.doneCh
}

// Phase returns the lifecycle phase.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Monitor) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

func (m *Monitor) wait(ctx context.Context) bool {
	if m.stopping(ctx) {
		return false
	}
	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-m.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// step runs one probe and handles its outcome. Work inside a step uses a
// context detached from ctx so a shutdown never interrupts a probe or a
// mail submission half way; the configured timeouts bound them instead.
func (m *Monitor) step(ctx context.Context) error {
	work := context.WithoutCancel(ctx)

	res, err := m.probe(work)
	if err != nil {
		return err
	}

	m.logger.Info("status", "status", state.FromProbe(res.OK).String(), "check", res.Seq)
	tr := m.tracker.Observe(res.OK, res.At)
	m.handle(work, res, tr)
	m.publish(res)
	return nil
}

func (m *Monitor) probe(ctx context.Context) (probe.Result, error) {
	if m.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		defer cancel()
	}

	started := time.Now()
	ok, err := m.prober.Check(ctx, m.cfg.Target)
	if err != nil {
		return probe.Result{}, fmt.Errorf("probe %s: %w", m.cfg.Target, err)
	}
	m.checks++
	return probe.Result{
		Seq:      m.checks,
		At:       started,
		OK:       ok,
		Duration: time.Since(started),
	}, nil
}

func (m *Monitor) handle(ctx context.Context, res probe.Result, tr state.Transition) {
	if tr.Initial() {
		m.logger.Info("initial status", "status", tr.To.String(), "check", res.Seq)
		return
	}
	if !tr.Changed() {
		return
	}

	evt := notifier.Event{
		Target: m.cfg.Target,
		From:   tr.From,
		To:     tr.To,
		At:     tr.At,
		Check:  res.Seq,
	}

	switch {
	case tr.Lost():
		m.logger.Warn("status change detected", "status", tr.To.String(), "check", res.Seq)
		if err := m.notifier.Alert(ctx, evt); err != nil {
			m.logger.Error("alert notify failed", "err", err)
		}
		subject, body := notifier.LostMessage(tr.At)
		m.queue.Enqueue(queue.NewEvent(subject, body, tr.At, m.cfg.Recipients))

	case tr.Recovered():
		evt.Downtime = tr.Duration()
		m.logger.Warn("status change detected", "status", tr.To.String(), "check", res.Seq, "downtime", evt.Downtime.Round(time.Second))
		if err := m.notifier.Resolved(ctx, evt); err != nil {
			m.logger.Error("resolved notify failed", "err", err)
		}
		m.flush(ctx)
	}
}

func (m *Monitor) flush(ctx context.Context) {
	res := m.queue.Flush(ctx, func(ctx context.Context, evt queue.Event, to string) error {
		return m.mailer.Send(ctx, to, evt.Subject, evt.Body)
	})
	if res.Events == 0 {
		return
	}
	m.logger.Info("email queue flushed", "events", res.Events, "attempts", res.Attempts, "failures", res.Failures)
}
