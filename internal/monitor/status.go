package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/venkytv/connwatch/internal/probe"
)

// Status is a point-in-time view of the monitor for the status endpoint.
type Status struct {
	ObservedAt    time.Time `json:"observed_at"`
	Target        string    `json:"target"`
	Phase         string    `json:"phase"`
	State         string    `json:"state"`
	StateSince    time.Time `json:"state_since"`
	Checks        uint64    `json:"checks"`
	LastCheck     time.Time `json:"last_check"`
	LastOK        bool      `json:"last_ok"`
	LastProbe     string    `json:"last_probe,omitempty"`
	Interval      string    `json:"interval"`
	PendingEmails int       `json:"pending_emails"`
}

// publish copies loop-owned state into the snapshot read by Snapshot.
func (m *Monitor) publish(res probe.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.State = m.tracker.Current().String()
	m.status.StateSince = m.tracker.Since()
	m.status.Checks = res.Seq
	m.status.LastCheck = res.At
	m.status.LastOK = res.OK
	m.status.LastProbe = res.Duration.Round(time.Millisecond).String()
	m.status.PendingEmails = m.queue.Len()
}

// Snapshot returns the latest published status. Safe to call from any
// goroutine.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	s.ObservedAt = time.Now().UTC()
	return s
}

// StatusHandler serves Snapshot as JSON.
func (m *Monitor) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Snapshot()); err != nil {
			m.logger.Error("encode status failed", "err", err)
		}
	})
}

// serveStatus starts the status endpoint and returns a function that shuts
// it down.
func (m *Monitor) serveStatus(addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.StatusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		m.logger.Info("status endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("status endpoint failed", "addr", addr, "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			m.logger.Warn("status endpoint shutdown", "err", err)
		}
	}
}
