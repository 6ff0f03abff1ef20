// Package probe answers one question: is the target reachable right now.
//
// A probe only returns an error for faults in the way it was invoked, such
// as a malformed host or a missing ping binary. An unreachable host is a
// plain false.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidHost = errors.New("invalid probe host")

// Prober performs a single reachability check.
type Prober interface {
	Check(ctx context.Context, host string) (bool, error)
}

// Func adapts a plain function to Prober.
type Func func(ctx context.Context, host string) (bool, error)

func (f Func) Check(ctx context.Context, host string) (bool, error) {
	return f(ctx, host)
}

// Result is one probe reading.
type Result struct {
	Seq      uint64
	At       time.Time
	OK       bool
	Duration time.Duration
}

// Kinds lists the probe implementations New understands.
var Kinds = []string{"exec", "tcp", "icmp"}

// New returns the prober registered under kind.
func New(kind string, timeout time.Duration) (Prober, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "exec", "ping":
		return Exec{Timeout: timeout}, nil
	case "tcp":
		return TCP{Timeout: timeout}, nil
	case "icmp":
		return ICMP{Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("unknown probe %q (want one of %s)", kind, strings.Join(Kinds, ", "))
	}
}

// ValidateHost rejects strings that cannot name a host, including anything
// that a ping binary would parse as an option.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: empty", ErrInvalidHost)
	}
	if strings.HasPrefix(host, "-") {
		return fmt.Errorf("%w: %q starts with '-'", ErrInvalidHost, host)
	}
	if strings.ContainsAny(host, " \t\r\n/\\") {
		return fmt.Errorf("%w: %q contains whitespace or path separators", ErrInvalidHost, host)
	}
	return nil
}
