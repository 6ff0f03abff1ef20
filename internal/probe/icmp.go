package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

var runPinger = func(ctx context.Context, p *probing.Pinger) error {
	return p.RunWithContext(ctx)
}

// ICMP sends a single echo request through pro-bing. Unprivileged mode
// uses UDP ping sockets, which Linux only allows when net.ipv4.ping_group_range
// covers the process group.
type ICMP struct {
	Timeout    time.Duration
	Privileged bool
}

func (p ICMP) Check(ctx context.Context, host string) (bool, error) {
	if err := ValidateHost(host); err != nil {
		return false, err
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		// name resolution fails while offline
		return false, nil
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = 4 * time.Second
	}
	pinger.SetPrivileged(p.Privileged)

	if err := runPinger(ctx, pinger); err != nil {
		if sendFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("icmp ping %s: %w", host, err)
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}

// sendFailed reports whether err came from writing the echo request, which
// is what a dropped link looks like. Socket creation and permission errors
// are not send failures.
func sendFailed(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "write" {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EHOSTDOWN)
}
