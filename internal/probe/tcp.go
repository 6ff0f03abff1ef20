package probe

import (
	"context"
	"net"
	"strings"
	"time"
)

var dialContext = (&net.Dialer{}).DialContext

// TCP treats a successful TCP handshake as reachability. Hosts without a
// port are dialled on 53, which public resolvers answer.
type TCP struct {
	Timeout time.Duration
}

func (p TCP) Check(ctx context.Context, host string) (bool, error) {
	if err := ValidateHost(host); err != nil {
		return false, err
	}

	address := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		address = net.JoinHostPort(strings.Trim(host, "[]"), "53")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialContext(ctx, "tcp", address)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}
