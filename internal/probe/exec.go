package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

var execCommand = exec.CommandContext

// Exec runs the system ping binary once.
type Exec struct {
	Binary  string
	Timeout time.Duration
}

func (e Exec) Check(ctx context.Context, host string) (bool, error) {
	if err := ValidateHost(host); err != nil {
		return false, err
	}
	bin := e.Binary
	if bin == "" {
		bin = "ping"
	}

	if e.Timeout > 0 {
		ctxTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
		defer cancel()
		ctx = ctxTimeout
	}

	err := execCommand(ctx, bin, pingArgs(runtime.GOOS, e.Timeout, host)...).Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	// killed by our own deadline
	if ctx.Err() != nil {
		return false, nil
	}
	return false, fmt.Errorf("run %s: %w", bin, err)
}

// pingArgs builds a single-echo command line for the ping found on goos.
// The reply timeout flag differs per platform: Linux -W takes seconds while
// the BSD family uses -W for milliseconds, so darwin and FreeBSD get -t.
// Platforms without a known flag rely on the context deadline alone.
func pingArgs(goos string, timeout time.Duration, host string) []string {
	secs := int(timeout / time.Second)
	if timeout > 0 && secs < 1 {
		secs = 1
	}

	if goos == "windows" {
		args := []string{"-n", "1"}
		if timeout > 0 {
			args = append(args, "-w", strconv.FormatInt(timeout.Milliseconds(), 10))
		}
		return append(args, host)
	}

	args := []string{"-c", "1"}
	if timeout > 0 {
		switch goos {
		case "linux", "android":
			args = append(args, "-W", strconv.Itoa(secs))
		case "darwin", "ios", "freebsd", "dragonfly":
			args = append(args, "-t", strconv.Itoa(secs))
		case "openbsd", "netbsd":
			args = append(args, "-w", strconv.Itoa(secs))
		}
	}
	return append(args, host)
}
