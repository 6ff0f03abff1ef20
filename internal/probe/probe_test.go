package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// fakeExec re-runs the test binary as a stand-in for ping. The helper
// process exits with PROBE_EXIT_CODE.
func fakeExec(exitCode string, seen *[]string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*seen = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(), "PROBE_HELPER=1", "PROBE_EXIT_CODE="+exitCode)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("PROBE_HELPER") != "1" {
		return
	}
	if os.Getenv("PROBE_EXIT_CODE") == "0" {
		os.Exit(0)
	}
	os.Exit(1)
}

func TestExecReachable(t *testing.T) {
	original := execCommand
	defer func() { execCommand = original }()
	var seen []string
	execCommand = fakeExec("0", &seen)

	ok, err := Exec{Timeout: 2 * time.Second}.Check(context.Background(), "8.8.8.8")
	if err != nil || !ok {
		t.Fatalf("expected reachable, got ok=%v err=%v", ok, err)
	}
	want := "ping " + strings.Join(pingArgs(runtime.GOOS, 2*time.Second, "8.8.8.8"), " ")
	if got := strings.Join(seen, " "); got != want {
		t.Fatalf("expected command line %q, got %q", want, got)
	}
}

func TestPingArgsPerPlatform(t *testing.T) {
	tests := []struct {
		goos    string
		timeout time.Duration
		want    string
	}{
		{"linux", 5 * time.Second, "-c 1 -W 5 8.8.8.8"},
		{"linux", 200 * time.Millisecond, "-c 1 -W 1 8.8.8.8"},
		{"darwin", 5 * time.Second, "-c 1 -t 5 8.8.8.8"},
		{"freebsd", 3 * time.Second, "-c 1 -t 3 8.8.8.8"},
		{"openbsd", 5 * time.Second, "-c 1 -w 5 8.8.8.8"},
		{"windows", 5 * time.Second, "-n 1 -w 5000 8.8.8.8"},
		{"plan9", 5 * time.Second, "-c 1 8.8.8.8"},
		{"darwin", 0, "-c 1 8.8.8.8"},
	}

	for _, tt := range tests {
		got := strings.Join(pingArgs(tt.goos, tt.timeout, "8.8.8.8"), " ")
		if got != tt.want {
			t.Fatalf("%s/%s: expected %q, got %q", tt.goos, tt.timeout, tt.want, got)
		}
		if tt.goos != "linux" && strings.Contains(got, "-W") {
			t.Fatalf("%s: -W is a millisecond flag there, got %q", tt.goos, got)
		}
	}
}

func TestExecUnreachableIsNotAnError(t *testing.T) {
	original := execCommand
	defer func() { execCommand = original }()
	var seen []string
	execCommand = fakeExec("1", &seen)

	ok, err := Exec{}.Check(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("expected no error for unreachable host, got %v", err)
	}
	if ok {
		t.Fatalf("expected unreachable")
	}
}

func TestExecMissingBinaryIsAnError(t *testing.T) {
	ok, err := Exec{Binary: "connwatch-no-such-ping"}.Check(context.Background(), "8.8.8.8")
	if err == nil || ok {
		t.Fatalf("expected invocation error, got ok=%v err=%v", ok, err)
	}
}

func TestValidateHostRejectsMalformed(t *testing.T) {
	for _, host := range []string{"", "-c10", "bad host", "a/b"} {
		if err := ValidateHost(host); !errors.Is(err, ErrInvalidHost) {
			t.Fatalf("expected ErrInvalidHost for %q, got %v", host, err)
		}
	}
	for _, host := range []string{"8.8.8.8", "example.com", "::1", "1.1.1.1:53"} {
		if err := ValidateHost(host); err != nil {
			t.Fatalf("expected %q to be valid, got %v", host, err)
		}
	}
}

func TestTCPAppendsDefaultPort(t *testing.T) {
	original := dialContext
	defer func() { dialContext = original }()

	var addr string
	dialContext = func(_ context.Context, _, address string) (net.Conn, error) {
		addr = address
		c1, c2 := net.Pipe()
		_ = c2.Close()
		return c1, nil
	}

	ok, err := TCP{}.Check(context.Background(), "1.1.1.1")
	if err != nil || !ok {
		t.Fatalf("expected reachable, got ok=%v err=%v", ok, err)
	}
	if addr != "1.1.1.1:53" {
		t.Fatalf("expected 1.1.1.1:53, got %s", addr)
	}
}

func TestTCPDialFailureIsUnreachable(t *testing.T) {
	original := dialContext
	defer func() { dialContext = original }()
	dialContext = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connect: network is unreachable")
	}

	ok, err := TCP{}.Check(context.Background(), "example.com:443")
	if err != nil || ok {
		t.Fatalf("expected unreachable without error, got ok=%v err=%v", ok, err)
	}
}

func TestNewKnowsEveryKind(t *testing.T) {
	for _, kind := range Kinds {
		if _, err := New(kind, time.Second); err != nil {
			t.Fatalf("expected %s to be known, got %v", kind, err)
		}
	}
	if _, err := New("carrier-pigeon", time.Second); err == nil {
		t.Fatalf("expected error for unknown probe")
	}
}

func TestICMPSendFailureIsUnreachable(t *testing.T) {
	original := runPinger
	defer func() { runPinger = original }()

	sendErrs := []error{
		&net.OpError{Op: "write", Net: "ip4", Err: os.NewSyscallError("sendto", syscall.ENETUNREACH)},
		&net.OpError{Op: "write", Net: "ip6", Err: os.NewSyscallError("sendto", syscall.EHOSTUNREACH)},
		os.NewSyscallError("sendto", syscall.EHOSTDOWN),
	}
	for _, sendErr := range sendErrs {
		runPinger = func(context.Context, *probing.Pinger) error { return sendErr }

		ok, err := ICMP{Privileged: true}.Check(context.Background(), "8.8.8.8")
		if err != nil || ok {
			t.Fatalf("expected unreachable without error for %v, got ok=%v err=%v", sendErr, ok, err)
		}
	}
}

func TestICMPSocketErrorIsAnError(t *testing.T) {
	original := runPinger
	defer func() { runPinger = original }()

	denied := &net.OpError{Op: "listen", Net: "ip4:icmp", Err: os.NewSyscallError("socket", syscall.EPERM)}
	runPinger = func(context.Context, *probing.Pinger) error { return denied }

	ok, err := ICMP{Privileged: true}.Check(context.Background(), "8.8.8.8")
	if !errors.Is(err, syscall.EPERM) || ok {
		t.Fatalf("expected permission error, got ok=%v err=%v", ok, err)
	}
}
