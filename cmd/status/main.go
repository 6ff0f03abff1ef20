package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

type statusResponse struct {
	ObservedAt    time.Time `json:"observed_at"`
	Target        string    `json:"target"`
	Phase         string    `json:"phase"`
	State         string    `json:"state"`
	StateSince    time.Time `json:"state_since"`
	Checks        uint64    `json:"checks"`
	LastCheck     time.Time `json:"last_check"`
	LastOK        bool      `json:"last_ok"`
	LastProbe     string    `json:"last_probe"`
	Interval      string    `json:"interval"`
	PendingEmails int       `json:"pending_emails"`
}

func main() {
	statusURL := flag.String("url", envDefault("STATUS_URL", "http://127.0.0.1:8080/"), "Status endpoint URL")
	timeout := flag.Duration("timeout", envDuration("STATUS_TIMEOUT", 3*time.Second), "HTTP request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := fetchStatus(ctx, *statusURL)
	if err != nil {
		log.Fatalf("fetch status: %v", err)
	}

	printStatus(resp, os.Stdout)
}

func fetchStatus(ctx context.Context, url string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusResponse{}, fmt.Errorf("build request: %w", err)
	}

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return statusResponse{}, fmt.Errorf("request status: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return statusResponse{}, fmt.Errorf("unexpected status %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var status statusResponse
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return statusResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return status, nil
}

func printStatus(resp statusResponse, w io.Writer) {
	if resp.ObservedAt.IsZero() {
		resp.ObservedAt = time.Now()
	}
	fmt.Fprintf(w, "Observed at: %s\n", resp.ObservedAt.Format(time.RFC3339))

	if resp.Checks == 0 {
		fmt.Fprintf(w, "No checks run yet against %s (monitor %s).\n", fallback(resp.Target, "-"), fallback(resp.Phase, "idle"))
		return
	}
	fmt.Fprintln(w)

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tTARGET\tSINCE\tCHECKS\tLAST CHECK\tDETAILS")
	status, details := summarize(resp)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", status, resp.Target, formatTime(resp.StateSince), resp.Checks, formatTime(resp.LastCheck), details)
	_ = tw.Flush()

	out := buf.String()
	if shouldColor(w) {
		out = colorizeStatuses(out)
	}

	fmt.Fprint(w, out)
	fmt.Fprintf(w, "\n%d email notification(s) pending, monitor %s\n", resp.PendingEmails, fallback(resp.Phase, "idle"))
}

func summarize(s statusResponse) (string, string) {
	details := fmt.Sprintf("interval %s, last probe %s", s.Interval, fallback(s.LastProbe, "-"))
	switch s.State {
	case "Connected":
		if !s.LastOK {
			// debounce is holding the state while readings disagree
			return "FLAKY", details + ", last reading failed"
		}
		return "UP", details
	case "Disconnected":
		if !s.StateSince.IsZero() {
			details = fmt.Sprintf("down for %s, %s", s.ObservedAt.Sub(s.StateSince).Round(time.Second), details)
		}
		return "DOWN", details
	default:
		return "UNKNOWN", details
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func fallback(v, defaultVal string) string {
	if strings.TrimSpace(v) == "" {
		return defaultVal
	}
	return v
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func shouldColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func applyColor(s string, colorize bool, code int) string {
	if !colorize {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

func colorizeStatuses(out string) string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "STATUS") {
			continue
		}
		spaceIdx := strings.IndexByte(line, ' ')
		if spaceIdx <= 0 {
			continue
		}
		status := line[:spaceIdx]
		rest := line[spaceIdx:]

		switch status {
		case "DOWN":
			status = applyColor(status, true, 31)
		case "FLAKY", "UNKNOWN":
			status = applyColor(status, true, 33)
		case "UP":
			status = applyColor(status, true, 32)
		default:
			// leave as-is
		}
		lines[i] = status + rest
	}
	return strings.Join(lines, "\n")
}
