package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pushover sends notifications via the pushover API. While the link is
// down the alert call fails like any other network request; the resolution
// goes out once connectivity is back.
type Pushover struct {
	Token    string
	User     string
	Endpoint string
	Client   *http.Client
}

func (p Pushover) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (p Pushover) Alert(ctx context.Context, evt Event) error {
	return p.send(ctx, "Internet connection lost", fmt.Sprintf("%s unreachable at %s (check #%d)", evt.Target, evt.At.Format(time.RFC3339), evt.Check))
}

func (p Pushover) Resolved(ctx context.Context, evt Event) error {
	return p.send(ctx, "Internet connection restored", fmt.Sprintf("%s reachable again at %s after %s", evt.Target, evt.At.Format(time.RFC3339), evt.Downtime.Round(time.Second)))
}

func (p Pushover) send(ctx context.Context, title, message string) error {
	if p.Token == "" || p.User == "" {
		return errors.New("pushover token and user are required")
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://api.pushover.net/1/messages.json"
	}
	data := url.Values{}
	data.Set("token", p.Token)
	data.Set("user", p.User)
	data.Set("title", title)
	data.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushover returned status %s", resp.Status)
	}
	return nil
}
