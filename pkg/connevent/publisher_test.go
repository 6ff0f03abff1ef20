package connevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestApplyHostDefaultKeepsProvidedHost(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "ignored-hostname", nil }

	msg := Message{Host: "explicit"}
	got := applyHostDefault(msg)
	if got.Host != "explicit" {
		t.Fatalf("expected host to remain explicit, got %q", got.Host)
	}
}

func TestApplyHostDefaultUsesHostnameWhenEmpty(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "local-host", nil }

	got := applyHostDefault(Message{})
	if got.Host != "local-host" {
		t.Fatalf("expected host to default to hostname, got %q", got.Host)
	}
}

func TestApplyHostDefaultIgnoresHostnameErrors(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "", errors.New("lookup failed") }

	got := applyHostDefault(Message{})
	if got.Host != "" {
		t.Fatalf("expected empty host when lookup fails, got %q", got.Host)
	}
}

func TestSubjectKeepsHostAsSingleToken(t *testing.T) {
	if got := Subject("connwatch.", "laptop.local"); got != "connwatch.laptop_local" {
		t.Fatalf("expected connwatch.laptop_local, got %s", got)
	}
	if got := Subject("", ""); got != "connwatch.unknown" {
		t.Fatalf("expected defaults, got %s", got)
	}
	if got := Wildcard("office"); got != "office.>" {
		t.Fatalf("expected office.>, got %s", got)
	}
}

func TestNatsMsgCarriesOnlyDedupHeader(t *testing.T) {
	original := hostname
	defer func() { hostname = original }()
	hostname = func() (string, error) { return "laptop", nil }

	p := NewPublisher(nil, "office")
	out, err := p.natsMsg(Message{Target: "8.8.8.8", From: "Connected", To: "Disconnected"})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if out.Subject != "office.laptop" {
		t.Fatalf("expected office.laptop, got %s", out.Subject)
	}
	if len(out.Header) != 1 || out.Header.Get(nats.MsgIdHdr) == "" {
		t.Fatalf("expected only the message id header, got %v", out.Header)
	}

	got, err := Unmarshal(out.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != out.Header.Get(nats.MsgIdHdr) || got.ChangedAt.IsZero() {
		t.Fatalf("expected id and timestamp defaults applied, got %+v", got)
	}
}

func TestPublishRefusesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPublisher(nil, "").Publish(ctx, Message{Target: "8.8.8.8", From: "Connected", To: "Disconnected"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMessageValidate(t *testing.T) {
	valid := Message{Target: "8.8.8.8", From: "Connected", To: "Disconnected", ChangedAt: time.Now()}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}

	cases := map[string]Message{
		"missing target": {From: "Connected", To: "Disconnected", ChangedAt: time.Now()},
		"missing time":   {Target: "x", From: "Connected", To: "Disconnected"},
		"unknown state":  {Target: "x", From: "Unknown", To: "Connected", ChangedAt: time.Now()},
		"no change":      {Target: "x", From: "Connected", To: "Connected", ChangedAt: time.Now()},
	}
	for name, msg := range cases {
		if err := msg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	msg := Message{
		ID:        "abc",
		Host:      "laptop",
		Target:    "8.8.8.8",
		From:      "Disconnected",
		To:        "Connected",
		ChangedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Check:     42,
		Downtime:  90 * time.Second,
	}
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != msg {
		t.Fatalf("expected %+v, got %+v", msg, got)
	}
}
