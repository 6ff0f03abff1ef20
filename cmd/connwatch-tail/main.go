package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/venkytv/connwatch/pkg/connevent"
)

func main() {
	var (
		natsURL = flag.String("nats-url", envDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
		prefix  = flag.String("subject-prefix", envDefault("NATS_SUBJECT_PREFIX", connevent.DefaultPrefix), "Subject prefix the watchdogs publish under")
		debug   = flag.Bool("debug", envBool("DEBUG", false), "Enable debug logging")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	if *debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	nc, err := connectWithRetry(ctx, logger, *natsURL)
	if err != nil {
		logger.Error("connect to nats failed", "err", err)
		return
	}
	defer nc.Drain()

	subject := connevent.Wildcard(*prefix)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		evt, err := connevent.Unmarshal(msg.Data)
		if err != nil {
			logger.Error("failed to decode connectivity event", "subject", msg.Subject, "err", err)
			return
		}
		printEvent(os.Stdout, evt)
	})
	if err != nil {
		logger.Error("subscribe failed", "subject", subject, "err", err)
		return
	}
	defer sub.Unsubscribe()
	logger.Info("listening for connectivity events", "subject", subject)

	<-ctx.Done()
}

func printEvent(w io.Writer, evt connevent.Message) {
	line := fmt.Sprintf("%s  %-16s %-12s %s -> %s (check #%d)",
		evt.ChangedAt.Local().Format(time.RFC3339), fallback(evt.Host, "-"), evt.Target, evt.From, evt.To, evt.Check)
	if evt.Downtime > 0 {
		line += fmt.Sprintf(" after %s down", evt.Downtime.Round(time.Second))
	}
	fmt.Fprintln(w, line)
}

func fallback(v, defaultVal string) string {
	if v == "" {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
	}
	return fallback
}

func connectWithRetry(ctx context.Context, logger *slog.Logger, url string) (*nats.Conn, error) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		nc, err := nats.Connect(
			url,
			nats.Name("connwatch-tail"),
			nats.MaxReconnects(-1), // never give up once connected
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", "err", err)
					return
				}
				logger.Warn("nats disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				logger.Error("nats connection closed")
			}),
		)
		if err == nil {
			return nc, nil
		}

		logger.Error("connect to nats failed", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
