package notifier

import (
	"context"
	"log/slog"
	"os"
)

// Log writes notifications to the process log. It never fails.
type Log struct {
	Logger *slog.Logger
}

func (l Log) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func (l Log) Alert(_ context.Context, evt Event) error {
	l.logger().Info("notification", "title", statusTitle, "status", evt.To.String(), "target", evt.Target, "check", evt.Check)
	return nil
}

func (l Log) Resolved(_ context.Context, evt Event) error {
	l.logger().Info("notification", "title", statusTitle, "status", evt.To.String(), "target", evt.Target, "check", evt.Check, "downtime", evt.Downtime)
	return nil
}
