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

	"github.com/venkytv/connwatch/internal/config"
	"github.com/venkytv/connwatch/internal/monitor"
	"github.com/venkytv/connwatch/internal/notifier"
	"github.com/venkytv/connwatch/internal/probe"
	"github.com/venkytv/connwatch/pkg/connevent"
)

var newMailer = func(cfg config.Config) (notifier.Mailer, error) {
	return notifier.NewEmail(notifier.SMTPConfig{
		Host:     cfg.SMTP.Server,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTPTimeout(),
	})
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("connwatch", flag.ContinueOnError)
	var (
		configPath = fs.String("config", envDefault("CONNWATCH_CONFIG", "connwatch.yaml"), "Optional YAML configuration file")
		envFile    = fs.String("env-file", ".env", "Optional .env file with KEY=value settings")
		target     = fs.String("target", "", "Host to probe (default 8.8.8.8)")
		interval   = fs.Int("interval", 0, "Seconds between checks (default 30)")
		probeKind  = fs.String("probe", "", "Probe implementation: exec, tcp or icmp")
		debounce   = fs.Int("debounce", 0, "Consecutive readings required before a state change")
		statusAddr = fs.String("status-addr", "", "Listen address for HTTP status (empty to disable)")
		logFile    = fs.String("log-file", "", "Log file written alongside stdout")
		testEmail  = fs.Bool("test-email", false, "Send a test email to all recipients and exit")
		debug      = fs.Bool("debug", false, "Enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if _, err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stdout, "load env file: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(stdout, "load config: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = *target
		case "interval":
			cfg.IntervalSeconds = *interval
		case "probe":
			cfg.Probe = *probeKind
		case "debounce":
			cfg.Debounce = *debounce
		case "status-addr":
			cfg.StatusAddr = *statusAddr
		case "log-file":
			cfg.LogFile = *logFile
		case "debug":
			cfg.Debug = *debug
		}
	})

	logger, closeLog := newLogger(stdout, cfg.LogFile, cfg.Debug)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("application starting", "config", cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		logger.Error("email setup failed", "err", err)
		return 1
	}

	if *testEmail {
		sendTestEmail(logger, mailer, cfg.Recipients)
		return 0
	}

	prober, err := probe.New(cfg.Probe, cfg.ProbeTimeout())
	if err != nil {
		logger.Error("probe setup failed", "err", err)
		return 1
	}

	notify := notifier.NewMulti(notifier.Named{Name: "log", Notifier: notifier.Log{Logger: logger}})
	if cfg.Desktop {
		notify.Add("desktop", notifier.Desktop{})
	}
	if cfg.Pushover.User != "" {
		notify.Add("pushover", notifier.Pushover{User: cfg.Pushover.User, Token: cfg.Pushover.Token})
	}
	if cfg.NATS.URL != "" {
		nc, err := connectNATS(logger, cfg.NATS.URL)
		if err != nil {
			logger.Error("connect to nats failed", "url", cfg.NATS.URL, "err", err)
			return 1
		}
		defer nc.Drain()
		notify.Add("nats", notifier.NATS{Publisher: connevent.NewPublisher(nc, cfg.NATS.SubjectPrefix)})
	}

	m, err := monitor.New(prober, notify, mailer, monitor.Config{
		Target:       cfg.Target,
		Interval:     cfg.Interval(),
		ProbeTimeout: cfg.ProbeTimeout(),
		Recipients:   cfg.Recipients,
		Debounce:     cfg.Debounce,
		StatusAddr:   cfg.StatusAddr,
		Debug:        cfg.Debug,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("monitor setup failed", "err", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(stdout, "Press Ctrl+C to stop.")
	if err := m.Run(ctx); err != nil {
		logger.Error("monitor failed", "err", err)
		return 1
	}
	return 0
}

func sendTestEmail(logger *slog.Logger, mailer notifier.Mailer, recipients []string) {
	logger.Info("sending test email to all recipients", "recipients", len(recipients))
	subject, body := notifier.TestMessage(time.Now())
	if failed := notifier.SendAll(context.Background(), mailer, logger, recipients, subject, body); failed > 0 {
		logger.Error("there was an issue sending the test email to one or more recipients, please check your email configuration", "failed", failed)
		return
	}
	logger.Info("test email sent successfully to all recipients")
}

// newLogger writes identical records to out and, when it can be opened, to
// the log file.
func newLogger(out io.Writer, path string, debug bool) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	w := out
	closer := func() {}
	var openErr error
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			openErr = err
		} else {
			w = io.MultiWriter(out, f)
			closer = func() { _ = f.Close() }
		}
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	if openErr != nil {
		logger.Warn("log file unavailable, logging to stdout only", "path", path, "err", openErr)
	}
	return logger, closer
}

func connectNATS(logger *slog.Logger, url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("connwatch"),
		nats.MaxReconnects(-1), // outages are the whole point; never give up
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true), // do not block startup while offline
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
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
