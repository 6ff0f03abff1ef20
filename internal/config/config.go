// Package config builds the single validated configuration a watchdog run
// uses. Values are layered: defaults, then an optional YAML file, then
// environment variables (optionally seeded from a .env file). Command line
// flags are applied on top by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/venkytv/connwatch/internal/probe"
)

var ErrNoRecipients = errors.New("no recipient emails configured")

// Config is the complete watchdog configuration.
type Config struct {
	Target              string   `yaml:"target"`
	IntervalSeconds     int      `yaml:"interval_seconds"`
	Probe               string   `yaml:"probe"`
	ProbeTimeoutSeconds int      `yaml:"probe_timeout_seconds"`
	Debounce            int      `yaml:"debounce"`
	Recipients          []string `yaml:"recipients"`
	SMTP                SMTP     `yaml:"smtp"`
	LogFile             string   `yaml:"log_file"`
	StatusAddr          string   `yaml:"status_addr"`
	NATS                NATS     `yaml:"nats"`
	Pushover            Pushover `yaml:"pushover"`
	Desktop             bool     `yaml:"desktop"`
	Debug               bool     `yaml:"debug"`
}

// SMTP holds the outgoing mail server settings.
type SMTP struct {
	Server         string `yaml:"server"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// NATS enables publishing transitions when URL is set.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Pushover enables push notifications when both fields are set.
type Pushover struct {
	User  string `yaml:"user"`
	Token string `yaml:"token"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	logFile := "internet_monitor.log"
	if home, err := os.UserHomeDir(); err == nil {
		logFile = filepath.Join(home, logFile)
	}
	return Config{
		Target:              "8.8.8.8",
		IntervalSeconds:     30,
		Probe:               "exec",
		ProbeTimeoutSeconds: 5,
		Debounce:            1,
		SMTP: SMTP{
			Port:           587,
			TimeoutSeconds: 30,
		},
		LogFile: logFile,
		NATS: NATS{
			SubjectPrefix: "connwatch",
		},
		Desktop: true,
	}
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// Load reads the YAML file at path (missing files fall back to defaults)
// and applies overrides from lookup, normally os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	cfg.Recipients = cleanRecipients(cfg.Recipients)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = unquote(strings.TrimSpace(v))
		return v, v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := env(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) {
		if v, ok := env(key); ok {
			*dst = v == "1" || v == "true" || v == "TRUE" || v == "yes" || v == "on"
		}
	}

	str("TARGET", &cfg.Target)
	str("PROBE", &cfg.Probe)
	str("SMTP_SERVER", &cfg.SMTP.Server)
	str("SMTP_USERNAME", &cfg.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)
	str("LOG_FILE", &cfg.LogFile)
	str("STATUS_ADDR", &cfg.StatusAddr)
	str("NATS_URL", &cfg.NATS.URL)
	str("NATS_SUBJECT_PREFIX", &cfg.NATS.SubjectPrefix)
	str("PUSHOVER_USER", &cfg.Pushover.User)
	str("PUSHOVER_TOKEN", &cfg.Pushover.Token)
	boolean("DESKTOP_NOTIFY", &cfg.Desktop)
	boolean("DEBUG", &cfg.Debug)

	for key, dst := range map[string]*int{
		"INTERVAL":      &cfg.IntervalSeconds,
		"PROBE_TIMEOUT": &cfg.ProbeTimeoutSeconds,
		"DEBOUNCE":      &cfg.Debounce,
		"SMTP_PORT":     &cfg.SMTP.Port,
		"SMTP_TIMEOUT":  &cfg.SMTP.TimeoutSeconds,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}

	if v, ok := env("RECIPIENT_EMAILS"); ok {
		cfg.Recipients = ParseRecipients(v)
	}
	return nil
}

// ParseRecipients splits a comma separated address list, trimming blanks
// and dropping empty entries.
func ParseRecipients(raw string) []string {
	return cleanRecipients(strings.Split(unquote(strings.TrimSpace(raw)), ","))
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// Validate reports the first setting that prevents the watchdog from
// starting.
func (c Config) Validate() error {
	if len(c.Recipients) == 0 {
		return ErrNoRecipients
	}
	if err := probe.ValidateHost(c.Target); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval must be a positive number of seconds, got %d", c.IntervalSeconds)
	}
	if c.ProbeTimeoutSeconds < 0 {
		return fmt.Errorf("probe timeout cannot be negative, got %d", c.ProbeTimeoutSeconds)
	}
	if c.Debounce < 1 {
		return fmt.Errorf("debounce must be at least 1, got %d", c.Debounce)
	}
	if _, err := probe.New(c.Probe, c.ProbeTimeout()); err != nil {
		return err
	}
	if c.SMTP.Server == "" {
		return errors.New("SMTP_SERVER is required")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("SMTP_PORT out of range: %d", c.SMTP.Port)
	}
	if c.SMTP.Username == "" && c.SMTP.From == "" {
		return errors.New("SMTP_USERNAME or SMTP_FROM is required")
	}
	if (c.Pushover.User == "") != (c.Pushover.Token == "") {
		return errors.New("pushover needs both user and token")
	}
	return nil
}

// Interval returns the pause between checks.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ProbeTimeout bounds a single probe; zero disables the bound.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// SMTPTimeout bounds a single mail submission.
func (c Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTP.TimeoutSeconds) * time.Second
}

// LogValue renders the effective configuration with secrets redacted.
func (c Config) LogValue() slog.Value {
	password := ""
	if c.SMTP.Password != "" {
		password = "[redacted]"
	}
	return slog.GroupValue(
		slog.String("target", c.Target),
		slog.Duration("interval", c.Interval()),
		slog.String("probe", c.Probe),
		slog.Int("debounce", c.Debounce),
		slog.String("recipients", strings.Join(c.Recipients, ", ")),
		slog.String("smtp_server", c.SMTP.Server),
		slog.Int("smtp_port", c.SMTP.Port),
		slog.String("smtp_username", c.SMTP.Username),
		slog.String("smtp_password", password),
		slog.String("nats_url", c.NATS.URL),
		slog.Bool("pushover", c.Pushover.User != ""),
		slog.Bool("desktop", c.Desktop),
		slog.String("status_addr", c.StatusAddr),
	)
}
