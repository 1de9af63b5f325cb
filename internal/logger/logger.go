// Package logger builds the process slog.Logger: zerolog output bridged
// through slog-zerolog, fanned out to Sentry when a DSN is configured.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Level     string
	Format    string
	SentryDSN string
	Env       string
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New returns the logger and a cleanup that flushes pending Sentry events.
func New(opts Options) (*slog.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var zl zerolog.Logger
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true})
	case FormatJSON:
		zl = zerolog.New(w)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	zl = zl.With().Timestamp().Logger()

	handler := slogzerolog.Option{Level: level, Logger: &zl}.NewZerologHandler()
	cleanup := func() {}

	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Env,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init sentry: %w", err)
		}
		handler = slogmulti.Fanout(
			handler,
			slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
		)
		cleanup = func() { sentry.Flush(2 * time.Second) }
	}

	logger := slog.New(handler)
	if opts.Env != "" {
		logger = logger.With("env", opts.Env)
	}
	return logger, cleanup, nil
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
