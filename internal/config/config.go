// Package config reads engine configuration from the environment and
// validates viewer policy against an embedded CUE schema.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
)

// Config is the full runtime configuration.
type Config struct {
	Viewer struct {
		DefaultDuration     time.Duration `env:"SEQ_DEFAULT_DURATION" env-default:"5s" env-description:"duration of image and text items without a hint"`
		TickInterval        time.Duration `env:"SEQ_TICK_INTERVAL" env-default:"100ms" env-description:"progress timer tick interval"`
		PaginationThreshold int           `env:"SEQ_PAGINATION_THRESHOLD" env-default:"2" env-description:"items from the end that trigger the next page"`
		SwipeThreshold      float64       `env:"SEQ_SWIPE_THRESHOLD" env-default:"40" env-description:"minimum swipe distance in pixels"`
		DismissThreshold    float64       `env:"SEQ_DISMISS_THRESHOLD" env-default:"120" env-description:"minimum downward swipe that dismisses"`
		HoldDelay           time.Duration `env:"SEQ_HOLD_DELAY" env-default:"250ms" env-description:"press duration that pauses"`
		PauseOnWidget       bool          `env:"SEQ_PAUSE_ON_WIDGET" env-default:"true" env-description:"pause on unanswered widgets"`
		Muted               bool          `env:"SEQ_MUTED" env-default:"true" env-description:"initial mute preference"`
		ReelLoop            bool          `env:"SEQ_REEL_LOOP" env-default:"true" env-description:"loop reels instead of stopping"`
	}
	Collab struct {
		BaseURL  string        `env:"COLLAB_BASE_URL" env-default:"http://localhost:8088"`
		Timeout  time.Duration `env:"COLLAB_TIMEOUT" env-default:"10s"`
		ViewRate float64       `env:"COLLAB_VIEW_RATE" env-default:"20"`
	}
	Store struct {
		Path string `env:"SEQ_DB_PATH" env-default:"seq.db"`
	}
	Log struct {
		Level     string `env:"LOG_LEVEL" env-default:"info"`
		Format    string `env:"LOG_FORMAT" env-default:"text"`
		SentryDSN string `env:"SENTRY_DSN"`
		Env       string `env:"APP_ENV" env-default:"development"`
	}
	Serve struct {
		Addr    string `env:"SERVE_ADDR" env-default:":8088"`
		Fixture string `env:"SEQ_FIXTURE"`
	}
	Dispatch struct {
		Workers       int           `env:"DISPATCH_WORKERS" env-default:"4"`
		FlushInterval time.Duration `env:"OUTBOX_FLUSH_INTERVAL" env-default:"30s"`
	}
}

// Load reads the configuration from the environment and validates the
// viewer policy.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := Validate(cfg.Policy()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage describes every environment variable.
func Usage() string {
	help, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return err.Error()
	}
	return help
}

// Policy is the viewer policy in the schema's units.
type Policy struct {
	DefaultDurationMS   int     `json:"default_duration_ms"`
	TickIntervalMS      int     `json:"tick_interval_ms"`
	PaginationThreshold int     `json:"pagination_threshold"`
	SwipeThreshold      float64 `json:"swipe_threshold"`
	DismissThreshold    float64 `json:"dismiss_threshold"`
	HoldDelayMS         int     `json:"hold_delay_ms"`
	PauseOnWidget       bool    `json:"pause_on_widget"`
	Muted               bool    `json:"muted"`
	ReelLoop            bool    `json:"reel_loop"`
}

// Policy extracts the viewer policy.
func (c *Config) Policy() Policy {
	v := c.Viewer
	return Policy{
		DefaultDurationMS:   int(v.DefaultDuration / time.Millisecond),
		TickIntervalMS:      int(v.TickInterval / time.Millisecond),
		PaginationThreshold: v.PaginationThreshold,
		SwipeThreshold:      v.SwipeThreshold,
		DismissThreshold:    v.DismissThreshold,
		HoldDelayMS:         int(v.HoldDelay / time.Millisecond),
		PauseOnWidget:       v.PauseOnWidget,
		Muted:               v.Muted,
		ReelLoop:            v.ReelLoop,
	}
}

// Apply writes p back into the viewer settings.
func (c *Config) Apply(p Policy) {
	c.Viewer.DefaultDuration = time.Duration(p.DefaultDurationMS) * time.Millisecond
	c.Viewer.TickInterval = time.Duration(p.TickIntervalMS) * time.Millisecond
	c.Viewer.PaginationThreshold = p.PaginationThreshold
	c.Viewer.SwipeThreshold = p.SwipeThreshold
	c.Viewer.DismissThreshold = p.DismissThreshold
	c.Viewer.HoldDelay = time.Duration(p.HoldDelayMS) * time.Millisecond
	c.Viewer.PauseOnWidget = p.PauseOnWidget
	c.Viewer.Muted = p.Muted
	c.Viewer.ReelLoop = p.ReelLoop
}

// DefaultPolicy is the policy produced by an empty environment.
func DefaultPolicy() Policy {
	return Policy{
		DefaultDurationMS:   5000,
		TickIntervalMS:      100,
		PaginationThreshold: 2,
		SwipeThreshold:      gesture.DefaultSwipeThreshold,
		DismissThreshold:    gesture.DefaultDismissThreshold,
		HoldDelayMS:         int(gesture.DefaultHoldDelay / time.Millisecond),
		PauseOnWidget:       true,
		Muted:               true,
		ReelLoop:            true,
	}
}

// Gesture returns the router thresholds for mode.
func (c *Config) Gesture(mode gesture.Mode) gesture.Config {
	return gesture.Config{
		Mode:             mode,
		SwipeThreshold:   c.Viewer.SwipeThreshold,
		DismissThreshold: c.Viewer.DismissThreshold,
		HoldDelay:        c.Viewer.HoldDelay,
	}
}
