package scheduler

import (
	"log/slog"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	clock    Clock
	logger   *slog.Logger
	location *time.Location
}

func newConfig() *config {
	return &config{
		clock:    systemClock{},
		location: time.Local,
	}
}

// WithClock replaces the clock used to validate run times.
func WithClock(c Clock) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithLogger sets the logger job results are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithLocation sets the time zone of the underlying cron engine.
func WithLocation(loc *time.Location) Option {
	return func(cfg *config) {
		if loc != nil {
			cfg.location = loc
		}
	}
}
