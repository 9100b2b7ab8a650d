package builder

import "time"

type ScheduleConfig struct {
	Interval time.Duration // default: 24 hours

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Interval: 24 * time.Hour,
		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Schedule decides when the next build starts. A failed build is retried
// sooner than the regular interval, with a growing delay.
type Schedule struct {
	cfg ScheduleConfig
}

func NewSchedule(cfg ScheduleConfig) *Schedule {
	def := DefaultScheduleConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	return &Schedule{cfg: cfg}
}

// NextDelay returns the pause after a build that ended with the given number
// of consecutive failures (0 means success).
func (s *Schedule) NextDelay(consecutiveFailures int) time.Duration {
	var d time.Duration
	switch {
	case consecutiveFailures <= 0:
		return s.cfg.Interval
	case consecutiveFailures == 1:
		d = s.cfg.Backoff1
	case consecutiveFailures == 2:
		d = s.cfg.Backoff2
	case consecutiveFailures == 3:
		d = s.cfg.Backoff3
	default:
		d = s.cfg.Backoff4
	}
	if d > s.cfg.Interval {
		return s.cfg.Interval
	}
	return d
}
