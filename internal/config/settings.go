package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Defaults for operational settings.
const (
	DefaultPollInterval = time.Minute
	DefaultStakeDays    = 30
)

// Settings holds operational knobs that do not change what a run decides,
// only how it waits and where it records.
type Settings struct {
	PollInterval time.Duration `env:"DRILL_POLL_INTERVAL" envDefault:"1m"`
	StakeDays    int           `env:"DRILL_STAKE_DAYS"    envDefault:"30"`

	// JournalPath is the SQLite run journal. Empty disables journaling.
	JournalPath string `env:"DRILL_JOURNAL"`
}

// LoadSettings reads settings from the environment with defaults.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, invalid("parse env: %v", err)
	}
	if s.PollInterval <= 0 {
		return Settings{}, invalid("DRILL_POLL_INTERVAL must be positive, got %s", s.PollInterval)
	}
	if s.StakeDays <= 0 {
		return Settings{}, invalid("DRILL_STAKE_DAYS must be positive, got %d", s.StakeDays)
	}
	return s, nil
}
