package scheduler

import (
	"time"

	// Packages
	env "github.com/caarlos0/env/v11"
	pg "github.com/mutablelogic/go-pgbus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Config holds the timing of the coordinator
type Config struct {
	LockRetryInitial time.Duration `env:"PGBUS_LOCK_RETRY_INITIAL" envDefault:"250ms"`
	LockRetryMax     time.Duration `env:"PGBUS_LOCK_RETRY_MAX" envDefault:"5s"`
	PollingInterval  time.Duration `env:"PGBUS_POLLING_INTERVAL" envDefault:"1s"`
	ReleaseTimeout   time.Duration `env:"PGBUS_RELEASE_TIMEOUT" envDefault:"5s"`
	FaultBackoff     time.Duration `env:"PGBUS_FAULT_BACKOFF" envDefault:"5s"`
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	DefaultLockRetryInitial = 250 * time.Millisecond
	DefaultLockRetryMax     = 5 * time.Second
	DefaultPollingInterval  = time.Second
	DefaultReleaseTimeout   = 5 * time.Second
	DefaultFaultBackoff     = 5 * time.Second
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// DefaultConfig returns the default timing
func DefaultConfig() Config {
	return Config{
		LockRetryInitial: DefaultLockRetryInitial,
		LockRetryMax:     DefaultLockRetryMax,
		PollingInterval:  DefaultPollingInterval,
		ReleaseTimeout:   DefaultReleaseTimeout,
		FaultBackoff:     DefaultFaultBackoff,
	}
}

// ConfigFromEnv returns the timing from PGBUS_ environment variables, with
// defaults for those which are not set
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, pg.ErrBadParameter.With(err)
	}
	return cfg, cfg.Validate()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate returns an error if any interval is not positive, or the
// initial lock retry is larger than the maximum
func (c Config) Validate() error {
	switch {
	case c.LockRetryInitial <= 0:
		return pg.ErrBadParameter.Withf("lock retry interval must be positive, got %v", c.LockRetryInitial)
	case c.LockRetryMax < c.LockRetryInitial:
		return pg.ErrBadParameter.Withf("maximum lock retry %v is less than initial %v", c.LockRetryMax, c.LockRetryInitial)
	case c.PollingInterval <= 0:
		return pg.ErrBadParameter.Withf("polling interval must be positive, got %v", c.PollingInterval)
	case c.ReleaseTimeout <= 0:
		return pg.ErrBadParameter.Withf("release timeout must be positive, got %v", c.ReleaseTimeout)
	case c.FaultBackoff <= 0:
		return pg.ErrBadParameter.Withf("fault backoff must be positive, got %v", c.FaultBackoff)
	}
	return nil
}
