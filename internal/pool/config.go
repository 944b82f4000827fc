package pool

import (
	"fmt"
	"time"

	"github.com/yndnr/meshbus-go/internal/core/domain"
)

// Config controls pool sizing, timeouts and health checking.
type Config struct {
	// Password is sent with AUTH after dialing when non-empty.
	Password string
	// Database is selected with SELECT after dialing when non-zero.
	Database int

	MaxTotal int
	MaxIdle  int
	MinIdle  int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// MaxWait bounds how long Acquire blocks when the pool is exhausted.
	// Zero waits until the caller's context ends.
	MaxWait time.Duration

	EvictionInterval time.Duration
	MinEvictableIdle time.Duration
	TestsPerEviction int

	TestOnBorrow  bool
	TestOnReturn  bool
	TestWhileIdle bool
}

// DefaultConfig returns the stock pool settings.
func DefaultConfig() Config {
	return Config{
		MaxTotal:         20,
		MaxIdle:          10,
		MinIdle:          2,
		ConnectTimeout:   2 * time.Second,
		ReadTimeout:      2 * time.Second,
		WriteTimeout:     2 * time.Second,
		EvictionInterval: 30 * time.Second,
		MinEvictableIdle: 60 * time.Second,
		TestsPerEviction: 3,
		TestOnBorrow:     true,
		TestOnReturn:     true,
		TestWhileIdle:    true,
	}
}

// Validate checks the sizing invariants.
func (c Config) Validate() error {
	switch {
	case c.MaxTotal <= 0:
		return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("max_total must be positive, got %d", c.MaxTotal))
	case c.MaxIdle < 0 || c.MaxIdle > c.MaxTotal:
		return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("max_idle must be in [0, max_total], got %d", c.MaxIdle))
	case c.MinIdle < 0 || c.MinIdle > c.MaxIdle:
		return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("min_idle must be in [0, max_idle], got %d", c.MinIdle))
	case c.MaxWait < 0:
		return domain.ErrInvalidConfig.WithDetails("max_wait must not be negative")
	case c.Database < 0:
		return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("database must not be negative, got %d", c.Database))
	}
	return nil
}
