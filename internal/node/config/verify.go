package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/meshbus-go/internal/core/domain"
)

// Verify validates the configuration. A disabled redis section is not
// checked.
func Verify(cfg *Config) error {
	if err := verifyRedis(&cfg.Redis); err != nil {
		return err
	}
	if err := verifyMessenger(&cfg.Messenger); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}

func verifyRedis(cfg *RedisSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Host == "" {
		return invalid("redis.host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return invalid("redis.port must be in [1, 65535], got %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		return invalid("redis.timeout must be positive")
	}
	if cfg.Pool.TestsPerEviction < 0 {
		return invalid("redis.pool.tests_per_eviction must not be negative")
	}
	if err := cfg.PoolConfig().Validate(); err != nil {
		return fmt.Errorf("redis.pool: %w", err)
	}
	if err := cfg.TLS.Validate(); err != nil {
		return domain.ErrInvalidConfig.WithCause(err)
	}
	return nil
}

func verifyMessenger(cfg *MessengerSection) error {
	if cfg.Workers < 1 {
		return invalid("messenger.workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return invalid("messenger.queue_size must be at least 1, got %d", cfg.QueueSize)
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return invalid("metrics.addr %q: %v", cfg.Addr, err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return invalid("log.format %q is not json or text", cfg.Format)
	}
	return nil
}
