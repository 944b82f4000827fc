package config

import (
	"time"

	"github.com/yndnr/meshbus-go/internal/infra/tlsroots"
)

// Config is the root configuration of a meshbus node.
type Config struct {
	Redis     RedisSection     `koanf:"redis"`
	Messenger MessengerSection `koanf:"messenger"`
	Metrics   MetricsSection   `koanf:"metrics"`
	Log       LogSection       `koanf:"log"`

	// Debug logs every envelope sent and received.
	Debug bool `koanf:"debug"`
}

// RedisSection configures the connection to the shared store.
type RedisSection struct {
	// Enabled turns the whole coordination layer on. When false the node
	// starts without cache or messenger.
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	Database int    `koanf:"database"`

	// Timeout bounds connecting, each read and each write.
	Timeout time.Duration `koanf:"timeout"`

	Pool PoolSection     `koanf:"pool"`
	TLS  tlsroots.Config `koanf:"tls"`
}

// PoolSection configures the connection pool.
type PoolSection struct {
	MaxTotal         int           `koanf:"max_total"`
	MaxIdle          int           `koanf:"max_idle"`
	MinIdle          int           `koanf:"min_idle"`
	MaxWait          time.Duration `koanf:"max_wait"`
	EvictionInterval time.Duration `koanf:"eviction_interval"`
	MinEvictableIdle time.Duration `koanf:"min_evictable_idle"`
	TestsPerEviction int           `koanf:"tests_per_eviction"`
	TestOnBorrow     bool          `koanf:"test_on_borrow"`
	TestOnReturn     bool          `koanf:"test_on_return"`
	TestWhileIdle    bool          `koanf:"test_while_idle"`
}

// MessengerSection sizes the worker pool shared by async cache operations
// and outbound messages.
type MessengerSection struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
