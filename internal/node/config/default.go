package config

import (
	"time"

	"github.com/yndnr/meshbus-go/internal/pool"
	"github.com/yndnr/meshbus-go/internal/worker"
)

// Default configuration values.
const (
	DefaultHost    = "localhost"
	DefaultPort    = 6379
	DefaultTimeout = 2 * time.Second

	DefaultMetricsAddr = "127.0.0.1:9464"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default node configuration.
func Default() *Config {
	p := pool.DefaultConfig()
	return &Config{
		Redis: RedisSection{
			Enabled: true,
			Host:    DefaultHost,
			Port:    DefaultPort,
			Timeout: DefaultTimeout,
			Pool: PoolSection{
				MaxTotal:         p.MaxTotal,
				MaxIdle:          p.MaxIdle,
				MinIdle:          p.MinIdle,
				MaxWait:          p.MaxWait,
				EvictionInterval: p.EvictionInterval,
				MinEvictableIdle: p.MinEvictableIdle,
				TestsPerEviction: p.TestsPerEviction,
				TestOnBorrow:     p.TestOnBorrow,
				TestOnReturn:     p.TestOnReturn,
				TestWhileIdle:    p.TestWhileIdle,
			},
		},
		Messenger: MessengerSection{
			Workers:   worker.DefaultWorkers,
			QueueSize: worker.DefaultQueueSize,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// PoolConfig converts the redis section into pool settings.
func (r RedisSection) PoolConfig() pool.Config {
	return pool.Config{
		Password:         r.Password,
		Database:         r.Database,
		MaxTotal:         r.Pool.MaxTotal,
		MaxIdle:          r.Pool.MaxIdle,
		MinIdle:          r.Pool.MinIdle,
		ConnectTimeout:   r.Timeout,
		ReadTimeout:      r.Timeout,
		WriteTimeout:     r.Timeout,
		MaxWait:          r.Pool.MaxWait,
		EvictionInterval: r.Pool.EvictionInterval,
		MinEvictableIdle: r.Pool.MinEvictableIdle,
		TestsPerEviction: r.Pool.TestsPerEviction,
		TestOnBorrow:     r.Pool.TestOnBorrow,
		TestOnReturn:     r.Pool.TestOnReturn,
		TestWhileIdle:    r.Pool.TestWhileIdle,
	}
}
