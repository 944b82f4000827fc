package confloader

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Redis struct {
		Host string `koanf:"host"`
		Port int    `koanf:"port"`
		Pool struct {
			MaxTotal int           `koanf:"max_total"`
			MaxWait  time.Duration `koanf:"max_wait"`
		} `koanf:"pool"`
	} `koanf:"redis"`
	Debug bool `koanf:"debug"`
}

func defaults() *testConfig {
	cfg := &testConfig{}
	cfg.Redis.Host = "localhost"
	cfg.Redis.Port = 6379
	cfg.Redis.Pool.MaxTotal = 20
	return cfg
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshbus.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/meshbus.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/etc/meshbus.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestKeys(t *testing.T) {
	got := Keys(&testConfig{})
	want := []string{"redis.host", "redis.port", "redis.pool.max_total", "redis.pool.max_wait", "debug"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	if Keys("not a struct") != nil {
		t.Error("Keys() of a non-struct should be nil")
	}
}

func TestLoader_DefaultsSurvive(t *testing.T) {
	cfg := defaults()
	if err := NewLoader(WithEnvPrefix("MBTEST0_")).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Host != "localhost" || cfg.Redis.Port != 6379 || cfg.Redis.Pool.MaxTotal != 20 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoader_File(t *testing.T) {
	path := writeFile(t, `
redis:
  host: store.internal
  pool:
    max_wait: 3s
debug: true
`)
	cfg := defaults()
	l := NewLoader(WithEnvPrefix("MBTEST1_"), WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Redis.Host != "store.internal" {
		t.Errorf("Host = %q", cfg.Redis.Host)
	}
	if cfg.Redis.Port != 6379 {
		t.Errorf("Port = %d, want default", cfg.Redis.Port)
	}
	if cfg.Redis.Pool.MaxWait != 3*time.Second {
		t.Errorf("MaxWait = %v", cfg.Redis.Pool.MaxWait)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false")
	}
	if l.GetString("redis.host") != "store.internal" {
		t.Errorf("GetString() = %q", l.GetString("redis.host"))
	}
}

func TestLoader_FileNotFound(t *testing.T) {
	l := NewLoader(WithConfigFile("/nonexistent/meshbus.yaml"))
	if err := l.Load(defaults()); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "redis:\n  host: from-file\n  port: 7000\n")
	t.Setenv("MBTEST2_REDIS_HOST", "from-env")
	t.Setenv("MBTEST2_REDIS_POOL_MAX_TOTAL", "64")

	cfg := defaults()
	if err := NewLoader(WithEnvPrefix("MBTEST2_"), WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Redis.Host != "from-env" {
		t.Errorf("Host = %q, want from-env", cfg.Redis.Host)
	}
	if cfg.Redis.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Redis.Port)
	}
	if cfg.Redis.Pool.MaxTotal != 64 {
		t.Errorf("MaxTotal = %d, want 64 (underscore key from env)", cfg.Redis.Pool.MaxTotal)
	}
}

func TestLoader_Overrides(t *testing.T) {
	t.Setenv("MBTEST3_REDIS_PORT", "7001")
	cfg := defaults()
	l := NewLoader(
		WithEnvPrefix("MBTEST3_"),
		WithOverrides(map[string]any{"redis.port": 7002, "redis.pool.max_wait": "250ms"}),
	)
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Port != 7002 {
		t.Errorf("Port = %d, want 7002", cfg.Redis.Port)
	}
	if cfg.Redis.Pool.MaxWait != 250*time.Millisecond {
		t.Errorf("MaxWait = %v", cfg.Redis.Pool.MaxWait)
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeFile(t, "debug: false\n")
	cfg := defaults()
	l := NewLoader(WithEnvPrefix("MBTEST4_"), WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Debug {
		t.Fatal("Debug should start false")
	}

	if err := os.WriteFile(path, []byte("debug: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !cfg.Debug {
		t.Error("Reload() did not pick up the new value")
	}
}

func TestMapProvider(t *testing.T) {
	m := mapProvider{"a.b": 1, "a.c": "x", "d": true}
	if _, err := m.ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v", err)
	}
	got, err := m.Read()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"a": map[string]any{"b": 1, "c": "x"}, "d": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}
}
