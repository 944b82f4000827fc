package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/yndnr/meshbus-go/internal/infra/buildinfo"
	"github.com/yndnr/meshbus-go/internal/infra/confloader"
	"github.com/yndnr/meshbus-go/internal/infra/shutdown"
	"github.com/yndnr/meshbus-go/internal/node"
	"github.com/yndnr/meshbus-go/internal/node/config"
	"github.com/yndnr/meshbus-go/internal/server/httpserver"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
)

const (
	shutdownTimeout = 30 * time.Second
	// adminRateLimit is the per-client request rate of the admin endpoint.
	adminRateLimit = 20
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("meshbus-node", flag.ContinueOnError)
	var (
		configFile  = fs.String("config", "", "Path to configuration file")
		showVersion = fs.Bool("version", false, "Show version information")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "meshbus-node %s\n", buildinfo.String())
		return nil
	}

	cfg, loader, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg, stdout)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("starting meshbus-node", append(buildinfo.LogFields(), "config", *configFile)...)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)

	var metrics *metric.Registry
	if cfg.Metrics.Enabled {
		metrics = metric.NewRegistry()
	}

	n := node.New(cfg, log, metrics)

	if cfg.Metrics.Enabled {
		admin := httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(httpserver.RouterConfig{
			Metrics:   metrics.Handler(),
			Health: func() (bool, any) {
				h := n.Health()
				return h.Healthy(), h
			},
			Logger:    log,
			RateLimit: adminRateLimit,
		}), log)
		if err := admin.Start(); err != nil {
			return fmt.Errorf("admin endpoint: %w", err)
		}
		shutdownHandler.OnShutdown("admin server", admin.Shutdown)
	}

	if err := n.Start(ctx); err != nil {
		_ = shutdownHandler.Run()
		return fmt.Errorf("start node: %w", err)
	}
	shutdownHandler.OnShutdown("node", n.Stop)

	if m := n.Messenger(); m != nil {
		registerExampleHandlers(m)
	}

	if *configFile != "" {
		w, err := watchConfig(*configFile, loader, n, log)
		if err != nil {
			log.Warn("configuration hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
		}
	}

	log.Info("node started, press Ctrl+C to stop", "connected", n.IsConnected())
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("node stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.Config, *confloader.Loader, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func initLogger(cfg *config.Config, out io.Writer) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// watchConfig applies log level and debug changes from the config file and
// reloads the client certificate when its files change.
func watchConfig(path string, loader *confloader.Loader, n *node.Node, log logger.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	tlsFiles := n.TLSFiles()
	for _, f := range tlsFiles {
		if err := w.Watch(f); err != nil {
			log.Warn("cannot watch certificate file", "path", f, "error", err)
		}
	}

	w.OnChange(func(changed string) {
		if slices.ContainsFunc(tlsFiles, func(f string) bool { return sameFile(f, changed) }) {
			if err := n.ReloadTLS(); err != nil {
				log.Error("client certificate reload failed", "error", err)
			}
			return
		}
		applyReload(loader, n, log)
	})
	w.StartAsync()
	return w, nil
}

// applyReload re-reads the configuration and applies the settings that can
// change at runtime. Everything else needs a restart.
func applyReload(loader *confloader.Loader, n *node.Node, log logger.Logger) {
	next := config.Default()
	if err := loader.Reload(next); err != nil {
		log.Error("configuration reload failed", "error", err)
		return
	}
	if err := config.Verify(next); err != nil {
		log.Error("reloaded configuration is invalid, keeping the current one", "error", err)
		return
	}

	if next.Log.Level != logger.GetLevel() {
		logger.SetLevel(next.Log.Level)
		log.Info("log level changed", "level", next.Log.Level)
	}
	n.SetDebug(next.Debug)
	log.Info("configuration reloaded", "debug", next.Debug)
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
