package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yndnr/meshbus-go/internal/devstore"
	"github.com/yndnr/meshbus-go/internal/infra/buildinfo"
	"github.com/yndnr/meshbus-go/internal/infra/confloader"
	"github.com/yndnr/meshbus-go/internal/infra/shutdown"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

const envPrefix = "MESHBUS_DEVSTORE_"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx ends or a signal arrives. ready, if non-nil,
// receives the listening address once the store accepts connections.
func run(ctx context.Context, args []string, stdout io.Writer, ready chan<- string) error {
	fs := flag.NewFlagSet("meshbus-devstore", flag.ContinueOnError)
	var (
		configFile  = fs.String("config", "", "Path to configuration file")
		addr        = fs.String("addr", "", "Listen address (default 127.0.0.1:6379)")
		password    = fs.String("password", "", "Require AUTH with this password")
		rateLimit   = fs.Int("rate-limit", 0, "Commands per second per connection (0 = unlimited)")
		snapshot    = fs.String("snapshot", "", "Snapshot file loaded at start and written on SAVE and shutdown")
		logLevel    = fs.String("log-level", "info", "Log level: debug, info, warn, error")
		showVersion = fs.Bool("version", false, "Show version information")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "meshbus-devstore %s\n", buildinfo.String())
		return nil
	}

	// Only flags given on the command line override the file and env.
	overrides := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			overrides["address"] = *addr
		case "password":
			overrides["password"] = *password
		case "rate-limit":
			overrides["rate_limit"] = *rateLimit
		case "snapshot":
			overrides["snapshot_file"] = *snapshot
		}
	})

	cfg := devstore.DefaultConfig()
	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(envPrefix),
		confloader.WithConfigFile(*configFile),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Databases <= 0 {
		return fmt.Errorf("databases must be positive, got %d", cfg.Databases)
	}

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "text", Output: stdout})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	srv := devstore.New(cfg, log)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start devstore: %w", err)
	}
	log.Info("meshbus-devstore started", append(buildinfo.LogFields(), "address", srv.Addr())...)
	if ready != nil {
		ready <- srv.Addr()
	}

	shutdownHandler := shutdown.NewHandler(10*time.Second, log)
	shutdownHandler.OnShutdown("devstore", srv.Shutdown)
	return shutdownHandler.Wait(ctx)
}
