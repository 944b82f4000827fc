package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/config"
	"github.com/yndnr/meshbus-go/internal/cli/connection"
	"github.com/yndnr/meshbus-go/internal/cli/output"
	"github.com/yndnr/meshbus-go/internal/infra/buildinfo"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

const cliConfigKey = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "meshbus-cli",
		Usage:   "Inspect and drive a meshbus cluster through its shared store",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PingCommand(),
			CacheCommand(),
			MessageCommand(),
			ProfileCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Metadata: map[string]any{},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			c.App.Metadata[cliConfigKey] = cfg
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"MESHBUS_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"P"},
			Usage:   "Connection profile from the config file",
			EnvVars: []string{"MESHBUS_CLI_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "host",
			Aliases: []string{"H"},
			Usage:   "Store host",
			EnvVars: []string{"MESHBUS_REDIS_HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Store port",
			EnvVars: []string{"MESHBUS_REDIS_PORT"},
			Value:   6379,
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"a"},
			Usage:   "Store password",
			EnvVars: []string{"MESHBUS_REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "db",
			Aliases: []string{"n"},
			Usage:   "Database index",
			EnvVars: []string{"MESHBUS_REDIS_DATABASE"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Connect and command timeout",
			Value: 2 * time.Second,
		},
		&cli.BoolFlag{
			Name:  "tls",
			Usage: "Connect with TLS",
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "CA bundle used to verify the store (implies --tls)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log connection activity to stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Profile string
	Conn    connection.Options
	Output  output.Format
	Wide    bool
	Verbose bool
}

// ParseGlobalFlags resolves the global flags. Flags set explicitly win over
// the selected profile, which wins over the flag defaults.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg := cliConfig(c)

	name := c.String("profile")
	if name == "" {
		name = cfg.CurrentProfile
	}
	profile := config.Profile{
		Host:    c.String("host"),
		Port:    c.Int("port"),
		Timeout: c.Duration("timeout"),
	}
	if name != "" {
		var ok bool
		if profile, ok = cfg.Current(name); !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
	}

	opts := connection.Options{
		Host:     profile.Host,
		Port:     profile.Port,
		Password: profile.Password,
		Database: profile.Database,
		Timeout:  profile.Timeout,
	}
	opts.TLS.Enabled = profile.TLS
	opts.TLS.CAFile = profile.CAFile

	if c.IsSet("host") {
		opts.Host = c.String("host")
	}
	if c.IsSet("port") {
		opts.Port = c.Int("port")
	}
	if c.IsSet("password") {
		opts.Password = c.String("password")
	}
	if c.IsSet("db") {
		opts.Database = c.Int("db")
	}
	if c.IsSet("timeout") {
		opts.Timeout = c.Duration("timeout")
	}
	if c.Bool("tls") {
		opts.TLS.Enabled = true
	}
	if ca := c.String("ca-file"); ca != "" {
		opts.TLS.Enabled = true
		opts.TLS.CAFile = ca
	}

	format := c.String("output")
	if format == "" {
		format = cfg.DefaultOutput
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return &GlobalFlags{
		Profile: name,
		Conn:    opts,
		Output:  f,
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}, nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[cliConfigKey].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// withClient dials the store, runs fn and closes the connection.
func withClient(c *cli.Context, fn func(ctx context.Context, client *connection.Client, flags *GlobalFlags) error) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	log := logger.Nop()
	if flags.Verbose {
		log, err = logger.New(logger.Config{Level: "debug", Format: "text", Output: c.App.ErrWriter})
		if err != nil {
			return err
		}
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := connection.Dial(ctx, flags.Conn, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), flags.Conn.Timeout)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	return fn(ctx, client, flags)
}

// render writes data with the selected formatter.
func render(c *cli.Context, flags *GlobalFlags, data any) error {
	return output.NewFormatter(flags.Output, flags.Wide).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return io.Discard
}
