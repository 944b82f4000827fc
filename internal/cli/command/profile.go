package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/config"
)

type profileRow struct {
	Name     string `json:"name" yaml:"name"`
	Current  bool   `json:"current" yaml:"current"`
	Addr     string `json:"addr" yaml:"addr"`
	Database int    `json:"database" yaml:"database"`
	TLS      bool   `json:"tls" yaml:"tls"`
}

// ProfileCommand manages the connection profiles in the CLI config file.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List profiles",
				Action: profileList,
			},
			{
				Name:      "save",
				Usage:     "Save the current connection flags as a profile",
				ArgsUsage: "NAME",
				Action:    profileSave,
			},
			{
				Name:      "use",
				Usage:     "Make a profile the default",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:      "delete",
				Usage:     "Delete a profile",
				ArgsUsage: "NAME",
				Action:    profileDelete,
			},
		},
	}
}

func profileList(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg := cliConfig(c)

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]profileRow, 0, len(names))
	for _, name := range names {
		p, _ := cfg.Current(name)
		rows = append(rows, profileRow{
			Name:     name,
			Current:  name == cfg.CurrentProfile,
			Addr:     fmt.Sprintf("%s:%d", p.Host, p.Port),
			Database: p.Database,
			TLS:      p.TLS,
		})
	}
	return render(c, flags, rows)
}

func profileSave(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("usage: %s %s", c.Command.HelpName, c.Command.ArgsUsage)
	}
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	cfg := cliConfig(c)
	cfg.Profiles[name] = config.Profile{
		Host:     flags.Conn.Host,
		Port:     flags.Conn.Port,
		Password: flags.Conn.Password,
		Database: flags.Conn.Database,
		Timeout:  flags.Conn.Timeout,
		TLS:      flags.Conn.TLS.Enabled,
		CAFile:   flags.Conn.TLS.CAFile,
	}
	if err := config.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "profile %q saved\n", name)
	return nil
}

func profileUse(c *cli.Context) error {
	return updateProfiles(c, func(cfg *config.CLIConfig, name string) (string, error) {
		if _, ok := cfg.Profiles[name]; !ok {
			return "", fmt.Errorf("unknown profile %q", name)
		}
		cfg.CurrentProfile = name
		return "now using profile %q\n", nil
	})
}

func profileDelete(c *cli.Context) error {
	return updateProfiles(c, func(cfg *config.CLIConfig, name string) (string, error) {
		if _, ok := cfg.Profiles[name]; !ok {
			return "", fmt.Errorf("unknown profile %q", name)
		}
		delete(cfg.Profiles, name)
		if cfg.CurrentProfile == name {
			cfg.CurrentProfile = ""
		}
		return "profile %q deleted\n", nil
	})
}

// updateProfiles applies fn to the loaded config, saves it and prints the
// returned message.
func updateProfiles(c *cli.Context, fn func(cfg *config.CLIConfig, name string) (string, error)) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("usage: %s %s", c.Command.HelpName, c.Command.ArgsUsage)
	}
	cfg := cliConfig(c)
	msg, err := fn(cfg, name)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, c.String("config")); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), msg, name)
	return nil
}
