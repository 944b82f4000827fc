package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/repl"
)

// ShellCommand starts an interactive shell. Each line runs as a meshbus-cli
// command with the same global flags the shell was started with.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write the history file",
			},
		},
		Action: shell,
	}
}

func shell(c *cli.Context) error {
	global := inheritedArgs(c)

	exec := func(args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return fmt.Errorf("already in a shell")
		}
		app := App()
		app.Writer = c.App.Writer
		app.ErrWriter = c.App.ErrWriter
		app.ExitErrHandler = func(*cli.Context, error) {}
		argv := append([]string{c.App.Name}, global...)
		return app.Run(append(argv, args...))
	}

	histPath := repl.DefaultHistoryPath()
	if c.Bool("no-history") {
		histPath = ""
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	r := repl.New(in, writer(c), exec, repl.NewCompleter(commandPaths(App().Commands, "")), repl.NewHistory(histPath))
	return r.Run()
}

// inheritedArgs rebuilds the global flags that were set explicitly.
func inheritedArgs(c *cli.Context) []string {
	var args []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if c.IsSet(name) {
			args = append(args, fmt.Sprintf("--%s=%v", name, c.Value(name)))
		}
	}
	return args
}

// commandPaths lists every command as a space-separated path.
func commandPaths(cmds []*cli.Command, parent string) []string {
	var paths []string
	for _, cmd := range cmds {
		if cmd.Hidden || cmd.Name == "shell" {
			continue
		}
		path := cmd.Name
		if parent != "" {
			path = parent + " " + cmd.Name
		}
		paths = append(paths, path)
		paths = append(paths, commandPaths(cmd.Subcommands, path)...)
	}
	return paths
}
