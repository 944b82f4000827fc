package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/output"
	"github.com/yndnr/meshbus-go/internal/infra/buildinfo"
)

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			return output.NewFormatter(format, false).Format(writer(c), buildinfo.Get())
		},
	}
}
