package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/connection"
)

type pingResult struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Status   string        `json:"status" yaml:"status"`
	Latency  time.Duration `json:"latency" yaml:"latency"`
	Database int           `json:"database" yaml:"database" table:"wide"`
	TLS      bool          `json:"tls" yaml:"tls" table:"wide"`
}

// PingCommand checks that the store is reachable.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check connectivity to the store",
		Action: ping,
	}
}

func ping(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *connection.Client, flags *GlobalFlags) error {
		start := time.Now()
		if err := client.Pool.Ping(ctx); err != nil {
			return err
		}
		return render(c, flags, pingResult{
			Addr:     client.Addr(),
			Status:   "PONG",
			Latency:  time.Since(start).Round(time.Microsecond),
			Database: flags.Conn.Database,
			TLS:      flags.Conn.TLS.Enabled,
		})
	})
}
