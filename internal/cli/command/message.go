package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cli/connection"
	"github.com/yndnr/meshbus-go/internal/cli/output"
	"github.com/yndnr/meshbus-go/internal/codec"
	"github.com/yndnr/meshbus-go/internal/messenger"
)

// Message types the reference node registers handlers for.
var defaultListenTypes = []string{"player_message", "server_event", "sync_data"}

type sendResult struct {
	Channel string `json:"channel" yaml:"channel"`
	Type    string `json:"type" yaml:"type"`
	Sender  string `json:"sender" yaml:"sender"`
	Status  string `json:"status" yaml:"status"`
}

type receivedMessage struct {
	Time    string         `json:"time" yaml:"time"`
	Type    string         `json:"type" yaml:"type"`
	Sender  string         `json:"sender" yaml:"sender"`
	Content string         `json:"content" yaml:"content"`
	Data    map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// MessageCommand returns the message subcommand group.
func MessageCommand() *cli.Command {
	dataFlag := &cli.StringSliceFlag{
		Name:    "data",
		Aliases: []string{"d"},
		Usage:   "Payload entries as KEY=VALUE; integers and booleans are typed",
	}

	return &cli.Command{
		Name:    "message",
		Aliases: []string{"msg"},
		Usage:   "Publish and observe cluster messages",
		Subcommands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Publish on the main channel",
				ArgsUsage: "TYPE CONTENT",
				Flags:     []cli.Flag{dataFlag},
				Action:    publishAction(messenger.MainChannel),
			},
			{
				Name:      "broadcast",
				Usage:     "Publish on the broadcast channel",
				ArgsUsage: "TYPE CONTENT",
				Flags:     []cli.Flag{dataFlag},
				Action:    publishAction(messenger.BroadcastChannel),
			},
			{
				Name:  "listen",
				Usage: "Print messages of the given types as they arrive",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Message type to print (repeatable)",
						Value: cli.NewStringSlice(defaultListenTypes...),
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Exit after this many messages; zero listens until --duration or interrupt",
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Exit after this long; zero listens until --count or interrupt",
					},
				},
				Action: messageListen,
			},
		},
	}
}

// parseData turns KEY=VALUE pairs into an envelope payload.
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid data %q: want KEY=VALUE", pair)
		}
		if n, err := codec.ParseInt(v); err == nil {
			data[k] = n
		} else if b, err := codec.ParseBool(v); err == nil {
			data[k] = b
		} else {
			data[k] = v
		}
	}
	return data, nil
}

func publishAction(channel string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 2 {
			return fmt.Errorf("usage: %s %s", c.Command.HelpName, c.Command.ArgsUsage)
		}
		data, err := parseData(c.StringSlice("data"))
		if err != nil {
			return err
		}
		msgType, content := c.Args().Get(0), c.Args().Get(1)

		return withClient(c, func(ctx context.Context, client *connection.Client, flags *GlobalFlags) error {
			m, err := client.Messenger(ctx)
			if err != nil {
				return err
			}

			var errc <-chan error
			if channel == messenger.BroadcastChannel {
				errc = m.Broadcast(msgType, content, data)
			} else {
				errc = m.Send(msgType, content, data)
			}

			select {
			case err = <-errc:
			case <-ctx.Done():
				err = ctx.Err()
			}
			if err != nil {
				return err
			}
			return render(c, flags, sendResult{Channel: channel, Type: msgType, Sender: m.Identity(), Status: "published"})
		})
	}
}

func messageListen(c *cli.Context) error {
	count := c.Int("count")
	types := c.StringSlice("type")

	return withClient(c, func(ctx context.Context, client *connection.Client, flags *GlobalFlags) error {
		m, err := client.Messenger(ctx)
		if err != nil {
			return err
		}

		if d := c.Duration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		// Streams print one line per message.
		formatter := output.NewFormatter(flags.Output, flags.Wide)
		if jf, ok := formatter.(*output.JSONFormatter); ok {
			jf.Compact = true
		}

		var (
			mu       sync.Mutex
			received int
			done     = make(chan struct{})
			doneOnce sync.Once
		)
		show := func(_ context.Context, env *messenger.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			if count > 0 && received >= count {
				return nil
			}
			received++
			err := formatter.Format(writer(c), []receivedMessage{{
				Time:    env.Time().Format(time.RFC3339),
				Type:    env.Type,
				Sender:  env.Sender,
				Content: env.Content,
				Data:    env.Data,
			}})
			if count > 0 && received >= count {
				doneOnce.Do(func() { close(done) })
			}
			return err
		}
		for _, t := range types {
			m.RegisterHandlerFunc(t, show)
		}

		select {
		case <-done:
		case <-ctx.Done():
		}
		return nil
	})
}
