package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshbus-go/internal/cache"
	"github.com/yndnr/meshbus-go/internal/cli/connection"
)

// cacheResult is what every cache subcommand prints.
type cacheResult struct {
	Key    string `json:"key" yaml:"key"`
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
	Value  string `json:"value,omitempty" yaml:"value,omitempty"`
	Found  bool   `json:"found" yaml:"found"`
	TTL    string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	Stored string `json:"stored_key" yaml:"stored_key" table:"wide"`
}

func newCacheResult(key string) cacheResult {
	return cacheResult{Key: key, Stored: cache.Key(key)}
}

var errUnavailable = errors.New("store unavailable")

// CacheCommand returns the cache subcommand group.
func CacheCommand() *cli.Command {
	ttlFlag := &cli.DurationFlag{
		Name:    "ttl",
		Aliases: []string{"t"},
		Usage:   "Expiry (e.g. 30s, 5m); zero keeps the entry forever",
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Read and write namespaced cache entries",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Get an entry",
				ArgsUsage: "KEY",
				Action:    cacheAction(1, cacheGet),
			},
			{
				Name:      "set",
				Usage:     "Set an entry",
				ArgsUsage: "KEY VALUE",
				Flags:     []cli.Flag{ttlFlag},
				Action:    cacheAction(2, cacheSet),
			},
			{
				Name:      "del",
				Aliases:   []string{"delete"},
				Usage:     "Delete an entry",
				ArgsUsage: "KEY",
				Action:    cacheAction(1, cacheDel),
			},
			{
				Name:      "exists",
				Usage:     "Check whether an entry exists",
				ArgsUsage: "KEY",
				Action:    cacheAction(1, cacheExists),
			},
			{
				Name:      "expire",
				Usage:     "Set a new expiry on an entry",
				ArgsUsage: "KEY",
				Flags: []cli.Flag{&cli.DurationFlag{
					Name:     "ttl",
					Aliases:  []string{"t"},
					Usage:    "New expiry",
					Required: true,
				}},
				Action: cacheAction(1, cacheExpire),
			},
			{
				Name:      "ttl",
				Usage:     "Show the remaining lifetime of an entry",
				ArgsUsage: "KEY",
				Action:    cacheAction(1, cacheTTL),
			},
			{
				Name:      "hget",
				Usage:     "Get a hash field",
				ArgsUsage: "KEY FIELD",
				Action:    cacheAction(2, cacheHGet),
			},
			{
				Name:      "hset",
				Usage:     "Set a hash field",
				ArgsUsage: "KEY FIELD VALUE",
				Action:    cacheAction(3, cacheHSet),
			},
			{
				Name:      "hdel",
				Usage:     "Delete hash fields",
				ArgsUsage: "KEY FIELD...",
				Action:    cacheAction(2, cacheHDel),
			},
		},
	}
}

type cacheFunc func(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error)

// cacheAction checks the argument count, runs fn against a fresh connection
// and renders its result.
func cacheAction(minArgs int, fn cacheFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < minArgs {
			return fmt.Errorf("usage: %s %s", c.Command.HelpName, c.Command.ArgsUsage)
		}
		return withClient(c, func(ctx context.Context, client *connection.Client, flags *GlobalFlags) error {
			res, err := fn(ctx, c, client.Cache)
			if err != nil {
				return err
			}
			return render(c, flags, res)
		})
	}
}

func cacheGet(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Value, res.Found = store.GetString(ctx, res.Key)
	return res, nil
}

func cacheSet(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Value = c.Args().Get(1)
	ttl := c.Duration("ttl")
	if !store.Set(ctx, res.Key, res.Value, ttl) {
		return res, errUnavailable
	}
	res.Found = true
	if ttl > 0 {
		res.TTL = ttl.String()
	}
	return res, nil
}

func cacheDel(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Found = store.Delete(ctx, res.Key)
	return res, nil
}

func cacheExists(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Found = store.Exists(ctx, res.Key)
	return res, nil
}

func cacheExpire(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	ttl := c.Duration("ttl")
	res.Found = store.Expire(ctx, res.Key, ttl)
	if res.Found {
		res.TTL = ttl.String()
	}
	return res, nil
}

func cacheTTL(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	var ttl time.Duration
	ttl, res.Found = store.TTL(ctx, res.Key)
	switch {
	case !res.Found:
	case ttl == cache.NoExpiry:
		res.TTL = "none"
	default:
		res.TTL = ttl.String()
	}
	return res, nil
}

func cacheHGet(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Field = c.Args().Get(1)
	res.Value, res.Found = store.HGet(ctx, res.Key, res.Field)
	return res, nil
}

func cacheHSet(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	res.Field = c.Args().Get(1)
	res.Value = c.Args().Get(2)
	if !store.HSet(ctx, res.Key, res.Field, res.Value) {
		return res, errUnavailable
	}
	res.Found = true
	return res, nil
}

func cacheHDel(ctx context.Context, c *cli.Context, store *cache.Store) (cacheResult, error) {
	res := newCacheResult(c.Args().Get(0))
	fields := c.Args().Slice()[1:]
	n := store.HDel(ctx, res.Key, fields...)
	res.Found = n > 0
	res.Value = fmt.Sprintf("%d removed", n)
	return res, nil
}
