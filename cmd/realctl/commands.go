package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/realsocial/real/collab/collabtest"
	"github.com/realsocial/real/config"
	"github.com/realsocial/real/internal/bootstrap"
	"github.com/realsocial/real/internal/logging"
	"github.com/realsocial/real/manager"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/reactor"
	"github.com/realsocial/real/store"
)

func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *bootstrap.Runtime) error) error {
	ctx := c.Context
	rt, err := bootstrap.Load(ctx, "realctl")
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	return fn(ctx, rt)
}

func deflateCmd() *cli.Command {
	return &cli.Command{
		Name:  "deflate",
		Usage: "Deflate and trim trending scores",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "kind",
				Usage: "trending kinds to process (post, user)",
				Value: cli.NewStringSlice(string(model.TrendingPost), string(model.TrendingUser)),
			},
			&cli.BoolFlag{
				Name:  "skip-trim",
				Usage: "only deflate, keep items past the count limit",
			},
		},
		Action: func(c *cli.Context) error {
			kinds := make([]model.TrendingKind, 0, len(c.StringSlice("kind")))
			for _, k := range c.StringSlice("kind") {
				kind := model.TrendingKind(k)
				if kind != model.TrendingPost && kind != model.TrendingUser {
					return fmt.Errorf("unknown trending kind %q", k)
				}
				kinds = append(kinds, kind)
			}
			return withRuntime(c, func(ctx context.Context, rt *bootstrap.Runtime) error {
				for _, kind := range kinds {
					stats, err := rt.App.Trending.Deflate(ctx, kind)
					if err != nil {
						return err
					}
					trimmed := 0
					if !c.Bool("skip-trim") {
						if trimmed, err = rt.App.Trending.Trim(ctx, kind); err != nil {
							return err
						}
					}
					fmt.Fprintf(c.App.Writer, "%s: deflated=%d deleted=%d trimmed=%d\n", kind, stats.Deflated, stats.Deleted, trimmed)
				}
				return nil
			})
		},
	}
}

func expireCmd() *cli.Command {
	return &cli.Command{
		Name:  "expire",
		Usage: "Delete stories whose expiry has passed",
		Action: func(c *cli.Context) error {
			return withRuntime(c, func(ctx context.Context, rt *bootstrap.Runtime) error {
				n, err := rt.App.Posts.DeleteExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "expired %d posts\n", n)
				return nil
			})
		},
	}
}

func replayCmd() *cli.Command {
	return &cli.Command{
		Name:        "replay",
		Usage:       "Replay a DynamoDB stream batch through the reactor",
		ArgsUsage:   "<batch.json>",
		Description: `Reads a DynamoDB stream event as delivered to the stream handler.

		By default the records are dispatched against the configured table,
		which re-drives a batch that ended up in a dead-letter queue. Records
		already handled are skipped.

		With --local the batch runs against an in-memory table seeded with the
		records' new images and fake collaborators, and the cascade of
		changes it causes is settled and summarised.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "local",
				Usage: "replay against an in-memory table",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("replay takes exactly one batch file", 2)
			}
			batch, err := readBatch(c.Args().First())
			if err != nil {
				return err
			}
			if c.Bool("local") {
				return replayLocal(c, batch)
			}
			return withRuntime(c, func(ctx context.Context, rt *bootstrap.Runtime) error {
				resp, err := reactor.NewStreamHandler(rt.Dispatcher(), rt.Logger).Handle(ctx, batch)
				if err != nil {
					return err
				}
				failed := lo.Map(resp.BatchItemFailures, func(f events.DynamoDBBatchItemFailure, _ int) string {
					return f.ItemIdentifier
				})
				fmt.Fprintf(c.App.Writer, "records=%d failed=%d\n", len(batch.Records), len(failed))
				if len(failed) > 0 {
					return fmt.Errorf("failed from record %s", failed[0])
				}
				return nil
			})
		},
	}
}

func readBatch(path string) (events.DynamoDBEvent, error) {
	var batch events.DynamoDBEvent
	data, err := os.ReadFile(path)
	if err != nil {
		return batch, err
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("parse %s: %w", path, err)
	}
	return batch, nil
}

func replayLocal(c *cli.Context, batch events.DynamoDBEvent) error {
	ctx := c.Context
	cfg := config.Default()
	logger := logging.Must(cfg.LogLevel, cfg.Environment).Named("realctl")
	defer func() { _ = logger.Sync() }()

	mem := store.NewMemory()
	changes := make([]store.Change, 0, len(batch.Records))
	for _, record := range batch.Records {
		change := reactor.ChangeFromRecord(record)
		if change.New != nil {
			if err := mem.Put(ctx, change.New.Clone(), nil); err != nil {
				return err
			}
		}
		changes = append(changes, change)
	}
	mem.Drain()

	fakes := collabtest.New()
	app := manager.New(cfg, mem, fakes.Set(), manager.WithLogger(logger))
	local := &reactor.Local{Store: mem, Dispatcher: reactor.New(app)}
	if err := local.Replay(ctx, changes); err != nil {
		return err
	}

	logger.Info("replay settled",
		zap.Int("records", len(batch.Records)),
		zap.Int("rows", mem.Len()),
		zap.Int("pushes", len(fakes.Push.Calls("apns"))),
		zap.Int("gatewayCalls", len(fakes.Gateway.Calls())),
	)
	fmt.Fprintf(c.App.Writer, "records=%d rows=%d\n", len(batch.Records), mem.Len())
	return nil
}
