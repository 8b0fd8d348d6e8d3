package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/marketsync/cmd/app/commands"
	"github.com/allisson/marketsync/internal/app"
	"github.com/allisson/marketsync/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "dispatch",
			Usage: "Deliver one batch of pending outbox entries",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Usage:   "Maximum number of entries to claim (defaults to OUTBOX_BATCH_SIZE)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatchUseCase, err := container.DispatchUseCase(ctx)
				if err != nil {
					return err
				}

				batchSize := int(cmd.Int("batch-size"))
				if batchSize == 0 {
					batchSize = cfg.OutboxBatchSize
				}

				return commands.RunDispatch(
					ctx,
					dispatchUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					batchSize,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "sweep",
			Usage: "Recover stalled entries and requeue retryable failures",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Usage:   "Maximum number of entries to requeue (defaults to OUTBOX_SWEEP_LIMIT)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sweepUseCase, err := container.SweepUseCase()
				if err != nil {
					return err
				}

				limit := int(cmd.Int("limit"))
				if limit == 0 {
					limit = cfg.OutboxSweepLimit
				}

				return commands.RunSweep(
					ctx,
					sweepUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					limit,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "status",
			Usage: "Show outbox counts per table and status",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "source-table",
					Aliases: []string{"t"},
					Usage:   "Only report entries of this source table",
				},
				&cli.StringFlag{
					Name:    "status",
					Aliases: []string{"s"},
					Usage:   "Only report entries in this status",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				statusUseCase, err := container.StatusUseCase()
				if err != nil {
					return err
				}

				return commands.RunStatus(
					ctx,
					statusUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("source-table"),
					cmd.String("status"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "requeue",
			Usage: "Return a terminally failed outbox entry to the queue",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Outbox entry ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				operatorUseCase, err := container.OperatorUseCase()
				if err != nil {
					return err
				}

				return commands.RunRequeueEntry(
					ctx,
					operatorUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "skip",
			Usage: "Mark a pending outbox entry as skipped",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Outbox entry ID (UUID)",
				},
				&cli.StringFlag{
					Name:    "reason",
					Aliases: []string{"r"},
					Value:   "skipped by operator",
					Usage:   "Reason recorded on the entry",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				operatorUseCase, err := container.OperatorUseCase()
				if err != nil {
					return err
				}

				return commands.RunSkipEntry(
					ctx,
					operatorUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("reason"),
					cmd.String("format"),
				)
			},
		},
	}
}
