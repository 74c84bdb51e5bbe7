package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/poiesic/datajobs"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/replay"
	"github.com/urfave/cli/v2"
)

func replayCommand() *cli.Command {
	flags := []cli.Flag{
		dbFlag(),
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Only replay batches of this collection",
		},
		&cli.StringFlag{
			Name:     "method",
			Aliases:  []string{"m"},
			Usage:    "Sink method the stored payloads are sent to",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "target",
			Usage: "Replace the stored destination target",
		},
		&cli.StringFlag{
			Name:  "table",
			Usage: "Replace the stored destination table",
		},
		&cli.BoolFlag{
			Name:  "skip-corrupt",
			Usage: "Skip stored batches that cannot be decoded",
		},
	}
	return &cli.Command{
		Name:   "replay",
		Usage:  "Send batches written by the store sink to another sink",
		Action: replayAction,
		Flags:  append(append(flags, sinkFlags()...), pipelineFlags()...),
	}
}

func replayAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := datajobs.Open(c.String("db"), runtimeOptions(c)...)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer rt.Close()

	job := core.JobContext{JobName: "replay", OperationID: uuid.NewString()}
	routerOpts, progress := pipelineOptions(c)
	routerOpts = append(routerOpts, ingestion.WithDefaultMethod(c.String("method")))
	router, err := rt.NewRouter(job, routerOpts...)
	if err != nil {
		return err
	}

	replayer, err := replay.NewReplayer(rt.BatchRepository(), router, replay.Config{
		CollectionID: c.String("collection"),
		Method:       c.String("method"),
		Target:       c.String("target"),
		Table:        c.String("table"),
		SkipCorrupt:  c.Bool("skip-corrupt"),
	}, slog.Default())
	if err != nil {
		return err
	}

	result, runErr := replayer.Run(ctx)
	if runErr == nil && result.Skipped > 0 {
		fmt.Fprintf(c.App.Writer, "skipped %d corrupt batches\n", result.Skipped)
	}
	return errors.Join(runErr, finish(ctx, c, router, progress))
}
