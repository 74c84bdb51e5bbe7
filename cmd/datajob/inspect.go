package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/poiesic/datajobs/storage/badger"
	"github.com/urfave/cli/v2"
)

func checkpointsCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	checkpoints, err := badger.NewCheckpointRepository(backend).ListCheckpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tTABLE\tPAYLOADS\tBATCHES\tUPDATED")
	for _, chk := range checkpoints {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			chk.CollectionID, chk.Table, chk.Payloads, chk.Batches, chk.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func batchesCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	batches, err := badger.NewBatchRepository(backend).ListBatches(ctx, c.String("collection"))
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	if c.Bool("payloads") {
		for _, b := range batches {
			for _, p := range b.Payloads {
				fmt.Fprintln(c.App.Writer, p)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOLLECTION\tTARGET\tTABLE\tPAYLOADS\tINSERTED")
	for _, b := range batches {
		fmt.Fprintf(w, "%016x\t%s\t%s\t%s\t%d\t%s\n",
			uint64(b.Id), b.CollectionID, b.Target, b.Table, len(b.Payloads), b.InsertedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
