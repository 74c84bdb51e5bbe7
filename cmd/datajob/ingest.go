package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/datajobs"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/processors"
	"github.com/poiesic/datajobs/sink/objectstore"
	"github.com/poiesic/datajobs/sink/postgres"
	"github.com/poiesic/datajobs/sink/queue"
	"github.com/urfave/cli/v2"
)

const (
	formatJSONL = "jsonl"
	formatCSV   = "csv"
)

func ingestCommand() *cli.Command {
	defaults := ingestion.DefaultConfig()
	flags := []cli.Flag{
		dbFlag(),
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Input format (jsonl, csv); inferred from the file extension when empty",
		},
		&cli.StringFlag{
			Name:    "method",
			Aliases: []string{"m"},
			Usage:   "Sink method (file, store, queue, objectstore, postgres)",
			Value:   defaults.DefaultMethod,
			EnvVars: []string{"DATAJOB_METHOD"},
		},
		&cli.StringFlag{
			Name:    "target",
			Usage:   "Destination target: bucket, subject prefix, schema or directory",
			EnvVars: []string{"DATAJOB_TARGET"},
		},
		&cli.StringFlag{
			Name:     "table",
			Aliases:  []string{"t"},
			Usage:    "Destination table",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Collection id; defaults to <job>|<operation>",
		},
		&cli.StringFlag{
			Name:    "job",
			Usage:   "Job name",
			Value:   "datajob",
			EnvVars: []string{"DATAJOB_JOB"},
		},
		&cli.StringFlag{
			Name:    "operation",
			Usage:   "Operation id; a random id is generated when empty",
			EnvVars: []string{"DATAJOB_OPERATION_ID"},
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "CSV rows read from the input at a time",
			Value: defaults.TabularPageSize,
		},
	}
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Send JSON lines or CSV rows through the ingestion pipeline",
		ArgsUsage: "[input file, - or empty for stdin]",
		Action:    ingestAction,
		Flags:     append(append(flags, sinkFlags()...), pipelineFlags()...),
	}
}

// sinkFlags configure the runtime: sinks, retries and processors.
func sinkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output-dir",
			Usage:   "Root directory of the file sink",
			EnvVars: []string{"DATAJOB_OUTPUT_DIR"},
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL; enables the queue sink",
			EnvVars: []string{"DATAJOB_NATS_URL"},
		},
		&cli.StringFlag{
			Name:  "subject-prefix",
			Usage: "Subject prefix used when a destination has no target",
			Value: "datajobs",
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3 compatible endpoint; enables the objectstore sink",
			EnvVars: []string{"DATAJOB_S3_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			EnvVars: []string{"DATAJOB_S3_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			EnvVars: []string{"DATAJOB_S3_SECRET_KEY"},
		},
		&cli.StringFlag{
			Name:    "s3-region",
			EnvVars: []string{"DATAJOB_S3_REGION"},
		},
		&cli.BoolFlag{
			Name:  "s3-ssl",
			Usage: "Use TLS for the object store",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "s3-create-bucket",
			Usage: "Create missing buckets",
		},
		&cli.StringFlag{
			Name:    "postgres-dsn",
			Usage:   "PostgreSQL connection string; enables the postgres sink",
			EnvVars: []string{"DATAJOB_POSTGRES_DSN"},
		},
		&cli.BoolFlag{
			Name:  "postgres-create-tables",
			Usage: "Create missing destination tables",
		},
		&cli.StringSliceFlag{
			Name:    "processor",
			Aliases: []string{"p"},
			Usage:   "Processor to run, in order; repeatable",
			Value:   cli.NewStringSlice("job_metadata", "ledger", "failure_log"),
			EnvVars: []string{"DATAJOB_PROCESSORS"},
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per sink call",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 500 * time.Millisecond,
		},
	}
}

// pipelineFlags tune the ingestion pipeline.
func pipelineFlags() []cli.Flag {
	defaults := ingestion.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of concurrent sink calls",
			Value: defaults.WorkerCount,
		},
		&cli.IntFlag{
			Name:  "batch-bytes",
			Usage: "Flush a batch once it grows past this many encoded bytes",
			Value: defaults.PayloadSizeThreshold,
		},
		&cli.DurationFlag{
			Name:  "flush-timeout",
			Usage: "Flush an open batch after this long without input",
			Value: defaults.FlushTimeout,
		},
		&cli.DurationFlag{
			Name:  "shutdown-timeout",
			Usage: "How long to wait for in-progress sink calls on interrupt",
			Value: defaults.ShutdownTimeout,
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report progress on stderr",
		},
	}
}

func runtimeOptions(c *cli.Context) []datajobs.Option {
	opts := []datajobs.Option{
		datajobs.WithLogger(slog.Default()),
		datajobs.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
		datajobs.WithProcessors(c.StringSlice("processor")...),
	}
	if dir := c.String("output-dir"); dir != "" {
		opts = append(opts, datajobs.WithOutputDir(dir))
	}
	if url := c.String("nats-url"); url != "" {
		opts = append(opts, datajobs.WithNATS(url, queue.WithSubjectPrefix(c.String("subject-prefix"))))
	}
	if endpoint := c.String("s3-endpoint"); endpoint != "" {
		opts = append(opts, datajobs.WithObjectStore(objectstore.Config{
			Endpoint:     endpoint,
			AccessKey:    c.String("s3-access-key"),
			SecretKey:    c.String("s3-secret-key"),
			Region:       c.String("s3-region"),
			UseSSL:       c.Bool("s3-ssl"),
			CreateBucket: c.Bool("s3-create-bucket"),
		}))
	}
	if dsn := c.String("postgres-dsn"); dsn != "" {
		opts = append(opts, datajobs.WithPostgres(postgres.Config{
			ConnString:   dsn,
			CreateTables: c.Bool("postgres-create-tables"),
		}))
	}
	return opts
}

func ingestAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, name, err := openInput(c.Args().First())
	if err != nil {
		return err
	}
	defer input.Close()

	format, err := inputFormat(c.String("format"), name)
	if err != nil {
		return err
	}

	rt, err := datajobs.Open(c.String("db"), runtimeOptions(c)...)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer rt.Close()

	operation := c.String("operation")
	if operation == "" {
		operation = uuid.NewString()
	}
	job := core.JobContext{JobName: c.String("job"), OperationID: operation}

	routerOpts, progress := pipelineOptions(c)
	routerOpts = append(routerOpts,
		ingestion.WithTabularPageSize(c.Int("page-size")),
		ingestion.WithDefaultMethod(c.String("method")))

	router, err := rt.NewRouter(job, routerOpts...)
	if err != nil {
		return err
	}

	dest := core.Destination{
		Target:       c.String("target"),
		Table:        c.String("table"),
		CollectionID: c.String("collection"),
	}
	method := c.String("method")

	slog.Info("ingesting", "input", name, "format", format, "method", method, "table", dest.Table, "operation", operation)

	var sendErr error
	switch format {
	case formatCSV:
		sendErr = sendCSV(ctx, router, method, input, dest)
	default:
		sendErr = sendJSONLines(ctx, router, method, input, dest)
	}

	return errors.Join(sendErr, finish(ctx, c, router, progress))
}

func pipelineOptions(c *cli.Context) ([]ingestion.Option, *processors.Progress) {
	opts := []ingestion.Option{
		ingestion.WithWorkerCount(c.Int("workers")),
		ingestion.WithPayloadSizeThreshold(c.Int("batch-bytes")),
		ingestion.WithFlushTimeout(c.Duration("flush-timeout")),
		ingestion.WithShutdownTimeout(c.Duration("shutdown-timeout")),
	}
	if !c.Bool("progress") {
		return opts, nil
	}
	progress := processors.NewProgress(os.Stderr, 0, 100)
	progress.Start()
	return append(opts, ingestion.WithPostProcessors(progress)), progress
}

// finish drains router, prints per-method totals and returns the
// pipeline's failure error. After an interrupt it stops without draining.
func finish(ctx context.Context, c *cli.Context, router *ingestion.Router, progress *processors.Progress) error {
	if ctx.Err() != nil {
		slog.Warn("interrupted, stopping without draining")
		return errors.Join(ctx.Err(), router.CloseNow())
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout")+c.Duration("flush-timeout"))
	defer cancel()
	if err := router.Close(closeCtx); err != nil {
		slog.Error("failed to drain pipeline", "err", err)
	}
	if progress != nil {
		progress.Finish()
	}

	for m, s := range router.Stats() {
		fmt.Fprintf(c.App.Writer, "%s: %d objects delivered in %d batches, %d objects failed\n",
			m, s.SuccessObjects, s.SuccessBatches, s.FailedObjects)
	}
	return router.CloseNow()
}

// openInput opens path, or stdin for "" and "-".
func openInput(path string) (io.ReadCloser, string, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open input: %w", err)
	}
	return f, path, nil
}

func inputFormat(format, name string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv":
			return formatCSV, nil
		default:
			return formatJSONL, nil
		}
	}
	switch f := strings.ToLower(format); f {
	case formatJSONL, "json", "ndjson":
		return formatJSONL, nil
	case formatCSV:
		return formatCSV, nil
	default:
		return "", core.ConfigError(fmt.Errorf("unsupported input format %q: must be jsonl or csv", format))
	}
}

// sendJSONLines sends one payload per JSON object in r.
func sendJSONLines(ctx context.Context, router *ingestion.Router, method string, r io.Reader, dest core.Destination) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	for n := 1; ; n++ {
		var payload core.Payload
		if err := dec.Decode(&payload); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return core.UserError(fmt.Errorf("object %d: %w", n, err))
		}
		env := core.Envelope{Payload: payload, Destination: dest, Method: method}
		if err := router.SendObject(ctx, env); err != nil {
			return fmt.Errorf("object %d: %w", n, err)
		}
	}
}

// sendCSV sends every record of r as a row keyed by the header record.
func sendCSV(ctx context.Context, router *ingestion.Router, method string, r io.Reader, dest core.Destination) error {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.UserError(fmt.Errorf("%w: missing header row", core.ErrInvalidTabularData))
		}
		return core.UserError(err)
	}

	var readErr error
	rows := iter.Seq[[]any](func(yield func([]any) bool) {
		for {
			record, err := reader.Read()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = core.UserError(err)
				}
				return
			}
			row := make([]any, len(record))
			for i, v := range record {
				row[i] = v
			}
			if !yield(row) {
				return
			}
		}
	})

	if err := router.SendTabularData(ctx, method, rows, header, dest); err != nil {
		return err
	}
	return readErr
}
