// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package datajobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/processors"
	"github.com/poiesic/datajobs/sink"
	"github.com/poiesic/datajobs/sink/objectstore"
	"github.com/poiesic/datajobs/sink/postgres"
	"github.com/poiesic/datajobs/sink/queue"
	"github.com/poiesic/datajobs/storage"
	"github.com/poiesic/datajobs/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime owns everything a job execution needs to ingest data: the local
// ledger database, the sink registry and the processor configuration.
type Runtime struct {
	backend        *badger.Backend
	batchRepo      storage.BatchRepository
	checkpointRepo storage.CheckpointRepository
	sinks          *sink.Registry
	options        *runtimeOptions
	logger         *slog.Logger
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	inMemory      bool
	outputDir     string
	natsURL       string
	natsOpts      []queue.Option
	objectStore   *objectstore.Config
	postgres      *postgres.Config
	retryAttempts int
	retryDelay    time.Duration
	processors    []string
	logger        *slog.Logger
	registerer    prometheus.Registerer
}

// WithInMemory keeps the ledger database in memory. The path given to Open is ignored.
func WithInMemory() Option {
	return func(o *runtimeOptions) {
		o.inMemory = true
	}
}

// WithOutputDir sets the root directory of the file sink.
// Default is an "output" directory next to the ledger database.
func WithOutputDir(dir string) Option {
	return func(o *runtimeOptions) {
		o.outputDir = dir
	}
}

// WithNATS enables the queue sink, publishing to the server at url.
func WithNATS(url string, opts ...queue.Option) Option {
	return func(o *runtimeOptions) {
		o.natsURL = url
		o.natsOpts = opts
	}
}

// WithObjectStore enables the objectstore sink.
func WithObjectStore(cfg objectstore.Config) Option {
	return func(o *runtimeOptions) {
		o.objectStore = &cfg
	}
}

// WithPostgres enables the postgres sink.
func WithPostgres(cfg postgres.Config) Option {
	return func(o *runtimeOptions) {
		o.postgres = &cfg
	}
}

// WithRetry retries failed sink calls up to attempts times, backing off from delay.
// Applies to every sink except the in-process store.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *runtimeOptions) {
		o.retryAttempts = attempts
		o.retryDelay = delay
	}
}

// WithProcessors names the processors every router runs, in order.
// See processors.Names for what is available.
func WithProcessors(names ...string) Option {
	return func(o *runtimeOptions) {
		o.processors = names
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithRegisterer enables pipeline metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *runtimeOptions) {
		o.registerer = reg
	}
}

// Open opens the ledger database at filePath and registers the configured sinks.
// Remote sinks connect lazily, on first use.
func Open(filePath string, opts ...Option) (*Runtime, error) {
	options := &runtimeOptions{
		retryAttempts: 1,
		retryDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.outputDir == "" {
		options.outputDir = filepath.Join(filepath.Dir(filePath), "output")
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		backend:        backend,
		batchRepo:      badger.NewBatchRepository(backend),
		checkpointRepo: badger.NewCheckpointRepository(backend),
		sinks:          sink.NewRegistry(),
		options:        options,
		logger:         options.logger.With("component", "runtime"),
	}
	if err := rt.registerSinks(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) registerSinks() error {
	o := rt.options
	retrying := func(f sink.Factory) sink.Factory {
		return func(ctx context.Context) (sink.Sink, error) {
			s, err := f(ctx)
			if err != nil {
				return nil, err
			}
			return sink.WithRetry(s, o.retryAttempts, o.retryDelay), nil
		}
	}

	if err := rt.sinks.Register(sink.MethodFile, retrying(sink.FileFactory(o.outputDir))); err != nil {
		return err
	}
	if err := rt.sinks.Register(sink.MethodStore, sink.StoreFactory(rt.batchRepo)); err != nil {
		return err
	}
	if o.natsURL != "" {
		natsOpts := []nats.Option{nats.MaxReconnects(-1)}
		if err := rt.sinks.Register(sink.MethodQueue, retrying(queue.Factory(o.natsURL, natsOpts, o.natsOpts...))); err != nil {
			return err
		}
	}
	if o.objectStore != nil {
		if err := rt.sinks.Register(sink.MethodObjectStore, retrying(objectstore.Factory(*o.objectStore))); err != nil {
			return err
		}
	}
	if o.postgres != nil {
		if err := rt.sinks.Register(sink.MethodPostgres, retrying(postgres.Factory(*o.postgres))); err != nil {
			return err
		}
	}
	rt.logger.Debug("registered sinks", "methods", rt.sinks.Methods())
	return nil
}

// Methods returns the sink methods this runtime can route to.
func (rt *Runtime) Methods() []string {
	return rt.sinks.Methods()
}

// NewRouter creates a router for one job execution. The runtime's processors
// run before any processors passed in opts.
func (rt *Runtime) NewRouter(job core.JobContext, opts ...ingestion.Option) (*ingestion.Router, error) {
	pre, post, err := processors.Chains(rt.options.processors, processors.Deps{
		Job:         job,
		Checkpoints: rt.checkpointRepo,
		Logger:      rt.options.logger,
	})
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithLogger(rt.options.logger),
		ingestion.WithRegisterer(rt.options.registerer),
		ingestion.WithPreProcessors(pre...),
		ingestion.WithPostProcessors(post...),
	}
	return ingestion.NewRouter(rt.sinks, job, append(base, opts...)...)
}

// BatchRepository returns the repository behind the store sink.
func (rt *Runtime) BatchRepository() storage.BatchRepository {
	return rt.batchRepo
}

// CheckpointRepository returns the ingestion ledger.
func (rt *Runtime) CheckpointRepository() storage.CheckpointRepository {
	return rt.checkpointRepo
}

// Close closes every opened sink, then the ledger database.
// Routers must be closed first.
func (rt *Runtime) Close() error {
	var result *multierror.Error

	if err := rt.sinks.Close(); err != nil {
		rt.logger.Error("error closing sinks", "err", err)
		result = multierror.Append(result, err)
	}
	if err := rt.checkpointRepo.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing checkpoint repository: %w", err))
	}
	if err := rt.batchRepo.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing batch repository: %w", err))
	}
	if !rt.backend.IsClosed() {
		if err := rt.backend.Close(); err != nil {
			rt.logger.Error("error closing backend storage", "err", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// IsConfigError reports whether err should be fixed in the runtime or job configuration.
func IsConfigError(err error) bool {
	var fe *ingestion.FailureError
	if errors.As(err, &fe) {
		return fe.Category == core.CategoryConfig
	}
	return core.Classify(err) == core.CategoryConfig
}
