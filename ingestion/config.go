package ingestion

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the tunables of an ingestion pipeline.
type Config struct {
	// WorkerCount is the number of posters delivering batches concurrently.
	WorkerCount int

	// PayloadSizeThreshold is the batch size, in encoded bytes, above which a
	// batch is flushed. The payload that crosses the threshold is included.
	PayloadSizeThreshold int

	// ObjectQueueSize bounds the payloads waiting for the aggregator.
	ObjectQueueSize int

	// BatchQueueSize bounds the batches waiting for a poster.
	BatchQueueSize int

	// FlushTimeout is how long the aggregator waits for the next payload
	// before flushing an open batch.
	FlushTimeout time.Duration

	// LogUploadErrors logs every failed batch at warn level.
	LogUploadErrors bool

	// RaiseOnFailure makes CloseNow return a *FailureError when failures were recorded.
	RaiseOnFailure bool

	// WaitAfterSend makes every send block until the pipeline is idle.
	WaitAfterSend bool

	// TabularPageSize is the number of rows SendTabularData reads from its sequence at a time.
	TabularPageSize int

	// ShutdownTimeout bounds how long CloseNow waits for work in progress.
	ShutdownTimeout time.Duration

	// DefaultMethod is the sink method used by a Router when an envelope names none.
	DefaultMethod string

	// DefaultTarget fills Destination.Target when an envelope leaves it empty.
	DefaultTarget string
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return Config{
		WorkerCount:          workers,
		PayloadSizeThreshold: 10 * 1024 * 1024,
		ObjectQueueSize:      100,
		BatchQueueSize:       10,
		FlushTimeout:         2 * time.Second,
		LogUploadErrors:      true,
		RaiseOnFailure:       true,
		TabularPageSize:      1000,
		ShutdownTimeout:      30 * time.Second,
		DefaultMethod:        "file",
	}
}

// Validate checks that all values are in range.
func (c Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.PayloadSizeThreshold < 1 {
		return fmt.Errorf("%w: payload size threshold must be positive, got %d", ErrInvalidConfig, c.PayloadSizeThreshold)
	}
	if c.ObjectQueueSize < 1 {
		return fmt.Errorf("%w: object queue size must be at least 1, got %d", ErrInvalidConfig, c.ObjectQueueSize)
	}
	if c.BatchQueueSize < 1 {
		return fmt.Errorf("%w: batch queue size must be at least 1, got %d", ErrInvalidConfig, c.BatchQueueSize)
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("%w: flush timeout must be positive, got %s", ErrInvalidConfig, c.FlushTimeout)
	}
	if c.TabularPageSize < 1 {
		return fmt.Errorf("%w: tabular page size must be at least 1, got %d", ErrInvalidConfig, c.TabularPageSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive, got %s", ErrInvalidConfig, c.ShutdownTimeout)
	}
	return nil
}

// settings collects everything options can change.
type settings struct {
	cfg        Config
	name       string
	logger     *slog.Logger
	registerer prometheus.Registerer
	classifier Classifier
	pre        []PreProcessor
	post       []PostProcessor
}

func newSettings(opts []Option) (*settings, error) {
	s := &settings{
		cfg:        DefaultConfig(),
		logger:     slog.Default(),
		classifier: DefaultClassifier,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Option configures an Ingester or Router.
type Option func(*settings) error

// WithConfig replaces the whole configuration.
// Options applied after it still override individual fields.
func WithConfig(cfg Config) Option {
	return func(s *settings) error {
		s.cfg = cfg
		return nil
	}
}

// WithWorkerCount sets the number of posters.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkerCount(n int) Option {
	return func(s *settings) error {
		s.cfg.WorkerCount = n
		return nil
	}
}

// WithPayloadSizeThreshold sets the batch flush threshold in bytes.
func WithPayloadSizeThreshold(bytes int) Option {
	return func(s *settings) error {
		s.cfg.PayloadSizeThreshold = bytes
		return nil
	}
}

// WithQueueSizes sets the object and batch queue capacities.
func WithQueueSizes(objects, batches int) Option {
	return func(s *settings) error {
		s.cfg.ObjectQueueSize = objects
		s.cfg.BatchQueueSize = batches
		return nil
	}
}

// WithFlushTimeout sets the aggregator idle flush timeout.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *settings) error {
		s.cfg.FlushTimeout = d
		return nil
	}
}

// WithRaiseOnFailure controls whether CloseNow returns a *FailureError.
func WithRaiseOnFailure(raise bool) Option {
	return func(s *settings) error {
		s.cfg.RaiseOnFailure = raise
		return nil
	}
}

// WithLogUploadErrors controls per-batch failure logging.
func WithLogUploadErrors(enabled bool) Option {
	return func(s *settings) error {
		s.cfg.LogUploadErrors = enabled
		return nil
	}
}

// WithWaitAfterSend makes sends block until the pipeline is idle.
func WithWaitAfterSend(wait bool) Option {
	return func(s *settings) error {
		s.cfg.WaitAfterSend = wait
		return nil
	}
}

// WithTabularPageSize sets how many rows SendTabularData reads at a time.
func WithTabularPageSize(rows int) Option {
	return func(s *settings) error {
		s.cfg.TabularPageSize = rows
		return nil
	}
}

// WithShutdownTimeout bounds CloseNow.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *settings) error {
		s.cfg.ShutdownTimeout = d
		return nil
	}
}

// WithDefaultTarget sets the target used when an envelope has none.
func WithDefaultTarget(target string) Option {
	return func(s *settings) error {
		s.cfg.DefaultTarget = target
		return nil
	}
}

// WithDefaultMethod sets the sink method a Router uses when an envelope has none.
func WithDefaultMethod(method string) Option {
	return func(s *settings) error {
		s.cfg.DefaultMethod = method
		return nil
	}
}

// WithName names the ingester in logs and metric labels.
func WithName(name string) Option {
	return func(s *settings) error {
		s.name = name
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRegisterer enables Prometheus metrics registered with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) error {
		s.registerer = reg
		return nil
	}
}

// WithClassifier sets the error classifier.
// Default is DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(s *settings) error {
		if c == nil {
			c = DefaultClassifier
		}
		s.classifier = c
		return nil
	}
}

// WithPreProcessors appends stages to the pre-process chain.
func WithPreProcessors(stages ...PreProcessor) Option {
	return func(s *settings) error {
		for _, p := range stages {
			if p == nil {
				return fmt.Errorf("%w: nil pre-processor", ErrInvalidConfig)
			}
		}
		s.pre = append(s.pre, stages...)
		return nil
	}
}

// WithPostProcessors appends stages to the post-process chain.
func WithPostProcessors(stages ...PostProcessor) Option {
	return func(s *settings) error {
		for _, p := range stages {
			if p == nil {
				return fmt.Errorf("%w: nil post-processor", ErrInvalidConfig)
			}
		}
		s.post = append(s.post, stages...)
		return nil
	}
}
