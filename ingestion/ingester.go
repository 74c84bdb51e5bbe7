package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// State is the lifecycle state of an Ingester.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// queued is an envelope accepted by SendObject together with its encoded size.
type queued struct {
	payload core.Payload
	dest    core.Destination
	size    int
}

// Ingester delivers payloads to one sink through a bounded, batching pipeline.
// Exactly one Ingester should exist per job execution and sink.
type Ingester struct {
	sink       sink.Sink
	job        core.JobContext
	cfg        Config
	logger     *slog.Logger
	classifier Classifier
	preStages  []PreProcessor
	postStages []PostProcessor
	metrics    *metrics

	objects chan queued
	batches chan *core.Batch
	pool    *ants.Pool

	counters Counters
	inflight *tracker
	batchSeq atomic.Uint64

	state atomic.Int32
	// held for reading while a producer enqueues; Close takes it for
	// writing once to fence out producers that passed the state check.
	sendMu sync.RWMutex

	drain   chan struct{}
	abort   chan struct{}
	aggDone chan struct{}
	posters sync.WaitGroup

	closeMu      sync.Mutex
	stopped      bool
	closeNowDone bool
	abortOnce    sync.Once
}

// antsLogger adapts slog to the ants.Logger interface.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// NewIngester creates an ingester for s and starts its aggregator and posters.
func NewIngester(s sink.Sink, job core.JobContext, opts ...Option) (*Ingester, error) {
	if s == nil {
		return nil, ErrSinkRequired
	}
	set, err := newSettings(opts)
	if err != nil {
		return nil, err
	}

	logger := set.logger.With("component", "ingestion")
	if set.name != "" {
		logger = logger.With("ingester", set.name)
	}

	m, err := newMetrics(set.registerer, set.name)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	pool, err := ants.NewPool(set.cfg.WorkerCount,
		ants.WithLogger(antsLogger{logger: logger}),
		ants.WithPanicHandler(func(r any) {
			logger.Error("poster panicked", "err", recovered(r))
		}),
	)
	if err != nil {
		return nil, err
	}

	i := &Ingester{
		sink:       s,
		job:        job,
		cfg:        set.cfg,
		logger:     logger,
		classifier: set.classifier,
		preStages:  set.pre,
		postStages: set.post,
		metrics:    m,
		objects:    make(chan queued, set.cfg.ObjectQueueSize),
		batches:    make(chan *core.Batch, set.cfg.BatchQueueSize),
		pool:       pool,
		inflight:   newTracker(),
		drain:      make(chan struct{}),
		abort:      make(chan struct{}),
		aggDone:    make(chan struct{}),
	}
	i.state.Store(int32(StateCreated))

	if err := i.start(); err != nil {
		i.signalAbort()
		<-i.aggDone
		pool.Release()
		return nil, err
	}
	i.state.Store(int32(StateRunning))
	return i, nil
}

func (i *Ingester) start() error {
	go i.aggregate()

	for n := 0; n < i.cfg.WorkerCount; n++ {
		i.posters.Add(1)
		if err := i.pool.Submit(i.runPoster); err != nil {
			i.posters.Done()
			return fmt.Errorf("starting poster %d: %w", n, err)
		}
	}
	return nil
}

// State returns the current lifecycle state.
func (i *Ingester) State() State {
	return State(i.state.Load())
}

// Stats returns a snapshot of the counters.
func (i *Ingester) Stats() Snapshot {
	return i.counters.Snapshot()
}

// Pending returns the number of objects enqueued but not yet accounted for.
func (i *Ingester) Pending() int {
	return i.inflight.pending()
}

// SendObject validates env and enqueues it, blocking while the object queue is full.
// Validation errors are returned synchronously and nothing is enqueued.
// Returns ctx.Err() if ctx ends while blocked and ErrIngesterClosed once the
// ingester is shutting down.
func (i *Ingester) SendObject(ctx context.Context, env core.Envelope) error {
	q, err := i.prepare(env)
	if err != nil {
		return err
	}
	if err := i.enqueue(ctx, q); err != nil {
		return err
	}
	if i.cfg.WaitAfterSend {
		return i.Wait(ctx)
	}
	return nil
}

// prepare copies and validates the payload and fills destination defaults.
// The caller may reuse env.Payload once prepare returns; nested values are
// still shared.
func (i *Ingester) prepare(env core.Envelope) (queued, error) {
	payload := env.Payload.Clone()
	size, err := core.ValidatePayload(payload)
	if err != nil {
		return queued{}, err
	}
	dest := env.Destination
	if dest.CollectionID == "" {
		dest.CollectionID = i.job.DefaultCollectionID()
	}
	if dest.Target == "" {
		dest.Target = i.cfg.DefaultTarget
	}
	return queued{payload: payload, dest: dest, size: size}, nil
}

func (i *Ingester) enqueue(ctx context.Context, q queued) error {
	i.sendMu.RLock()
	defer i.sendMu.RUnlock()

	if i.State() != StateRunning {
		return ErrIngesterClosed
	}

	i.inflight.add(1)
	select {
	case i.objects <- q:
		i.metrics.enqueued(1)
		return nil
	case <-ctx.Done():
		i.inflight.done(1)
		return ctx.Err()
	case <-i.abort:
		i.inflight.done(1)
		return ErrIngesterClosed
	}
}

// Wait blocks until every enqueued object has been accounted for, ctx ends
// or the ingester is stopped.
func (i *Ingester) Wait(ctx context.Context) error {
	return i.inflight.wait(ctx)
}

func (i *Ingester) signalAbort() {
	i.abortOnce.Do(func() { close(i.abort) })
}

// Close drains the pipeline: everything already queued is batched, delivered
// and post-processed before Close returns. Sends made after Close starts fail
// with ErrIngesterClosed. Close is idempotent.
//
// If ctx ends first, Close escalates to an immediate stop, waits up to
// ShutdownTimeout for work in progress and returns ctx.Err().
func (i *Ingester) Close(ctx context.Context) error {
	i.closeMu.Lock()
	defer i.closeMu.Unlock()

	if i.stopped {
		return nil
	}
	i.stopped = true

	i.state.Store(int32(StateDraining))
	done := make(chan struct{})
	go func() {
		defer close(done)
		// fence: after this no producer can still be mid-enqueue
		i.sendMu.Lock()
		i.sendMu.Unlock()
		close(i.drain)
		<-i.aggDone
		close(i.batches)
		i.posters.Wait()
	}()

	var err error
	select {
	case <-done:
		i.pool.Release()
	case <-ctx.Done():
		err = ctx.Err()
		i.logger.Warn("close interrupted, stopping immediately", "err", err)
		i.stopNow()
	}

	i.state.Store(int32(StateClosed))
	i.logSummary()
	return err
}

// CloseNow stops the pipeline without draining it. Posters finish the batch
// they hold; queued objects and batches are abandoned and logged as a loss.
// In-progress sink calls are not interrupted, CloseNow waits for them at most
// ShutdownTimeout.
//
// When RaiseOnFailure is set and any failure was recorded, the first call
// returns a *FailureError. Later calls return nil.
func (i *Ingester) CloseNow() error {
	i.closeMu.Lock()
	defer i.closeMu.Unlock()

	if i.closeNowDone {
		return nil
	}
	i.closeNowDone = true

	if !i.stopped {
		i.stopped = true
		i.state.Store(int32(StateDraining))
		i.stopNow()
		i.state.Store(int32(StateClosed))
		i.logSummary()
	}

	if !i.cfg.RaiseOnFailure {
		return nil
	}
	if fe := i.counters.failureError(); fe != nil {
		return fe
	}
	return nil
}

// stopNow aborts the pipeline and waits up to ShutdownTimeout for the
// posters to finish the batch they hold.
func (i *Ingester) stopNow() {
	i.signalAbort()
	i.inflight.stop()

	timeout := i.cfg.ShutdownTimeout
	if err := i.pool.ReleaseTimeout(timeout); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		i.logger.Warn("posters still busy after shutdown timeout", "timeout", timeout, "err", err)
	}
	<-i.aggDone
	i.sendMu.Lock()
	i.sendMu.Unlock()

	if abandoned := i.abandonQueued(); abandoned > 0 {
		i.logger.Warn("abandoned queued objects on immediate shutdown", "objects", abandoned)
	}
}

// abandonQueued empties both queues and records their contents as lost.
// Only called once the aggregator has exited and producers are fenced out.
func (i *Ingester) abandonQueued() int {
	n := 0
objects:
	for {
		select {
		case <-i.objects:
			n++
		default:
			break objects
		}
	}
batches:
	for {
		select {
		case b, ok := <-i.batches:
			if !ok {
				break batches
			}
			n += b.Len()
		default:
			break batches
		}
	}
	i.abandon(n)
	return n
}

func (i *Ingester) abandon(objects int) {
	if objects == 0 {
		return
	}
	i.counters.recordAbandoned(objects)
	i.metrics.abandon(objects)
	i.inflight.done(objects)
}

func (i *Ingester) logSummary() {
	snap := i.counters.Snapshot()
	attrs := []any{
		"succeeded_batches", snap.SuccessBatches,
		"succeeded_objects", snap.SuccessObjects,
		"failed_batches", snap.FailedBatches,
		"failed_objects", snap.FailedObjects,
		"post_process_failures", snap.PostProcessFailures,
		"abandoned_objects", snap.AbandonedObjects,
	}
	for _, cat := range core.Categories {
		attrs = append(attrs, cat.String(), snap.ByCategory[cat])
	}
	if snap.HasFailures() || snap.AbandonedObjects > 0 {
		i.logger.Warn("ingestion finished with failures", attrs...)
		return
	}
	i.logger.Info("ingestion finished", attrs...)
}
