package ingestion

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// SinkResolver returns the sink for a method. *sink.Registry implements it.
type SinkResolver interface {
	Resolve(ctx context.Context, method string) (sink.Sink, error)
}

// Router sends each envelope to the Ingester for its method, creating
// ingesters on first use. All ingesters share the router's options.
type Router struct {
	resolver SinkResolver
	job      core.JobContext
	opts     []Option
	cfg      Config
	logger   *slog.Logger

	mu        sync.Mutex
	ingesters map[string]*Ingester
	closed    bool
}

// NewRouter creates a router. opts are validated here and applied to every
// ingester the router creates.
func NewRouter(resolver SinkResolver, job core.JobContext, opts ...Option) (*Router, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	set, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	return &Router{
		resolver:  resolver,
		job:       job,
		opts:      opts,
		cfg:       set.cfg,
		logger:    set.logger.With("component", "router"),
		ingesters: make(map[string]*Ingester),
	}, nil
}

func (r *Router) method(m string) string {
	if m == "" {
		return r.cfg.DefaultMethod
	}
	return m
}

// Ingester returns the ingester for method, creating it if needed.
// The sink is resolved without holding the router lock, so a slow sink
// connection does not block other methods. Resolvers must return the same
// sink for concurrent calls with one method.
func (r *Router) Ingester(ctx context.Context, method string) (*Ingester, error) {
	method = r.method(method)
	if ing, ok, err := r.lookup(method); ok || err != nil {
		return ing, err
	}

	s, err := r.resolver.Resolve(ctx, method)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrIngesterClosed
	}
	if ing, ok := r.ingesters[method]; ok {
		return ing, nil
	}
	opts := append(append([]Option(nil), r.opts...), WithName(method))
	ing, err := NewIngester(s, r.job, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating %s ingester: %w", method, err)
	}
	r.logger.Debug("started ingester", "method", method)
	r.ingesters[method] = ing
	return ing, nil
}

func (r *Router) lookup(method string) (*Ingester, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, ErrIngesterClosed
	}
	ing, ok := r.ingesters[method]
	return ing, ok, nil
}

// SendObject routes env by its Method.
func (r *Router) SendObject(ctx context.Context, env core.Envelope) error {
	ing, err := r.Ingester(ctx, env.Method)
	if err != nil {
		return err
	}
	return ing.SendObject(ctx, env)
}

// SendTabularData routes rows to the ingester for method.
func (r *Router) SendTabularData(ctx context.Context, method string, rows iter.Seq[[]any], columns []string, dest core.Destination) error {
	ing, err := r.Ingester(ctx, method)
	if err != nil {
		return err
	}
	return ing.SendTabularData(ctx, rows, columns, dest)
}

// Stats returns a snapshot per method.
func (r *Router) Stats() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.ingesters))
	for m, ing := range r.ingesters {
		out[m] = ing.Stats()
	}
	return out
}

// snapshotIngesters marks the router closed and returns its ingesters in method order.
func (r *Router) snapshotIngesters() []*Ingester {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	methods := make([]string, 0, len(r.ingesters))
	for m := range r.ingesters {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	out := make([]*Ingester, len(methods))
	for n, m := range methods {
		out[n] = r.ingesters[m]
	}
	return out
}

// Close gracefully closes every ingester.
func (r *Router) Close(ctx context.Context) error {
	var result *multierror.Error
	for _, ing := range r.snapshotIngesters() {
		if err := ing.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// CloseNow stops every ingester immediately and joins their failure errors.
func (r *Router) CloseNow() error {
	var result *multierror.Error
	for _, ing := range r.snapshotIngesters() {
		if err := ing.CloseNow(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
