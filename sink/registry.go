package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/datajobs/core"
)

// Registry maps method names to sink factories and owns the sinks it opens.
// Each method's sink is created once, on first use. Factories run without
// the registry lock, so a slow dial only holds up callers of its own method.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	open      map[string]*opening
	closed    bool
}

// opening is a sink being created or already created. sink is set under the
// registry lock before done is closed.
type opening struct {
	done chan struct{}
	sink Sink
	err  error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		open:      make(map[string]*opening),
	}
}

// Register adds a factory for method.
func (r *Registry) Register(method string, factory Factory) error {
	if factory == nil {
		return ErrSinkRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[method]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, method)
	}
	r.factories[method] = factory
	return nil
}

// RegisterSink registers an already constructed sink under method.
func (r *Registry) RegisterSink(method string, s Sink) error {
	if s == nil {
		return ErrSinkRequired
	}
	return r.Register(method, func(context.Context) (Sink, error) { return s, nil })
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	methods := make([]string, 0, len(r.factories))
	for m := range r.factories {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Resolve returns the sink for method, creating it on first use.
// Concurrent callers for the same method share one factory call. A failed
// factory call is not cached. An unregistered method is a configuration error.
func (r *Registry) Resolve(ctx context.Context, method string) (Sink, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if o, ok := r.open[method]; ok {
		r.mu.Unlock()
		select {
		case <-o.done:
			return o.sink, o.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	factory, ok := r.factories[method]
	if !ok {
		r.mu.Unlock()
		return nil, core.ConfigError(fmt.Errorf("%w: %q", ErrUnknownMethod, method))
	}
	o := &opening{done: make(chan struct{})}
	r.open[method] = o
	r.mu.Unlock()

	s, err := factory(ctx)

	r.mu.Lock()
	switch {
	case err != nil:
		o.err = fmt.Errorf("opening %s sink: %w", method, err)
		delete(r.open, method)
	case r.closed:
		o.err = ErrRegistryClosed
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	default:
		o.sink = s
	}
	r.mu.Unlock()
	close(o.done)
	return o.sink, o.err
}

// Close closes every opened sink that implements io.Closer.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var result *multierror.Error
	for method, o := range r.open {
		// sinks still being created are closed by their Resolve call
		if c, ok := o.sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing %s sink: %w", method, err))
			}
		}
	}
	r.open = nil
	return result.ErrorOrNil()
}
