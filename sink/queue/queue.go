// Package queue implements a sink that publishes payloads to NATS subjects.
//
// Each payload becomes one message on subject "<target>.<table>", where
// target defaults to the configured subject prefix. The collection id travels
// in the Datajobs-Collection header.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// Header names set on every published message.
const (
	HeaderCollection = "Datajobs-Collection"
	HeaderTable      = "Datajobs-Table"
)

// Publisher is the subset of *nats.Conn used by the sink.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
}

// Sink publishes batches to NATS.
type Sink struct {
	conn          Publisher
	owned         *nats.Conn
	subjectPrefix string
	flushTimeout  time.Duration
}

var _ sink.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink) error

// WithSubjectPrefix sets the subject prefix used when a destination has no target.
// Default is "datajobs".
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) error {
		if prefix == "" {
			return fmt.Errorf("subject prefix cannot be empty")
		}
		s.subjectPrefix = prefix
		return nil
	}
}

// WithFlushTimeout bounds the wait for server acknowledgement of a batch.
// Default is 5 seconds.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Sink) error {
		if d <= 0 {
			return fmt.Errorf("flush timeout must be positive")
		}
		s.flushTimeout = d
		return nil
	}
}

// New creates a sink publishing through conn.
func New(conn Publisher, opts ...Option) (*Sink, error) {
	if conn == nil {
		return nil, sink.ErrSinkRequired
	}
	s := &Sink{
		conn:          conn,
		subjectPrefix: "datajobs",
		flushTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dial connects to a NATS server and creates a sink that owns the connection.
func Dial(url string, natsOpts []nats.Option, opts ...Option) (*Sink, error) {
	natsOpts = append([]nats.Option{nats.Name("datajobs")}, natsOpts...)
	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, core.PlatformError(fmt.Errorf("connecting to nats: %w", err))
	}
	s, err := New(nc, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.owned = nc
	return s, nil
}

// Factory returns a sink.Factory that dials url on first use.
func Factory(url string, natsOpts []nats.Option, opts ...Option) sink.Factory {
	return func(context.Context) (sink.Sink, error) {
		if url == "" {
			return nil, core.ConfigError(fmt.Errorf("queue sink: nats url required"))
		}
		return Dial(url, natsOpts, opts...)
	}
}

// Subject returns the subject a destination publishes to.
func (s *Sink) Subject(dest core.Destination) string {
	prefix := s.subjectPrefix
	if dest.Target != "" {
		prefix = sink.SanitizeSegment(dest.Target, s.subjectPrefix)
	}
	return prefix + "." + sink.SanitizeSegment(dest.Table, "default")
}

// Ingest publishes one message per payload and waits for the server to
// acknowledge the batch.
func (s *Sink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	encoded, err := sink.EncodeEach(payloads)
	if err != nil {
		return md, err
	}

	subject := s.Subject(dest)
	for i, data := range encoded {
		msg := nats.NewMsg(subject)
		msg.Header.Set(HeaderCollection, dest.CollectionID)
		msg.Header.Set(HeaderTable, dest.Table)
		msg.Data = data
		if err := s.conn.PublishMsg(msg); err != nil {
			return md, core.PlatformError(fmt.Errorf("publishing payload %d to %s: %w", i, subject, err))
		}
	}
	if err := s.conn.FlushTimeout(s.flushTimeout); err != nil {
		return md, core.PlatformError(fmt.Errorf("flushing %s: %w", subject, err))
	}

	md.Set(sink.MetaMessages, len(encoded))
	return md, nil
}

// Close drains the connection if the sink opened it.
func (s *Sink) Close() error {
	if s.owned == nil {
		return nil
	}
	return s.owned.Drain()
}
