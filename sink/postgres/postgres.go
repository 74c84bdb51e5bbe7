// Package postgres implements a sink that COPYs payloads into PostgreSQL
// tables as jsonb rows using pgx.
//
// Destination tables must have the shape
//
//	CREATE TABLE <table> (collection_id text NOT NULL, payload jsonb NOT NULL)
//
// and are created on first use when Config.CreateTables is set. A
// destination's Target, when present, names the schema.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// Columns written by the sink, in COPY order.
var Columns = []string{"collection_id", "payload"}

// DB is the subset of *pgxpool.Pool used by the sink.
type DB interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Config holds connection settings.
type Config struct {
	ConnString   string
	CreateTables bool
}

// Sink copies batches into PostgreSQL.
type Sink struct {
	db    DB
	pool  *pgxpool.Pool
	cfg   Config
	mu    sync.Mutex
	ready map[string]bool
}

var _ sink.Sink = (*Sink)(nil)

// New creates a sink writing through db.
func New(db DB, cfg Config) (*Sink, error) {
	if db == nil {
		return nil, sink.ErrSinkRequired
	}
	return &Sink{db: db, cfg: cfg, ready: make(map[string]bool)}, nil
}

// Dial opens a connection pool and verifies it with a ping.
func Dial(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.ConnString == "" {
		return nil, core.ConfigError(fmt.Errorf("postgres sink: connection string required"))
	}
	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return nil, core.ConfigError(fmt.Errorf("postgres sink: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.PlatformError(fmt.Errorf("postgres sink: %w", err))
	}
	s, err := New(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Factory returns a sink.Factory that dials cfg on first use.
func Factory(cfg Config) sink.Factory {
	return func(ctx context.Context) (sink.Sink, error) {
		return Dial(ctx, cfg)
	}
}

// Identifier returns the table identifier for a destination.
func Identifier(dest core.Destination) pgx.Identifier {
	if dest.Target != "" {
		return pgx.Identifier{dest.Target, dest.Table}
	}
	return pgx.Identifier{dest.Table}
}

func (s *Sink) ensureTable(ctx context.Context, ident pgx.Identifier) error {
	if !s.cfg.CreateTables {
		return nil
	}
	name := ident.Sanitize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready[name] {
		return nil
	}
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s text NOT NULL, %s jsonb NOT NULL)",
		name, Columns[0], Columns[1])
	if _, err := s.db.Exec(ctx, sql); err != nil {
		return classify(err)
	}
	s.ready[name] = true
	return nil
}

// Ingest copies the batch into the destination table.
func (s *Sink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	if dest.Table == "" {
		return md, core.ConfigError(sink.ErrTableRequired)
	}
	ident := Identifier(dest)
	if err := s.ensureTable(ctx, ident); err != nil {
		return md, err
	}

	rows := make([][]any, len(payloads))
	for i, p := range payloads {
		rows[i] = []any{dest.CollectionID, map[string]any(p)}
	}

	n, err := s.db.CopyFrom(ctx, ident, Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return md, classify(err)
	}

	md.Set(sink.MetaRows, n)
	return md, nil
}

// Close closes the pool if the sink opened it.
func (s *Sink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// classify maps SQLSTATE classes to failure categories.
// 22 (data exception) and 23 (integrity violation) are caused by payload
// contents; 42 (syntax or access rule) and 3F (invalid schema) by setup.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return core.PlatformError(err)
	}
	switch {
	case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
		return core.UserError(err)
	case strings.HasPrefix(pgErr.Code, "42"), strings.HasPrefix(pgErr.Code, "3F"), strings.HasPrefix(pgErr.Code, "28"):
		return core.ConfigError(err)
	default:
		return core.PlatformError(err)
	}
}
