package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	tables  []pgx.Identifier
	columns []string
	rows    [][]any
	execs   []string
	copyErr error
}

func (f *fakeDB) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.tables = append(f.tables, table)
	f.columns = columns
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		f.rows = append(f.rows, values)
		n++
	}
	return n, src.Err()
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestSink_Ingest(t *testing.T) {
	db := &fakeDB{}
	s, err := New(db, Config{})
	require.NoError(t, err)

	dest := core.Destination{Target: "analytics", Table: "events", CollectionID: "job|op"}
	md, err := s.Ingest(context.Background(), []core.Payload{{"a": 1}, {"a": 2}}, dest, core.Metadata{})
	require.NoError(t, err)

	require.Len(t, db.tables, 1)
	assert.Equal(t, pgx.Identifier{"analytics", "events"}, db.tables[0])
	assert.Equal(t, Columns, db.columns)
	require.Len(t, db.rows, 2)
	assert.Equal(t, "job|op", db.rows[0][0])
	assert.Equal(t, map[string]any{"a": 1}, db.rows[0][1])
	assert.Empty(t, db.execs)

	n, ok := md.Get(sink.MetaRows)
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)
}

func TestSink_CreateTablesOnce(t *testing.T) {
	db := &fakeDB{}
	s, err := New(db, Config{CreateTables: true})
	require.NoError(t, err)

	dest := core.Destination{Table: "events"}
	for i := 0; i < 2; i++ {
		_, err := s.Ingest(context.Background(), []core.Payload{{"i": i}}, dest, core.Metadata{})
		require.NoError(t, err)
	}
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], `CREATE TABLE IF NOT EXISTS "events"`)
}

func TestSink_TableRequired(t *testing.T) {
	s, err := New(&fakeDB{}, Config{})
	require.NoError(t, err)

	_, err = s.Ingest(context.Background(), []core.Payload{{"a": 1}}, core.Destination{}, core.Metadata{})
	assert.ErrorIs(t, err, sink.ErrTableRequired)
	assert.Equal(t, core.CategoryConfig, core.Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.Category
	}{
		{"undefined table", &pgconn.PgError{Code: "42P01"}, core.CategoryConfig},
		{"invalid json", &pgconn.PgError{Code: "22P02"}, core.CategoryUser},
		{"not null", &pgconn.PgError{Code: "23502"}, core.CategoryUser},
		{"auth", &pgconn.PgError{Code: "28P01"}, core.CategoryConfig},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, core.CategoryPlatform},
		{"network", errors.New("broken pipe"), core.CategoryPlatform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.Classify(classify(tt.err)))
		})
	}
}

func TestDial_RequiresConnString(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	assert.Equal(t, core.CategoryConfig, core.Classify(err))
}
