package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"datajob"}, args...))
	return out.String(), err
}

func findFlag(t *testing.T, cmd *cli.Command, name string) cli.Flag {
	t.Helper()
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return f
			}
		}
	}
	t.Fatalf("flag %q not found", name)
	return nil
}

func TestIngestCommandFlags(t *testing.T) {
	cmd := ingestCommand()

	t.Run("table is required", func(t *testing.T) {
		_, err := runApp(t, "ingest", "--db", t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table")
	})

	t.Run("method defaults to file", func(t *testing.T) {
		f, ok := findFlag(t, cmd, "method").(*cli.StringFlag)
		require.True(t, ok)
		assert.Equal(t, "file", f.Value)
		assert.Contains(t, f.EnvVars, "DATAJOB_METHOD")
	})

	t.Run("default processors", func(t *testing.T) {
		f, ok := findFlag(t, cmd, "processor").(*cli.StringSliceFlag)
		require.True(t, ok)
		assert.Equal(t, []string{"job_metadata", "ledger", "failure_log"}, f.Value.Value())
	})
}

func TestSetupLogger(t *testing.T) {
	_, err := runApp(t, "--log-level", "loud", "checkpoints", "--db", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInputFormat(t *testing.T) {
	tests := []struct {
		format, name, want string
		wantErr            bool
	}{
		{"", "rows.csv", formatCSV, false},
		{"", "rows.CSV", formatCSV, false},
		{"", "events.jsonl", formatJSONL, false},
		{"", "stdin", formatJSONL, false},
		{"ndjson", "x", formatJSONL, false},
		{"csv", "x.jsonl", formatCSV, false},
		{"parquet", "x", "", true},
	}
	for _, tt := range tests {
		got, err := inputFormat(tt.format, tt.name)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestIngest_JSONLinesToStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger")
	input := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"), 0644))

	out, err := runApp(t, "--log-level", "error", "ingest",
		"--db", db, "--method", "store", "--table", "events", "--collection", "c1",
		"--flush-timeout", "10ms", "--operation", "op-1", input)
	require.NoError(t, err)
	assert.Contains(t, out, "store: 3 objects delivered")

	out, err = runApp(t, "batches", "--db", db, "--collection", "c1", "--payloads")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, out, `"_op_id":"op-1"`)

	out, err = runApp(t, "checkpoints", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "COLLECTION")
	assert.Regexp(t, `c1\s+events\s+3\s+`, out)
}

func TestIngest_CSVToFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "people.csv")
	output := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(input, []byte("id,name\n1,ada\n2,grace\n"), 0644))

	out, err := runApp(t, "--log-level", "error", "ingest",
		"--db", filepath.Join(dir, "ledger"), "--output-dir", output,
		"--target", "crm", "--table", "people", "--flush-timeout", "10ms", input)
	require.NoError(t, err)
	assert.Contains(t, out, "file: 2 objects delivered")

	files, err := filepath.Glob(filepath.Join(output, "crm", "people", "*.jsonl"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		all.Write(data)
	}
	assert.Contains(t, all.String(), `"name":"ada"`)
	assert.Contains(t, all.String(), `"name":"grace"`)
}

func TestIngest_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(input, []byte("{\"id\":1}\nnot json\n"), 0644))

	_, err := runApp(t, "--log-level", "error", "ingest",
		"--db", filepath.Join(dir, "ledger"), "--output-dir", filepath.Join(dir, "out"),
		"--table", "events", "--flush-timeout", "10ms", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object 2")
}

func TestReplay_StoreToFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger")
	input := filepath.Join(dir, "events.jsonl")
	output := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(input, []byte("{\"id\":1}\n{\"id\":2}\n"), 0644))

	_, err := runApp(t, "--log-level", "error", "ingest",
		"--db", db, "--method", "store", "--table", "events", "--collection", "c1",
		"--flush-timeout", "10ms", input)
	require.NoError(t, err)

	out, err := runApp(t, "--log-level", "error", "replay",
		"--db", db, "--method", "file", "--output-dir", output,
		"--target", "archive", "--collection", "c1", "--flush-timeout", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "file: 2 objects delivered")

	files, err := filepath.Glob(filepath.Join(output, "archive", "events", "*.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestReplayCommandFlags(t *testing.T) {
	_, err := runApp(t, "replay", "--db", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method")
}
