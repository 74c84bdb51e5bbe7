package datajobs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/processors"
	"github.com/poiesic/datajobs/sink"
	"github.com/poiesic/datajobs/sink/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJob = core.JobContext{JobName: "export", OperationID: "run-1"}

func TestOpen(t *testing.T) {
	t.Run("create new runtime", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "ledger")
		rt, err := Open(dir)
		require.NoError(t, err)
		defer rt.Close()

		assert.NotNil(t, rt.BatchRepository())
		assert.NotNil(t, rt.CheckpointRepository())
		assert.Equal(t, []string{sink.MethodFile, sink.MethodStore}, rt.Methods())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		rt, err := Open(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, rt)
	})

	t.Run("optional sinks", func(t *testing.T) {
		rt, err := Open("", WithInMemory(), WithOutputDir(t.TempDir()),
			WithPostgres(postgres.Config{ConnString: "postgres://localhost/none"}),
			WithNATS("nats://127.0.0.1:1"))
		require.NoError(t, err)
		defer rt.Close()

		assert.Equal(t, []string{sink.MethodFile, sink.MethodPostgres, sink.MethodQueue, sink.MethodStore}, rt.Methods())
	})
}

func TestRuntime_FileIngestionWithLedger(t *testing.T) {
	out := t.TempDir()
	rt, err := Open("", WithInMemory(), WithOutputDir(out), WithProcessors("job_metadata", "ledger"))
	require.NoError(t, err)
	defer rt.Close()

	router, err := rt.NewRouter(testJob, ingestion.WithFlushTimeout(10*time.Millisecond), ingestion.WithWorkerCount(2))
	require.NoError(t, err)

	ctx := context.Background()
	dest := core.Destination{Target: "warehouse", Table: "orders"}
	for n := 0; n < 5; n++ {
		require.NoError(t, router.SendObject(ctx, core.Envelope{Payload: core.Payload{"n": n}, Destination: dest}))
	}
	require.NoError(t, router.Close(ctx))
	require.NoError(t, router.CloseNow())

	files, err := filepath.Glob(filepath.Join(out, "warehouse", "orders", "*.jsonl"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	lines := 0
	for _, f := range files {
		fh, err := os.Open(f)
		require.NoError(t, err)
		scanner := bufio.NewScanner(fh)
		for scanner.Scan() {
			var p map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &p))
			assert.Equal(t, "export", p[processors.JobNameKey])
			lines++
		}
		fh.Close()
	}
	assert.Equal(t, 5, lines)

	chk, err := rt.CheckpointRepository().LoadCheckpoint(ctx, testJob.DefaultCollectionID(), "orders")
	require.NoError(t, err)
	require.NotNil(t, chk)
	assert.Equal(t, int64(5), chk.Payloads)
}

func TestRuntime_StoreIngestion(t *testing.T) {
	rt, err := Open("", WithInMemory(), WithOutputDir(t.TempDir()))
	require.NoError(t, err)
	defer rt.Close()

	router, err := rt.NewRouter(testJob, ingestion.WithDefaultMethod(sink.MethodStore), ingestion.WithFlushTimeout(10*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	dest := core.Destination{Table: "orders", CollectionID: "c1"}
	require.NoError(t, router.SendObject(ctx, core.Envelope{Payload: core.Payload{"a": 1}, Destination: dest}))
	require.NoError(t, router.SendObject(ctx, core.Envelope{Payload: core.Payload{"a": 2}, Destination: dest}))
	require.NoError(t, router.Close(ctx))

	batches, err := rt.BatchRepository().ListBatches(ctx, "c1")
	require.NoError(t, err)
	total := 0
	for _, b := range batches {
		total += len(b.Payloads)
	}
	assert.Equal(t, 2, total)
}

func TestRuntime_UnknownProcessor(t *testing.T) {
	rt, err := Open("", WithInMemory(), WithOutputDir(t.TempDir()), WithProcessors("dedupe"))
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.NewRouter(testJob)
	assert.ErrorIs(t, err, processors.ErrUnknownProcessor)
	assert.True(t, IsConfigError(err))
}

func TestRuntime_UnregisteredMethod(t *testing.T) {
	rt, err := Open("", WithInMemory(), WithOutputDir(t.TempDir()))
	require.NoError(t, err)
	defer rt.Close()

	router, err := rt.NewRouter(testJob)
	require.NoError(t, err)
	defer router.CloseNow()

	err = router.SendObject(context.Background(), core.Envelope{Payload: core.Payload{"a": 1}, Method: sink.MethodObjectStore})
	assert.ErrorIs(t, err, sink.ErrUnknownMethod)
	assert.True(t, IsConfigError(err))
	assert.False(t, IsConfigError(errors.New("other")))
}

func TestRuntime_Close(t *testing.T) {
	rt, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, rt.Close())
	assert.NoError(t, rt.Close())
}
