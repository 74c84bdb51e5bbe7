package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/sink/mock"
	"github.com/poiesic/datajobs/storage"
	"github.com/poiesic/datajobs/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	envs []core.Envelope
	err  error
}

func (s *recordingSender) SendObject(ctx context.Context, env core.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.envs = append(s.envs, env)
	return nil
}

func seed(t *testing.T, batches ...*core.StoredBatch) storage.BatchRepository {
	t.Helper()
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	for _, b := range batches {
		_, err := repo.SaveBatch(context.Background(), b)
		require.NoError(t, err)
	}
	return repo
}

func TestReplayer_SendsStoredPayloads(t *testing.T) {
	repo := seed(t,
		&core.StoredBatch{Target: "t", Table: "orders", CollectionID: "c1", Payloads: []string{`{"id":1}`, `{"id":2}`}},
		&core.StoredBatch{Target: "t", Table: "orders", CollectionID: "c2", Payloads: []string{`{"id":3}`}},
	)
	sender := &recordingSender{}

	r, err := NewReplayer(repo, sender, Config{CollectionID: "c1", Method: "queue"}, nil)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Batches: 1, Payloads: 2}, res)
	require.Len(t, sender.envs, 2)
	for _, env := range sender.envs {
		assert.Equal(t, "queue", env.Method)
		assert.Equal(t, core.Destination{Target: "t", Table: "orders", CollectionID: "c1"}, env.Destination)
	}
	assert.EqualValues(t, 1, sender.envs[0].Payload["id"])
}

func TestReplayer_OverridesDestination(t *testing.T) {
	repo := seed(t, &core.StoredBatch{Target: "old", Table: "orders", CollectionID: "c1", Payloads: []string{`{"id":1}`}})
	sender := &recordingSender{}

	r, err := NewReplayer(repo, sender, Config{Target: "new", Table: "orders_v2"}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.envs, 1)
	assert.Equal(t, core.Destination{Target: "new", Table: "orders_v2", CollectionID: "c1"}, sender.envs[0].Destination)
}

func TestReplayer_CorruptBatch(t *testing.T) {
	repo := seed(t,
		&core.StoredBatch{Table: "a", CollectionID: "c1", Payloads: []string{`not json`}},
		&core.StoredBatch{Table: "b", CollectionID: "c1", Payloads: []string{`{"ok":true}`}},
	)

	r, err := NewReplayer(repo, &recordingSender{}, Config{}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrCorruptPayload)

	sender := &recordingSender{}
	r, err = NewReplayer(repo, sender, Config{SkipCorrupt: true}, nil)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Payloads)
}

func TestReplayer_SenderError(t *testing.T) {
	repo := seed(t, &core.StoredBatch{Table: "a", CollectionID: "c1", Payloads: []string{`{"id":1}`}})
	closed := errors.New("closed")

	r, err := NewReplayer(repo, &recordingSender{err: closed}, Config{}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, closed)
}

func TestReplayer_CancelledContext(t *testing.T) {
	repo := seed(t, &core.StoredBatch{Table: "a", CollectionID: "c1", Payloads: []string{`{"id":1}`}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReplayer(repo, &recordingSender{}, Config{}, nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayer_ThroughIngester(t *testing.T) {
	repo := seed(t, &core.StoredBatch{Table: "orders", CollectionID: "c1", Payloads: []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}})
	s := mock.NewMockSink()
	ing, err := ingestion.NewIngester(s, core.JobContext{JobName: "replay", OperationID: "1"},
		ingestion.WithFlushTimeout(time.Minute), ingestion.WithWorkerCount(1))
	require.NoError(t, err)

	r, err := NewReplayer(repo, ing, Config{}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, ing.Close(context.Background()))

	calls := s.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Payloads, 3)
	assert.Equal(t, "c1", calls[0].Destination.CollectionID)
}

func TestNewReplayer_Validation(t *testing.T) {
	_, err := NewReplayer(nil, &recordingSender{}, Config{}, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	repo := seed(t)
	_, err = NewReplayer(repo, nil, Config{}, nil)
	assert.ErrorIs(t, err, ErrSenderRequired)
}
