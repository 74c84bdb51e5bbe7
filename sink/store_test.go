package sink

import (
	"context"
	"testing"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSink_Ingest(t *testing.T) {
	batchRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	s := NewStoreSink(batchRepo)
	dest := core.Destination{Target: "local", Table: "events", CollectionID: "c"}
	md, err := s.Ingest(context.Background(), []core.Payload{{"a": 1}, {"a": 2}}, dest, core.Metadata{})
	require.NoError(t, err)

	v, ok := md.Get(MetaBatchID)
	require.True(t, ok)

	stored, err := batchRepo.GetBatch(context.Background(), v.(core.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, stored.Payloads)
	assert.Equal(t, "events", stored.Table)
}

func TestStoreSink_ClosedBackend(t *testing.T) {
	batchRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = NewStoreSink(batchRepo).Ingest(context.Background(), []core.Payload{{"a": 1}}, core.Destination{Table: "t"}, core.Metadata{})
	require.Error(t, err)
	assert.Equal(t, core.CategoryPlatform, core.Classify(err))
}
