package storage

import (
	"testing"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cp := &core.Checkpoint{
		CollectionID: "nightly|op-1",
		Table:        "events",
		Payloads:     1234,
		Batches:      7,
		UpdatedAt:    now,
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)
	assert.Equal(t, cp.CollectionID, decoded.CollectionID)
	assert.Equal(t, cp.Table, decoded.Table)
	assert.Equal(t, cp.Payloads, decoded.Payloads)
	assert.Equal(t, cp.Batches, decoded.Batches)
	assert.True(t, cp.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestStoredBatchRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := &core.StoredBatch{
		Id:           core.IDFromContent("batch"),
		Target:       "warehouse",
		Table:        "events",
		CollectionID: "c",
		Payloads:     []string{`{"a":1}`, `{"a":2}`},
		InsertedAt:   now,
	}

	decoded, err := UnmarshalStoredBatch(MarshalStoredBatch(batch))
	require.NoError(t, err)
	assert.Equal(t, batch.Id, decoded.Id)
	assert.Equal(t, batch.Payloads, decoded.Payloads)
	assert.Equal(t, batch.CollectionID, decoded.CollectionID)
	assert.True(t, batch.InsertedAt.Equal(decoded.InsertedAt))
}

func TestUnmarshalStoredBatch_Truncated(t *testing.T) {
	data := MarshalStoredBatch(&core.StoredBatch{Id: 9, Table: "events", Payloads: []string{"{}"}})
	_, err := UnmarshalStoredBatch(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
