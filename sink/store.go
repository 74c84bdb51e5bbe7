package sink

import (
	"context"
	"fmt"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage"
)

// StoreSink persists batches in a storage.BatchRepository.
type StoreSink struct {
	repo storage.BatchRepository
}

var _ Sink = (*StoreSink)(nil)

// NewStoreSink creates a sink backed by repo.
func NewStoreSink(repo storage.BatchRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

// StoreFactory returns a Factory for a store sink backed by repo.
func StoreFactory(repo storage.BatchRepository) Factory {
	return func(context.Context) (Sink, error) {
		if repo == nil {
			return nil, core.ConfigError(fmt.Errorf("store sink: batch repository required"))
		}
		return NewStoreSink(repo), nil
	}
}

// Ingest stores the batch and records its content id in the metadata.
func (s *StoreSink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	encoded, err := EncodeEach(payloads)
	if err != nil {
		return md, err
	}
	docs := make([]string, len(encoded))
	for i, b := range encoded {
		docs[i] = string(b)
	}

	saved, err := s.repo.SaveBatch(ctx, &core.StoredBatch{
		Target:       dest.Target,
		Table:        dest.Table,
		CollectionID: dest.CollectionID,
		Payloads:     docs,
	})
	if err != nil {
		return md, core.PlatformError(err)
	}

	md.Set(MetaBatchID, saved.Id)
	return md, nil
}
