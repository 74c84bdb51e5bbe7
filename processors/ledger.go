package processors

import (
	"context"
	"fmt"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/storage"
)

// MetaCheckpointPayloads is set by Ledger to the collection's running payload total.
const MetaCheckpointPayloads = "checkpoint_payloads"

// Ledger adds every delivered batch to the per-collection checkpoint.
// Failed batches are not recorded.
type Ledger struct {
	repo storage.CheckpointRepository
}

var _ ingestion.PostProcessor = (*Ledger)(nil)

// NewLedger creates a ledger stage writing to repo.
func NewLedger(repo storage.CheckpointRepository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) PostProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error) {
	if ingestErr != nil || len(payloads) == 0 {
		return md, nil
	}
	chk, err := l.repo.AddToCheckpoint(ctx, dest.CollectionID, dest.Table, int64(len(payloads)), 1)
	if err != nil {
		return md, core.PlatformError(fmt.Errorf("updating checkpoint for %s/%s: %w", dest.CollectionID, dest.Table, err))
	}
	md.Set(MetaCheckpointPayloads, chk.Payloads)
	return md, nil
}
