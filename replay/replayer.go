// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/storage"
)

// Sender accepts payloads for delivery. *ingestion.Router and
// *ingestion.Ingester both satisfy it.
type Sender interface {
	SendObject(ctx context.Context, env core.Envelope) error
}

// Config holds configuration for a replay.
type Config struct {
	// CollectionID selects the stored batches to replay; empty replays everything.
	CollectionID string

	// Method is the sink method payloads are sent to; empty uses the sender's default.
	Method string

	// Target and Table, when set, replace the stored destination fields.
	Target string
	Table  string

	// SkipCorrupt logs and skips stored batches that cannot be decoded
	// instead of stopping the replay.
	SkipCorrupt bool
}

// Result summarizes a replay.
type Result struct {
	Batches  int
	Payloads int
	Skipped  int
}

// Replayer sends stored batches through a Sender.
type Replayer struct {
	repo     storage.BatchRepository
	sender   Sender
	config   Config
	iterator *BatchIterator
	logger   *slog.Logger
}

// NewReplayer creates a replayer reading from repo and sending to sender.
func NewReplayer(repo storage.BatchRepository, sender Sender, config Config, logger *slog.Logger) (*Replayer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if sender == nil {
		return nil, ErrSenderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{
		repo:     repo,
		sender:   sender,
		config:   config,
		iterator: NewBatchIterator(repo, config.CollectionID),
		logger:   logger.With("component", "replay"),
	}, nil
}

// Run sends every selected stored batch, in key order. It returns once all
// payloads are accepted by the sender; delivery is up to the sender.
func (r *Replayer) Run(ctx context.Context) (Result, error) {
	var res Result

	err := r.iterator.ForEach(ctx, func(b *core.StoredBatch) error {
		payloads, err := DecodePayloads(b)
		if err != nil {
			if r.config.SkipCorrupt {
				r.logger.Warn("skipping corrupt batch", "batch", b.Id, "err", err)
				res.Skipped++
				return nil
			}
			return err
		}

		dest := r.destination(b)
		for i, p := range payloads {
			env := core.Envelope{Payload: p, Destination: dest, Method: r.config.Method}
			if err := r.sender.SendObject(ctx, env); err != nil {
				return fmt.Errorf("replaying batch %d payload %d: %w", b.Id, i, err)
			}
		}
		res.Batches++
		res.Payloads += len(payloads)
		return nil
	})

	r.logger.Info("replay finished",
		"collection", r.config.CollectionID,
		"batches", res.Batches,
		"payloads", res.Payloads,
		"skipped", res.Skipped)
	return res, err
}

func (r *Replayer) destination(b *core.StoredBatch) core.Destination {
	dest := core.Destination{Target: b.Target, Table: b.Table, CollectionID: b.CollectionID}
	if r.config.Target != "" {
		dest.Target = r.config.Target
	}
	if r.config.Table != "" {
		dest.Table = r.config.Table
	}
	return dest
}
