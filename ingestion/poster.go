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


package ingestion

import (
	"context"

	"github.com/poiesic/datajobs/core"
)

// stage names used in failure logs.
const (
	stageQueue       = "queue"
	stagePreProcess  = "pre-process"
	stageValidate    = "validate"
	stageSink        = "sink"
	stagePostProcess = "post-process"
)

// runPoster is the loop run by each poster in the pool.
func (i *Ingester) runPoster() {
	defer i.posters.Done()

	for {
		// an immediate stop wins over queued batches
		select {
		case <-i.abort:
			return
		default:
		}

		select {
		case b, ok := <-i.batches:
			if !ok {
				return
			}
			i.process(b)
		case <-i.abort:
			return
		}
	}
}

// process drives one batch through pre-process, validation, sink and
// post-process, then accounts for it. Sink calls are not bound to any
// shutdown signal: a stuck sink holds its poster until it returns.
func (i *Ingester) process(b *core.Batch) {
	defer i.inflight.done(b.Len())

	ctx := context.Background()
	dest := b.Destination

	payloads, md, err := runPreProcessors(ctx, i.preStages, b.Payloads, dest, core.Metadata{})
	if err != nil {
		i.fail(b, stagePreProcess, err)
		return
	}
	if err := core.ValidatePayloads(payloads); err != nil {
		i.fail(b, stageValidate, err)
		return
	}
	if len(payloads) == 0 {
		// everything was filtered out by pre-processing
		i.succeed(b)
		return
	}

	dest = md.Override.Apply(dest)

	out, sinkErr := i.ingest(ctx, payloads, dest, md)
	if sinkErr == nil {
		md = out
	}

	if _, err := runPostProcessors(ctx, i.postStages, payloads, dest, md, sinkErr); err != nil {
		cat := i.classifier.Classify(err)
		i.counters.recordPostProcessFailure(cat, err)
		i.metrics.postProcessFailure(cat)
		if i.cfg.LogUploadErrors {
			i.logger.Warn("post-processing failed",
				"batch", b.ID, "target", dest.Target, "table", dest.Table, "collection", dest.CollectionID,
				"category", cat, "err", err)
		}
	}

	if sinkErr != nil {
		i.fail(b, stageSink, sinkErr)
		return
	}
	i.succeed(b)
}

// ingest calls the sink, converting a panic into an error.
func (i *Ingester) ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (out core.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return i.sink.Ingest(ctx, payloads, dest, md)
}

func (i *Ingester) succeed(b *core.Batch) {
	i.counters.recordSuccess(b.Len())
	i.metrics.success(b.Len())
}

func (i *Ingester) fail(b *core.Batch, stage string, err error) {
	cat := i.classifier.Classify(err)
	i.counters.recordFailure(b.Len(), cat, err)
	i.metrics.failure(b.Len(), cat)

	if i.cfg.LogUploadErrors {
		i.logger.Warn("batch ingestion failed",
			"stage", stage,
			"batch", b.ID,
			"target", b.Destination.Target,
			"table", b.Destination.Table,
			"collection", b.Destination.CollectionID,
			"objects", b.Len(),
			"category", cat,
			"err", err)
	}
}
