package ingestion

import (
	"time"

	"github.com/poiesic/datajobs/core"
)

// aggregate is the single consumer of the object queue. It keeps at most one
// open batch and flushes it when the destination changes, when it grows past
// PayloadSizeThreshold, or when no object arrives within FlushTimeout.
func (i *Ingester) aggregate() {
	defer close(i.aggDone)

	var current *core.Batch
	timer := time.NewTimer(i.cfg.FlushTimeout)
	defer timer.Stop()

	// set to nil once fired so a closed channel does not spin the loop
	drain := i.drain
	draining := false

	for {
		select {
		case <-i.abort:
			i.abandonOpen(current)
			return
		default:
		}

		if draining {
			// producers are fenced out, so an empty queue means we are done
			select {
			case q := <-i.objects:
				current = i.add(current, q)
				continue
			case <-i.abort:
				i.abandonOpen(current)
				return
			default:
				if current != nil {
					i.push(current)
				}
				return
			}
		}

		timer.Reset(i.cfg.FlushTimeout)
		select {
		case q := <-i.objects:
			current = i.add(current, q)
		case <-timer.C:
			if current != nil {
				i.push(current)
				current = nil
			}
		case <-drain:
			drain = nil
			draining = true
		case <-i.abort:
			i.abandonOpen(current)
			return
		}
	}
}

// add appends q to the open batch, opening or flushing batches as needed,
// and returns the batch that remains open.
func (i *Ingester) add(current *core.Batch, q queued) *core.Batch {
	if current != nil && current.Destination != q.dest {
		i.push(current)
		current = nil
	}
	if current == nil {
		current = &core.Batch{
			ID:          i.batchSeq.Add(1),
			Destination: q.dest,
		}
	}
	current.Payloads = append(current.Payloads, q.payload)
	current.SizeBytes += q.size

	if current.SizeBytes > i.cfg.PayloadSizeThreshold {
		i.push(current)
		return nil
	}
	return current
}

// push hands b to the posters, blocking while the batch queue is full.
// If the ingester is stopped first, b's objects are counted as failed.
func (i *Ingester) push(b *core.Batch) {
	select {
	case <-i.abort:
		i.failUnpushed(b)
		return
	default:
	}

	select {
	case i.batches <- b:
	case <-i.abort:
		i.failUnpushed(b)
	}
}

func (i *Ingester) failUnpushed(b *core.Batch) {
	i.fail(b, stageQueue, core.PlatformError(ErrBatchAborted))
	i.inflight.done(b.Len())
}

// abandonOpen drops the open batch on an immediate stop. It was never
// flushed, so it is a loss rather than a failure.
func (i *Ingester) abandonOpen(current *core.Batch) {
	if current == nil {
		return
	}
	i.logger.Warn("abandoned open batch on immediate shutdown",
		"batch", current.ID, "table", current.Destination.Table, "objects", current.Len())
	i.abandon(current.Len())
}
