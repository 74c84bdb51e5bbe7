package ingestion

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/poiesic/datajobs/core"
)

const numCategories = 4

// Counters accumulates pipeline outcomes. All methods are safe for concurrent use.
type Counters struct {
	successBatches      atomic.Int64
	failedBatches       atomic.Int64
	successObjects      atomic.Int64
	failedObjects       atomic.Int64
	postProcessFailures atomic.Int64
	abandonedObjects    atomic.Int64

	categories [numCategories]atomic.Int64
	firstErrs  [numCategories]atomic.Pointer[error]
}

func (c *Counters) recordSuccess(objects int) {
	c.successBatches.Add(1)
	c.successObjects.Add(int64(objects))
}

func (c *Counters) recordFailure(objects int, cat core.Category, err error) {
	c.failedBatches.Add(1)
	c.failedObjects.Add(int64(objects))
	c.recordCategory(cat, err)
}

func (c *Counters) recordPostProcessFailure(cat core.Category, err error) {
	c.postProcessFailures.Add(1)
	c.recordCategory(cat, err)
}

func (c *Counters) recordAbandoned(objects int) {
	c.abandonedObjects.Add(int64(objects))
}

func (c *Counters) recordCategory(cat core.Category, err error) {
	if cat < 0 || int(cat) >= numCategories {
		cat = core.CategoryUnclassified
	}
	c.categories[cat].Add(1)
	c.firstErrs[cat].CompareAndSwap(nil, &err)
}

func (c *Counters) firstError(cat core.Category) error {
	if p := c.firstErrs[cat].Load(); p != nil {
		return *p
	}
	return nil
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		SuccessBatches:      c.successBatches.Load(),
		FailedBatches:       c.failedBatches.Load(),
		SuccessObjects:      c.successObjects.Load(),
		FailedObjects:       c.failedObjects.Load(),
		PostProcessFailures: c.postProcessFailures.Load(),
		AbandonedObjects:    c.abandonedObjects.Load(),
		ByCategory:          make(map[core.Category]int64, numCategories),
	}
	for _, cat := range core.Categories {
		s.ByCategory[cat] = c.categories[cat].Load()
	}
	return s
}

// failureError returns the aggregated error for the most actionable
// category with a nonzero count, or nil.
func (c *Counters) failureError() *FailureError {
	snap := c.Snapshot()
	for _, cat := range core.Categories {
		if snap.ByCategory[cat] > 0 {
			return &FailureError{Category: cat, Stats: snap, Err: c.firstError(cat)}
		}
	}
	return nil
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	SuccessBatches      int64
	FailedBatches       int64
	SuccessObjects      int64
	FailedObjects       int64
	PostProcessFailures int64
	// AbandonedObjects were still queued when CloseNow stopped the pipeline.
	AbandonedObjects int64
	ByCategory       map[core.Category]int64
}

// HasFailures reports whether any failure was classified.
func (s Snapshot) HasFailures() bool {
	for _, n := range s.ByCategory {
		if n > 0 {
			return true
		}
	}
	return false
}

func (s Snapshot) categorySummary() string {
	parts := make([]string, 0, len(core.Categories))
	for _, cat := range core.Categories {
		parts = append(parts, fmt.Sprintf("%s=%d", cat, s.ByCategory[cat]))
	}
	return strings.Join(parts, " ")
}

// FailureError summarizes the failures of a closed pipeline.
// Category is the most actionable category with failures:
// user before config before platform before unclassified.
type FailureError struct {
	Category core.Category
	Stats    Snapshot
	// Err is the first error recorded for Category.
	Err error
}

func (e *FailureError) Error() string {
	msg := fmt.Sprintf("ingestion failed (%s): %d batches (%d objects) succeeded, %d batches (%d objects) failed, %d post-process failures; by category: %s",
		e.Category,
		e.Stats.SuccessBatches, e.Stats.SuccessObjects,
		e.Stats.FailedBatches, e.Stats.FailedObjects,
		e.Stats.PostProcessFailures,
		e.Stats.categorySummary())
	if e.Err != nil {
		msg += ": first error: " + e.Err.Error()
	}
	return msg
}

func (e *FailureError) Unwrap() error { return e.Err }
