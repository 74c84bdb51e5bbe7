package processors

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
)

// Progress reports delivered payloads to a writer.
// Total may be zero when the input size is unknown.
type Progress struct {
	writer         io.Writer
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

var _ ingestion.PostProcessor = (*Progress)(nil)

// NewProgress creates a progress reporter.
// writer: where to write progress output (typically os.Stderr)
// total: expected number of payloads, or 0 if unknown
// reportInterval: report progress every N payloads
func NewProgress(writer io.Writer, total, reportInterval int) *Progress {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &Progress{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.failed = 0
	p.lastReported = 0
}

// PostProcess counts the batch as delivered or failed.
func (p *Progress) PostProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.startTime = time.Now()
		p.started = true
	}
	if ingestErr != nil {
		p.failed += len(payloads)
		return md, nil
	}

	p.current += len(payloads)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
	return md, nil
}

// Finish prints the final progress line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Delivered returns the number of payloads delivered so far.
func (p *Progress) Delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Elapsed returns the time since the first batch or Start.
func (p *Progress) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *Progress) report() {
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	if p.total > 0 {
		percentage := float64(p.current) / float64(p.total) * 100.0
		fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f payloads/s",
			p.current, p.total, percentage, rate)
	} else {
		fmt.Fprintf(p.writer, "\rProgress: %d payloads - %.1f payloads/s", p.current, rate)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.writer, " (%d failed)", p.failed)
	}
}
