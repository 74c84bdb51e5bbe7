package mock

import (
	"context"
	"sync"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/sink"
)

// Call is one recorded Ingest invocation.
type Call struct {
	Payloads    []core.Payload
	Destination core.Destination
	Metadata    core.Metadata
}

// MockSink is a test double for sink.Sink.
type MockSink struct {
	// IngestFunc is called by Ingest if set.
	// If nil, Ingest succeeds and returns the metadata unchanged.
	IngestFunc func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error)

	mu     sync.Mutex
	calls  []Call
	closed int
}

var _ sink.Sink = (*MockSink)(nil)

// NewMockSink creates a mock sink that accepts every batch.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Ingest records the call and delegates to IngestFunc.
func (m *MockSink) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	copied := make([]core.Payload, len(payloads))
	copy(copied, payloads)

	m.mu.Lock()
	m.calls = append(m.calls, Call{Payloads: copied, Destination: dest, Metadata: md})
	fn := m.IngestFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, payloads, dest, md)
	}
	return md, nil
}

// Calls returns a copy of the recorded calls in invocation order.
func (m *MockSink) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Ingest calls.
func (m *MockSink) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// PayloadCount returns the total number of payloads received.
func (m *MockSink) PayloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		n += len(c.Payloads)
	}
	return n
}

// Close counts close calls.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// CloseCount returns how many times Close was called.
func (m *MockSink) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset clears recorded calls and injected behavior.
func (m *MockSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.IngestFunc = nil
}
