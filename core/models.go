package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored ingestion records.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Payload is a single data object produced by a job.
// Values must be JSON-compatible scalars, slices or nested maps.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Destination identifies where a batch of payloads is delivered.
// Payloads are only batched together when their destinations are equal.
type Destination struct {
	Target       string // sink address, e.g. a bucket, subject prefix or DSN alias
	Table        string // destination table or dataset
	CollectionID string // groups ingestion calls from one job run
}

// Envelope is one ingestion request submitted by a job.
type Envelope struct {
	Payload     Payload
	Destination Destination
	Method      string // selects a sink implementation; empty means the configured default
}

// Batch is a group of payloads sharing one destination, assembled for a single sink call.
// A Batch is never empty and its Destination does not change after creation.
type Batch struct {
	ID          uint64
	Destination Destination
	Payloads    []Payload
	SizeBytes   int
}

// Len returns the number of payloads in the batch.
func (b *Batch) Len() int {
	return len(b.Payloads)
}

// Override carries replacement destination fields produced by a pre-processor.
// Nil fields leave the corresponding destination field unchanged.
type Override struct {
	Target       *string
	Table        *string
	CollectionID *string
}

// Apply returns dest with the override's non-nil fields substituted.
func (o *Override) Apply(dest Destination) Destination {
	if o == nil {
		return dest
	}
	if o.Target != nil {
		dest.Target = *o.Target
	}
	if o.Table != nil {
		dest.Table = *o.Table
	}
	if o.CollectionID != nil {
		dest.CollectionID = *o.CollectionID
	}
	return dest
}

// Metadata travels with one batch through pre-processing, the sink and post-processing.
// It is never shared between batches.
type Metadata struct {
	Values   map[string]any
	Override *Override
}

// Set stores a value, allocating the map on first use.
func (m *Metadata) Set(key string, value any) {
	if m.Values == nil {
		m.Values = make(map[string]any)
	}
	m.Values[key] = value
}

// Get returns a stored value.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// JobContext identifies the job execution that owns an ingestion pipeline.
type JobContext struct {
	JobName     string
	OperationID string
}

// DefaultCollectionID returns the collection id used when an envelope carries none.
func (j JobContext) DefaultCollectionID() string {
	return j.JobName + "|" + j.OperationID
}

// Checkpoint is the per-collection ingestion ledger entry.
type Checkpoint struct {
	CollectionID string
	Table        string
	Payloads     int64
	Batches      int64
	UpdatedAt    time.Time
}

// StoredBatch is a batch persisted by the store sink.
type StoredBatch struct {
	Id           ID
	Target       string
	Table        string
	CollectionID string
	Payloads     []string // JSON-encoded payloads
	InsertedAt   time.Time
}
