package sink

import (
	"context"

	"github.com/poiesic/datajobs/core"
)

// Built-in method names.
const (
	MethodFile        = "file"
	MethodStore       = "store"
	MethodQueue       = "queue"
	MethodObjectStore = "objectstore"
	MethodPostgres    = "postgres"
)

// Metadata keys set by the built-in sinks.
const (
	MetaFilePath  = "file_path"
	MetaBatchID   = "batch_id"
	MetaMessages  = "messages"
	MetaObjectKey = "object_key"
	MetaRows      = "rows"
)

// Sink delivers a batch of payloads to a destination.
// Implementations must be safe for concurrent use: the pipeline calls Ingest
// from several workers at once, each with a different batch.
type Sink interface {
	// Ingest delivers payloads to dest. md is the batch metadata after
	// pre-processing; the returned metadata is handed to post-processors.
	// Payloads must not be retained or modified after Ingest returns.
	Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error)
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error)

// Ingest calls f.
func (f Func) Ingest(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
	return f(ctx, payloads, dest, md)
}

// Factory creates a sink for a registered method.
type Factory func(ctx context.Context) (Sink, error)
