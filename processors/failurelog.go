package processors

import (
	"context"
	"log/slog"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
)

// FailureLog logs every batch the sink rejected, with its destination and
// failure category. It never fails itself.
type FailureLog struct {
	logger *slog.Logger
}

var _ ingestion.PostProcessor = (*FailureLog)(nil)

// NewFailureLog creates a failure logging stage. A nil logger uses slog.Default().
func NewFailureLog(logger *slog.Logger) *FailureLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailureLog{logger: logger.With("component", "failure-log")}
}

func (f *FailureLog) PostProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error) {
	if ingestErr == nil {
		return md, nil
	}
	f.logger.ErrorContext(ctx, "batch rejected by sink",
		"target", dest.Target,
		"table", dest.Table,
		"collection", dest.CollectionID,
		"objects", len(payloads),
		"category", core.Classify(ingestErr),
		"err", ingestErr)
	return md, nil
}
