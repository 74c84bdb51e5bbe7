package processors

import (
	"context"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
)

// Keys written by JobMetadata.
const (
	JobNameKey     = "_job_name"
	OperationIDKey = "_op_id"
)

// JobMetadata stamps the job name and operation id into every payload.
// The producer's payloads are not modified; each stamped payload is a copy.
type JobMetadata struct {
	Job core.JobContext
}

var _ ingestion.PreProcessor = (*JobMetadata)(nil)

// NewJobMetadata creates a JobMetadata stage for job.
func NewJobMetadata(job core.JobContext) *JobMetadata {
	return &JobMetadata{Job: job}
}

func (j *JobMetadata) PreProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) ([]core.Payload, core.Metadata, error) {
	out := make([]core.Payload, len(payloads))
	for i, p := range payloads {
		stamped := p.Clone()
		stamped[JobNameKey] = j.Job.JobName
		stamped[OperationIDKey] = j.Job.OperationID
		out[i] = stamped
	}
	return out, md, nil
}
