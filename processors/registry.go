package processors

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/datajobs/core"
	"github.com/poiesic/datajobs/ingestion"
	"github.com/poiesic/datajobs/storage"
)

// Deps are the shared dependencies processors may need.
type Deps struct {
	Job            core.JobContext
	Checkpoints    storage.CheckpointRepository
	Logger         *slog.Logger
	ProgressWriter io.Writer
	// ProgressTotal is the expected payload count, 0 if unknown.
	ProgressTotal int
}

type builder func(arg string, deps Deps) (any, error)

var builders = map[string]builder{
	"job_metadata": func(_ string, deps Deps) (any, error) {
		return NewJobMetadata(deps.Job), nil
	},
	// table_route:<field>
	"table_route": func(arg string, _ Deps) (any, error) {
		return NewTableRoute(arg, nil)
	},
	"ledger": func(_ string, deps Deps) (any, error) {
		if deps.Checkpoints == nil {
			return nil, fmt.Errorf("%w: ledger needs a checkpoint repository", ErrMissingDependency)
		}
		return NewLedger(deps.Checkpoints), nil
	},
	"progress": func(_ string, deps Deps) (any, error) {
		if deps.ProgressWriter == nil {
			return nil, fmt.Errorf("%w: progress needs a writer", ErrMissingDependency)
		}
		return NewProgress(deps.ProgressWriter, deps.ProgressTotal, 100), nil
	},
	"failure_log": func(_ string, deps Deps) (any, error) {
		return NewFailureLog(deps.Logger), nil
	},
}

// Names returns the registered processor names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the processor called name. A name may carry an argument
// after a colon, as in "table_route:kind". The result implements
// ingestion.PreProcessor or ingestion.PostProcessor.
func Lookup(name string, deps Deps) (any, error) {
	base, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
	build, ok := builders[base]
	if !ok {
		return nil, core.ConfigError(fmt.Errorf("%w: %q", ErrUnknownProcessor, base))
	}
	p, err := build(arg, deps)
	if err != nil {
		return nil, core.ConfigError(fmt.Errorf("processor %s: %w", base, err))
	}
	return p, nil
}

// Chains builds every named processor and splits them into pre- and
// post-process chains, keeping their relative order.
func Chains(names []string, deps Deps) ([]ingestion.PreProcessor, []ingestion.PostProcessor, error) {
	var pre []ingestion.PreProcessor
	var post []ingestion.PostProcessor
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := Lookup(name, deps)
		if err != nil {
			return nil, nil, err
		}
		switch stage := p.(type) {
		case ingestion.PreProcessor:
			pre = append(pre, stage)
		case ingestion.PostProcessor:
			post = append(post, stage)
		}
	}
	return pre, post, nil
}
