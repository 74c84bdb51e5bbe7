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
	"fmt"

	"github.com/poiesic/datajobs/core"
)

// PreProcessor transforms a batch before it reaches the sink.
// An error aborts the batch: neither the sink nor the post-processors run.
// Implementations are shared by all posters and must be safe for concurrent use.
type PreProcessor interface {
	PreProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) ([]core.Payload, core.Metadata, error)
}

// PostProcessor observes the outcome of a sink call. ingestErr is the sink
// error, or nil on success. Post-processors run whether or not the sink failed.
type PostProcessor interface {
	PostProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error)
}

// PreProcessorFunc adapts a function to the PreProcessor interface.
type PreProcessorFunc func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) ([]core.Payload, core.Metadata, error)

// PreProcess calls f.
func (f PreProcessorFunc) PreProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) ([]core.Payload, core.Metadata, error) {
	return f(ctx, payloads, dest, md)
}

// PostProcessorFunc adapts a function to the PostProcessor interface.
type PostProcessorFunc func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error)

// PostProcess calls f.
func (f PostProcessorFunc) PostProcess(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (core.Metadata, error) {
	return f(ctx, payloads, dest, md, ingestErr)
}

// Classifier maps a pipeline error to a failure category.
type Classifier interface {
	Classify(err error) core.Category
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) core.Category

// Classify calls f.
func (f ClassifierFunc) Classify(err error) core.Category {
	return f(err)
}

// DefaultClassifier classifies through core.Classify.
var DefaultClassifier Classifier = ClassifierFunc(core.Classify)

// recovered converts a recovered panic value into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

func runPreProcessors(ctx context.Context, stages []PreProcessor, payloads []core.Payload, dest core.Destination, md core.Metadata) (out []core.Payload, outMD core.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	for i, stage := range stages {
		payloads, md, err = stage.PreProcess(ctx, payloads, dest, md)
		if err != nil {
			return nil, md, fmt.Errorf("pre-processor %d: %w", i, err)
		}
	}
	return payloads, md, nil
}

// runPostProcessors stops at the first failing stage.
func runPostProcessors(ctx context.Context, stages []PostProcessor, payloads []core.Payload, dest core.Destination, md core.Metadata, ingestErr error) (outMD core.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	for i, stage := range stages {
		md, err = stage.PostProcess(ctx, payloads, dest, md, ingestErr)
		if err != nil {
			return md, fmt.Errorf("post-processor %d: %w", i, err)
		}
	}
	return md, nil
}
