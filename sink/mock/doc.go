// Package mock provides a test double for sink.Sink.
//
// MockSink records every call and lets tests inject behavior through
// IngestFunc. It is safe for concurrent use, since the pipeline invokes
// sinks from several workers at once.
//
// # Usage in Tests
//
//	s := mock.NewMockSink()
//	s.IngestFunc = func(ctx context.Context, payloads []core.Payload, dest core.Destination, md core.Metadata) (core.Metadata, error) {
//	    return md, core.PlatformError(errors.New("down"))
//	}
//	...
//	calls := s.Calls()
package mock
