// Package sink defines the destination contract of the ingestion pipeline and
// the sinks that ship with datajobs.
//
// A Sink receives one batch of payloads sharing a single core.Destination and
// delivers it somewhere: a directory of JSON-lines files, the local badger
// store, a NATS subject, an S3 bucket or a PostgreSQL table. Sinks are
// selected by method name through a Registry:
//
//	reg := sink.NewRegistry()
//	reg.Register(sink.MethodFile, sink.FileFactory("/var/lib/datajobs/out"))
//	s, err := reg.Resolve(ctx, sink.MethodFile)
//
// Sink errors should be wrapped with core.UserError, core.ConfigError or
// core.PlatformError so the pipeline can attribute failures. WithRetry wraps
// any sink with exponential backoff for platform failures.
package sink
