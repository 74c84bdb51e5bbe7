// Package ingestion provides the asynchronous pipeline that delivers data
// objects produced by a running job to a sink.
//
// The Ingester type manages the pipeline for a single sink:
//   - SendObject and SendTabularData validate payloads and enqueue them on a
//     bounded object queue, blocking when it is full
//   - a single aggregator groups queued payloads into batches by destination,
//     flushing on destination change, size threshold or idle timeout
//   - a fixed pool of posters drives each batch through the pre-processors,
//     the sink and the post-processors
//
// Failures inside the pipeline never reach the producer. They are counted per
// category (user, config, platform, unclassified) and reported when the
// ingester is closed. Close drains everything that was queued; CloseNow stops
// after the work in progress and abandons the rest.
//
// Router fronts several ingesters, one per sink method, for jobs that write
// to more than one kind of destination.
package ingestion
