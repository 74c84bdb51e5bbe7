// Package replay re-delivers batches saved by the store sink.
//
// Stored batches are read back from the batch repository one at a time and
// every payload is sent again through an ingestion pipeline, usually to a
// different sink method. Destinations are preserved unless overridden.
package replay
