// Package processors provides pre- and post-processors for ingestion pipelines.
//
// Pre-processors run on a batch before it reaches the sink:
//   - JobMetadata stamps the owning job into every payload
//   - TableRoute picks the destination table from a payload field
//
// Post-processors observe the sink outcome:
//   - Ledger records delivered payloads in the checkpoint repository
//   - Progress reports throughput to a writer
//   - FailureLog logs failed batches
//
// Lookup and Chains build processors by name for command line use.
package processors
