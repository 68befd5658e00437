// Package ingestion provides the pipeline that turns a record source into
// documents in a vector store.
//
// A run works through the selected rows one batch at a time:
//   - Read the batch's records from the source
//   - Embed the configured columns through the bounded client
//   - Bulk-index the documents under deterministic ids
//
// Failed batches are retried with backoff. Re-running a range overwrites the
// same documents, so an interrupted run can be repeated or resumed from its
// checkpoint without creating duplicates.
package ingestion
