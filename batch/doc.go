// Package batch splits a row range into fixed-size batches and runs an
// operation over them sequentially with retries, a failure policy and
// resumable progress reporting.
package batch
