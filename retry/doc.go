// Package retry provides the retry policy shared by the API client, the
// batch processor and bulk store writes.
//
// A Policy bundles the attempt budget, a Backoff function and a predicate
// that separates transient errors from permanent ones. Do applies a policy
// to an operation and honours context cancellation while waiting.
package retry
