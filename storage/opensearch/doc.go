// Package opensearch implements storage.VectorStore against the OpenSearch
// REST API using the k-NN plugin.
//
// Requests can be signed with AWS Signature Version 4 for Amazon OpenSearch
// Service ("es") and OpenSearch Serverless ("aoss"). Throttling and gateway
// errors are reported as storage.ErrTransient so batch retry covers them.
package opensearch
