// Package badger implements storage.VectorStore and storage.CheckpointRepository
// on BadgerDB.
//
// Index definitions live under idx:<name> and documents under
// doc:<index>:<id>, both as JSON. k-NN search is exhaustive and scores hits
// the way OpenSearch's faiss engine does, so results are comparable with a
// real cluster on small data sets.
package badger
