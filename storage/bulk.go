package storage

import "github.com/poiesic/vecbatch/core"

// ErrorTypeVersionConflict is reported when a document write loses an
// optimistic concurrency race. Re-ingestion treats it as already written.
const ErrorTypeVersionConflict = "version_conflict_engine_exception"

// BulkItem is the result of writing one document.
type BulkItem struct {
	ID        core.DocumentID
	Status    int
	ErrorType string
	Reason    string
}

// OK reports whether the document was written.
func (i BulkItem) OK() bool {
	return i.ErrorType == "" && (i.Status == 0 || i.Status < 300)
}

// BulkResponse reports per-document results of a bulk write.
type BulkResponse struct {
	Items []BulkItem
}

// Failed returns the items that failed for a reason other than a version conflict.
func (r *BulkResponse) Failed() []BulkItem {
	if r == nil {
		return nil
	}
	var failed []BulkItem
	for _, item := range r.Items {
		if !item.OK() && item.ErrorType != ErrorTypeVersionConflict {
			failed = append(failed, item)
		}
	}
	return failed
}

// Ignored returns the number of version conflicts.
func (r *BulkResponse) Ignored() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.Items {
		if item.ErrorType == ErrorTypeVersionConflict {
			n++
		}
	}
	return n
}

// Succeeded returns the number of documents written.
func (r *BulkResponse) Succeeded() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, item := range r.Items {
		if item.OK() {
			n++
		}
	}
	return n
}
