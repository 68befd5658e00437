package badger

import (
	"fmt"

	"github.com/poiesic/vecbatch/core"
)

// Key prefixes for different data types
const (
	indexPrefix      = "idx"
	documentPrefix   = "doc"
	checkpointPrefix = "chk"
)

// makeIndexKey generates the key holding an index definition.
func makeIndexKey(index string) []byte {
	return []byte(fmt.Sprintf("%s:%s", indexPrefix, index))
}

// makeDocumentKey generates a key for a document in an index.
// Format: prefix:index:id
func makeDocumentKey(index string, id core.DocumentID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentPrefix, index, id))
}

// makeDocumentPrefix generates the prefix shared by every document in an index.
// The trailing separator keeps "labs" from matching "labs2".
func makeDocumentPrefix(index string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, index))
}

// makeCheckpointKey generates a key for ingestion checkpoints.
func makeCheckpointKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, key))
}
