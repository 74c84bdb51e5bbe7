package badger

import (
	"encoding/binary"

	"github.com/poiesic/datajobs/core"
)

// Key prefixes for different data types
const (
	batchPrefix      = "batch"
	checkpointPrefix = "chkpt"
)

// appendSegment writes a length-prefixed string so that no collection id
// can be a prefix of another's key range.
func appendSegment(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// makeBatchKey generates a key for a stored batch.
// Format: prefix:len(collection)collection id
func makeBatchKey(collectionID string, id core.ID) []byte {
	buf := makeCollectionBatchPrefix(collectionID)
	// BigEndian so lexicographic order matches numeric order
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeCollectionBatchPrefix generates the key prefix shared by all batches of a collection.
func makeCollectionBatchPrefix(collectionID string) []byte {
	buf := make([]byte, 0, len(batchPrefix)+3+len(collectionID)+8)
	buf = append(buf, batchPrefix+":"...)
	return appendSegment(buf, collectionID)
}

// makeCheckpointKey generates a key for a collection/table checkpoint.
// Format: prefix:len(collection)collection len(table)table
func makeCheckpointKey(collectionID, table string) []byte {
	buf := make([]byte, 0, len(checkpointPrefix)+5+len(collectionID)+len(table))
	buf = append(buf, checkpointPrefix+":"...)
	buf = appendSegment(buf, collectionID)
	return appendSegment(buf, table)
}
