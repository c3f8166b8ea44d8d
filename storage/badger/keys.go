package badger

import (
	"fmt"

	"github.com/poiesic/corpus/core"
)

// Key prefixes for different data types
const (
	entryPrefix        = "idxent"
	sourceIndexPrefix  = "srcidx"
	sourceDigestPrefix = "srcdig"
	vectorDimKey       = "vecdim"
)

// makeEntryKey generates a key for an index entry by chunk ID.
func makeEntryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s", entryPrefix, id))
}

// makeSourceIndexKey generates a composite key for the per-source index.
// Format: prefix:sourceID:chunkID
// The source ID is length-prefixed so sources whose IDs share a prefix
// cannot collide in range scans.
func makeSourceIndexKey(sourceID string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s:%s", sourceIndexPrefix, len(sourceID), sourceID, id))
}

// makePartialSourceIndexKey generates a prefix for scanning all chunk IDs of a source.
func makePartialSourceIndexKey(sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s:", sourceIndexPrefix, len(sourceID), sourceID))
}

// makeSourceDigestKey generates a key for a source content digest.
func makeSourceDigestKey(sourceID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sourceDigestPrefix, sourceID))
}
