package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed entities.
// IDs are deterministic BLAKE2b content hashes rendered as hex, so the same
// input always produces the same identifier.
type ID string

// idSeparator keeps hash inputs unambiguous across field boundaries.
const idSeparator = "\x00"

// ChunkID generates the deterministic identifier for a chunk from its source
// document and character range. Re-chunking an unchanged document therefore
// yields identical IDs.
func ChunkID(sourceID string, startOffset, endOffset int) ID {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(sourceID))
	h.Write([]byte(idSeparator))
	h.Write([]byte(strconv.Itoa(startOffset)))
	h.Write([]byte(idSeparator))
	h.Write([]byte(strconv.Itoa(endOffset)))
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// ContentDigest generates a deterministic digest of a document's raw text.
// It is stored per source and used to detect whether a re-ingested document
// actually changed.
func ContentDigest(text string) ID {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// Document is a raw unit of input produced by an external scraper.
// Documents are immutable once handed to the pipeline.
type Document struct {
	SourceID string
	RawText  string
	Metadata map[string]string // Optional metadata (e.g., "original_url", "content_type")
}

// Chunk is a bounded contiguous span of a document's text, the atomic unit
// of retrieval. StartOffset/EndOffset are byte offsets into the document's
// raw text; EndOffset is exclusive and always greater than StartOffset.
// Consecutive chunks of the same document may overlap in character range but
// are strictly ordered by SequenceIndex.
type Chunk struct {
	ChunkID       ID
	SourceID      string
	Text          string
	StartOffset   int
	EndOffset     int
	SequenceIndex int
}

// EmbeddedChunk is a chunk with its embedding vector attached.
// A chunk whose embedding permanently failed is never promoted to this type.
type EmbeddedChunk struct {
	Chunk
	Vector    []float32
	VectorDim int // len(Vector), fixed per pipeline run
}

// IndexEntry is the committed, queryable unit in the vector store.
// ChunkID is unique in the store; re-ingesting an already-present ID
// overwrites in place.
type IndexEntry struct {
	ChunkID       ID
	SourceID      string
	Text          string
	StartOffset   int
	EndOffset     int
	SequenceIndex int
	Vector        []float32
	Metadata      map[string]string
	InsertedAt    time.Time // When the entry was first committed
	UpdatedAt     time.Time // When the entry was last overwritten
}

// SearchResult is an index entry matched by a similarity query, with its
// relevance score.
type SearchResult struct {
	Entry *IndexEntry
	Score float32
}
