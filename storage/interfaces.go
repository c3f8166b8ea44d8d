package storage

import (
	"context"

	"github.com/poiesic/corpus/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds index entries similar to the given vector.
	// Returns entries with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// EntryRepository provides operations for managing index entries.
type EntryRepository interface {
	Repository
	// UpsertEntries inserts or replaces entries keyed by chunk ID.
	// Sets InsertedAt on first insert and UpdatedAt on every write.
	// Maintains the per-source index for each entry.
	// Returns the entries with timestamps populated.
	UpsertEntries(ctx context.Context, entries ...*core.IndexEntry) ([]*core.IndexEntry, error)

	// DeleteEntries removes entries by their chunk IDs.
	// Also removes associated per-source index keys.
	// Returns ErrNotFound if any entry doesn't exist.
	DeleteEntries(ctx context.Context, ids ...core.ID) error

	// GetEntry retrieves a single entry by chunk ID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id core.ID) (*core.IndexEntry, error)

	// GetEntries retrieves multiple entries by their chunk IDs.
	// Returns only the entries that exist (no error for missing entries).
	GetEntries(ctx context.Context, ids ...core.ID) ([]*core.IndexEntry, error)

	// SourceChunkIDs returns the chunk IDs currently indexed for a source.
	// Returns an empty slice for an unknown source.
	SourceChunkIDs(ctx context.Context, sourceID string) ([]core.ID, error)

	// SourceDigest returns the stored content digest for a source.
	// Returns ErrNotFound if no digest has been recorded.
	SourceDigest(ctx context.Context, sourceID string) (core.ID, error)

	// SetSourceDigest records the content digest for a source.
	SetSourceDigest(ctx context.Context, sourceID string, digest core.ID) error

	// VectorDim returns the vector dimensionality recorded for the store.
	// Returns ErrNotFound if no dimension has been recorded yet.
	VectorDim(ctx context.Context) (int, error)

	// SetVectorDim records the vector dimensionality for the store.
	// All entries in one store share a single dimensionality.
	SetVectorDim(ctx context.Context, dim int) error
}
