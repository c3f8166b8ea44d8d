package badger

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// EntryRepository implements storage.EntryRepository for BadgerDB.
type EntryRepository struct {
	backend *Backend
}

var _ storage.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new EntryRepository over an open backend.
func NewEntryRepository(backend *Backend) (*EntryRepository, error) {
	return &EntryRepository{backend: backend}, nil
}

// NewRepository opens a BadgerDB database at path and returns an entry
// repository over it. Closing the repository closes the database.
func NewRepository(path string) (storage.EntryRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &EntryRepository{backend: backend}, nil
}

// Close closes the underlying backend.
func (r *EntryRepository) Close() error {
	return r.backend.Close()
}

// FindSimilar delegates to the backend.
func (r *EntryRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *EntryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertEntries inserts or replaces entries keyed by chunk ID.
func (r *EntryRepository) UpsertEntries(ctx context.Context, entries ...*core.IndexEntry) ([]*core.IndexEntry, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entry := range entries {
			if err := core.ValidateEntry(entry); err != nil {
				return err
			}

			key := makeEntryKey(entry.ChunkID)

			// Preserve InsertedAt across replacements
			old, err := r.readEntry(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				entry.InsertedAt = old.InsertedAt
			} else {
				entry.InsertedAt = now
			}
			entry.UpdatedAt = now

			value := storage.MarshalIndexEntry(entry)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update per-source index
			srcKey := makeSourceIndexKey(entry.SourceID, entry.ChunkID)
			if err := tx.Set(srcKey, storage.MarshalID(entry.ChunkID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entries, err
}

// DeleteEntries removes entries by their chunk IDs.
func (r *EntryRepository) DeleteEntries(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntryKey(id)

			// Read entry to get source ID for index cleanup
			entry, err := r.readEntry(tx, key)
			if err != nil {
				return err
			}
			if entry == nil {
				return storage.ErrNotFound
			}

			// Delete from per-source index
			srcKey := makeSourceIndexKey(entry.SourceID, entry.ChunkID)
			if err := tx.Delete(srcKey); err != nil {
				return err
			}

			// Delete primary entry
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntry retrieves a single entry by chunk ID.
func (r *EntryRepository) GetEntry(ctx context.Context, id core.ID) (*core.IndexEntry, error) {
	var result *core.IndexEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEntryKey(id)
		var err error
		result, err = r.readEntry(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntries retrieves multiple entries by their chunk IDs.
func (r *EntryRepository) GetEntries(ctx context.Context, ids ...core.ID) ([]*core.IndexEntry, error) {
	var result []*core.IndexEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntryKey(id)
			entry, err := r.readEntry(tx, key)
			if err != nil {
				return err
			}
			if entry != nil {
				result = append(result, entry)
			}
		}
		return nil
	}, false)
	return result, err
}

// SourceChunkIDs returns the chunk IDs currently indexed for a source.
func (r *EntryRepository) SourceChunkIDs(ctx context.Context, sourceID string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSourceIndexKey(sourceID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}

			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, false)

	return ids, err
}

// SourceDigest returns the stored content digest for a source.
func (r *EntryRepository) SourceDigest(ctx context.Context, sourceID string) (core.ID, error) {
	var digest core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceDigestKey(sourceID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			digest, err = storage.UnmarshalID(val)
			return err
		})
	}, false)
	return digest, err
}

// SetSourceDigest records the content digest for a source.
func (r *EntryRepository) SetSourceDigest(ctx context.Context, sourceID string, digest core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSourceDigestKey(sourceID), storage.MarshalID(digest)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// VectorDim returns the vector dimensionality recorded for the store.
func (r *EntryRepository) VectorDim(ctx context.Context) (int, error) {
	var dim int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(vectorDimKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			dim, err = strconv.Atoi(string(val))
			return err
		})
	}, false)
	return dim, err
}

// SetVectorDim records the vector dimensionality for the store.
func (r *EntryRepository) SetVectorDim(ctx context.Context, dim int) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(vectorDimKey), []byte(strconv.Itoa(dim))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readEntry reads an index entry from the transaction.
func (r *EntryRepository) readEntry(tx *badger.Txn, key []byte) (*core.IndexEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.IndexEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalIndexEntry(val)
		return unmarshalErr
	})
	return entry, err
}
