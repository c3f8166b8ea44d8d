// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// Builder commits embedded chunks to the index. Commits for the same
// source are serialized so concurrent writers cannot interleave upserts
// and prunes for one document.
type Builder struct {
	repo   storage.EntryRepository
	locks  keyedMutex
	logger *slog.Logger

	// dimMu serializes the first-commit dimension check so two sources
	// cannot race to record different store dimensionalities.
	dimMu sync.Mutex
}

// CommitResult reports what a commit changed.
type CommitResult struct {
	// Upserted is the number of entries inserted or replaced.
	Upserted int

	// Pruned is the number of stale entries removed. A stale entry
	// belongs to the source but its chunk ID is absent from the new
	// commit, meaning the region it covered no longer exists.
	Pruned int
}

// NewBuilder creates a builder over the given repository.
func NewBuilder(repo storage.EntryRepository, logger *slog.Logger) (*Builder, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		repo:   repo,
		logger: logger.With("component", "index-builder"),
	}, nil
}

// Commit upserts the entries for a source, prunes entries from earlier
// versions of the source that are no longer present, and records the
// source content digest. An empty digest clears any recorded digest, so
// the source is reprocessed on the next ingest. The entries of one
// commit must have unique chunk IDs and share the vector dimensionality
// recorded for the store.
func (b *Builder) Commit(ctx context.Context, sourceID string, digest core.ID, entries []*core.IndexEntry) (*CommitResult, error) {
	if sourceID == "" {
		return nil, core.ErrEmptySourceID
	}
	dim, err := validateCommitSet(sourceID, entries)
	if err != nil {
		return nil, err
	}
	if dim > 0 {
		if err := b.checkStoreDim(ctx, dim); err != nil {
			return nil, err
		}
	}

	unlock := b.locks.lock(sourceID)
	defer unlock()

	existing, err := b.repo.SourceChunkIDs(ctx, sourceID)
	if err != nil {
		return nil, storeErr(err)
	}

	if len(entries) > 0 {
		if _, err := b.repo.UpsertEntries(ctx, entries...); err != nil {
			return nil, storeErr(err)
		}
	}

	// Prune chunk IDs from previous versions of this source
	fresh := make(map[core.ID]struct{}, len(entries))
	for _, entry := range entries {
		fresh[entry.ChunkID] = struct{}{}
	}
	var stale []core.ID
	for _, id := range existing {
		if _, ok := fresh[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := b.repo.DeleteEntries(ctx, stale...); err != nil {
			return nil, storeErr(err)
		}
	}

	if err := b.repo.SetSourceDigest(ctx, sourceID, digest); err != nil {
		return nil, storeErr(err)
	}

	b.logger.Debug("committed source",
		"sourceID", sourceID,
		"upserted", len(entries),
		"pruned", len(stale))

	return &CommitResult{Upserted: len(entries), Pruned: len(stale)}, nil
}

// Unchanged reports whether the stored digest for a source matches the
// given digest. An unknown source is never unchanged.
func (b *Builder) Unchanged(ctx context.Context, sourceID string, digest core.ID) (bool, error) {
	stored, err := b.repo.SourceDigest(ctx, sourceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, storeErr(err)
	}
	return stored == digest, nil
}

// checkStoreDim enforces a single vector dimensionality across the whole
// store, recording it on the first commit that carries vectors.
func (b *Builder) checkStoreDim(ctx context.Context, dim int) error {
	b.dimMu.Lock()
	defer b.dimMu.Unlock()

	stored, err := b.repo.VectorDim(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return storeErr(b.repo.SetVectorDim(ctx, dim))
	}
	if err != nil {
		return storeErr(err)
	}
	if stored != dim {
		return fmt.Errorf("%w: store holds %d-dimensional vectors, commit carries %d",
			core.ErrDimensionMismatch, stored, dim)
	}
	return nil
}

// validateCommitSet rejects duplicate chunk IDs, foreign sources, and
// inconsistent vector dimensions before anything is written. Returns the
// shared vector dimension of the set, zero when the set is empty.
func validateCommitSet(sourceID string, entries []*core.IndexEntry) (int, error) {
	seen := make(map[core.ID]struct{}, len(entries))
	dim := 0
	for _, entry := range entries {
		if err := core.ValidateEntry(entry); err != nil {
			return 0, err
		}
		if entry.SourceID != sourceID {
			return 0, fmt.Errorf("%w: entry %s belongs to source %q, committing %q",
				core.ErrInvalidEntry, entry.ChunkID, entry.SourceID, sourceID)
		}
		if _, ok := seen[entry.ChunkID]; ok {
			return 0, fmt.Errorf("%w: %s", core.ErrDuplicateChunk, entry.ChunkID)
		}
		seen[entry.ChunkID] = struct{}{}

		if dim == 0 {
			dim = len(entry.Vector)
		} else if len(entry.Vector) != dim {
			return 0, fmt.Errorf("%w: expected %d, got %d for chunk %s",
				core.ErrDimensionMismatch, dim, len(entry.Vector), entry.ChunkID)
		}
	}
	return dim, nil
}

// storeErr maps a closed-store error to the domain error, leaving
// everything else untouched.
func storeErr(err error) error {
	if errors.Is(err, storage.ErrStorageClosed) {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return err
}
