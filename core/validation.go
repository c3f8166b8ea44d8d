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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document at the ingestion boundary.
//
// Validation rules:
//   - SourceID must not be empty
//   - RawText must contain at least one non-whitespace character
//
// Metadata is NOT validated beyond being a plain string mapping; required
// keys are a concern of whoever queries the index, not of ingestion.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptySourceID)
	}

	if strings.TrimSpace(doc.RawText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyText)
	}

	return nil
}

// ValidateChunk validates a Chunk's positional invariants.
//
// Validation rules:
//   - ChunkID and SourceID must not be empty
//   - EndOffset must be greater than StartOffset
//   - SequenceIndex must not be negative
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidEntry)
	}

	if chunk.ChunkID == "" {
		return fmt.Errorf("%w: chunk id cannot be empty", ErrInvalidEntry)
	}

	if chunk.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptySourceID)
	}

	if chunk.EndOffset <= chunk.StartOffset {
		return fmt.Errorf("%w: end offset %d not after start offset %d",
			ErrInvalidEntry, chunk.EndOffset, chunk.StartOffset)
	}

	if chunk.SequenceIndex < 0 {
		return fmt.Errorf("%w: negative sequence index %d", ErrInvalidEntry, chunk.SequenceIndex)
	}

	return nil
}

// ValidateEntry validates an IndexEntry before it is committed.
//
// Validation rules:
//   - ChunkID and SourceID must not be empty
//   - Vector must not be empty
//
// Timestamps are NOT validated; they are populated by the repository.
func ValidateEntry(entry *IndexEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.ChunkID == "" {
		return fmt.Errorf("%w: chunk id cannot be empty", ErrInvalidEntry)
	}

	if entry.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptySourceID)
	}

	if len(entry.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyVector)
	}

	return nil
}
