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

import "errors"

// Domain errors
var (
	// ErrInvalidDocument indicates a Document failed validation and is
	// skipped, never retried.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptySourceID indicates the SourceID field is empty.
	ErrEmptySourceID = errors.New("source id cannot be empty")

	// ErrEmptyText indicates the RawText field is empty.
	ErrEmptyText = errors.New("raw text cannot be empty")

	// ErrDimensionMismatch indicates a commit contained vectors of different
	// dimensionality. The whole commit fails and nothing is written.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateChunk indicates the same chunk ID appeared twice in one
	// commit call. This is a programmer error and is not retried.
	ErrDuplicateChunk = errors.New("duplicate chunk id within commit")

	// ErrStoreUnavailable indicates the vector store could not be reached.
	// Callers retry the whole document with backoff; re-running is safe
	// because commits are idempotent upserts.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrInvalidEntry indicates an IndexEntry failed validation.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrEmptyVector indicates an entry carried no embedding vector.
	ErrEmptyVector = errors.New("vector cannot be empty")
)
