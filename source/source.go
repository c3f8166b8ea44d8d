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

// Package source provides document inputs for the ingestion pipeline.
package source

import (
	"context"
	"io"
	"sync"

	"github.com/poiesic/corpus/core"
)

// Source yields documents to ingest. Implementations must be safe for
// calls from a single goroutine; the pipeline drains a source
// sequentially before fanning documents out to workers.
type Source interface {
	// Next returns the next document. Returns io.EOF when the source
	// is exhausted.
	Next(ctx context.Context) (*core.Document, error)

	// Close releases any resources held by the source.
	Close() error
}

// SliceSource yields documents from an in-memory slice.
type SliceSource struct {
	mu   sync.Mutex
	docs []*core.Document
	pos  int
}

var _ Source = (*SliceSource)(nil)

// NewSliceSource creates a source over the given documents.
func NewSliceSource(docs ...*core.Document) *SliceSource {
	return &SliceSource{docs: docs}
}

// Next returns the next document or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.pos]
	s.pos++
	return doc, nil
}

// Close is a no-op for slice sources.
func (s *SliceSource) Close() error {
	return nil
}
