package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/poiesic/corpus/core"
)

// jsonDocument is the on-disk document shape.
type jsonDocument struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// JSONFileSource yields documents from a JSON file holding an array of
// objects with id, content, and optional metadata fields. Entries with
// empty or whitespace-only content are skipped with a warning.
type JSONFileSource struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	docs []*core.Document
	pos  int
}

var _ Source = (*JSONFileSource)(nil)

// NewJSONFileSource reads and parses the file at path.
func NewJSONFileSource(path string, logger *slog.Logger) (*JSONFileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "json-source")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw []jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	docs := make([]*core.Document, 0, len(raw))
	for i, entry := range raw {
		if entry.ID == "" {
			logger.Warn("skipping document without id", "index", i)
			continue
		}
		if strings.TrimSpace(entry.Content) == "" {
			logger.Warn("skipping document with empty content", "id", entry.ID)
			continue
		}
		docs = append(docs, &core.Document{
			SourceID: entry.ID,
			RawText:  entry.Content,
			Metadata: entry.Metadata,
		})
	}

	return &JSONFileSource{
		path:   path,
		logger: logger,
		docs:   docs,
	}, nil
}

// Next returns the next document or io.EOF.
func (s *JSONFileSource) Next(ctx context.Context) (*core.Document, error) {
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

// Len returns the number of usable documents in the file.
func (s *JSONFileSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Close is a no-op; the file is fully read at construction.
func (s *JSONFileSource) Close() error {
	return nil
}
