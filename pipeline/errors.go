package pipeline

import "errors"

var (
	// ErrRepositoryRequired is returned when an entry repository is not provided.
	ErrRepositoryRequired = errors.New("entry repository required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrSourceRequired is returned when a document source is not provided.
	ErrSourceRequired = errors.New("document source required")

	// ErrAllChunksFailed indicates that no chunk of a document embedded
	// successfully.
	ErrAllChunksFailed = errors.New("all chunks failed to embed")

	// ErrPartialEmbedding indicates that some chunks failed to embed and
	// the partial policy forbids committing the rest.
	ErrPartialEmbedding = errors.New("document partially embedded")
)
