// Package chunker splits documents into bounded, overlapping chunks with
// deterministic positional identifiers. Chunking is a pure function of the
// document and configuration: it performs no I/O and re-running it on an
// unchanged document yields identical chunk IDs.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/corpus/core"
)

// BoundaryPolicy selects where chunk splits preferentially occur.
type BoundaryPolicy int

const (
	// BoundaryChar cuts at exactly MaxChunkBytes.
	BoundaryChar BoundaryPolicy = iota + 1
	// BoundarySentence prefers cutting just after sentence-ending
	// punctuation.
	BoundarySentence
	// BoundaryParagraph prefers cutting just after a blank line.
	BoundaryParagraph
)

// String returns the policy name as used in configuration.
func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryChar:
		return "char"
	case BoundarySentence:
		return "sentence"
	case BoundaryParagraph:
		return "paragraph"
	default:
		return fmt.Sprintf("BoundaryPolicy(%d)", int(p))
	}
}

// ParseBoundaryPolicy maps a configuration string to a BoundaryPolicy.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(s) {
	case "char":
		return BoundaryChar, nil
	case "sentence":
		return BoundarySentence, nil
	case "paragraph":
		return BoundaryParagraph, nil
	default:
		return 0, fmt.Errorf("invalid boundary policy %q: must be one of char, sentence, paragraph", s)
	}
}

// Config holds chunker configuration. Limits are measured in bytes of
// UTF-8 text, so multi-byte text yields fewer runes per chunk; cuts never
// split a rune.
type Config struct {
	// MaxChunkBytes is the upper bound on text length per chunk, in bytes.
	MaxChunkBytes int

	// OverlapBytes is the number of bytes each chunk shares with the
	// end of its predecessor, preserving cross-boundary context.
	// Must be smaller than MaxChunkBytes.
	OverlapBytes int

	// Boundary selects the preferred split points. Whatever the policy, a
	// chunk never exceeds MaxChunkBytes: when no natural boundary falls
	// within range the chunker makes a hard cut at the nearest rune
	// boundary.
	Boundary BoundaryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxChunkBytes: 1000,
		OverlapBytes:  100,
		Boundary:      BoundarySentence,
	}
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("%w: max chunk bytes must be positive, got %d",
			core.ErrInvalidDocument, c.MaxChunkBytes)
	}
	if c.OverlapBytes < 0 {
		return fmt.Errorf("chunker config: overlap bytes cannot be negative, got %d", c.OverlapBytes)
	}
	if c.OverlapBytes >= c.MaxChunkBytes {
		return fmt.Errorf("chunker config: overlap bytes (%d) must be smaller than max chunk bytes (%d)",
			c.OverlapBytes, c.MaxChunkBytes)
	}
	switch c.Boundary {
	case BoundaryChar, BoundarySentence, BoundaryParagraph:
	default:
		return fmt.Errorf("chunker config: unknown boundary policy %d", c.Boundary)
	}
	return nil
}

// Chunker splits document text into chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker with the given configuration.
// A nil config uses DefaultConfig.
func New(cfg *Config) (*Chunker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: *cfg}, nil
}

// Chunk splits a document into an ordered sequence of chunks.
//
// The chunker walks the raw text emitting chunks that end at the best
// boundary at or before MaxChunkBytes; each subsequent chunk starts
// OverlapBytes before its predecessor's end. A document shorter than
// MaxChunkBytes produces exactly one chunk. A run of text with no boundary
// in range is hard-cut rather than dropped; no character of the input is
// ever lost.
//
// Returns core.ErrInvalidDocument when the document fails validation.
func (c *Chunker) Chunk(doc *core.Document) ([]*core.Chunk, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	text := doc.RawText
	max := c.cfg.MaxChunkBytes

	estimated := len(text)/(max-c.cfg.OverlapBytes) + 1
	chunks := make([]*core.Chunk, 0, estimated)

	start := 0
	seq := 0
	for start < len(text) {
		end := c.cutAt(text, start)

		chunks = append(chunks, &core.Chunk{
			ChunkID:       core.ChunkID(doc.SourceID, start, end),
			SourceID:      doc.SourceID,
			Text:          text[start:end],
			StartOffset:   start,
			EndOffset:     end,
			SequenceIndex: seq,
		})
		seq++

		if end == len(text) {
			break
		}

		next := end - c.cfg.OverlapBytes
		// The overlap window must start on a rune boundary.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		// Overlap must never stall the walk.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// cutAt picks the end offset for a chunk starting at start.
func (c *Chunker) cutAt(text string, start int) int {
	limit := start + c.cfg.MaxChunkBytes
	if limit >= len(text) {
		return len(text)
	}

	switch c.cfg.Boundary {
	case BoundarySentence:
		if end := lastBoundary(text, start, limit, isSentenceEnd); end > start {
			return end
		}
	case BoundaryParagraph:
		if end := lastParagraphBreak(text, start, limit); end > start {
			return end
		}
	}

	return hardCut(text, start, limit)
}

// lastBoundary returns the largest end in (start, limit] such that
// text[:end] finishes on a boundary rune, or start when there is none.
func lastBoundary(text string, start, limit int, isEnd func(byte) bool) int {
	for end := limit; end > start; end-- {
		if isEnd(text[end-1]) {
			return end
		}
	}
	return start
}

// lastParagraphBreak returns the end of the last blank-line break fully
// inside (start, limit], or start when there is none.
func lastParagraphBreak(text string, start, limit int) int {
	idx := strings.LastIndex(text[start:limit], "\n\n")
	if idx < 0 {
		return start
	}
	return start + idx + 2
}

func isSentenceEnd(b byte) bool {
	switch b {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

// hardCut cuts at the limit, backing off so that no UTF-8 rune is split.
// When the very first rune is wider than the budget it is emitted whole:
// exceeding the budget by a few bytes beats dropping or corrupting text.
func hardCut(text string, start, limit int) int {
	end := limit
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}
