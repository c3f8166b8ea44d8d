package chunker

import (
	"strings"
	"testing"

	"github.com/poiesic/corpus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustChunker(t *testing.T, cfg *Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

// reconstruct rebuilds the original text from chunks by dropping each
// chunk's overlap with its predecessor.
func reconstruct(chunks []*core.Chunk) string {
	var sb strings.Builder
	prevEnd := 0
	for _, chunk := range chunks {
		sb.WriteString(chunk.Text[prevEnd-chunk.StartOffset:])
		prevEnd = chunk.EndOffset
	}
	return sb.String()
}

func TestNew_ConfigValidation(t *testing.T) {
	testCases := []struct {
		name string
		cfg  *Config
	}{
		{"zero max chunk bytes", &Config{MaxChunkBytes: 0, Boundary: BoundaryChar}},
		{"negative max chunk bytes", &Config{MaxChunkBytes: -10, Boundary: BoundaryChar}},
		{"negative overlap", &Config{MaxChunkBytes: 100, OverlapBytes: -1, Boundary: BoundaryChar}},
		{"overlap not below max", &Config{MaxChunkBytes: 100, OverlapBytes: 100, Boundary: BoundaryChar}},
		{"unknown boundary policy", &Config{MaxChunkBytes: 100, OverlapBytes: 10}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestChunk_ShortDocumentSingleChunk(t *testing.T) {
	c := mustChunker(t, nil)

	doc := &core.Document{SourceID: "docs/a", RawText: "A short document."}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, doc.RawText, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(doc.RawText), chunks[0].EndOffset)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, core.ChunkID("docs/a", 0, len(doc.RawText)), chunks[0].ChunkID)
}

func TestChunk_InvalidDocument(t *testing.T) {
	c := mustChunker(t, nil)

	_, err := c.Chunk(&core.Document{SourceID: "docs/a", RawText: ""})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	_, err = c.Chunk(nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestChunk_SentenceBoundaries(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 5, OverlapBytes: 1, Boundary: BoundarySentence})

	doc := &core.Document{SourceID: "docs/a", RawText: "A. B. C."}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "A. B.", chunks[0].Text)
	assert.Equal(t, ". C.", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, 1, chunks[1].SequenceIndex)

	// Every chunk ends on a sentence boundary and respects the size bound.
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 5)
		assert.True(t, isSentenceEnd(chunk.Text[len(chunk.Text)-1]))
	}

	assert.Equal(t, doc.RawText, reconstruct(chunks), "overlap-deduplicated concatenation must be lossless")
}

func TestChunk_ParagraphBoundaries(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 20, OverlapBytes: 0, Boundary: BoundaryParagraph})

	doc := &core.Document{SourceID: "docs/a", RawText: "first para\n\nsecond para\n\nthird"}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "first para\n\n", chunks[0].Text)
	assert.Equal(t, doc.RawText, reconstruct(chunks))
}

func TestChunk_HardCutWhenNoBoundary(t *testing.T) {
	// A single token run longer than the limit forces a hard cut; text is
	// never dropped.
	c := mustChunker(t, &Config{MaxChunkBytes: 4, OverlapBytes: 1, Boundary: BoundarySentence})

	doc := &core.Document{SourceID: "docs/a", RawText: "abcdefghij"}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 4)
	}
	assert.Equal(t, doc.RawText, reconstruct(chunks))
}

func TestChunk_CharPolicy(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 4, OverlapBytes: 1, Boundary: BoundaryChar})

	doc := &core.Document{SourceID: "docs/a", RawText: "abcdefghij"}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "abcd", chunks[0].Text)
	assert.Equal(t, "defg", chunks[1].Text)
	assert.Equal(t, "ghij", chunks[2].Text)
	assert.Equal(t, doc.RawText, reconstruct(chunks))
}

func TestChunk_NeverSplitsRunes(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 5, OverlapBytes: 1, Boundary: BoundaryChar})

	doc := &core.Document{SourceID: "docs/a", RawText: "日本語のテキストです"}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.True(t, len(chunk.Text) > 0)
		assert.LessOrEqual(t, len(chunk.Text), 5, "limit is measured in bytes")
		assert.Equal(t, chunk.Text, string([]rune(chunk.Text)), "chunk must be valid UTF-8")
	}
	assert.Equal(t, doc.RawText, reconstruct(chunks))
}

func TestChunk_Idempotent(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 30, OverlapBytes: 5, Boundary: BoundarySentence})

	doc := &core.Document{
		SourceID: "docs/a",
		RawText:  "One sentence here. Another sentence there. And a third one. Plus a final trailing fragment",
	}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, i, first[i].SequenceIndex)
	}
}

func TestChunk_LargeDocumentInvariants(t *testing.T) {
	c := mustChunker(t, &Config{MaxChunkBytes: 100, OverlapBytes: 20, Boundary: BoundarySentence})

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	doc := &core.Document{SourceID: "docs/big", RawText: sb.String()}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		require.NoError(t, core.ValidateChunk(chunk))
		assert.LessOrEqual(t, len(chunk.Text), 100)
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, chunk.Text, doc.RawText[chunk.StartOffset:chunk.EndOffset])
		if i > 0 {
			assert.Less(t, chunks[i-1].StartOffset, chunk.StartOffset, "chunks must advance")
			assert.LessOrEqual(t, chunk.StartOffset, chunks[i-1].EndOffset, "no gap between consecutive chunks")
		}
	}
	assert.Equal(t, doc.RawText, reconstruct(chunks))
}

func TestParseBoundaryPolicy(t *testing.T) {
	for _, s := range []string{"char", "sentence", "paragraph"} {
		p, err := ParseBoundaryPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}

	_, err := ParseBoundaryPolicy("token")
	assert.Error(t, err)
}
