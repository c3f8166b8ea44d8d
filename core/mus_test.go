package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexEntryMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := IndexEntry{
		ChunkID:       ChunkID("docs/a", 0, 12),
		SourceID:      "docs/a",
		Text:          "hello, world",
		StartOffset:   0,
		EndOffset:     12,
		SequenceIndex: 3,
		Vector:        []float32{0.25, -1.5, 3.0},
		Metadata:      map[string]string{"original_url": "https://example.com/a"},
		InsertedAt:    now,
		UpdatedAt:     now.Add(time.Second),
	}

	bs := make([]byte, IndexEntryMUS.Size(entry))
	n := IndexEntryMUS.Marshal(entry, bs)
	assert.Equal(t, len(bs), n, "marshal must fill exactly the sized buffer")

	decoded, n, err := IndexEntryMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, entry, decoded)
}

func TestIndexEntryMUS_EmptyOptionalFields(t *testing.T) {
	entry := IndexEntry{
		ChunkID:  ChunkID("docs/b", 5, 9),
		SourceID: "docs/b",
		Text:     "stub",
	}

	bs := make([]byte, IndexEntryMUS.Size(entry))
	IndexEntryMUS.Marshal(entry, bs)

	decoded, _, err := IndexEntryMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Nil(t, decoded.Vector)
	assert.Nil(t, decoded.Metadata)
	assert.Equal(t, entry.ChunkID, decoded.ChunkID)
}

func TestIndexEntryMUS_Truncated(t *testing.T) {
	entry := IndexEntry{
		ChunkID:  ChunkID("docs/c", 0, 4),
		SourceID: "docs/c",
		Text:     "text",
		Vector:   []float32{1, 2, 3},
	}

	bs := make([]byte, IndexEntryMUS.Size(entry))
	IndexEntryMUS.Marshal(entry, bs)

	_, _, err := IndexEntryMUS.Unmarshal(bs[:len(bs)/2])
	assert.Error(t, err)
}

func TestIDMUS_RoundTrip(t *testing.T) {
	id := ChunkID("docs/a", 0, 100)

	bs := make([]byte, IDMUS.Size(id))
	IDMUS.Marshal(id, bs)

	decoded, _, err := IDMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}
