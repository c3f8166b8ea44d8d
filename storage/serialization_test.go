package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
)

func TestMarshalUnmarshalID(t *testing.T) {
	id := core.ChunkID("doc-1", 0, 100)
	data := MarshalID(id)

	got, err := UnmarshalID(data)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestUnmarshalID_Truncated(t *testing.T) {
	_, err := UnmarshalID([]byte{0x20})
	assert.Error(t, err)
}

func TestMarshalUnmarshalIndexEntry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &core.IndexEntry{
		ChunkID:       core.ChunkID("doc-1", 0, 100),
		SourceID:      "doc-1",
		Text:          "some chunk text",
		StartOffset:   0,
		EndOffset:     100,
		SequenceIndex: 0,
		Vector:        []float32{0.1, 0.2, 0.3},
		Metadata:      map[string]string{"lang": "en"},
		InsertedAt:    now,
		UpdatedAt:     now,
	}

	data := MarshalIndexEntry(entry)
	got, err := UnmarshalIndexEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestUnmarshalIndexEntry_Corrupt(t *testing.T) {
	_, err := UnmarshalIndexEntry([]byte{0xff, 0xff})
	assert.Error(t, err)
}
