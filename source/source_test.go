package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/corpus/core"
)

func TestSliceSource(t *testing.T) {
	docs := []*core.Document{
		{SourceID: "a", RawText: "first"},
		{SourceID: "b", RawText: "second"},
	}
	src := NewSliceSource(docs...)
	defer src.Close()

	ctx := context.Background()

	got, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.SourceID)

	got, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", got.SourceID)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSliceSource_CancelledContext(t *testing.T) {
	src := NewSliceSource(&core.Document{SourceID: "a", RawText: "text"})
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJSONFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.json")
	content := `[
		{"id": "doc-1", "content": "first document", "metadata": {"lang": "en"}},
		{"id": "doc-2", "content": "   "},
		{"id": "", "content": "no id"},
		{"id": "doc-3", "content": "third document"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src, err := NewJSONFileSource(path, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 2, src.Len(), "blank content and missing id entries are skipped")

	ctx := context.Background()

	doc, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.SourceID)
	assert.Equal(t, "first document", doc.RawText)
	assert.Equal(t, map[string]string{"lang": "en"}, doc.Metadata)

	doc, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-3", doc.SourceID)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONFileSource_MissingFile(t *testing.T) {
	_, err := NewJSONFileSource(filepath.Join(t.TempDir(), "absent.json"), nil)
	assert.Error(t, err)
}

func TestJSONFileSource_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0644))

	_, err := NewJSONFileSource(path, nil)
	assert.Error(t, err)
}
