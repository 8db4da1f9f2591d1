package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vedaquery/internal/domain"
)

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bhagavad_gita.txt"), []byte("2.47 Text."), 0o644))

	src := NewFileSource(dir)
	text, meta, err := src.Load(context.Background(), "bhagavad_gita")
	require.NoError(t, err)
	assert.Equal(t, "2.47 Text.", text)
	assert.Equal(t, "Bhagavad Gita", meta["title"])
}

func TestLoadNotFound(t *testing.T) {
	src := NewFileSource(t.TempDir())
	_, _, err := src.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"), []byte{0xff, 0xfe, 0x00, 0x80}, 0o644))

	src := NewFileSource(dir)
	_, _, err := src.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrDecoding)
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	src := NewFileSource(t.TempDir())
	_, _, err := src.Load(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gita.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upanishads.md"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("c"), 0o644))

	src := NewFileSource(dir)
	ids, err := src.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gita", "upanishads"}, ids)
}
