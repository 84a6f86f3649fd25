package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_MissingFile(t *testing.T) {
	src := NewSource(t.TempDir(), 0)

	_, err := src.Resolve("never_uploaded.pdf")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestResolve_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("once upon a time"), 0644))

	src := NewSource(dir, 0)
	got, err := src.Resolve("book.txt")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolve_StripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt"), []byte("x"), 0644))

	src := NewSource(dir, 0)
	got, err := src.Resolve("../../etc/book.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book.txt"), got)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "the_lost_symbol", DocumentID("the_lost_symbol.pdf"))
	assert.Equal(t, "Halo - The Fall Of Reach", DocumentID("Halo - The Fall Of Reach.pdf"))
	assert.Equal(t, "notes", DocumentID("/some/dir/notes.txt"))
}

func TestExtractText_Plain(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.txt"), []byte("once upon a time"), 0644))

	src := NewSource(dir, 0)
	text, err := src.ExtractText(filepath.Join(dir, "book.txt"))
	require.NoError(t, err)
	assert.Equal(t, "once upon a time", text)
}

func TestExtractText_HTMLStripsChrome(t *testing.T) {
	dir := t.TempDir()
	html := `<html><head><style>b{}</style></head><body>
		<nav>menu</nav>
		<p>Chapter one begins here.</p>
		<script>alert(1)</script>
		<footer>copyright</footer>
	</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.html"), []byte(html), 0644))

	src := NewSource(dir, 0)
	text, err := src.ExtractText(filepath.Join(dir, "book.html"))
	require.NoError(t, err)

	assert.Contains(t, text, "Chapter one begins here.")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "copyright")
}
