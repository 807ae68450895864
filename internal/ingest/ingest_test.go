package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return p
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("supported file", func(t *testing.T) {
		p := writeFile(t, dir, "Certificato.PDF", 10)
		doc, err := Open(p, 0)
		require.NoError(t, err)
		assert.Equal(t, "pdf", doc.Ext)
		assert.Equal(t, constants.PDF, doc.Format)
		assert.Equal(t, int64(10), doc.Size)
		assert.Equal(t, "Certificato.PDF", doc.Name)
		assert.Len(t, doc.ContentHash, 64)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "nope.pdf"), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrUnreadableFile))
		assert.True(t, errors.Is(err, common.ErrFile))
	})

	t.Run("too large is checked before extension", func(t *testing.T) {
		p := writeFile(t, dir, "big.docx", 2048)
		_, err := Open(p, 1024)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrDocumentTooLarge))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		p := writeFile(t, dir, "notes.docx", 10)
		_, err := Open(p, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrUnsupportedFileType))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Open(dir, 0)
		assert.True(t, errors.Is(err, common.ErrUnreadableFile))
	})
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", 1)
	writeFile(t, dir, "a.pdf", 1)
	writeFile(t, dir, "sub/c.png", 1)
	writeFile(t, dir, "skip.docx", 1)
	writeFile(t, dir, ".hidden/d.pdf", 1)
	writeFile(t, dir, ".e.pdf", 1)

	paths, stats, err := Discover(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "sub", "c.png"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Skipped)

	all, _, err := Discover(dir, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, _, err = Discover(" ", true)
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.False(t, IsHidden("."))
}
