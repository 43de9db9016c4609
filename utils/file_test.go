package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileNameWithoutExt(t *testing.T) {
	assert.Equal(t, "report", GetFileNameWithoutExt("/tmp/docs/report.pdf"))
	assert.Equal(t, "archive.tar", GetFileNameWithoutExt("archive.tar.gz"))
	assert.Equal(t, "README", GetFileNameWithoutExt("README"))
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("a.pdf"))
	assert.True(t, IsPDF("A.PDF"))
	assert.False(t, IsPDF("a.pdf.txt"))
	assert.False(t, IsPDF("pdf"))
}

func TestListPDFFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.pdf", "a.pdf", "notes.txt", "nested/c.PDF"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := ListPDFFiles(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "nested", "c.PDF"),
	}, files)

	_, err = ListPDFFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
