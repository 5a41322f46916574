package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewBlobStore(dir, "/uploads/", 0)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "Report.PDF", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
}

func TestBlobStore_PutTooLarge(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir, "/uploads", 4)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "big.bin", strings.NewReader("0123456789"))
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlobStore_NameCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir, "/uploads", 0)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "../../etc/passwd.txt", strings.NewReader("x"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, filepath.Base(url)))
	assert.NoError(t, err)
}
