package artifact

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.cdf"), []byte("data"), 0o644))

	store, err := NewLocalStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	link, err := store.Upload(context.Background(), "processed-files-abc123", dir, []string{"out.cdf"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "file://"))

	path := strings.TrimPrefix(link, "file://")
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	require.Equal(t, "out.cdf", zr.File[0].Name)
}

func TestLocalStoreRejectsEmptyBundle(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Upload(context.Background(), "empty", t.TempDir(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestLocalStoreRejectsBadName(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Upload(context.Background(), "../sneaky", t.TempDir(), []string{"a"})
	require.Error(t, err)
}

func TestNewLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	require.Error(t, err)
}
