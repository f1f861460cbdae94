package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/georgegoldman/mothrbox-walrus-layer/internal/blobstore"
)

func newLocalStore(t *testing.T) *blobstore.LocalCAS {
	t.Helper()
	store, err := blobstore.NewLocalCAS(filepath.Join(t.TempDir(), "blobs"), blobstore.DefaultPricing())
	require.NoError(t, err)
	return store
}

func TestUploadThenDownloadThroughFs(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := newLocalStore(t)
	require.NoError(t, afero.WriteFile(fs, "/in/report.pdf.enc", []byte("sealed bytes"), 0o644))

	up, err := uploadFile(ctx, fs, store, "/in/report.pdf.enc", blobstore.UploadOptions{Epochs: 5, Deletable: true})
	require.NoError(t, err)
	require.NotEmpty(t, up.BlobID)
	require.Empty(t, up.Error)
	require.Equal(t, int64(12), up.Size)
	require.Equal(t, 5, up.Epochs)

	down, err := downloadFile(ctx, fs, store, up.BlobID, "/out/nested/dir/report.pdf.enc")
	require.NoError(t, err)
	require.True(t, down.Success)
	require.Equal(t, int64(12), down.Size)

	got, err := afero.ReadFile(fs, "/out/nested/dir/report.pdf.enc")
	require.NoError(t, err)
	require.Equal(t, []byte("sealed bytes"), got)
}

func TestUploadFileErrors(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := newLocalStore(t)
	require.NoError(t, fs.MkdirAll("/dir", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/empty", nil, 0o644))

	for _, path := range []string{"/missing", "/dir", "/empty"} {
		res, err := uploadFile(ctx, fs, store, path, blobstore.UploadOptions{Epochs: 1})
		require.Error(t, err, path)
		require.Empty(t, res.BlobID, path)
		require.Equal(t, err.Error(), res.Error, path)
	}
}

func TestDownloadFileUnknownBlob(t *testing.T) {
	fs := afero.NewMemMapFs()
	res, err := downloadFile(context.Background(), fs, newLocalStore(t), "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "/out.bin")
	require.ErrorIs(t, err, blobstore.ErrBlobNotFound)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)

	exists, err := afero.Exists(fs, "/out.bin")
	require.NoError(t, err)
	require.False(t, exists)
}
