package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pnp-dms/docflow-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadDownloadDelete(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalStorage(base)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("documents and signatures land under their prefixes", func(t *testing.T) {
		docPath, size, err := store.Upload(ctx, storage.PrefixDocuments,
			"report.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
		require.NoError(t, err)
		assert.Equal(t, int64(len("%PDF-1.4 body")), size)
		assert.True(t, strings.HasPrefix(docPath, storage.PrefixDocuments+string(filepath.Separator)))
		assert.Equal(t, ".pdf", filepath.Ext(docPath))

		sigPath, _, err := store.Upload(ctx, storage.PrefixSignatures,
			"sig.png", "image/png", strings.NewReader("png bytes"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sigPath, storage.PrefixSignatures+string(filepath.Separator)))
	})

	t.Run("download returns the stored content", func(t *testing.T) {
		path, _, err := store.Upload(ctx, storage.PrefixDocuments,
			"memo.pdf", "application/pdf", strings.NewReader("memo content"))
		require.NoError(t, err)

		reader, err := store.Download(ctx, path)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "memo content", string(content))
	})

	t.Run("delete removes the file and is idempotent", func(t *testing.T) {
		path, _, err := store.Upload(ctx, storage.PrefixDocuments,
			"gone.pdf", "application/pdf", strings.NewReader("to delete"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, path))
		_, statErr := os.Stat(filepath.Join(base, path))
		assert.True(t, os.IsNotExist(statErr))

		assert.NoError(t, store.Delete(ctx, path))
	})

	t.Run("missing file reads as not found", func(t *testing.T) {
		_, err := store.Download(ctx, filepath.Join(storage.PrefixDocuments, "aa", "bb", "missing.pdf"))
		assert.Error(t, err)
	})
}
