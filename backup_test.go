package binvecdb_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/binvecdb"
	"github.com/hupe1980/binvecdb/blobstore"
)

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	ids, docs := testArticles(5)

	db := openTestDB(t, filepath.Join(t.TempDir(), "db"))
	require.NoError(t, db.AddDocuments(ctx, ids, docs, extractBody))

	store := blobstore.NewMemoryStore()
	require.NoError(t, db.Backup(ctx, store, "backups/v1"))
	require.NoError(t, db.Close())

	names, err := store.List(ctx, "backups/v1/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"backups/v1/config.json",
		"backups/v1/documents.db",
		"backups/v1/index.bin",
	}, names)

	restored := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, binvecdb.Restore(ctx, store, "backups/v1", restored))

	reopened := openTestDB(t, restored)
	defer reopened.Close()

	assert.Equal(t, 5, reopened.Count())

	got, err := reopened.GetDocument(ctx, ids[3])
	require.NoError(t, err)
	assert.Equal(t, docs[3], got)

	result, err := reopened.Search(ctx, docs[1].Body, 1)
	require.NoError(t, err)
	require.True(t, result.Confident)
	assert.Equal(t, ids[1], result.Hits[0].DocID)
}

func TestRestoreRejectsNonEmptyFolder(t *testing.T) {
	ctx := context.Background()
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "stray"), []byte("x"), 0o644))

	err := binvecdb.Restore(ctx, blobstore.NewMemoryStore(), "backups/v1", folder)

	var initErr *binvecdb.InitializationError
	assert.ErrorAs(t, err, &initErr)
}

func TestRestoreRequiresConfig(t *testing.T) {
	ctx := context.Background()

	err := binvecdb.Restore(ctx, blobstore.NewMemoryStore(), "backups/v1",
		filepath.Join(t.TempDir(), "restored"))

	var initErr *binvecdb.InitializationError
	assert.ErrorAs(t, err, &initErr)
}
