package binvecdb_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/binvecdb"
	"github.com/hupe1980/binvecdb/embedding"
	"github.com/hupe1980/binvecdb/quantization"
	"github.com/hupe1980/binvecdb/testutil"
)

const testDimension = 64

type article struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func extractBody(doc article) (string, error) {
	return doc.Body, nil
}

func testArticles(n int) ([]int64, []article) {
	ids := make([]int64, n)
	docs := make([]article, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i + 1)
		docs[i] = article{
			Title: fmt.Sprintf("title %d", i+1),
			Body:  fmt.Sprintf("body text %d", i+1),
		}
	}
	return ids, docs
}

func openTestDB(t *testing.T, folder string) *binvecdb.DB[article] {
	t.Helper()

	db, err := binvecdb.Open[article](folder, testutil.NewMockEmbedder(testDimension),
		binvecdb.WithDimension(testDimension))
	require.NoError(t, err)

	return db
}

func TestOpenCreatesFolderAndConfig(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "db")

	db := openTestDB(t, folder)
	defer db.Close()

	assert.Equal(t, 0, db.Count())
	assert.FileExists(t, filepath.Join(folder, "config.json"))
}

func TestOpenFolderGuard(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "unrelated.txt"), []byte("data"), 0o644))

	_, err := binvecdb.Open[article](folder, testutil.NewMockEmbedder(testDimension))
	require.Error(t, err)

	var initErr *binvecdb.InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, folder, initErr.Folder)
}

func TestOpenModelMismatch(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "db")

	db := openTestDB(t, folder)
	require.NoError(t, db.Close())

	_, err := binvecdb.Open[article](folder, newStaticEmbedder(testDimension, nil),
		binvecdb.WithDimension(testDimension))
	require.Error(t, err)

	var initErr *binvecdb.InitializationError
	assert.ErrorAs(t, err, &initErr)
}

func TestOpenNilEmbedder(t *testing.T) {
	_, err := binvecdb.Open[article](filepath.Join(t.TempDir(), "db"), nil)

	var valErr *binvecdb.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestAddDocumentsValidation(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t, filepath.Join(t.TempDir(), "db"))
	defer db.Close()

	var valErr *binvecdb.ValidationError

	err := db.AddDocuments(ctx, []int64{1, 2}, []article{{Body: "only one"}}, extractBody)
	assert.ErrorAs(t, err, &valErr)

	err = db.AddDocuments(ctx, []int64{-1}, []article{{Body: "x"}}, extractBody)
	assert.ErrorAs(t, err, &valErr)

	err = db.AddDocuments(ctx, []int64{1, 1}, []article{{Body: "a"}, {Body: "b"}}, extractBody)
	assert.ErrorAs(t, err, &valErr)

	err = db.AddDocuments(ctx, []int64{1}, []article{{Body: "x"}}, nil)
	assert.ErrorAs(t, err, &valErr)

	err = db.AddDocuments(ctx, []int64{1}, []article{{Body: "x"}}, func(article) (string, error) {
		return "", fmt.Errorf("broken extractor")
	})
	assert.ErrorAs(t, err, &valErr)

	// validation is fail-fast, nothing was ingested
	assert.Equal(t, 0, db.Count())
}

func TestRoundTripPersistence(t *testing.T) {
	ctx := context.Background()
	folder := filepath.Join(t.TempDir(), "db")
	ids, docs := testArticles(5)

	db := openTestDB(t, folder)
	require.NoError(t, db.AddDocuments(ctx, ids, docs, extractBody))
	assert.Equal(t, 5, db.Count())
	require.NoError(t, db.Close())

	reopened := openTestDB(t, folder)
	defer reopened.Close()

	assert.Equal(t, 5, reopened.Count())

	for i, id := range ids {
		got, err := reopened.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, docs[i], got)
	}

	result, err := reopened.Search(ctx, docs[2].Body, 3)
	require.NoError(t, err)
	require.True(t, result.Confident)
	assert.Equal(t, ids[2], result.Hits[0].DocID)
}

func TestIdempotentReplace(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t, filepath.Join(t.TempDir(), "db"))
	defer db.Close()

	require.NoError(t, db.AddDocuments(ctx, []int64{1}, []article{{Title: "old", Body: "old body"}}, extractBody))
	require.NoError(t, db.AddDocuments(ctx, []int64{1}, []article{{Title: "new", Body: "new body"}}, extractBody))

	assert.Equal(t, 1, db.Count())

	got, err := db.GetDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)

	result, err := db.Search(ctx, "new body", 1)
	require.NoError(t, err)
	require.True(t, result.Confident)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, int64(1), result.Hits[0].DocID)
	assert.InDelta(t, 1.0, float64(result.Hits[0].CosineScore), 0.05)
}

func TestRemoveDocument(t *testing.T) {
	ctx := context.Background()
	ids, docs := testArticles(3)

	db := openTestDB(t, filepath.Join(t.TempDir(), "db"))
	defer db.Close()

	require.NoError(t, db.AddDocuments(ctx, ids, docs, extractBody))

	require.NoError(t, db.RemoveDocument(ctx, 2))
	assert.Equal(t, 2, db.Count())

	exists, err := db.Contains(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = db.GetDocument(ctx, 2)
	assert.ErrorIs(t, err, binvecdb.ErrNotFound)

	// the removed document is no longer reachable via search
	result, err := db.Search(ctx, docs[1].Body, 3)
	require.NoError(t, err)
	for _, hit := range result.Hits {
		assert.NotEqual(t, int64(2), hit.DocID)
	}

	assert.ErrorIs(t, db.RemoveDocument(ctx, 2), binvecdb.ErrNotFound)
	assert.ErrorIs(t, db.RemoveDocument(ctx, 42), binvecdb.ErrNotFound)
}

func TestAddEmbeddings(t *testing.T) {
	ctx := context.Background()
	embedder := testutil.NewMockEmbedder(testDimension)

	db, err := binvecdb.Open[article](filepath.Join(t.TempDir(), "db"), embedder,
		binvecdb.WithDimension(testDimension))
	require.NoError(t, err)
	defer db.Close()

	ids, docs := testArticles(3)
	vecs, err := embedder.Embed(ctx, []string{docs[0].Body, docs[1].Body, docs[2].Body},
		embedding.InputTypeDocument, []embedding.Format{embedding.FormatBinary, embedding.FormatInt8})
	require.NoError(t, err)

	require.NoError(t, db.AddEmbeddings(ctx, ids, docs, vecs.Binary, vecs.Int8))
	assert.Equal(t, 3, db.Count())

	query := embedder.Vector(docs[1].Body)
	result, err := db.SearchEmbedding(ctx, query, quantization.Pack(query), 1)
	require.NoError(t, err)
	require.True(t, result.Confident)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, ids[1], result.Hits[0].DocID)

	// duplicate ids are rejected, not replaced
	var valErr *binvecdb.ValidationError
	err = db.AddEmbeddings(ctx, ids[:1], docs[:1], vecs.Binary[:1], vecs.Int8[:1])
	assert.ErrorAs(t, err, &valErr)

	// mismatched slice lengths fail fast
	err = db.AddEmbeddings(ctx, []int64{9}, docs[:1], vecs.Binary, vecs.Int8[:1])
	assert.ErrorAs(t, err, &valErr)
}

func TestSaveFlagDeferred(t *testing.T) {
	ctx := context.Background()
	folder := filepath.Join(t.TempDir(), "db")
	ids, docs := testArticles(2)

	db := openTestDB(t, folder)
	require.NoError(t, db.AddDocuments(ctx, ids, docs, extractBody, func(o *binvecdb.AddOptions) {
		o.SaveIndex = false
	}))

	assert.NoFileExists(t, filepath.Join(folder, "index.bin"))

	require.NoError(t, db.Save(ctx))
	assert.FileExists(t, filepath.Join(folder, "index.bin"))
	require.NoError(t, db.Close())

	reopened := openTestDB(t, folder)
	defer reopened.Close()
	assert.Equal(t, 2, reopened.Count())
}

func TestClosedDatabase(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t, filepath.Join(t.TempDir(), "db"))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close()) // idempotent

	ids, docs := testArticles(1)
	assert.ErrorIs(t, db.AddDocuments(ctx, ids, docs, extractBody), binvecdb.ErrClosed)
	assert.ErrorIs(t, db.RemoveDocument(ctx, 1), binvecdb.ErrClosed)
	assert.ErrorIs(t, db.Save(ctx), binvecdb.ErrClosed)

	_, err := db.Search(ctx, "x", 1)
	assert.ErrorIs(t, err, binvecdb.ErrClosed)

	_, err = db.GetDocument(ctx, 1)
	assert.ErrorIs(t, err, binvecdb.ErrClosed)
}

func TestMetricsCollected(t *testing.T) {
	ctx := context.Background()
	metrics := &binvecdb.BasicMetricsCollector{}

	db, err := binvecdb.Open[article](filepath.Join(t.TempDir(), "db"),
		testutil.NewMockEmbedder(testDimension),
		binvecdb.WithDimension(testDimension),
		binvecdb.WithMetricsCollector(metrics),
	)
	require.NoError(t, err)
	defer db.Close()

	ids, docs := testArticles(2)
	require.NoError(t, db.AddDocuments(ctx, ids, docs, extractBody))

	_, err = db.Search(ctx, docs[0].Body, 1)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.IngestCount)
	assert.Equal(t, int64(2), stats.IngestDocs)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.GreaterOrEqual(t, stats.SaveCount, int64(1))
}
