package binary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/binvecdb/persistence"
)

func newTestIndex(t *testing.T, dimension int) *Index {
	t.Helper()
	ix, err := New(func(o *Options) {
		o.Dimension = dimension
	})
	require.NoError(t, err)
	return ix
}

func TestNew_InvalidDimension(t *testing.T) {
	for _, dim := range []int{0, -8, 7, 100} {
		_, err := New(func(o *Options) {
			o.Dimension = dim
		})
		var invalidDim *ErrInvalidDimension
		assert.ErrorAs(t, err, &invalidDim, "dimension %d", dim)
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	ix := newTestIndex(t, 16)

	err := ix.Add(
		[]int64{10, 20, 30},
		[][]byte{
			{0xFF, 0xFF}, // distance 0 to query
			{0xFF, 0x0F}, // distance 4
			{0x00, 0x00}, // distance 16
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Count())

	hits, err := ix.Search([]byte{0xFF, 0xFF}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, Candidate{ID: 10, Distance: 0}, hits[0])
	assert.Equal(t, Candidate{ID: 20, Distance: 4}, hits[1])
}

func TestIndex_SearchKLargerThanCount(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{1, 2}, [][]byte{{0x00}, {0xFF}}))

	hits, err := ix.Search([]byte{0x00}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndex_SearchTieBreakByID(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{5, 3, 9}, [][]byte{{0x01}, {0x01}, {0x01}}))

	hits, err := ix.Search([]byte{0x01}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int64{3, 5, 9}, []int64{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestIndex_SearchValidation(t *testing.T) {
	ix := newTestIndex(t, 16)

	_, err := ix.Search([]byte{0x00, 0x00}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = ix.Search([]byte{0x00}, 3)
	var mismatch *ErrCodeSizeMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestIndex_SearchEmpty(t *testing.T) {
	ix := newTestIndex(t, 8)
	hits, err := ix.Search([]byte{0x00}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_AddDuplicate(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{1}, [][]byte{{0xAA}}))

	var dup *ErrDuplicateID

	err := ix.Add([]int64{1}, [][]byte{{0xBB}})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(1), dup.ID)

	// Duplicates within a single batch are rejected too, before any insert.
	err = ix.Add([]int64{2, 2}, [][]byte{{0x00}, {0x00}})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, ix.Count())
	assert.False(t, ix.Contains(2))
}

func TestIndex_AddWrongCodeSize(t *testing.T) {
	ix := newTestIndex(t, 16)

	var mismatch *ErrCodeSizeMismatch
	err := ix.Add([]int64{1}, [][]byte{{0xAA}})
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 0, ix.Count())
}

func TestIndex_Remove(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{1, 2, 3}, [][]byte{{0x01}, {0x02}, {0x03}}))

	require.NoError(t, ix.Remove([]int64{2}))
	assert.Equal(t, 2, ix.Count())
	assert.False(t, ix.Contains(2))

	// Compaction must keep the remaining codes reachable.
	code, err := ix.Reconstruct(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, code)

	_, err = ix.Reconstruct(2)
	var notFound *ErrIDNotFound
	assert.ErrorAs(t, err, &notFound)

	err = ix.Remove([]int64{2})
	assert.ErrorAs(t, err, &notFound)
}

func TestIndex_RemoveDuplicateInBatch(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{100, 200, 300}, [][]byte{{0x01}, {0x02}, {0x03}}))

	// A repeated id must be rejected before any removal happens.
	var dup *ErrDuplicateID
	err := ix.Remove([]int64{300, 300})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(300), dup.ID)

	assert.Equal(t, 3, ix.Count())
	assert.True(t, ix.Contains(100))
	assert.True(t, ix.Contains(300))

	code, err := ix.Reconstruct(100)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, code)
}

func TestIndex_RemoveThenSearchExcludes(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{1, 2}, [][]byte{{0xFF}, {0x00}}))
	require.NoError(t, ix.Remove([]int64{1}))

	hits, err := ix.Search([]byte{0xFF}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ID)
}

func TestIndex_Reconstruct_ReturnsCopy(t *testing.T) {
	ix := newTestIndex(t, 8)
	require.NoError(t, ix.Add([]int64{1}, [][]byte{{0xAA}}))

	code, err := ix.Reconstruct(1)
	require.NoError(t, err)
	code[0] = 0x00

	again, err := ix.Reconstruct(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, again)
}

func TestIndex_SaveLoad(t *testing.T) {
	for _, compression := range []persistence.CompressionType{
		persistence.CompressionNone,
		persistence.CompressionLZ4,
		persistence.CompressionZSTD,
	} {
		ix, err := New(func(o *Options) {
			o.Dimension = 64
			o.Compression = compression
		})
		require.NoError(t, err)

		ids := make([]int64, 100)
		codes := make([][]byte, 100)
		for i := range ids {
			ids[i] = int64(i * 7)
			code := make([]byte, 8)
			for j := range code {
				code[j] = byte(i + j)
			}
			codes[i] = code
		}
		require.NoError(t, ix.Add(ids, codes))
		require.NoError(t, ix.Remove([]int64{7, 70}))

		filename := filepath.Join(t.TempDir(), "index.bin")
		require.NoError(t, ix.SaveToFile(filename))

		loaded, err := LoadFromFile(filename, func(o *Options) {
			o.Dimension = 64
			o.Compression = compression
		})
		require.NoError(t, err)

		assert.Equal(t, ix.Count(), loaded.Count())
		for _, id := range ids {
			if id == 7 || id == 70 {
				assert.False(t, loaded.Contains(id))
				continue
			}
			want, err := ix.Reconstruct(id)
			require.NoError(t, err)
			got, err := loaded.Reconstruct(id)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		// Search behaves identically after reload.
		query := codes[42]
		wantHits, err := ix.Search(query, 5)
		require.NoError(t, err)
		gotHits, err := loaded.Search(query, 5)
		require.NoError(t, err)
		assert.Equal(t, wantHits, gotHits)
	}
}

func TestIndex_LoadDetectsCorruption(t *testing.T) {
	ix := newTestIndex(t, 64)
	code := make([]byte, 8)
	for i := range code {
		code[i] = byte(i)
	}
	require.NoError(t, ix.Add([]int64{1}, [][]byte{code}))

	filename := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, ix.SaveToFile(filename))

	flipByteInFile(t, filename, 40)

	_, err := LoadFromFile(filename, func(o *Options) {
		o.Dimension = 64
	})
	require.Error(t, err)
}

func flipByteInFile(t *testing.T, filename string, offset int64) {
	t.Helper()

	f, err := os.OpenFile(filename, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	var b [1]byte
	_, err = f.ReadAt(b[:], offset)
	require.NoError(t, err)
	b[0] ^= 0xFF
	_, err = f.WriteAt(b[:], offset)
	require.NoError(t, err)
}

func TestIndex_LoadCodeSizeMismatch(t *testing.T) {
	ix := newTestIndex(t, 64)
	filename := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, ix.SaveToFile(filename))

	_, err := LoadFromFile(filename, func(o *Options) {
		o.Dimension = 128
	})
	var mismatch *ErrCodeSizeMismatch
	assert.ErrorAs(t, err, &mismatch)
}
