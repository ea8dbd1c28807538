// Package binary provides an exact flat index over bit-packed binary vectors,
// searched by Hamming distance.
//
// The index keeps all codes in a single contiguous byte slice (SOA layout) and
// maps external int64 document ids to dense positions. Scans are exact: every
// stored code is compared against the query with POPCNT-based Hamming
// distance, which stays fast well into the millions of vectors because each
// comparison touches only dimension/8 bytes.
package binary

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/binvecdb/persistence"
	"github.com/hupe1980/binvecdb/quantization"
)

// Candidate is a single search hit: an external document id and its Hamming
// distance from the query.
type Candidate struct {
	ID       int64
	Distance int
}

// Options contains configuration options for the binary index.
type Options struct {
	// Dimension is the fixed vector dimensionality in bits. It must be > 0
	// and a multiple of 8 (codes are byte-packed).
	Dimension int

	// Compression selects the snapshot code-section compression.
	Compression persistence.CompressionType
}

// DefaultOptions contains the default configuration options for the binary index.
var DefaultOptions = Options{
	Dimension:   1024,
	Compression: persistence.CompressionNone,
}

// Index is a flat binary index with external integer ids.
//
// All methods are safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	opts     Options
	codeSize int                    // bytes per code
	ids      []int64                // position -> external id
	codes    []byte                 // contiguous codes, len == len(ids)*codeSize
	pos      map[int64]int          // external id -> position
	members  *roaring64.Bitmap      // id membership set
}

// New creates a new binary index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 || opts.Dimension%8 != 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}

	return &Index{
		opts:     opts,
		codeSize: quantization.CodeSize(opts.Dimension),
		pos:      make(map[int64]int),
		members:  roaring64.New(),
	}, nil
}

// Dimension returns the vector dimensionality in bits.
func (ix *Index) Dimension() int {
	return ix.opts.Dimension
}

// CodeSize returns the packed code size in bytes.
func (ix *Index) CodeSize() int {
	return ix.codeSize
}

// Count returns the total number of indexed vectors.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Contains reports whether id is indexed.
func (ix *Index) Contains(id int64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.members.Contains(uint64(id))
}

// Add inserts the given codes, associating each id with its code.
//
// Ids must not already exist; an insert for an indexed id fails with
// ErrDuplicateID before any mutation. Callers that want replace semantics
// must Remove first.
func (ix *Index) Add(ids []int64, codes [][]byte) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ids) != len(codes) {
		return &ErrCodeSizeMismatch{Expected: len(ids), Actual: len(codes)}
	}

	// Validate the whole batch before touching any state.
	seen := make(map[int64]struct{}, len(ids))
	for i, id := range ids {
		if _, ok := ix.pos[id]; ok {
			return &ErrDuplicateID{ID: id}
		}
		if _, ok := seen[id]; ok {
			return &ErrDuplicateID{ID: id}
		}
		seen[id] = struct{}{}
		if len(codes[i]) != ix.codeSize {
			return &ErrCodeSizeMismatch{Expected: ix.codeSize, Actual: len(codes[i])}
		}
	}

	for i, id := range ids {
		ix.pos[id] = len(ix.ids)
		ix.ids = append(ix.ids, id)
		ix.codes = append(ix.codes, codes[i]...)
		ix.members.Add(uint64(id))
	}

	return nil
}

// Remove deletes the given ids.
//
// All ids must exist and be unique within the call; an absent id fails with
// ErrIDNotFound and a repeated id with ErrDuplicateID, both before any
// mutation. Deleted slots are compacted by moving the last code into the
// freed position, so the index never carries tombstones.
func (ix *Index) Remove(ids []int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := ix.pos[id]; !ok {
			return &ErrIDNotFound{ID: id}
		}
		if _, ok := seen[id]; ok {
			return &ErrDuplicateID{ID: id}
		}
		seen[id] = struct{}{}
	}

	for _, id := range ids {
		p := ix.pos[id]
		last := len(ix.ids) - 1

		if p != last {
			// Move the last entry into the freed slot.
			movedID := ix.ids[last]
			ix.ids[p] = movedID
			copy(ix.codes[p*ix.codeSize:(p+1)*ix.codeSize], ix.codes[last*ix.codeSize:])
			ix.pos[movedID] = p
		}

		ix.ids = ix.ids[:last]
		ix.codes = ix.codes[:last*ix.codeSize]
		delete(ix.pos, id)
		ix.members.Remove(uint64(id))
	}

	return nil
}

// Reconstruct returns a copy of the stored code for the given id.
func (ix *Index) Reconstruct(id int64) ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p, ok := ix.pos[id]
	if !ok {
		return nil, &ErrIDNotFound{ID: id}
	}

	code := make([]byte, ix.codeSize)
	copy(code, ix.codes[p*ix.codeSize:(p+1)*ix.codeSize])
	return code, nil
}

// Search returns up to k candidates ordered by ascending Hamming distance.
//
// Ties on equal distance are broken by ascending id to keep result order
// deterministic across runs.
func (ix *Index) Search(query []byte, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(query) != ix.codeSize {
		return nil, &ErrCodeSizeMismatch{Expected: ix.codeSize, Actual: len(query)}
	}

	if len(ix.ids) == 0 {
		return nil, nil
	}

	// Max-heap of the k best candidates seen so far: the root is the current
	// worst, so anything farther than the root can be skipped outright.
	cq := newCandidateQueue(k)
	for p, id := range ix.ids {
		dist := quantization.HammingDistance(query, ix.codes[p*ix.codeSize:(p+1)*ix.codeSize])
		cq.Offer(Candidate{ID: id, Distance: dist})
	}

	results := cq.Drain()
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}
