package binvecdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/binvecdb/docstore"
	"github.com/hupe1980/binvecdb/embedding"
	binindex "github.com/hupe1980/binvecdb/index/binary"
)

// ExtractFunc extracts the text to embed from a document payload.
type ExtractFunc[T any] func(doc T) (string, error)

// DB is a vector database over binary embeddings with cascading rescoring.
// It owns a flat binary index and a document store sharing a common folder,
// and depends on an injected Embedder for all vectorization.
//
// All methods are safe for concurrent use. Writes are exclusive; searches
// run concurrently with each other.
type DB[T any] struct {
	folder   string
	embedder embedding.Embedder
	config   *Config
	opts     options

	mu     sync.RWMutex
	index  *binindex.Index
	store  *docstore.Store
	closed bool
}

// Open creates a new database in folder or opens an existing one.
//
// A missing or empty folder is initialized: config.json is written with the
// embedder's model identifier and both stores start empty. An existing
// folder must carry a matching config.json; a non-empty folder without one
// is rejected with an InitializationError. The index snapshot (index.bin)
// is loaded if present, otherwise the index starts empty.
func Open[T any](folder string, embedder embedding.Embedder, optFns ...Option) (*DB[T], error) {
	if embedder == nil {
		return nil, &ValidationError{Reason: "embedder must not be nil"}
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.batchSize <= 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("batch size must be positive, got %d", opts.batchSize)}
	}
	if opts.embedConcurrency <= 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("embed concurrency must be positive, got %d", opts.embedConcurrency)}
	}

	cfg, err := loadOrCreateConfig(folder, embedder.Model(), opts.codec)
	if err != nil {
		return nil, err
	}

	indexOpts := func(o *binindex.Options) {
		o.Dimension = opts.dimension
		o.Compression = opts.compression
	}

	var index *binindex.Index

	indexPath := filepath.Join(folder, indexFileName)
	if _, err := os.Stat(indexPath); err == nil {
		index, err = binindex.LoadFromFile(indexPath, indexOpts)
		if err != nil {
			return nil, &InitializationError{Folder: folder, Reason: "cannot load index snapshot", cause: err}
		}
	} else {
		index, err = binindex.New(indexOpts)
		if err != nil {
			return nil, translateError(err)
		}
	}

	store, err := docstore.Open(filepath.Join(folder, docsDirName))
	if err != nil {
		return nil, &InitializationError{Folder: folder, Reason: "cannot open document store", cause: err}
	}

	db := &DB[T]{
		folder:   folder,
		embedder: embedder,
		config:   cfg,
		opts:     opts,
		index:    index,
		store:    store,
	}

	opts.logger.Info("database opened",
		"folder", folder,
		"model", cfg.Model,
		"dimension", opts.dimension,
		"count", index.Count(),
	)

	return db, nil
}

// AddDocuments embeds and ingests a batch of documents.
//
// ids and docs are parallel slices; every id must be non-negative and unique
// within the call. Input is validated in full before any mutation. An id
// already present in the database is replaced: the old entry is removed from
// both stores before the new one is inserted.
//
// Texts are batched and embedded concurrently, then applied to the index and
// store in input order. Unless disabled via AddOptions, the index snapshot
// is saved once at the end; the document store is durable immediately, so a
// crash before the save can leave store entries without index entries.
func (db *DB[T]) AddDocuments(ctx context.Context, ids []int64, docs []T, extract ExtractFunc[T], optFns ...func(o *AddOptions)) error {
	start := time.Now()

	addOpts := AddOptions{SaveIndex: true}
	for _, fn := range optFns {
		fn(&addOpts)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.addDocuments(ctx, ids, docs, extract, addOpts)

	db.opts.metricsCollector.RecordIngest(len(ids), time.Since(start), err)
	db.opts.logger.LogIngest(ctx, len(ids), db.numBatches(len(ids)), time.Since(start), err)

	return err
}

func (db *DB[T]) numBatches(n int) int {
	return (n + db.opts.batchSize - 1) / db.opts.batchSize
}

func (db *DB[T]) addDocuments(ctx context.Context, ids []int64, docs []T, extract ExtractFunc[T], addOpts AddOptions) error {
	if db.closed {
		return ErrClosed
	}
	if extract == nil {
		return &ValidationError{Reason: "extract function must not be nil"}
	}
	if len(ids) != len(docs) {
		return &ValidationError{Reason: fmt.Sprintf("got %d ids for %d documents", len(ids), len(docs))}
	}
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id < 0 {
			return &ValidationError{Reason: fmt.Sprintf("negative id %d", id)}
		}
		if _, ok := seen[id]; ok {
			return &ValidationError{Reason: fmt.Sprintf("duplicate id %d in batch", id)}
		}
		seen[id] = struct{}{}
	}

	texts := make([]string, len(docs))
	payloads := make([][]byte, len(docs))
	for i, doc := range docs {
		text, err := extract(doc)
		if err != nil {
			return &ValidationError{Reason: fmt.Sprintf("text extraction failed for id %d", ids[i]), cause: err}
		}
		texts[i] = text

		payload, err := db.opts.codec.Marshal(doc)
		if err != nil {
			return &ValidationError{Reason: fmt.Sprintf("cannot encode payload for id %d", ids[i]), cause: err}
		}
		payloads[i] = payload
	}

	// Replace semantics: an existing id is fully removed from both stores
	// before reinsertion.
	if err := db.removeExisting(ctx, ids); err != nil {
		return err
	}

	batches := db.numBatches(len(ids))
	vectors := make([]*embedding.Vectors, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(db.opts.embedConcurrency)

	for bi := 0; bi < batches; bi++ {
		bi := bi
		lo := bi * db.opts.batchSize
		hi := min(lo+db.opts.batchSize, len(ids))

		g.Go(func() error {
			vecs, err := db.embedder.Embed(gctx, texts[lo:hi], embedding.InputTypeDocument,
				[]embedding.Format{embedding.FormatBinary, embedding.FormatInt8})
			if err != nil {
				return fmt.Errorf("failed to embed batch %d: %w", bi, err)
			}
			if len(vecs.Binary) != hi-lo || len(vecs.Int8) != hi-lo {
				return &ValidationError{Reason: fmt.Sprintf(
					"embedder returned %d binary / %d int8 embeddings for %d texts",
					len(vecs.Binary), len(vecs.Int8), hi-lo)}
			}
			vectors[bi] = vecs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Apply in input order, index before store within each batch.
	for bi := 0; bi < batches; bi++ {
		lo := bi * db.opts.batchSize
		hi := min(lo+db.opts.batchSize, len(ids))
		vecs := vectors[bi]

		if err := db.index.Add(ids[lo:hi], vecs.Binary); err != nil {
			return translateError(err)
		}
		for j := lo; j < hi; j++ {
			rec := docstore.Record{Payload: payloads[j], EmbInt8: vecs.Int8[j-lo]}
			if err := db.store.Put(ctx, ids[j], rec); err != nil {
				return translateError(err)
			}
		}
	}

	if addOpts.SaveIndex {
		return db.save(ctx)
	}
	return nil
}

// AddEmbeddings ingests documents with caller-supplied embeddings, bypassing
// the Embedder. ids, docs, codes and embInt8 are parallel slices; codes hold
// bit-packed binary embeddings. Unlike AddDocuments, existing ids are not
// replaced: a duplicate id fails validation.
func (db *DB[T]) AddEmbeddings(ctx context.Context, ids []int64, docs []T, codes [][]byte, embInt8 [][]int8, optFns ...func(o *AddOptions)) error {
	addOpts := AddOptions{SaveIndex: true}
	for _, fn := range optFns {
		fn(&addOpts)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if len(ids) != len(docs) || len(ids) != len(codes) || len(ids) != len(embInt8) {
		return &ValidationError{Reason: fmt.Sprintf(
			"got %d ids, %d documents, %d binary embeddings, %d int8 embeddings",
			len(ids), len(docs), len(codes), len(embInt8))}
	}
	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		if id < 0 {
			return &ValidationError{Reason: fmt.Sprintf("negative id %d", id)}
		}
	}

	payloads := make([][]byte, len(docs))
	for i, doc := range docs {
		payload, err := db.opts.codec.Marshal(doc)
		if err != nil {
			return &ValidationError{Reason: fmt.Sprintf("cannot encode payload for id %d", ids[i]), cause: err}
		}
		payloads[i] = payload
	}

	if err := db.index.Add(ids, codes); err != nil {
		return translateError(err)
	}
	for i, id := range ids {
		rec := docstore.Record{Payload: payloads[i], EmbInt8: embInt8[i]}
		if err := db.store.Put(ctx, id, rec); err != nil {
			return translateError(err)
		}
	}

	if addOpts.SaveIndex {
		return db.save(ctx)
	}
	return nil
}

// removeExisting removes every id that is already present from both stores.
// Index misses are tolerated: a crash between a store write and an index
// save can leave the stores out of sync, and replace must still succeed.
func (db *DB[T]) removeExisting(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		exists, err := db.store.Contains(ctx, id)
		if err != nil {
			return translateError(err)
		}
		if !exists {
			continue
		}

		if db.index.Contains(id) {
			if err := db.index.Remove([]int64{id}); err != nil {
				return translateError(err)
			}
		}
		if err := db.store.Delete(ctx, id); err != nil {
			return translateError(err)
		}
	}
	return nil
}

// RemoveDocument removes a document from both stores. Returns ErrNotFound
// if the id is absent. Unless disabled via RemoveOptions, the index
// snapshot is saved afterwards.
func (db *DB[T]) RemoveDocument(ctx context.Context, id int64, optFns ...func(o *RemoveOptions)) error {
	removeOpts := RemoveOptions{SaveIndex: true}
	for _, fn := range optFns {
		fn(&removeOpts)
	}

	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.removeDocument(ctx, id, removeOpts)

	db.opts.metricsCollector.RecordRemove(time.Since(start), err)
	db.opts.logger.LogRemove(ctx, id, err)

	return err
}

func (db *DB[T]) removeDocument(ctx context.Context, id int64, removeOpts RemoveOptions) error {
	if db.closed {
		return ErrClosed
	}

	exists, err := db.store.Contains(ctx, id)
	if err != nil {
		return translateError(err)
	}
	if !exists {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	if db.index.Contains(id) {
		if err := db.index.Remove([]int64{id}); err != nil {
			return translateError(err)
		}
	}
	if err := db.store.Delete(ctx, id); err != nil {
		return translateError(err)
	}

	if removeOpts.SaveIndex {
		return db.save(ctx)
	}
	return nil
}

// GetDocument returns the payload stored under id.
func (db *DB[T]) GetDocument(ctx context.Context, id int64) (T, error) {
	var doc T

	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return doc, ErrClosed
	}

	rec, err := db.store.Get(ctx, id)
	if err != nil {
		return doc, translateError(err)
	}
	if err := db.opts.codec.Unmarshal(rec.Payload, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode payload for id %d: %w", id, err)
	}
	return doc, nil
}

// Contains reports whether id is present in the database.
func (db *DB[T]) Contains(ctx context.Context, id int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.closed {
		return false, ErrClosed
	}
	exists, err := db.store.Contains(ctx, id)
	return exists, translateError(err)
}

// Count returns the number of indexed documents.
func (db *DB[T]) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.index.Count()
}

// Save persists the index snapshot to disk.
//
// The document store is durable on every write; the index is durable only
// up to the last Save. A crash between an add and the next Save loses the
// add from the index while keeping the store entry, and the gap is not
// repaired automatically on reopen.
func (db *DB[T]) Save(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	return db.save(ctx)
}

func (db *DB[T]) save(ctx context.Context) error {
	start := time.Now()
	err := db.index.SaveToFile(filepath.Join(db.folder, indexFileName))

	db.opts.metricsCollector.RecordSave(time.Since(start), err)
	db.opts.logger.LogSave(ctx, db.index.Count(), time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to save index snapshot: %w", err)
	}
	return nil
}

// Close releases the database resources. The index is not saved implicitly;
// call Save first if unsaved additions must survive.
func (db *DB[T]) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	if err := db.store.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
