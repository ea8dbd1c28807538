package binvecdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/hupe1980/binvecdb/blobstore"
	"github.com/hupe1980/binvecdb/persistence"
)

const backupDocsFileName = "documents.db"

// Backup saves the index and uploads a consistent snapshot of the database
// (config.json, index.bin and a point-in-time copy of the document store)
// to the blob store under prefix. The database stays exclusively locked for
// the duration, so the three artifacts describe the same state.
func (db *DB[T]) Backup(ctx context.Context, store blobstore.Store, prefix string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	if err := db.save(ctx); err != nil {
		return err
	}

	for _, name := range []string{configFileName, indexFileName} {
		if err := uploadFile(ctx, store, path.Join(prefix, name), filepath.Join(db.folder, name)); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "binvecdb-backup-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	snapPath := filepath.Join(tmpDir, backupDocsFileName)
	if err := db.store.Snapshot(ctx, snapPath); err != nil {
		return fmt.Errorf("failed to snapshot document store: %w", err)
	}
	if err := uploadFile(ctx, store, path.Join(prefix, backupDocsFileName), snapPath); err != nil {
		return fmt.Errorf("failed to upload %s: %w", backupDocsFileName, err)
	}

	db.opts.logger.Info("backup completed",
		"prefix", prefix,
		"count", db.index.Count(),
	)

	return nil
}

// Restore downloads a backup set from the blob store into folder, which
// must be empty or absent. The restored database is opened with a
// subsequent Open call.
func Restore(ctx context.Context, store blobstore.Store, prefix, folder string) error {
	entries, err := os.ReadDir(folder)
	if err != nil && !os.IsNotExist(err) {
		return &InitializationError{Folder: folder, Reason: "cannot read folder", cause: err}
	}
	if len(entries) > 0 {
		return &InitializationError{Folder: folder, Reason: "restore target folder is not empty"}
	}

	if err := os.MkdirAll(filepath.Join(folder, docsDirName), 0o755); err != nil {
		return &InitializationError{Folder: folder, Reason: "cannot create folder", cause: err}
	}

	// config.json is the only mandatory artifact: a fresh database has no
	// index snapshot, and an empty store is recreated on open.
	if err := downloadFile(ctx, store, path.Join(prefix, configFileName), filepath.Join(folder, configFileName)); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return &InitializationError{Folder: folder, Reason: "backup contains no config.json", cause: err}
		}
		return fmt.Errorf("failed to download %s: %w", configFileName, err)
	}

	if err := downloadFile(ctx, store, path.Join(prefix, indexFileName), filepath.Join(folder, indexFileName)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("failed to download %s: %w", indexFileName, err)
	}

	if err := downloadFile(ctx, store, path.Join(prefix, backupDocsFileName), filepath.Join(folder, docsDirName, backupDocsFileName)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("failed to download %s: %w", backupDocsFileName, err)
	}

	return nil
}

func uploadFile(ctx context.Context, store blobstore.Store, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	return store.Put(ctx, name, f, info.Size())
}

func downloadFile(ctx context.Context, store blobstore.Store, name, dst string) error {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	return persistence.SaveToFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, rc)
		return err
	})
}
