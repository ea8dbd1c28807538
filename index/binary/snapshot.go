package binary

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/binvecdb/internal/conv"
	"github.com/hupe1980/binvecdb/persistence"
)

// Snapshot layout:
//
//	FileHeader
//	member set length (uint64) + serialized roaring bitmap
//	ids (int64 per vector, position order)
//	code section (framed, optionally compressed)
//	CRC32 trailer (uint32, covers everything above)
//
// The snapshot is a whole-index serialization: load replaces any in-memory
// content, and save rewrites the file wholesale.

// countingWriter tracks bytes written for the io.WriterTo contract.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// countingReader tracks bytes read for the io.ReaderFrom contract.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// SaveToFile saves the index to a file atomically.
func (ix *Index) SaveToFile(filename string) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := ix.WriteTo(w)
		return err
	})
}

// LoadFromFile loads an index from a file.
func LoadFromFile(filename string, optFns ...func(o *Options)) (*Index, error) {
	ix, err := New(optFns...)
	if err != nil {
		return nil, err
	}
	err = persistence.LoadFromFile(filename, func(r io.Reader) error {
		_, readErr := ix.ReadFrom(r)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// WriteTo writes the index to a writer in binary format.
//
// It matches the io.WriterTo interface for toolchain friendliness.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	cw := &countingWriter{w: w}
	checksummed := persistence.NewChecksumWriter(cw)
	writer := persistence.NewSnapshotWriter(checksummed)

	countU64, err := conv.IntToUint64(len(ix.ids))
	if err != nil {
		return cw.n, err
	}
	codeSizeU32, err := conv.IntToUint32(ix.codeSize)
	if err != nil {
		return cw.n, err
	}

	if err := writer.WriteHeader(&persistence.FileHeader{
		IndexType:   persistence.IndexTypeBinaryFlat,
		Compression: uint8(ix.opts.Compression),
		CodeSize:    codeSizeU32,
		VectorCount: countU64,
	}); err != nil {
		return cw.n, err
	}

	memberBytes, err := ix.members.MarshalBinary()
	if err != nil {
		return cw.n, fmt.Errorf("failed to serialize member set: %w", err)
	}
	memberLen, err := conv.IntToUint64(len(memberBytes))
	if err != nil {
		return cw.n, err
	}
	if err := writer.WriteUint64(memberLen); err != nil {
		return cw.n, err
	}
	if err := writer.WriteBytes(memberBytes); err != nil {
		return cw.n, err
	}

	if err := writer.WriteInt64Slice(ix.ids); err != nil {
		return cw.n, err
	}

	block, err := persistence.CompressBlock(ix.codes, ix.opts.Compression)
	if err != nil {
		return cw.n, err
	}
	if err := writer.WriteBytes(block); err != nil {
		return cw.n, err
	}

	// Trailer is written outside the checksummed region.
	if err := binary.Write(cw, binary.LittleEndian, checksummed.Sum()); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}

// ReadFrom reads the index from a reader in binary format, replacing any
// in-memory content.
//
// It matches the io.ReaderFrom interface for toolchain friendliness.
func (ix *Index) ReadFrom(r io.Reader) (int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cr := &countingReader{r: r}
	checksummed := persistence.NewChecksumReader(cr)
	reader := persistence.NewSnapshotReader(checksummed)

	header, err := reader.ReadHeader()
	if err != nil {
		return cr.n, err
	}
	if header.IndexType != persistence.IndexTypeBinaryFlat {
		return cr.n, fmt.Errorf("%w: expected binary flat, got %d", persistence.ErrInvalidIndex, header.IndexType)
	}

	codeSize, err := conv.Uint32ToInt(header.CodeSize)
	if err != nil {
		return cr.n, err
	}
	if codeSize != ix.codeSize {
		return cr.n, &ErrCodeSizeMismatch{Expected: ix.codeSize, Actual: codeSize}
	}

	count, err := conv.Uint64ToInt(header.VectorCount)
	if err != nil {
		return cr.n, err
	}

	memberLenU64, err := reader.ReadUint64()
	if err != nil {
		return cr.n, err
	}
	memberLen, err := conv.Uint64ToInt(memberLenU64)
	if err != nil {
		return cr.n, err
	}
	memberBytes := make([]byte, memberLen)
	if err := reader.ReadBytes(memberBytes); err != nil {
		return cr.n, fmt.Errorf("failed to read member set: %w", err)
	}
	members := roaring64.New()
	if err := members.UnmarshalBinary(memberBytes); err != nil {
		return cr.n, fmt.Errorf("failed to deserialize member set: %w", err)
	}

	ids, err := reader.ReadInt64Slice(count)
	if err != nil {
		return cr.n, fmt.Errorf("failed to read ids: %w", err)
	}

	codes, err := persistence.ReadBlock(checksummed, persistence.CompressionType(header.Compression))
	if err != nil {
		return cr.n, fmt.Errorf("failed to read code section: %w", err)
	}
	if len(codes) != count*ix.codeSize {
		return cr.n, fmt.Errorf("code section size %d does not match %d vectors of %d bytes", len(codes), count, ix.codeSize)
	}

	var trailer uint32
	computed := checksummed.Sum()
	if err := binary.Read(cr, binary.LittleEndian, &trailer); err != nil {
		return cr.n, fmt.Errorf("failed to read checksum trailer: %w", err)
	}
	if trailer != computed {
		return cr.n, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", persistence.ErrChecksumMismatch, trailer, computed)
	}

	pos := make(map[int64]int, count)
	for p, id := range ids {
		pos[id] = p
	}

	ix.ids = ids
	ix.codes = codes
	ix.pos = pos
	ix.members = members

	return cr.n, nil
}
