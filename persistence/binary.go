// Package persistence provides the binary snapshot format for the index and
// the atomic file helpers shared by all on-disk state.
package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"
)

// SnapshotWriter writes index snapshots in the binvecdb binary format.
type SnapshotWriter struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewSnapshotWriter creates a new binary snapshot writer.
func NewSnapshotWriter(w io.Writer) *SnapshotWriter {
	return &SnapshotWriter{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteHeader writes the file header. Magic and Version are filled in.
func (sw *SnapshotWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(sw.w, sw.byteOrder, header)
}

// WriteUint64 writes a single uint64 value.
func (sw *SnapshotWriter) WriteUint64(v uint64) error {
	return binary.Write(sw.w, sw.byteOrder, v)
}

// WriteUint32 writes a single uint32 value.
func (sw *SnapshotWriter) WriteUint32(v uint32) error {
	return binary.Write(sw.w, sw.byteOrder, v)
}

// WriteInt64Slice writes an int64 slice as raw bytes.
// Safety: Validates alignment before unsafe conversion.
func (sw *SnapshotWriter) WriteInt64Slice(slice []int64) error {
	if len(slice) == 0 {
		return nil
	}

	if err := validateInt64SliceAlignment(slice); err != nil {
		return err
	}

	// Direct memory conversion (no allocation)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), len(slice)*8)
	_, err := sw.w.Write(byteSlice)
	return err
}

// WriteBytes writes a raw byte section.
func (sw *SnapshotWriter) WriteBytes(p []byte) error {
	_, err := sw.w.Write(p)
	return err
}

// SnapshotReader reads index snapshots from the binvecdb binary format.
type SnapshotReader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewSnapshotReader creates a new binary snapshot reader.
func NewSnapshotReader(r io.Reader) *SnapshotReader {
	return &SnapshotReader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadHeader reads and validates the file header.
func (sr *SnapshotReader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(sr.r, sr.byteOrder, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if header.Compression > uint8(CompressionZSTD) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCompression, header.Compression)
	}
	return &header, nil
}

// ReadUint64 reads a single uint64 value.
func (sr *SnapshotReader) ReadUint64() (uint64, error) {
	var v uint64
	err := binary.Read(sr.r, sr.byteOrder, &v)
	return v, err
}

// ReadUint32 reads a single uint32 value.
func (sr *SnapshotReader) ReadUint32() (uint32, error) {
	var v uint32
	err := binary.Read(sr.r, sr.byteOrder, &v)
	return v, err
}

// ReadInt64Slice reads count int64 values.
func (sr *SnapshotReader) ReadInt64Slice(count int) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}
	slice := make([]int64, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&slice[0])), count*8)
	if _, err := io.ReadFull(sr.r, byteSlice); err != nil {
		return nil, err
	}
	return slice, nil
}

// ReadBytes reads exactly len(p) bytes into p.
func (sr *SnapshotReader) ReadBytes(p []byte) error {
	_, err := io.ReadFull(sr.r, p)
	return err
}

// SaveToFile is a helper to save data to a file.
//
// The data is written to a temp file in the target directory, fsynced, and
// atomically renamed over the destination, so readers never observe a partial
// snapshot.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	// Use buffered writer to batch writes (critical for performance)
	buf := bufio.NewWriterSize(tmp, 256*1024) // 256KB buffer
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile is a helper to load data from a file.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// Use buffered reader to batch reads
	buf := bufio.NewReaderSize(f, 256*1024) // 256KB buffer
	return readFunc(buf)
}
