package persistence

import "errors"

const (
	// MagicNumber identifies binvecdb snapshot files (ASCII: "BVDB")
	MagicNumber = 0x42564442
	// Version is the current file format version (v1.0.0)
	Version = 0x00010000

	// Index types
	IndexTypeBinaryFlat = 1
)

// CompressionType defines the compression algorithm used for the code section.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 block compression (fast, modest ratio).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD indicates ZSTD block compression (better ratio).
	CompressionZSTD CompressionType = 2
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrInvalidIndex       = errors.New("invalid index type")
	ErrInvalidCompression = errors.New("invalid compression type")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
)

// FileHeader is the 32-byte header at the start of every snapshot file.
// Fixed-size layout so the header can be read with a single binary.Read.
type FileHeader struct {
	Magic       uint32 // 0x42564442 ("BVDB")
	Version     uint32 // File format version
	IndexType   uint8  // 1=BinaryFlat
	Compression uint8  // CompressionType of the code section
	Padding     [2]byte
	CodeSize    uint32   // Bytes per packed binary code
	VectorCount uint64   // Total number of vectors
	Reserved    [8]byte  // Future use
}
