package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Code sections are framed as:
//
//	[UncompressedSize uint32][CompressedSize uint32][Data...]
//
// If CompressedSize == 0, the data is stored uncompressed. Blocks that do not
// compress well (ratio > 0.9) are stored as-is to avoid paying decompression
// cost for nothing.

const blockHeaderSize = 8

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	// Level 3 balances compression ratio vs speed
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// CompressBlock frames (and optionally compresses) a code section.
func CompressBlock(data []byte, compression CompressionType) ([]byte, error) {
	var compressed []byte
	var err error

	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		compressed = getZstdEncoderCompress(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, compression)
	}
	if err != nil {
		return nil, err
	}

	// Store uncompressed when compression does not pay off.
	if compressed == nil || len(compressed) > len(data)*9/10 {
		compressed = nil
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	if compressed == nil {
		binary.LittleEndian.PutUint32(out[4:8], 0)
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(compressed)))
	return append(out, compressed...), nil
}

// ReadBlock reads one framed code section from r and returns the
// uncompressed data.
func ReadBlock(r io.Reader, compression CompressionType) ([]byte, error) {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	uncompressedSize := binary.LittleEndian.Uint32(hdr[0:4])
	compressedSize := binary.LittleEndian.Uint32(hdr[4:8])

	if compressedSize == 0 {
		data := make([]byte, uncompressedSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	switch compression {
	case CompressionLZ4:
		data := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(compressed, data)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if n != int(uncompressedSize) {
			return nil, fmt.Errorf("lz4 decompression: expected %d bytes, got %d", uncompressedSize, n)
		}
		return data, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		data, err := dec.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, compression)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible.
		return nil, nil
	}
	return buf[:n], nil
}

func getZstdEncoderCompress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil)
}
