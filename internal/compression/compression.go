// Package compression implements optional per-chunk compression for
// iostream's framed writer/reader.
package compression

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression algorithm applied to one chunk.
// Persisted as a 1-byte tag ahead of each chunk's payload.
type Type uint8

const (
	// None leaves the chunk payload as-is.
	None Type = 0x0
	// Snappy uses Google Snappy.
	Snappy Type = 0x1
	// LZ4 uses LZ4 raw block format.
	LZ4 Type = 0x2
	// Zstd uses Zstandard at the default speed level.
	Zstd Type = 0x3
)

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case None:
		return "None"
	case Snappy:
		return "Snappy"
	case LZ4:
		return "LZ4"
	case Zstd:
		return "Zstd"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Compress compresses data using the specified compression type.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case None:
		return data, nil

	case Snappy:
		return snappy.Encode(nil, data), nil

	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		var ht [1 << 16]int
		n, err := lz4.CompressBlock(data, dst, ht[:])
		if err != nil {
			return nil, fmt.Errorf("lz4 compress block: %w", err)
		}
		if n == 0 {
			// Incompressible: CompressBlock signals this by returning 0.
			return data, nil
		}
		return dst[:n], nil

	case Zstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// Decompress reverses Compress. expectedSize, when > 0, sizes the LZ4
// destination buffer directly instead of growing it by trial.
func Decompress(t Type, data []byte, expectedSize int) ([]byte, error) {
	switch t {
	case None:
		return data, nil

	case Snappy:
		return snappy.Decode(nil, data)

	case LZ4:
		return decompressLZ4(data, expectedSize)

	case Zstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		return decoder.DecodeAll(data, nil)

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
}

func decompressLZ4(data []byte, expectedSize int) ([]byte, error) {
	if expectedSize > 0 {
		dst := make([]byte, expectedSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress block: %w", err)
		}
		return dst[:n], nil
	}

	bufSize := max(len(data)*4, 256)
	for range 10 {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err == nil {
			return dst[:n], nil
		}
		bufSize *= 2
	}
	return nil, fmt.Errorf("lz4 uncompress block: buffer too small after retries")
}
