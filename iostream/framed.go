package iostream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/ioratelimiter/internal/compression"
)

// ErrChecksumMismatch is returned by FramedReader.ReadChunk when a frame's
// stored checksum doesn't match its payload.
var ErrChecksumMismatch = errors.New("iostream: chunk checksum mismatch")

// frameHeaderSize is the size of the fixed preamble ahead of every chunk's payload:
// compression tag, compressed length, uncompressed length (needed to
// size LZ4's destination buffer), and an XXH3 checksum of the
// (possibly compressed) payload on the wire.
const frameHeaderSize = 1 + 4 + 4 + 8

// FramedWriter writes length-prefixed, checksummed, optionally compressed
// chunks through a RateLimitedWriter. New chunk boundaries are the unit
// both compression and rate admission operate on; there is no streaming
// compression across chunks.
type FramedWriter struct {
	w    *RateLimitedWriter
	algo compression.Type
}

// NewFramedWriter wraps w, compressing each chunk with algo before
// writing (compression.None to skip compression).
func NewFramedWriter(w *RateLimitedWriter, algo compression.Type) *FramedWriter {
	return &FramedWriter{w: w, algo: algo}
}

// WriteChunk compresses (if configured) and writes one chunk, framed with
// a header the corresponding FramedReader can parse back out.
func (f *FramedWriter) WriteChunk(data []byte) error {
	payload, err := compression.Compress(f.algo, data)
	if err != nil {
		return fmt.Errorf("iostream: compress chunk: %w", err)
	}

	var header [frameHeaderSize]byte
	header[0] = byte(f.algo)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(data)))
	binary.BigEndian.PutUint64(header[9:17], checksum(payload))

	if _, err := f.w.Write(header[:]); err != nil {
		return fmt.Errorf("iostream: write chunk header: %w", err)
	}
	if _, err := f.w.Write(payload); err != nil {
		return fmt.Errorf("iostream: write chunk payload: %w", err)
	}
	return nil
}

// FramedReader reads chunks written by a FramedWriter back through a
// RateLimitedReader.
type FramedReader struct {
	r *RateLimitedReader
}

// NewFramedReader wraps r.
func NewFramedReader(r *RateLimitedReader) *FramedReader {
	return &FramedReader{r: r}
}

// ReadChunk reads and decodes the next chunk. Returns io.EOF only when no
// bytes of a new header were read; a partial header or payload is a
// truncation error (io.ErrUnexpectedEOF), never silently dropped.
func (f *FramedReader) ReadChunk() ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("iostream: read chunk header: %w", err)
	}

	algo := compression.Type(header[0])
	compressedLen := binary.BigEndian.Uint32(header[1:5])
	uncompressedLen := binary.BigEndian.Uint32(header[5:9])
	wantChecksum := binary.BigEndian.Uint64(header[9:17])

	payload := make([]byte, compressedLen)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF // header present, payload missing
		}
		return nil, fmt.Errorf("iostream: read chunk payload: %w", err)
	}
	if got := checksum(payload); got != wantChecksum {
		return nil, ErrChecksumMismatch
	}

	data, err := compression.Decompress(algo, payload, int(uncompressedLen))
	if err != nil {
		return nil, fmt.Errorf("iostream: decompress chunk: %w", err)
	}
	return data, nil
}
