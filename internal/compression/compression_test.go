package compression

import (
	"bytes"
	"testing"
)

func TestRoundTripAllTypes(t *testing.T) {
	data := bytes.Repeat([]byte("payload-bytes-"), 200)

	for _, algo := range []Type{None, Snappy, LZ4, Zstd} {
		t.Run(algo.String(), func(t *testing.T) {
			compressed, err := Compress(algo, data)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			got, err := Decompress(algo, compressed, len(data))
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch for %s", algo)
			}
		})
	}
}

func TestUnsupportedTypeErrors(t *testing.T) {
	if _, err := Compress(Type(99), []byte("x")); err == nil {
		t.Fatalf("expected error for unsupported compression type")
	}
	if _, err := Decompress(Type(99), []byte("x"), 0); err == nil {
		t.Fatalf("expected error for unsupported compression type")
	}
}
