package iostream

import "github.com/zeebo/xxh3"

// checksum returns the 64-bit XXH3 digest of data, used to validate each
// frame's payload against corruption.
func checksum(data []byte) uint64 {
	return xxh3.Hash(data)
}
