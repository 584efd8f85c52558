package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Checksum computes the xxHash64 of the given bytes. Used for chunk and
// metadata integrity records in the container footer index.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
