// Package endian provides byte order utilities for the container codec.
//
// It combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single engine interface so encoders can both
// write into fixed offsets and append to growing buffers without extra
// allocations. The container format is little-endian on disk; the
// big-endian engine exists for tooling that inspects foreign buffers.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// binary.LittleEndian and binary.BigEndian both satisfy this interface, so
// the engines are stateless and safe for concurrent use.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}
