package compress

import (
	"fmt"

	"github.com/sfogerty/parthenon/format"
)

// Compressor compresses one chunk payload.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller (the NoOp
//     codec returns the input as-is)
//   - Input slice is not modified
//   - Internal buffers may be reused between calls
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores one chunk payload previously produced by the
// matching Compressor. It returns an error if the data is corrupted or was
// produced by an incompatible codec.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. Codecs must be safe for concurrent use;
// implementations with mutable state keep it in sync.Pool instances.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec creates a Codec for the given compression type.
//
// The level parameter applies to level-tunable codecs (currently Deflate,
// clamped to [1, 9]); other codecs ignore it.
//
// Parameters:
//   - compressionType: one of the format.Compression* constants
//   - level: compression level for level-tunable codecs
//
// Returns:
//   - Codec: codec instance for the specified type
//   - error: invalid compression type error
func CreateCodec(compressionType format.CompressionType, level int) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionDeflate:
		return NewDeflateCompressor(level), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid chunk compression: %s", compressionType)
	}
}
