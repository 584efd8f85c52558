package compress

// ZstdCompressor provides Zstandard compression for container chunks.
//
// Zstd gives the best ratio on smooth cell data and decompresses fast
// enough for interactive readers, making it the preferred codec for
// restart outputs where the file is read back exactly once.
//
// Two implementations exist behind build tags: the default pure-Go one
// (klauspost/compress/zstd) and an opt-in cgo one (valyala/gozstd, build
// tag "gozstd") for hosts where libzstd outruns the Go port.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
