package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// DeflateCompressor provides DEFLATE compression for container chunks.
//
// It is the default codec for visualization outputs because every external
// tool chain can inflate it. The level is fixed at construction; writers
// per level are pooled since flate.Writer allocates large internal tables.
type DeflateCompressor struct {
	level int
	pool  *sync.Pool
}

var _ Codec = (*DeflateCompressor)(nil)

// deflateWriterPools caches one writer pool per compression level.
var deflateWriterPools [flate.BestCompression + 1]sync.Pool

// NewDeflateCompressor creates a DEFLATE codec with the given level.
// Levels outside [1, 9] are clamped.
func NewDeflateCompressor(level int) *DeflateCompressor {
	if level < flate.BestSpeed {
		level = flate.BestSpeed
	}
	if level > flate.BestCompression {
		level = flate.BestCompression
	}

	p := &deflateWriterPools[level]
	return &DeflateCompressor{level: level, pool: p}
}

// Level returns the configured compression level.
func (c *DeflateCompressor) Level() int {
	return c.level
}

// Compress compresses the input data as a raw DEFLATE stream.
func (c *DeflateCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)

	var fw *flate.Writer
	if v := c.pool.Get(); v != nil {
		fw = v.(*flate.Writer)
		fw.Reset(&buf)
	} else {
		var err error
		fw, err = flate.NewWriter(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("deflate writer (level %d): %w", c.level, err)
		}
	}
	defer c.pool.Put(fw)

	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress inflates a raw DEFLATE stream.
func (c *DeflateCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()

	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, err
	}

	return out, nil
}
