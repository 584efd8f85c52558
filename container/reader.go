package container

import (
	"fmt"
	"math"
	"os"

	"github.com/sfogerty/parthenon/compress"
	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/internal/hash"
)

// DatasetInfo describes one dataset found in a container.
type DatasetInfo struct {
	Name      string
	DType     DType
	Dims      []uint64
	ChunkRows uint64

	attrs  []attribute
	chunks []chunkRecord
}

// Reader reads a sealed container file. It verifies the header and footer
// magic on Open and the metadata checksum before parsing; chunk checksums
// are verified on every Read.
type Reader struct {
	f           *os.File
	codec       compress.Codec
	compression format.CompressionType
	precision   format.Precision

	groups   map[string][]attribute
	order    []string
	datasets map[string]*DatasetInfo
	dsOrder  []string
}

// Open opens the container at path and parses its metadata.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	r, err := newReader(f)
	if err != nil {
		f.Close()

		return nil, err
	}

	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}
	if info.Size() < headerSize+footerSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", errs.ErrInvalidMagic, info.Size())
	}

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read container header: %w", err)
	}
	if metaEngine.Uint32(header[0:4]) != MagicNumber {
		return nil, fmt.Errorf("%w: bad header magic", errs.ErrInvalidMagic)
	}
	if header[4] != FormatVersion {
		return nil, fmt.Errorf("unsupported container version %d", header[4])
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		return nil, fmt.Errorf("read container footer: %w", err)
	}
	if metaEngine.Uint32(footer[20:24]) != MagicNumber {
		return nil, fmt.Errorf("%w: bad footer magic", errs.ErrInvalidMagic)
	}

	metaOffset := metaEngine.Uint64(footer[0:8])
	metaSize := metaEngine.Uint32(footer[8:12])
	metaChecksum := metaEngine.Uint64(footer[12:20])
	if int64(metaOffset)+int64(metaSize) > info.Size()-footerSize {
		return nil, fmt.Errorf("%w: metadata section out of bounds", errs.ErrInvalidMagic)
	}

	meta := make([]byte, metaSize)
	if _, err := f.ReadAt(meta, int64(metaOffset)); err != nil {
		return nil, fmt.Errorf("read container metadata: %w", err)
	}
	if hash.Checksum(meta) != metaChecksum {
		return nil, fmt.Errorf("%w: metadata section", errs.ErrChecksumMismatch)
	}

	compression := format.CompressionType(header[5])
	codec, err := compress.CreateCodec(compression, 0)
	if err != nil {
		return nil, fmt.Errorf("container codec: %w", err)
	}

	r := &Reader{
		f:           f,
		codec:       codec,
		compression: compression,
		precision:   format.Precision(header[6]),
		groups:      make(map[string][]attribute),
		datasets:    make(map[string]*DatasetInfo),
	}
	if err := r.parseMeta(meta); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Reader) parseMeta(meta []byte) error {
	c := &metaCursor{buf: meta}

	groupCount, err := c.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < groupCount; i++ {
		name, err := c.str16()
		if err != nil {
			return err
		}
		attrs, err := c.attributes()
		if err != nil {
			return err
		}
		r.groups[name] = attrs
		r.order = append(r.order, name)
	}

	dsCount, err := c.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < dsCount; i++ {
		name, err := c.str16()
		if err != nil {
			return err
		}
		dtypeByte, err := c.u8()
		if err != nil {
			return err
		}
		ndims, err := c.u8()
		if err != nil {
			return err
		}
		dims := make([]uint64, ndims)
		for j := range dims {
			if dims[j], err = c.u64(); err != nil {
				return err
			}
		}
		chunkRows, err := c.u64()
		if err != nil {
			return err
		}
		attrs, err := c.attributes()
		if err != nil {
			return err
		}
		chunkCount, err := c.u32()
		if err != nil {
			return err
		}
		chunks := make([]chunkRecord, chunkCount)
		for j := range chunks {
			if chunks[j].offset, err = c.u64(); err != nil {
				return err
			}
			if chunks[j].storedSize, err = c.u64(); err != nil {
				return err
			}
			if chunks[j].rawSize, err = c.u64(); err != nil {
				return err
			}
			if chunks[j].checksum, err = c.u64(); err != nil {
				return err
			}
		}

		dt := DType(dtypeByte)
		if !dt.valid() {
			return fmt.Errorf("dataset %q: unknown dtype 0x%x", name, dtypeByte)
		}

		r.datasets[name] = &DatasetInfo{
			Name:      name,
			DType:     dt,
			Dims:      dims,
			ChunkRows: chunkRows,
			attrs:     attrs,
			chunks:    chunks,
		}
		r.dsOrder = append(r.dsOrder, name)
	}

	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Compression returns the codec type recorded in the header.
func (r *Reader) Compression() format.CompressionType {
	return r.compression
}

// Precision returns the precision recorded in the header.
func (r *Reader) Precision() format.Precision {
	return r.precision
}

// Groups lists group names in creation order.
func (r *Reader) Groups() []string {
	return append([]string(nil), r.order...)
}

// Datasets lists dataset paths in creation order.
func (r *Reader) Datasets() []string {
	return append([]string(nil), r.dsOrder...)
}

// Attribute returns a group attribute value, or errs.ErrNotFound.
func (r *Reader) Attribute(group, name string) (any, error) {
	attrs, ok := r.groups[normalizePath(group)]
	if !ok {
		return nil, fmt.Errorf("%w: group %q", errs.ErrNotFound, group)
	}
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, nil
		}
	}

	return nil, fmt.Errorf("%w: attribute %s@%s", errs.ErrNotFound, group, name)
}

// Dataset returns the description of one dataset, or errs.ErrNotFound.
func (r *Reader) Dataset(path string) (*DatasetInfo, error) {
	d, ok := r.datasets[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", errs.ErrNotFound, path)
	}

	return d, nil
}

// DatasetAttribute returns a dataset attribute value, or errs.ErrNotFound.
func (r *Reader) DatasetAttribute(path, name string) (any, error) {
	d, err := r.Dataset(path)
	if err != nil {
		return nil, err
	}
	for _, a := range d.attrs {
		if a.Name == name {
			return a.Value, nil
		}
	}

	return nil, fmt.Errorf("%w: attribute %s@%s", errs.ErrNotFound, path, name)
}

// readRaw loads, decompresses and verifies every chunk of a dataset.
func (r *Reader) readRaw(d *DatasetInfo) ([]byte, error) {
	size := uint64(d.DType.Size())
	for _, dim := range d.Dims {
		size *= dim
	}
	if len(d.Dims) == 0 {
		size = 0
	}

	raw := make([]byte, 0, size)
	for i, c := range d.chunks {
		stored := make([]byte, c.storedSize)
		if _, err := r.f.ReadAt(stored, int64(c.offset)); err != nil {
			return nil, fmt.Errorf("read dataset %q chunk %d: %w", d.Name, i, err)
		}

		slab, err := r.codec.Decompress(stored)
		if err != nil {
			return nil, fmt.Errorf("decompress dataset %q chunk %d: %w", d.Name, i, err)
		}
		if uint64(len(slab)) != c.rawSize || hash.Checksum(slab) != c.checksum {
			return nil, fmt.Errorf("%w: dataset %q chunk %d", errs.ErrChecksumMismatch, d.Name, i)
		}

		raw = append(raw, slab...)
	}

	if uint64(len(raw)) != size {
		return nil, fmt.Errorf("%w: dataset %q has %d stored bytes, shape wants %d",
			errs.ErrShapeMismatch, d.Name, len(raw), size)
	}

	return raw, nil
}

// Read returns the decoded values of a dataset as the slice type matching
// its element type ([]float64, []float32, []int64, []int32 or []bool).
func (r *Reader) Read(path string) (any, error) {
	d, err := r.Dataset(path)
	if err != nil {
		return nil, err
	}

	raw, err := r.readRaw(d)
	if err != nil {
		return nil, err
	}
	count := len(raw) / d.DType.Size()

	switch d.DType {
	case Float64:
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(metaEngine.Uint64(raw[8*i:]))
		}

		return out, nil
	case Float32:
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(metaEngine.Uint32(raw[4*i:]))
		}

		return out, nil
	case Int64:
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(metaEngine.Uint64(raw[8*i:]))
		}

		return out, nil
	case Int32:
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(metaEngine.Uint32(raw[4*i:]))
		}

		return out, nil
	default:
		out := make([]bool, count)
		for i := range out {
			out[i] = raw[i] != 0
		}

		return out, nil
	}
}

// ReadFloat64 reads a Float64 dataset.
func (r *Reader) ReadFloat64(path string) ([]float64, error) {
	values, err := r.Read(path)
	if err != nil {
		return nil, err
	}
	out, ok := values.([]float64)
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q is not Float64", errs.ErrShapeMismatch, path)
	}

	return out, nil
}

// ReadBool reads a Bool dataset.
func (r *Reader) ReadBool(path string) ([]bool, error) {
	values, err := r.Read(path)
	if err != nil {
		return nil, err
	}
	out, ok := values.([]bool)
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q is not Bool", errs.ErrShapeMismatch, path)
	}

	return out, nil
}
