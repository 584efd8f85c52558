package container

import (
	"fmt"
	"math"

	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/internal/hash"
	"github.com/sfogerty/parthenon/internal/pool"
)

// Dataset is a rectangular typed array chunked along its first dimension.
type Dataset struct {
	f         *File
	name      string
	dtype     DType
	dims      []uint64
	chunkRows uint64
	attrs     []attribute
	attrNames map[string]struct{}
	chunks    []chunkRecord
	written   bool
}

// chunkRecord locates one stored chunk in the file body.
type chunkRecord struct {
	offset     uint64
	storedSize uint64
	rawSize    uint64
	checksum   uint64
}

type dsConfig struct {
	chunkRows uint64
	attrs     []attribute
}

// DatasetOption configures CreateDataset.
type DatasetOption func(*dsConfig)

// WithChunks sets the number of first-dimension rows per chunk. Zero or
// anything larger than the first dimension means a single chunk.
func WithChunks(rows uint64) DatasetOption {
	return func(cfg *dsConfig) {
		cfg.chunkRows = rows
	}
}

// WithAttribute attaches an attribute at creation time. Equivalent to
// calling SetAttribute after CreateDataset.
func WithAttribute(name string, value any) DatasetOption {
	return func(cfg *dsConfig) {
		cfg.attrs = append(cfg.attrs, attribute{Name: name, Value: value})
	}
}

// Name returns the dataset's slash-prefixed path.
func (d *Dataset) Name() string {
	return d.name
}

// Dims returns a copy of the dataset shape.
func (d *Dataset) Dims() []uint64 {
	return append([]uint64(nil), d.dims...)
}

// SetAttribute attaches a typed value to the dataset. See
// Group.SetAttribute for the accepted types.
func (d *Dataset) SetAttribute(name string, value any) error {
	if d.f.closed {
		return errs.ErrFileClosed
	}

	normalized, err := normalizeAttrValue(value)
	if err != nil {
		return fmt.Errorf("attribute %s@%s: %w", d.name, name, err)
	}

	if _, ok := d.attrNames[name]; ok {
		for i := range d.attrs {
			if d.attrs[i].Name == name {
				d.attrs[i].Value = normalized

				return nil
			}
		}
	}

	d.attrNames[name] = struct{}{}
	d.attrs = append(d.attrs, attribute{Name: name, Value: normalized})

	return nil
}

// elemCount returns the total number of elements in the dataset shape.
func (d *Dataset) elemCount() uint64 {
	count := uint64(1)
	for _, dim := range d.dims {
		count *= dim
	}

	return count
}

// rowSize returns the byte size of one first-dimension row.
func (d *Dataset) rowSize() uint64 {
	size := uint64(d.dtype.Size())
	for _, dim := range d.dims[1:] {
		size *= dim
	}

	return size
}

// Write encodes and stores the dataset values. The value type must match
// the dataset's element type ([]float64 for Float64, []float32 for
// Float32, []int64, []int32, []bool) and the length must equal the
// product of the dims. A dataset is written exactly once.
func (d *Dataset) Write(values any) error {
	switch v := values.(type) {
	case []float64:
		if d.dtype != Float64 {
			return d.typeError("[]float64")
		}

		return d.writeEncoded(len(v), func(buf []byte) {
			for i, x := range v {
				metaEngine.PutUint64(buf[8*i:], math.Float64bits(x))
			}
		})
	case []float32:
		if d.dtype != Float32 {
			return d.typeError("[]float32")
		}

		return d.writeEncoded(len(v), func(buf []byte) {
			for i, x := range v {
				metaEngine.PutUint32(buf[4*i:], math.Float32bits(x))
			}
		})
	case []int64:
		if d.dtype != Int64 {
			return d.typeError("[]int64")
		}

		return d.writeEncoded(len(v), func(buf []byte) {
			for i, x := range v {
				metaEngine.PutUint64(buf[8*i:], uint64(x))
			}
		})
	case []int32:
		if d.dtype != Int32 {
			return d.typeError("[]int32")
		}

		return d.writeEncoded(len(v), func(buf []byte) {
			for i, x := range v {
				metaEngine.PutUint32(buf[4*i:], uint32(x))
			}
		})
	case []bool:
		if d.dtype != Bool {
			return d.typeError("[]bool")
		}

		return d.writeEncoded(len(v), func(buf []byte) {
			for i, x := range v {
				if x {
					buf[i] = 1
				}
			}
		})
	default:
		return d.typeError(fmt.Sprintf("%T", values))
	}
}

func (d *Dataset) typeError(got string) error {
	return fmt.Errorf("%w: dataset %q is %s, got %s", errs.ErrShapeMismatch, d.name, d.dtype, got)
}

func (d *Dataset) writeEncoded(count int, encode func(buf []byte)) error {
	if uint64(count) != d.elemCount() {
		return fmt.Errorf("%w: dataset %q wants %d elements, got %d",
			errs.ErrShapeMismatch, d.name, d.elemCount(), count)
	}

	raw, release := pool.GetByteSlice(count * d.dtype.Size())
	defer release()

	// Pooled slices may carry old bytes; the encoders overwrite every
	// position except Bool zeros.
	for i := range raw {
		raw[i] = 0
	}
	encode(raw)

	return d.WriteBytes(raw)
}

// WriteBytes stores pre-encoded little-endian dataset bytes. The length
// must equal the shape's byte size. Used when the caller already holds
// wire-encoded values, for example gathered rank payloads.
func (d *Dataset) WriteBytes(raw []byte) error {
	if d.f.closed {
		return errs.ErrFileClosed
	}
	if d.written {
		return fmt.Errorf("%w: dataset %q written twice", errs.ErrDatasetExists, d.name)
	}

	total := d.elemCount() * uint64(d.dtype.Size())
	if uint64(len(raw)) != total {
		return fmt.Errorf("%w: dataset %q wants %d bytes, got %d",
			errs.ErrShapeMismatch, d.name, total, len(raw))
	}

	d.written = true
	if total == 0 {
		return nil
	}

	chunkBytes := d.chunkRows * d.rowSize()
	for start := uint64(0); start < total; start += chunkBytes {
		end := start + chunkBytes
		if end > total {
			end = total
		}
		slab := raw[start:end]

		stored, err := d.f.codec.Compress(slab)
		if err != nil {
			return fmt.Errorf("compress dataset %q: %w", d.name, err)
		}
		if _, err := d.f.w.Write(stored); err != nil {
			return fmt.Errorf("write dataset %q: %w", d.name, err)
		}

		d.chunks = append(d.chunks, chunkRecord{
			offset:     d.f.offset,
			storedSize: uint64(len(stored)),
			rawSize:    uint64(len(slab)),
			checksum:   hash.Checksum(slab),
		})
		d.f.offset += uint64(len(stored))
	}

	return nil
}
