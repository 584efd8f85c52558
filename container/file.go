package container

import (
	"fmt"
	"os"
	"strings"

	"github.com/sfogerty/parthenon/compress"
	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/internal/hash"
)

// File is a container open for writing. Create the groups and datasets,
// write every dataset exactly once, then Close to seal the metadata
// section and footer. A File is not safe for concurrent use.
type File struct {
	w           *os.File
	path        string
	codec       compress.Codec
	compression format.CompressionType
	precision   format.Precision

	offset   uint64
	groups   []*Group
	groupIdx map[string]*Group
	datasets []*Dataset
	dsIdx    map[string]*Dataset
	closed   bool
}

type fileConfig struct {
	compression      format.CompressionType
	compressionLevel int
	precision        format.Precision
}

// FileOption configures Create.
type FileOption func(*fileConfig)

// WithCompression selects the chunk compression codec. The level applies
// to level-tunable codecs and is ignored by the others. The default is no
// compression.
func WithCompression(compression format.CompressionType, level int) FileOption {
	return func(cfg *fileConfig) {
		cfg.compression = compression
		cfg.compressionLevel = level
	}
}

// WithPrecision records the cell data precision in the file header. The
// default is Float64. This is a header annotation, each dataset still
// declares its own element type.
func WithPrecision(precision format.Precision) FileOption {
	return func(cfg *fileConfig) {
		cfg.precision = precision
	}
}

// Create creates the container file at path, truncating any existing
// file, and writes the header. The returned File has a root group and no
// datasets.
func Create(path string, opts ...FileOption) (*File, error) {
	cfg := fileConfig{
		compression: format.CompressionNone,
		precision:   format.PrecisionFloat64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	codec, err := compress.CreateCodec(cfg.compression, cfg.compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", path, err)
	}

	w, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	f := &File{
		w:           w,
		path:        path,
		codec:       codec,
		compression: cfg.compression,
		precision:   cfg.precision,
		groupIdx:    make(map[string]*Group),
		dsIdx:       make(map[string]*Dataset),
	}

	header := make([]byte, headerSize)
	metaEngine.PutUint32(header[0:4], MagicNumber)
	header[4] = FormatVersion
	header[5] = uint8(cfg.compression)
	header[6] = uint8(cfg.precision)
	if _, err := w.Write(header); err != nil {
		w.Close()

		return nil, fmt.Errorf("write container header: %w", err)
	}
	f.offset = headerSize

	root := &Group{f: f, name: "/", attrNames: make(map[string]struct{})}
	f.groups = append(f.groups, root)
	f.groupIdx["/"] = root

	return f, nil
}

// normalizePath forces a leading slash and strips a trailing one.
func normalizePath(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if len(name) > 1 {
		name = strings.TrimSuffix(name, "/")
	}

	return name
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.groups[0]
}

// CreateGroup creates a named attribute group. Group names are
// slash-prefixed paths such as "/Info". Creating an existing group
// returns errs.ErrGroupExists.
func (f *File) CreateGroup(name string) (*Group, error) {
	if f.closed {
		return nil, errs.ErrFileClosed
	}

	name = normalizePath(name)
	if _, ok := f.groupIdx[name]; ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrGroupExists, name)
	}

	g := &Group{f: f, name: name, attrNames: make(map[string]struct{})}
	f.groups = append(f.groups, g)
	f.groupIdx[name] = g

	return g, nil
}

// CreateDataset creates a dataset in the root group.
func (f *File) CreateDataset(name string, dtype DType, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	return f.Root().CreateDataset(name, dtype, dims, opts...)
}

// Path returns the file path given to Create.
func (f *File) Path() string {
	return f.path
}

// Compression returns the chunk compression codec type.
func (f *File) Compression() format.CompressionType {
	return f.compression
}

// Close serializes the metadata section and footer and closes the file.
// Closing twice is an error.
func (f *File) Close() error {
	if f.closed {
		return errs.ErrFileClosed
	}
	f.closed = true

	meta := encodeMetadata(f.groups, f.datasets)
	metaOffset := f.offset

	if _, err := f.w.Write(meta); err != nil {
		f.w.Close()

		return fmt.Errorf("write container metadata: %w", err)
	}

	footer := make([]byte, footerSize)
	metaEngine.PutUint64(footer[0:8], metaOffset)
	metaEngine.PutUint32(footer[8:12], uint32(len(meta)))
	metaEngine.PutUint64(footer[12:20], hash.Checksum(meta))
	metaEngine.PutUint32(footer[20:24], MagicNumber)
	if _, err := f.w.Write(footer); err != nil {
		f.w.Close()

		return fmt.Errorf("write container footer: %w", err)
	}

	if err := f.w.Close(); err != nil {
		return fmt.Errorf("close container: %w", err)
	}

	return nil
}

// Group is a named set of typed attributes. The root group "/" always
// exists; restart and visualization events add their own groups.
type Group struct {
	f         *File
	name      string
	attrs     []attribute
	attrNames map[string]struct{}
}

// Name returns the group's slash-prefixed path.
func (g *Group) Name() string {
	return g.name
}

// SetAttribute attaches a typed value to the group. Accepted values are
// int, int32, int64, float64, string, []int, []int64, []float64 and
// []string; anything else returns errs.ErrInvalidAttribute. Setting the
// same name twice overwrites the first value.
func (g *Group) SetAttribute(name string, value any) error {
	if g.f.closed {
		return errs.ErrFileClosed
	}

	normalized, err := normalizeAttrValue(value)
	if err != nil {
		return fmt.Errorf("attribute %s/%s: %w", g.name, name, err)
	}

	if _, ok := g.attrNames[name]; ok {
		for i := range g.attrs {
			if g.attrs[i].Name == name {
				g.attrs[i].Value = normalized

				return nil
			}
		}
	}

	g.attrNames[name] = struct{}{}
	g.attrs = append(g.attrs, attribute{Name: name, Value: normalized})

	return nil
}

// CreateDataset creates a dataset inside this group. The dataset path is
// the group path joined with name. Duplicate paths return
// errs.ErrDatasetExists.
func (g *Group) CreateDataset(name string, dtype DType, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	f := g.f
	if f.closed {
		return nil, errs.ErrFileClosed
	}
	if !dtype.valid() {
		return nil, fmt.Errorf("%w: unknown dtype 0x%x", errs.ErrShapeMismatch, uint8(dtype))
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: dataset %q has no dimensions", errs.ErrShapeMismatch, name)
	}

	path := g.name + "/" + name
	if g.name == "/" {
		path = "/" + name
	}
	if _, ok := f.dsIdx[path]; ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrDatasetExists, path)
	}

	cfg := dsConfig{chunkRows: dims[0]}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.chunkRows == 0 || cfg.chunkRows > dims[0] {
		cfg.chunkRows = dims[0]
	}

	d := &Dataset{
		f:         f,
		name:      path,
		dtype:     dtype,
		dims:      append([]uint64(nil), dims...),
		chunkRows: cfg.chunkRows,
		attrNames: make(map[string]struct{}),
	}
	for _, a := range cfg.attrs {
		if err := d.SetAttribute(a.Name, a.Value); err != nil {
			return nil, err
		}
	}

	f.datasets = append(f.datasets, d)
	f.dsIdx[path] = d

	return d, nil
}
