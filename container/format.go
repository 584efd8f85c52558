package container

// Container file layout:
//
//	Header (16 bytes):
//	  [0:4]   magic "PBC1" (uint32 little-endian)
//	  [4]     format version (uint8)
//	  [5]     chunk compression type (uint8, format.CompressionType)
//	  [6]     cell data precision (uint8, format.Precision)
//	  [7:16]  reserved, zero
//
//	Body: concatenated compressed chunk payloads, in write order.
//
//	Metadata section: group records followed by dataset records, see meta.go.
//
//	Footer (24 bytes):
//	  [0:8]   metadata section offset (uint64)
//	  [8:12]  metadata section size (uint32)
//	  [12:20] xxhash64 of the metadata section (uint64)
//	  [20:24] magic "PBC1" (uint32 little-endian)
const (
	// MagicNumber is "PBC1" read as a little-endian uint32.
	MagicNumber uint32 = 0x31434250

	// FormatVersion is the current container format version.
	FormatVersion uint8 = 1

	headerSize = 16
	footerSize = 24
)

// DType identifies the element type of a dataset.
type DType uint8

const (
	Float64 DType = 0x1 // Float64 stores 8-byte IEEE 754 values.
	Float32 DType = 0x2 // Float32 stores 4-byte IEEE 754 values.
	Int64   DType = 0x3 // Int64 stores 8-byte signed integers.
	Int32   DType = 0x4 // Int32 stores 4-byte signed integers.
	Bool    DType = 0x5 // Bool stores one byte per value, 0 or 1.
)

// Size returns the storage size of one element in bytes.
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Bool:
		return 1
	default:
		return 8
	}
}

func (d DType) String() string {
	switch d {
	case Float64:
		return "Float64"
	case Float32:
		return "Float32"
	case Int64:
		return "Int64"
	case Int32:
		return "Int32"
	case Bool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// valid reports whether d is a known element type.
func (d DType) valid() bool {
	return d >= Float64 && d <= Bool
}
