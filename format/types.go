package format

type (
	CompressionType uint8
	Precision       uint8
	OutputKind      uint8
	FieldFlag       uint16
)

const (
	CompressionNone    CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionDeflate CompressionType = 0x2 // CompressionDeflate represents DEFLATE compression with a level.
	CompressionZstd    CompressionType = 0x3 // CompressionZstd represents Zstandard compression.
	CompressionS2      CompressionType = 0x4 // CompressionS2 represents S2 compression.
	CompressionLZ4     CompressionType = 0x5 // CompressionLZ4 represents LZ4 compression.

	PrecisionFloat64 Precision = 0x1 // PrecisionFloat64 stores cell data as 8-byte floats.
	PrecisionFloat32 Precision = 0x2 // PrecisionFloat32 stores cell data as 4-byte floats.

	KindVisualization OutputKind = 0x1 // KindVisualization marks a visualization-oriented output event.
	KindRestart       OutputKind = 0x2 // KindRestart marks a restart-capable output event.
)

// Field capability flags, assigned by the metadata registry collaborator.
// A field instance qualifies for an output event when it matches at least
// one flag of the event's selection predicate.
const (
	FlagIndependent FieldFlag = 1 << 0 // FlagIndependent marks independently evolved fields.
	FlagRestart     FieldFlag = 1 << 1 // FlagRestart marks fields required to restart a run.
	FlagSparse      FieldFlag = 1 << 2 // FlagSparse marks fields materialized only on some blocks.
	FlagVector      FieldFlag = 1 << 3 // FlagVector marks fields whose components form a spatial vector.
)

// Has reports whether f contains all bits of mask.
func (f FieldFlag) Has(mask FieldFlag) bool {
	return f&mask == mask
}

// Any reports whether f contains at least one bit of mask.
func (f FieldFlag) Any(mask FieldFlag) bool {
	return f&mask != 0
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionDeflate:
		return "Deflate"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (p Precision) String() string {
	switch p {
	case PrecisionFloat64:
		return "Float64"
	case PrecisionFloat32:
		return "Float32"
	default:
		return "Unknown"
	}
}

// Size returns the storage size of one value in bytes.
func (p Precision) Size() int {
	if p == PrecisionFloat32 {
		return 4
	}

	return 8
}

func (k OutputKind) String() string {
	switch k {
	case KindVisualization:
		return "Visualization"
	case KindRestart:
		return "Restart"
	default:
		return "Unknown"
	}
}

// Suffix returns the container filename suffix for this output kind.
func (k OutputKind) Suffix() string {
	if k == KindRestart {
		return ".rbin"
	}

	return ".pbin"
}
