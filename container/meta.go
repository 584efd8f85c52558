package container

import (
	"fmt"
	"math"

	"github.com/sfogerty/parthenon/endian"
	"github.com/sfogerty/parthenon/errs"
)

// Metadata section layout:
//
//	groupCount (uint32)
//	per group:
//	  name      (uint16 length + bytes)
//	  attrCount (uint32) + attribute records
//	datasetCount (uint32)
//	per dataset:
//	  name      (uint16 length + bytes, full path)
//	  dtype     (uint8)
//	  ndims     (uint8)
//	  dims      (ndims x uint64)
//	  chunkRows (uint64)
//	  attrCount (uint32) + attribute records
//	  chunkCount (uint32)
//	  per chunk: offset, storedSize, rawSize, checksum (4 x uint64)
//
// Attribute record:
//
//	name  (uint16 length + bytes)
//	kind  (uint8)
//	value (kind dependent, see attr kind constants)

// Attribute kind byte values.
const (
	attrInt64        uint8 = 0x1 // uint64 bits
	attrFloat64      uint8 = 0x2 // uint64 IEEE 754 bits
	attrString       uint8 = 0x3 // uint32 length + bytes
	attrInt64Slice   uint8 = 0x4 // uint32 count + count x uint64 bits
	attrFloat64Slice uint8 = 0x5 // uint32 count + count x uint64 IEEE 754 bits
	attrStringList   uint8 = 0x6 // uint32 count + count x (uint16 length + bytes)
)

// attribute is one named typed value attached to a group or dataset.
// Value holds one of the normalized types: int64, float64, string,
// []int64, []float64, []string.
type attribute struct {
	Name  string
	Value any
}

// normalizeAttrValue converts the accepted input types to their stored
// representation. It returns errs.ErrInvalidAttribute for anything else.
func normalizeAttrValue(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}

		return out, nil
	case []int64:
		return append([]int64(nil), v...), nil
	case []float64:
		return append([]float64(nil), v...), nil
	case []string:
		return append([]string(nil), v...), nil
	default:
		return nil, fmt.Errorf("%w: %T", errs.ErrInvalidAttribute, value)
	}
}

var metaEngine = endian.GetLittleEndianEngine()

func appendString16(buf []byte, s string) []byte {
	buf = metaEngine.AppendUint16(buf, uint16(len(s)))

	return append(buf, s...)
}

func appendString32(buf []byte, s string) []byte {
	buf = metaEngine.AppendUint32(buf, uint32(len(s)))

	return append(buf, s...)
}

func appendAttribute(buf []byte, a attribute) []byte {
	buf = appendString16(buf, a.Name)

	switch v := a.Value.(type) {
	case int64:
		buf = append(buf, attrInt64)
		buf = metaEngine.AppendUint64(buf, uint64(v))
	case float64:
		buf = append(buf, attrFloat64)
		buf = metaEngine.AppendUint64(buf, math.Float64bits(v))
	case string:
		buf = append(buf, attrString)
		buf = appendString32(buf, v)
	case []int64:
		buf = append(buf, attrInt64Slice)
		buf = metaEngine.AppendUint32(buf, uint32(len(v)))
		for _, n := range v {
			buf = metaEngine.AppendUint64(buf, uint64(n))
		}
	case []float64:
		buf = append(buf, attrFloat64Slice)
		buf = metaEngine.AppendUint32(buf, uint32(len(v)))
		for _, n := range v {
			buf = metaEngine.AppendUint64(buf, math.Float64bits(n))
		}
	case []string:
		buf = append(buf, attrStringList)
		buf = metaEngine.AppendUint32(buf, uint32(len(v)))
		for _, s := range v {
			buf = appendString16(buf, s)
		}
	}

	return buf
}

func appendAttributes(buf []byte, attrs []attribute) []byte {
	buf = metaEngine.AppendUint32(buf, uint32(len(attrs)))
	for _, a := range attrs {
		buf = appendAttribute(buf, a)
	}

	return buf
}

// encodeMetadata serializes all groups and datasets of a file.
func encodeMetadata(groups []*Group, datasets []*Dataset) []byte {
	buf := make([]byte, 0, 1024)

	buf = metaEngine.AppendUint32(buf, uint32(len(groups)))
	for _, g := range groups {
		buf = appendString16(buf, g.name)
		buf = appendAttributes(buf, g.attrs)
	}

	buf = metaEngine.AppendUint32(buf, uint32(len(datasets)))
	for _, d := range datasets {
		buf = appendString16(buf, d.name)
		buf = append(buf, uint8(d.dtype), uint8(len(d.dims)))
		for _, dim := range d.dims {
			buf = metaEngine.AppendUint64(buf, dim)
		}
		buf = metaEngine.AppendUint64(buf, d.chunkRows)
		buf = appendAttributes(buf, d.attrs)
		buf = metaEngine.AppendUint32(buf, uint32(len(d.chunks)))
		for _, c := range d.chunks {
			buf = metaEngine.AppendUint64(buf, c.offset)
			buf = metaEngine.AppendUint64(buf, c.storedSize)
			buf = metaEngine.AppendUint64(buf, c.rawSize)
			buf = metaEngine.AppendUint64(buf, c.checksum)
		}
	}

	return buf
}

// metaCursor walks a serialized metadata section. Every accessor checks
// remaining length so truncated or corrupt sections fail with an error
// instead of a panic.
type metaCursor struct {
	buf []byte
	pos int
}

func (c *metaCursor) need(n int) error {
	if c.pos+n > len(c.buf) {
		return fmt.Errorf("container metadata truncated at byte %d", c.pos)
	}

	return nil
}

func (c *metaCursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++

	return v, nil
}

func (c *metaCursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := metaEngine.Uint16(c.buf[c.pos:])
	c.pos += 2

	return v, nil
}

func (c *metaCursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := metaEngine.Uint32(c.buf[c.pos:])
	c.pos += 4

	return v, nil
}

func (c *metaCursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := metaEngine.Uint64(c.buf[c.pos:])
	c.pos += 8

	return v, nil
}

func (c *metaCursor) str16() (string, error) {
	n, err := c.u16()
	if err != nil {
		return "", err
	}
	if err := c.need(int(n)); err != nil {
		return "", err
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)

	return s, nil
}

func (c *metaCursor) str32() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	if err := c.need(int(n)); err != nil {
		return "", err
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)

	return s, nil
}

func (c *metaCursor) attribute() (attribute, error) {
	var a attribute

	name, err := c.str16()
	if err != nil {
		return a, err
	}
	kind, err := c.u8()
	if err != nil {
		return a, err
	}
	a.Name = name

	switch kind {
	case attrInt64:
		bits, err := c.u64()
		if err != nil {
			return a, err
		}
		a.Value = int64(bits)
	case attrFloat64:
		bits, err := c.u64()
		if err != nil {
			return a, err
		}
		a.Value = math.Float64frombits(bits)
	case attrString:
		s, err := c.str32()
		if err != nil {
			return a, err
		}
		a.Value = s
	case attrInt64Slice:
		count, err := c.u32()
		if err != nil {
			return a, err
		}
		out := make([]int64, count)
		for i := range out {
			bits, err := c.u64()
			if err != nil {
				return a, err
			}
			out[i] = int64(bits)
		}
		a.Value = out
	case attrFloat64Slice:
		count, err := c.u32()
		if err != nil {
			return a, err
		}
		out := make([]float64, count)
		for i := range out {
			bits, err := c.u64()
			if err != nil {
				return a, err
			}
			out[i] = math.Float64frombits(bits)
		}
		a.Value = out
	case attrStringList:
		count, err := c.u32()
		if err != nil {
			return a, err
		}
		out := make([]string, count)
		for i := range out {
			s, err := c.str16()
			if err != nil {
				return a, err
			}
			out[i] = s
		}
		a.Value = out
	default:
		return a, fmt.Errorf("unknown attribute kind 0x%x for %q", kind, name)
	}

	return a, nil
}

func (c *metaCursor) attributes() ([]attribute, error) {
	count, err := c.u32()
	if err != nil {
		return nil, err
	}

	attrs := make([]attribute, 0, count)
	for i := uint32(0); i < count; i++ {
		a, err := c.attribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}

	return attrs, nil
}
