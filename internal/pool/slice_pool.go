package pool

import "sync"

// Pools for the writer's per-variable staging storage. One output event
// reuses a single staging slice across every variable, but concurrent
// in-process ranks each hold their own, so the slices still cycle through
// a pool instead of being reallocated per event.
var (
	float64SlicePool = sync.Pool{
		New: func() any { return &[]float64{} },
	}
	byteSlicePool = sync.Pool{
		New: func() any { return &[]byte{} },
	}
)

// GetFloat64Slice retrieves a float64 slice of exactly the requested length
// from the pool, allocating when the pooled slice is too small.
//
// The caller must call the returned cleanup function (typically with defer)
// to return the slice to the pool. The slice contents are unspecified; the
// writer zeroes it before each variable.
//
// Parameters:
//   - size: desired slice length
//
// Returns:
//   - []float64: slice with length equal to size
//   - func(): cleanup function returning the slice to the pool
func GetFloat64Slice(size int) ([]float64, func()) {
	ptr, _ := float64SlicePool.Get().(*[]float64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]float64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { float64SlicePool.Put(ptr) }
}

// GetByteSlice retrieves a byte slice of exactly the requested length from
// the pool, allocating when the pooled slice is too small.
//
// Used for the precision-converted wire image of a staging buffer before it
// enters the collective gather.
//
// Parameters:
//   - size: desired slice length
//
// Returns:
//   - []byte: slice with length equal to size
//   - func(): cleanup function returning the slice to the pool
func GetByteSlice(size int) ([]byte, func()) {
	ptr, _ := byteSlicePool.Get().(*[]byte)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]byte, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { byteSlicePool.Put(ptr) }
}
