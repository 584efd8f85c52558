package output

import (
	"fmt"
	"math"

	"github.com/sfogerty/parthenon/catalog"
	"github.com/sfogerty/parthenon/endian"
	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

var wireEngine = endian.GetLittleEndianEngine()

// window is the per-block output extent resolved once per event.
type window struct {
	nx, ny, nz int // output cells per axis
	sx, sy, sz int // window start within the full block array
	fx, fy, fz int // full block array dims
}

func newWindow(d *mesh.Domain, includeGhost bool) window {
	var w window
	w.nx, w.ny, w.nz = d.OutDims(includeGhost)
	w.sx, w.sy, w.sz = d.OutStart(includeGhost)
	w.fx, w.fy, w.fz = d.FullDims()

	return w
}

// cellCount returns the output cells per block.
func (w window) cellCount() int {
	return w.nx * w.ny * w.nz
}

// fillVariable stages one variable's local slabs. The stage buffer holds
// len(blocks) slabs of cellCount*components values in global write order:
// block, z, y, x, component innermost. Absent sparse variables stay zero;
// an absent dense variable is fatal for the event.
func fillVariable(d catalog.Descriptor, blocks []*mesh.Block, selector mesh.Selector, win window, stage []float64) error {
	for i := range stage {
		stage[i] = 0
	}

	slab := win.cellCount() * d.Components
	for b, blk := range blocks {
		f := blk.Find(d.Label)
		if f == nil || !selector(f) {
			if d.Sparse {
				continue
			}

			return fmt.Errorf("%w: variable %q on block %d", errs.ErrDenseMissing, d.Label, blk.GlobalID)
		}

		fillBlock(f, win, stage[b*slab:(b+1)*slab])
	}

	return nil
}

// fillBlock copies one field instance's output window into dst, converting
// from the component-major source layout to component-innermost.
func fillBlock(f *mesh.Field, win window, dst []float64) {
	plane := win.fy * win.fx
	compStride := win.fz * plane
	nc := f.Components

	pos := 0
	for k := 0; k < win.nz; k++ {
		srcK := (win.sz + k) * plane
		for j := 0; j < win.ny; j++ {
			srcJ := srcK + (win.sy+j)*win.fx + win.sx
			for i := 0; i < win.nx; i++ {
				src := srcJ + i
				for c := 0; c < nc; c++ {
					dst[pos] = f.Data[c*compStride+src]
					pos++
				}
			}
		}
	}
}

// encodeStage converts staged values to little-endian wire bytes at the
// event precision. dst must hold len(stage)*precision.Size() bytes.
func encodeStage(stage []float64, precision format.Precision, dst []byte) {
	if precision == format.PrecisionFloat32 {
		for i, v := range stage {
			wireEngine.PutUint32(dst[4*i:], math.Float32bits(float32(v)))
		}

		return
	}

	for i, v := range stage {
		wireEngine.PutUint64(dst[8*i:], math.Float64bits(v))
	}
}

func encodeFloat64s(values []float64) []byte {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		buf = wireEngine.AppendUint64(buf, math.Float64bits(v))
	}

	return buf
}

func encodeInt64s(values []int64) []byte {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		buf = wireEngine.AppendUint64(buf, uint64(v))
	}

	return buf
}

func encodeBools(values []bool) []byte {
	buf := make([]byte, len(values))
	for i, v := range values {
		if v {
			buf[i] = 1
		}
	}

	return buf
}

// faceSlice extracts the output window's face coordinates along one axis:
// count+1 points starting at the window start index. faces spans the full
// block extent.
func faceSlice(faces []float64, start, count int) []float64 {
	out := make([]float64, count+1)
	copy(out, faces[start:start+count+1])

	return out
}

// blockXmin encodes every local block's minimum coordinate, ndim values
// per block.
func blockXmin(blocks []*mesh.Block, ndim int) []float64 {
	out := make([]float64, 0, len(blocks)*ndim)
	for _, blk := range blocks {
		out = append(out, blk.Xmin[:ndim]...)
	}

	return out
}

// blockLogicalLocations encodes every local block's logical location
// triple.
func blockLogicalLocations(blocks []*mesh.Block) []int64 {
	out := make([]int64, 0, len(blocks)*3)
	for _, blk := range blocks {
		out = append(out, blk.Loc[0], blk.Loc[1], blk.Loc[2])
	}

	return out
}

// blockStateTuples encodes every local block's level, global id, local id,
// ghost communication count and status flag.
func blockStateTuples(blocks []*mesh.Block) []int64 {
	out := make([]int64, 0, len(blocks)*5)
	for _, blk := range blocks {
		out = append(out,
			int64(blk.Level),
			int64(blk.GlobalID),
			int64(blk.LocalID),
			int64(blk.CommGhostCount),
			int64(blk.StatusFlag),
		)
	}

	return out
}
