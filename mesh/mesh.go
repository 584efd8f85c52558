// Package mesh defines the collaborator-facing data model the output
// subsystem consumes: domain geometry, owned blocks with their active field
// instances, field selection predicates, and the global block layout.
//
// The mesh and AMR machinery itself lives outside this module; an embedding
// simulation fills these structs from its own block tree each output event.
package mesh

import (
	"github.com/sfogerty/parthenon/format"
)

// Domain describes the global computational domain and the uniform block
// cell dimensions. All values are identical on every rank.
type Domain struct {
	NDim int // number of active dimensions (1-3)

	// Interior cells per block along each axis. Inactive axes are 1.
	BlockNx, BlockNy, BlockNz int

	NGhost int // ghost cell layers around each block's interior

	Bounds             [6]float64 // x1min, x2min, x3min, x1max, x2max, x3max
	Ratios             [3]float64 // mesh spacing ratios per axis
	BoundaryConditions [6]int     // boundary-condition codes per face
	Coordinates        string     // coordinate system name

	RootLevel int
	MaxLevel  int

	NumNewBlocks     int
	NumDeletedBlocks int
	Adaptive         bool
	Multilevel       bool
}

// active reports which axes carry more than one cell.
func (d *Domain) active(axis int) bool {
	return axis < d.NDim
}

// FullDims returns the per-block array dimensions including ghost layers on
// active axes. Field instance data must be sized to these dimensions.
func (d *Domain) FullDims() (fx, fy, fz int) {
	fx, fy, fz = d.BlockNx, d.BlockNy, d.BlockNz
	if d.active(0) {
		fx += 2 * d.NGhost
	}
	if d.active(1) {
		fy += 2 * d.NGhost
	}
	if d.active(2) {
		fz += 2 * d.NGhost
	}

	return fx, fy, fz
}

// OutDims returns the per-block output window dimensions: the full array
// when ghosts are included, the interior otherwise.
func (d *Domain) OutDims(includeGhost bool) (nx, ny, nz int) {
	if includeGhost {
		return d.FullDims()
	}

	return d.BlockNx, d.BlockNy, d.BlockNz
}

// OutStart returns the output window start index along each axis within the
// full per-block array.
func (d *Domain) OutStart(includeGhost bool) (sx, sy, sz int) {
	if includeGhost {
		return 0, 0, 0
	}
	if d.active(0) {
		sx = d.NGhost
	}
	if d.active(1) {
		sy = d.NGhost
	}
	if d.active(2) {
		sz = d.NGhost
	}

	return sx, sy, sz
}

// Field is one active field instance on one block.
//
// Data is stored component-major: Data[c*fz*fy*fx + k*fy*fx + j*fx + i]
// where (fx, fy, fz) are the block's full dimensions from Domain.FullDims.
type Field struct {
	Label      string
	Components int
	Flags      format.FieldFlag
	Data       []float64
}

// IsSparse reports whether the field may be absent from some blocks.
func (f *Field) IsSparse() bool {
	return f.Flags.Has(format.FlagSparse)
}

// IsVector reports whether the field's components form a spatial vector.
func (f *Field) IsVector() bool {
	return f.Flags.Has(format.FlagVector)
}

// Block is one locally owned grid block.
type Block struct {
	GlobalID       int
	LocalID        int
	Level          int
	CommGhostCount int
	StatusFlag     int

	Loc  [3]int64   // logical location within the level
	Xmin [3]float64 // minimum physical coordinate per active axis

	// Face coordinates over the full (ghost-inclusive) block extent;
	// lengths are FullDims()+1 per axis.
	FaceX, FaceY, FaceZ []float64

	Fields []*Field
}

// Find returns the field instance with the given label, or nil.
func (b *Block) Find(label string) *Field {
	for _, f := range b.Fields {
		if f.Label == label {
			return f
		}
	}

	return nil
}

// Selector decides which field instances participate in an output event.
// The predicate is supplied by the embedding code; the writer never
// interprets registry metadata beyond it.
type Selector func(*Field) bool

// SelectFlags selects fields matching at least one flag of mask.
func SelectFlags(mask format.FieldFlag) Selector {
	return func(f *Field) bool {
		return f.Flags.Any(mask)
	}
}

// SelectNames selects fields whose label appears in names.
func SelectNames(names []string) Selector {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	return func(f *Field) bool {
		_, ok := set[f.Label]
		return ok
	}
}
