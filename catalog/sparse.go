package catalog

import (
	"github.com/sfogerty/parthenon/mesh"
)

// SparseBitmap is the per-block presence table for the sparse variables of
// a frozen catalog. Rows are this rank's locally owned blocks in local
// order; columns are the sparse variables in catalog order. An entry is
// true iff the variable is materially allocated on that block: the on-disk
// slab of a false entry is zero-filled, never omitted, so the bitmap (not
// the storage layout) is what encodes sparsity on disk.
type SparseBitmap struct {
	labels []string
	rows   int
	bits   []bool
}

// BuildSparseBitmap derives the presence table from the frozen catalog and
// this rank's blocks. Presence means a selected field instance with the
// sparse variable's label exists on the block; a present-but-zero-valued
// field is still present.
func BuildSparseBitmap(c *Catalog, blocks []*mesh.Block, selector mesh.Selector) *SparseBitmap {
	labels := c.SparseLabels()

	bm := &SparseBitmap{
		labels: labels,
		rows:   len(blocks),
		bits:   make([]bool, len(blocks)*len(labels)),
	}

	for row, b := range blocks {
		for col, label := range labels {
			f := b.Find(label)
			if f != nil && selector(f) {
				bm.bits[row*len(labels)+col] = true
			}
		}
	}

	return bm
}

// Labels returns the sparse variable labels in column order.
func (bm *SparseBitmap) Labels() []string {
	return bm.labels
}

// NumSparse returns the number of sparse variables (columns).
func (bm *SparseBitmap) NumSparse() int {
	return len(bm.labels)
}

// Rows returns the number of local blocks (rows).
func (bm *SparseBitmap) Rows() int {
	return bm.rows
}

// Get reports presence of sparse column col on local block row.
func (bm *SparseBitmap) Get(row, col int) bool {
	return bm.bits[row*len(bm.labels)+col]
}

// Bools returns the table in row-major order, ready to become this rank's
// slice of the SparseInfo dataset.
func (bm *SparseBitmap) Bools() []bool {
	return bm.bits
}
