package catalog

import (
	"fmt"
	"sort"

	"github.com/sfogerty/parthenon/errs"
)

// Catalog is an ordered set of descriptors, unique by label and sorted by
// byte-wise label comparison. The order is significant: it is the column
// index of the sparse bitmap and the write order of every rank's collective
// calls, so it must be bit-identical on every rank. A catalog is built per
// output event, frozen after reconciliation, and discarded with the event.
type Catalog struct {
	entries []Descriptor
	frozen  bool
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Add inserts d, keeping label order. Re-inserting an existing label is a
// consistency check: equal component counts are an idempotent no-op,
// differing counts are a fatal schema violation.
func (c *Catalog) Add(d Descriptor) error {
	if c.frozen {
		return fmt.Errorf("%w: cannot add %q", errs.ErrCatalogFrozen, d.Label)
	}
	if err := ValidateLabel(d.Label); err != nil {
		return err
	}

	i := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].Label >= d.Label
	})

	if i < len(c.entries) && c.entries[i].Label == d.Label {
		if c.entries[i].Components != d.Components {
			return fmt.Errorf("%w: variable %q seen with %d and %d components",
				errs.ErrComponentMismatch, d.Label, c.entries[i].Components, d.Components)
		}
		// Same shape: set union semantics, nothing to do. Flag bits are
		// derived from the same registry entry on every rank and cannot
		// legitimately differ when the component counts agree.
		return nil
	}

	c.entries = append(c.entries, Descriptor{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = d

	return nil
}

// Freeze makes the catalog read-only for the remainder of the output event.
func (c *Catalog) Freeze() {
	c.frozen = true
}

// Frozen reports whether the catalog has been frozen.
func (c *Catalog) Frozen() bool {
	return c.frozen
}

// Len returns the number of cataloged variables.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// At returns the i-th descriptor in catalog order.
func (c *Catalog) At(i int) Descriptor {
	return c.entries[i]
}

// Entries returns the descriptors in catalog order. The returned slice is
// shared; callers must not modify it.
func (c *Catalog) Entries() []Descriptor {
	return c.entries
}

// Lookup returns the descriptor with the given label.
func (c *Catalog) Lookup(label string) (Descriptor, bool) {
	i := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].Label >= label
	})
	if i < len(c.entries) && c.entries[i].Label == label {
		return c.entries[i], true
	}

	return Descriptor{}, false
}

// SparseLabels returns the labels of the sparse descriptors in catalog
// order. The position of a label in this list is the variable's column in
// the sparse presence bitmap.
func (c *Catalog) SparseLabels() []string {
	var labels []string
	for _, d := range c.entries {
		if d.Sparse {
			labels = append(labels, d.Label)
		}
	}

	return labels
}

// MaxComponents returns the largest component count in the catalog, or 0
// for an empty catalog. Used to size the shared staging buffer once.
func (c *Catalog) MaxComponents() int {
	maxComp := 0
	for _, d := range c.entries {
		if d.Components > maxComp {
			maxComp = d.Components
		}
	}

	return maxComp
}
