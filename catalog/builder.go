package catalog

import (
	"fmt"

	"github.com/sfogerty/parthenon/mesh"
)

// Build scans this rank's owned blocks and returns the local catalog of
// selected field instances, deduplicated and consistency-checked by label.
//
// The result reflects only what this rank can see: it may be a strict
// subset of the eventual global catalog, and sparse fields that live only
// on other ranks' blocks are legitimately absent from it.
func Build(blocks []*mesh.Block, selector mesh.Selector) (*Catalog, error) {
	c := New()

	for _, b := range blocks {
		for _, f := range b.Fields {
			if !selector(f) {
				continue
			}

			d, err := NewDescriptor(f)
			if err != nil {
				return nil, fmt.Errorf("block %d, field %q: %w", b.GlobalID, f.Label, err)
			}

			if err := c.Add(d); err != nil {
				// Name the conflicting block so the schema violation can be
				// traced to a field instance.
				return nil, fmt.Errorf("block %d: %w", b.GlobalID, err)
			}
		}
	}

	return c, nil
}
