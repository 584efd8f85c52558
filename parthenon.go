// Package parthenon implements distributed output-catalog reconciliation
// and collective dataset writing for block-structured simulation data.
//
// A run is decomposed into uniform grid blocks distributed across ranks.
// At each output event the ranks agree, without a coordinator, on the
// global block ordering and on the complete variable catalog, then write
// every variable into one shared container file in a canonical layout
// that is independent of how blocks happen to be distributed.
//
// # Core Features
//
//   - Compact variable descriptor codec (label + packed int32 shape/flags)
//   - Two-round, coordinator-free catalog reconciliation over gather
//     collectives, with fatal detection of inconsistent variable shapes
//   - Sparse variable presence bitmaps with deterministic zero-fill for
//     absent blocks
//   - Self-describing chunked container files with per-chunk checksums and
//     optional compression (Deflate, Zstd, S2, LZ4)
//   - Restart files embedding the full run configuration, and
//     visualization files with an XDMF companion document
//
// # Basic Usage
//
// Writing one output event from a single-process run:
//
//	import "github.com/sfogerty/parthenon"
//
//	params, _ := config.Load("run.toml")
//	writer := parthenon.NewSingleProcessWriter(domain, params)
//
//	file, err := writer.Write("viz", blocks, output.SimState{
//	    Cycle: cycle,
//	    Time:  time,
//	    Dt:    dt,
//	})
//
// In a distributed run each rank constructs its writer over its own
// collective.Group and calls Write collectively with its locally owned
// blocks; every rank receives the same filename.
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the output
// package. For fine-grained control use the catalog, collective,
// container, mesh and output packages directly.
package parthenon

import (
	"github.com/sfogerty/parthenon/catalog"
	"github.com/sfogerty/parthenon/collective"
	"github.com/sfogerty/parthenon/config"
	"github.com/sfogerty/parthenon/mesh"
	"github.com/sfogerty/parthenon/output"
)

// NewSingleProcessWriter creates an output writer for a run without rank
// parallelism. Collectives degenerate to local copies.
func NewSingleProcessWriter(domain *mesh.Domain, params *config.Parameters) *output.Writer {
	return output.NewWriter(collective.Single(), domain, params)
}

// NewLocalWriters creates one writer per rank of an in-process group,
// driving each rank as its own goroutine. makeParams must return a fresh,
// identical Parameters value per rank: each rank advances its own copy
// after a successful event.
func NewLocalWriters(size int, domain *mesh.Domain, makeParams func() *config.Parameters) []*output.Writer {
	groups := collective.NewLocalGroups(size)
	writers := make([]*output.Writer, size)
	for r := range writers {
		writers[r] = output.NewWriter(groups[r], domain, makeParams())
	}

	return writers
}

// VariableCode packs a field's shape and capability flags into the wire
// code exchanged during catalog reconciliation.
func VariableCode(f *mesh.Field) (int32, error) {
	d, err := catalog.NewDescriptor(f)
	if err != nil {
		return 0, err
	}

	return d.Encode()
}
