package catalog

import (
	"fmt"

	"github.com/sfogerty/parthenon/collective"
	"github.com/sfogerty/parthenon/endian"
	"github.com/sfogerty/parthenon/errs"
)

// Reconcile merges every rank's local catalog into one globally identical,
// label-ordered catalog, in place, without a central coordinator.
//
// The protocol is a single blocking synchronization round:
//
//  1. Serialize the local catalog into two co-indexed flat buffers: a
//     delimiter-terminated label sequence and a little-endian int32 code
//     sequence.
//  2. AllGather the fixed-size buffer lengths (label bytes, code count).
//  3. Compute the per-rank byte count tables; they are a pure function of
//     step 2's result, hence identical everywhere.
//  4. AllGatherv both buffers into global concatenations, bit-identical on
//     every rank.
//  5. Parse and union-insert every (label, code) pair with the same
//     duplicate-consistency check used during local discovery.
//
// Insertion is a consistency-checked set union: commutative and idempotent,
// so all ranks converge to the same ordered catalog with no further
// communication. Re-running Reconcile on an already complete catalog
// changes nothing.
func Reconcile(g collective.Group, local *Catalog) error {
	if local.Frozen() {
		return fmt.Errorf("%w: cannot reconcile", errs.ErrCatalogFrozen)
	}

	engine := endian.GetLittleEndianEngine()

	labelBuf, codeBuf, err := serialize(local, engine)
	if err != nil {
		return err
	}

	// Round 1: fixed-size length exchange.
	header := make([]byte, 0, 8)
	header = engine.AppendUint32(header, uint32(len(labelBuf)))
	header = engine.AppendUint32(header, uint32(local.Len()))

	lengths, err := g.AllGather(header)
	if err != nil {
		return fmt.Errorf("catalog length exchange: %w", err)
	}

	labelCounts := make([]int, g.Size())
	codeCounts := make([]int, g.Size())
	totalCodes := 0
	for r := 0; r < g.Size(); r++ {
		labelCounts[r] = int(engine.Uint32(lengths[r*8 : r*8+4]))
		codeCounts[r] = 4 * int(engine.Uint32(lengths[r*8+4:r*8+8]))
		totalCodes += codeCounts[r] / 4
	}

	// Round 2: variable-length exchange of both buffers.
	allLabels, err := g.AllGatherv(labelBuf, labelCounts)
	if err != nil {
		return fmt.Errorf("catalog label exchange: %w", err)
	}
	allCodes, err := g.AllGatherv(codeBuf, codeCounts)
	if err != nil {
		return fmt.Errorf("catalog code exchange: %w", err)
	}

	labels, err := parseLabels(allLabels)
	if err != nil {
		return err
	}
	if len(labels) != totalCodes {
		return fmt.Errorf("%w: %d labels but %d codes", errs.ErrProtocolCorrupt, len(labels), totalCodes)
	}

	for i, label := range labels {
		code := int32(engine.Uint32(allCodes[i*4 : i*4+4]))
		if err := local.Add(Decode(label, code)); err != nil {
			return err
		}
	}

	return nil
}

// serialize flattens the catalog into the two wire buffers. The label
// buffer holds every label followed by the delimiter byte; the code buffer
// holds the matching descriptor codes as little-endian int32 values.
func serialize(c *Catalog, engine endian.EndianEngine) (labelBuf, codeBuf []byte, err error) {
	for _, d := range c.Entries() {
		code, err := d.Encode()
		if err != nil {
			return nil, nil, err
		}

		labelBuf = append(labelBuf, d.Label...)
		labelBuf = append(labelBuf, Delimiter)
		codeBuf = engine.AppendUint32(codeBuf, uint32(code))
	}

	return labelBuf, codeBuf, nil
}

// parseLabels splits the gathered label buffer on the delimiter. The buffer
// must be delimiter-terminated and contain no empty labels; anything else
// means a rank contributed a corrupt buffer and the event must abort.
func parseLabels(buf []byte) ([]string, error) {
	var labels []string

	start := 0
	for i, b := range buf {
		if b != Delimiter {
			continue
		}
		if i == start {
			return nil, fmt.Errorf("%w: empty label at byte %d", errs.ErrProtocolCorrupt, i)
		}
		labels = append(labels, string(buf[start:i]))
		start = i + 1
	}
	if start != len(buf) {
		return nil, fmt.Errorf("%w: label buffer does not end with delimiter", errs.ErrProtocolCorrupt)
	}

	return labels, nil
}
