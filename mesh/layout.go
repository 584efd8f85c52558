package mesh

import (
	"fmt"

	"github.com/sfogerty/parthenon/errs"
)

// Layout is the global block ordering: rank r owns the contiguous range
// [Offset(r), Offset(r)+Count(r)) of the 0-based global block index space.
// Offsets are the prefix sum of the rank-ordered count table, so the ranges
// are disjoint, contiguous and cover [0, TotalBlocks) by construction.
//
// Every rank computes the layout from the identical count table, yielding
// bit-identical layouts with no extra communication.
type Layout struct {
	counts  []int
	offsets []int
	total   int
}

// NewLayout builds a layout from the rank-ordered per-rank block counts.
func NewLayout(counts []int) (*Layout, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: empty count table", errs.ErrLayoutInvalid)
	}

	l := &Layout{
		counts:  make([]int, len(counts)),
		offsets: make([]int, len(counts)),
	}
	copy(l.counts, counts)

	offset := 0
	for r, n := range counts {
		if n < 0 {
			return nil, fmt.Errorf("%w: rank %d has negative block count %d", errs.ErrLayoutInvalid, r, n)
		}
		l.offsets[r] = offset
		offset += n
	}
	l.total = offset

	return l, nil
}

// Ranks returns the number of participating ranks.
func (l *Layout) Ranks() int {
	return len(l.counts)
}

// TotalBlocks returns the global block count.
func (l *Layout) TotalBlocks() int {
	return l.total
}

// Range returns rank r's half-open global block index range.
func (l *Layout) Range(r int) (offset, count int, err error) {
	if r < 0 || r >= len(l.counts) {
		return 0, 0, fmt.Errorf("%w: rank %d of %d", errs.ErrInvalidRank, r, len(l.counts))
	}

	return l.offsets[r], l.counts[r], nil
}

// Counts returns a copy of the per-rank count table.
func (l *Layout) Counts() []int {
	out := make([]int, len(l.counts))
	copy(out, l.counts)

	return out
}
