package collective

import (
	"fmt"
	"sync"

	"github.com/sfogerty/parthenon/errs"
)

type opKind uint8

const (
	opAllGather opKind = iota + 1
	opAllGatherv
	opGatherv
	opBarrier
)

func (k opKind) String() string {
	switch k {
	case opAllGather:
		return "AllGather"
	case opAllGatherv:
		return "AllGatherv"
	case opGatherv:
		return "Gatherv"
	case opBarrier:
		return "Barrier"
	default:
		return "Unknown"
	}
}

// hub is the shared rendezvous for one local group. Each collective is a
// generation: ranks deposit their buffer, the last arrival publishes the
// gathered result and advances the generation, waiters wake and read it.
// The published result stays valid until the next collective completes,
// which cannot happen before every waiter has re-entered.
type hub struct {
	mu   sync.Mutex
	cond *sync.Cond

	size    int
	slots   [][]byte
	arrived int
	gen     uint64

	kind opKind
	root int

	result [][]byte
	err    error
}

func newHub(size int) *hub {
	h := &hub{
		size:  size,
		slots: make([][]byte, size),
	}
	h.cond = sync.NewCond(&h.mu)

	return h
}

// exchange runs one collective round and returns the rank-ordered buffers.
// Mismatched operations across ranks are reported as an error on every rank
// instead of deadlocking, which a real transport cannot promise but which
// keeps misuse debuggable in-process.
func (h *hub) exchange(rank int, kind opKind, root int, send []byte) ([][]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	myGen := h.gen

	if h.arrived == 0 {
		h.kind = kind
		h.root = root
		h.err = nil
	} else if h.kind != kind || h.root != root {
		h.err = fmt.Errorf("%w: rank %d entered %s(root=%d) while group is in %s(root=%d)",
			errs.ErrCollectiveMismatch, rank, kind, root, h.kind, h.root)
	}

	// Deposit a copy so callers may reuse their buffer immediately.
	if send != nil {
		h.slots[rank] = append([]byte(nil), send...)
	} else {
		h.slots[rank] = nil
	}
	h.arrived++

	if h.arrived == h.size {
		out := make([][]byte, h.size)
		copy(out, h.slots)
		for i := range h.slots {
			h.slots[i] = nil
		}
		h.result = out
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()

		return out, h.err
	}

	for h.gen == myGen {
		h.cond.Wait()
	}

	return h.result, h.err
}

// localGroup is one rank's handle on an in-process group.
type localGroup struct {
	hub  *hub
	rank int
}

var _ Group = (*localGroup)(nil)

// NewLocalGroups creates an in-process group of size ranks and returns one
// Group handle per rank. Each handle must be driven by its own goroutine
// (or by the sole caller when size is 1).
func NewLocalGroups(size int) []Group {
	if size < 1 {
		size = 1
	}

	h := newHub(size)
	groups := make([]Group, size)
	for r := 0; r < size; r++ {
		groups[r] = &localGroup{hub: h, rank: r}
	}

	return groups
}

// Single returns a one-rank group for serial runs.
func Single() Group {
	return NewLocalGroups(1)[0]
}

func (g *localGroup) Rank() int {
	return g.rank
}

func (g *localGroup) Size() int {
	return g.hub.size
}

func (g *localGroup) AllGather(send []byte) ([]byte, error) {
	parts, err := g.hub.exchange(g.rank, opAllGather, -1, send)
	if err != nil {
		return nil, err
	}

	want := len(send)
	total := 0
	for r, p := range parts {
		if len(p) != want {
			return nil, fmt.Errorf("%w: AllGather rank %d sent %d bytes, rank %d sent %d",
				errs.ErrCollectiveMismatch, g.rank, want, r, len(p))
		}
		total += len(p)
	}

	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}

	return out, nil
}

func (g *localGroup) AllGatherv(send []byte, counts []int) ([]byte, error) {
	if len(counts) != g.hub.size {
		return nil, fmt.Errorf("%w: AllGatherv count table has %d entries for %d ranks",
			errs.ErrCollectiveMismatch, len(counts), g.hub.size)
	}
	if counts[g.rank] != len(send) {
		return nil, fmt.Errorf("%w: AllGatherv rank %d sending %d bytes but count table says %d",
			errs.ErrCollectiveMismatch, g.rank, len(send), counts[g.rank])
	}

	parts, err := g.hub.exchange(g.rank, opAllGatherv, -1, send)
	if err != nil {
		return nil, err
	}

	total := 0
	for r, p := range parts {
		if len(p) != counts[r] {
			return nil, fmt.Errorf("%w: AllGatherv rank %d sent %d bytes, count table says %d",
				errs.ErrCollectiveMismatch, r, len(p), counts[r])
		}
		total += len(p)
	}

	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}

	return out, nil
}

func (g *localGroup) Gatherv(root int, send []byte) ([][]byte, error) {
	if root < 0 || root >= g.hub.size {
		return nil, fmt.Errorf("%w: Gatherv root %d of %d", errs.ErrInvalidRank, root, g.hub.size)
	}

	parts, err := g.hub.exchange(g.rank, opGatherv, root, send)
	if err != nil {
		return nil, err
	}

	if g.rank != root {
		return nil, nil
	}

	return parts, nil
}

func (g *localGroup) Barrier() error {
	_, err := g.hub.exchange(g.rank, opBarrier, -1, nil)

	return err
}
