// Package collective provides the process-group exchange primitives the
// catalog reconciler and dataset writer are built on.
//
// Every operation is a blocking collective: all ranks of a group must
// invoke the same operation, in the same relative order, or the group
// stalls. There is no cancellation and no timeout; a rank that fails before
// entering a collective aborts the whole output event.
//
// The in-process implementation (NewLocalGroups) runs each rank as a
// goroutine and is what the tests and single-process runs use; a real
// multi-process transport implements the same interface.
package collective

// Group is one rank's view of a cooperating process group.
type Group interface {
	// Rank returns this process's 0-based rank within the group.
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// AllGather exchanges a fixed-size buffer: every rank contributes
	// len(send) bytes (identical on all ranks) and receives the rank-ordered
	// concatenation of all contributions, Size()*len(send) bytes long and
	// bit-identical on every rank.
	AllGather(send []byte) ([]byte, error)

	// AllGatherv exchanges variable-length buffers. counts holds the
	// expected byte count per rank, previously agreed via AllGather;
	// counts[Rank()] must equal len(send). The result is the rank-ordered
	// concatenation, bit-identical on every rank.
	AllGatherv(send []byte, counts []int) ([]byte, error)

	// Gatherv collects every rank's buffer at root. The root rank receives
	// the rank-ordered per-rank buffers; all other ranks receive nil.
	Gatherv(root int, send []byte) ([][]byte, error)

	// Barrier blocks until every rank has entered it.
	Barrier() error
}
