package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/collective"
	"github.com/sfogerty/parthenon/errs"
)

// reconcileRanks runs Reconcile concurrently on per-rank catalogs built
// from the given descriptor sets and returns the catalogs and errors.
func reconcileRanks(t *testing.T, perRank [][]Descriptor) ([]*Catalog, []error) {
	t.Helper()

	size := len(perRank)
	groups := collective.NewLocalGroups(size)
	catalogs := make([]*Catalog, size)
	errors := make([]error, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		c := New()
		for _, d := range perRank[r] {
			require.NoError(t, c.Add(d))
		}
		catalogs[r] = c

		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			errors[r] = Reconcile(groups[r], catalogs[r])
		}(r)
	}
	wg.Wait()

	return catalogs, errors
}

func labelsOf(c *Catalog) []string {
	var out []string
	for i := 0; i < c.Len(); i++ {
		out = append(out, c.At(i).Label)
	}

	return out
}

func TestReconcileConverges(t *testing.T) {
	perRank := [][]Descriptor{
		{{Label: "rho", Components: 1}, {Label: "mag", Components: 3, Sparse: true}},
		{{Label: "rho", Components: 1}, {Label: "vel", Components: 3, Vector: true}},
		{{Label: "zelda", Components: 2, Sparse: true}},
	}

	catalogs, errors := reconcileRanks(t, perRank)
	for r, err := range errors {
		require.NoError(t, err, "rank %d", r)
	}

	want := []string{"mag", "rho", "vel", "zelda"}
	for r, c := range catalogs {
		require.Equal(t, want, labelsOf(c), "rank %d", r)
		require.Equal(t, catalogs[0].Entries(), c.Entries(), "rank %d", r)
	}

	// Flags and shapes survived the wire.
	d, ok := catalogs[2].Lookup("mag")
	require.True(t, ok)
	require.True(t, d.Sparse)
	require.Equal(t, 3, d.Components)

	d, ok = catalogs[0].Lookup("vel")
	require.True(t, ok)
	require.True(t, d.Vector)
}

func TestReconcileDistributionIndependent(t *testing.T) {
	all := []Descriptor{
		{Label: "a", Components: 1},
		{Label: "b", Components: 2, Sparse: true},
		{Label: "c", Components: 3, Vector: true},
		{Label: "d", Components: 4},
	}

	distributions := [][][]Descriptor{
		{all, nil},                           // everything on rank 0
		{nil, all},                           // everything on rank 1
		{all[:2], all[2:]},                   // split
		{{all[0], all[2]}, {all[1], all[3]}}, // interleaved
		{all, all},                           // fully replicated
		{{all[3], all[1]}, {all[0], all[2], all[1]}}, // overlapping
	}

	var reference []string
	for _, perRank := range distributions {
		catalogs, errors := reconcileRanks(t, perRank)
		for r, err := range errors {
			require.NoError(t, err, "rank %d", r)
		}

		got := labelsOf(catalogs[0])
		require.Equal(t, labelsOf(catalogs[1]), got)
		if reference == nil {
			reference = got
		} else {
			require.Equal(t, reference, got)
		}
	}
}

func TestReconcileSingleRank(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "rho", Components: 1}))

	require.NoError(t, Reconcile(collective.Single(), c))
	require.Equal(t, []string{"rho"}, labelsOf(c))
}

func TestReconcileEmptyRank(t *testing.T) {
	// A rank with no selected fields still participates in the round.
	perRank := [][]Descriptor{
		{{Label: "rho", Components: 1}},
		nil,
	}

	catalogs, errors := reconcileRanks(t, perRank)
	require.NoError(t, errors[0])
	require.NoError(t, errors[1])
	require.Equal(t, []string{"rho"}, labelsOf(catalogs[0]))
	require.Equal(t, []string{"rho"}, labelsOf(catalogs[1]))
}

func TestReconcileIdempotent(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "rho", Components: 1}))
	require.NoError(t, c.Add(Descriptor{Label: "mag", Components: 3, Sparse: true}))

	require.NoError(t, Reconcile(collective.Single(), c))
	first := append([]Descriptor(nil), c.Entries()...)

	require.NoError(t, Reconcile(collective.Single(), c))
	require.Equal(t, first, c.Entries())
}

func TestReconcileComponentConflict(t *testing.T) {
	// Same label, different component counts on different ranks: every
	// rank must fail before any write occurs.
	perRank := [][]Descriptor{
		{{Label: "foo", Components: 4}},
		{{Label: "foo", Components: 5}},
	}

	_, errors := reconcileRanks(t, perRank)
	require.ErrorIs(t, errors[0], errs.ErrComponentMismatch)
	require.ErrorIs(t, errors[1], errs.ErrComponentMismatch)
}

func TestReconcileFrozenCatalog(t *testing.T) {
	c := New()
	c.Freeze()
	require.ErrorIs(t, Reconcile(collective.Single(), c), errs.ErrCatalogFrozen)
}

func TestParseLabels(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		labels, err := parseLabels([]byte("a\tbb\tccc\t"))
		require.NoError(t, err)
		require.Equal(t, []string{"a", "bb", "ccc"}, labels)
	})

	t.Run("empty buffer", func(t *testing.T) {
		labels, err := parseLabels(nil)
		require.NoError(t, err)
		require.Empty(t, labels)
	})

	t.Run("missing terminator", func(t *testing.T) {
		_, err := parseLabels([]byte("a\tbb"))
		require.ErrorIs(t, err, errs.ErrProtocolCorrupt)
	})

	t.Run("empty label", func(t *testing.T) {
		_, err := parseLabels([]byte("a\t\tb\t"))
		require.ErrorIs(t, err, errs.ErrProtocolCorrupt)
	})
}
