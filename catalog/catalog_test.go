package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

func TestCatalogOrdering(t *testing.T) {
	c := New()
	for _, label := range []string{"zeta", "alpha", "mid", "Alpha", "alpha.sub"} {
		require.NoError(t, c.Add(Descriptor{Label: label, Components: 1}))
	}

	var got []string
	for i := 0; i < c.Len(); i++ {
		got = append(got, c.At(i).Label)
	}
	// Byte-wise comparison: uppercase sorts before lowercase.
	require.Equal(t, []string{"Alpha", "alpha", "alpha.sub", "mid", "zeta"}, got)
}

func TestCatalogDuplicateConsistency(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "foo", Components: 4}))

	// Idempotent re-insert.
	require.NoError(t, c.Add(Descriptor{Label: "foo", Components: 4}))
	require.Equal(t, 1, c.Len())

	// Conflicting shape is fatal.
	err := c.Add(Descriptor{Label: "foo", Components: 5})
	require.ErrorIs(t, err, errs.ErrComponentMismatch)
	require.Contains(t, err.Error(), "foo")
}

func TestCatalogFreeze(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "rho", Components: 1}))
	require.False(t, c.Frozen())

	c.Freeze()
	require.True(t, c.Frozen())
	require.ErrorIs(t, c.Add(Descriptor{Label: "new", Components: 1}), errs.ErrCatalogFrozen)
	require.Equal(t, 1, c.Len())
}

func TestCatalogLookup(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "rho", Components: 1}))
	require.NoError(t, c.Add(Descriptor{Label: "vel", Components: 3, Vector: true}))

	d, ok := c.Lookup("vel")
	require.True(t, ok)
	require.Equal(t, 3, d.Components)

	_, ok = c.Lookup("missing")
	require.False(t, ok)
}

func TestSparseLabelsOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "zz.sparse", Components: 1, Sparse: true}))
	require.NoError(t, c.Add(Descriptor{Label: "rho", Components: 1}))
	require.NoError(t, c.Add(Descriptor{Label: "aa.sparse", Components: 2, Sparse: true}))

	require.Equal(t, []string{"aa.sparse", "zz.sparse"}, c.SparseLabels())
	require.Equal(t, 2, c.MaxComponents())
}

func TestBuild(t *testing.T) {
	blocks := []*mesh.Block{
		{
			GlobalID: 0,
			Fields: []*mesh.Field{
				{Label: "rho", Components: 1, Flags: format.FlagIndependent},
				{Label: "mag", Components: 3, Flags: format.FlagIndependent | format.FlagSparse | format.FlagVector},
				{Label: "derived", Components: 1}, // not selected
			},
		},
		{
			GlobalID: 1,
			Fields: []*mesh.Field{
				{Label: "rho", Components: 1, Flags: format.FlagIndependent},
			},
		},
	}

	c, err := Build(blocks, mesh.SelectFlags(format.FlagIndependent|format.FlagRestart))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	require.Equal(t, "mag", c.At(0).Label)
	require.Equal(t, "rho", c.At(1).Label)
	require.True(t, c.At(0).Sparse)
	require.True(t, c.At(0).Vector)
}

func TestBuildComponentMismatchNamesBlock(t *testing.T) {
	blocks := []*mesh.Block{
		{
			GlobalID: 7,
			Fields:   []*mesh.Field{{Label: "foo", Components: 4, Flags: format.FlagIndependent}},
		},
		{
			GlobalID: 9,
			Fields:   []*mesh.Field{{Label: "foo", Components: 5, Flags: format.FlagIndependent}},
		},
	}

	_, err := Build(blocks, mesh.SelectFlags(format.FlagIndependent))
	require.ErrorIs(t, err, errs.ErrComponentMismatch)
	require.Contains(t, err.Error(), "block 9")
	require.Contains(t, err.Error(), "foo")
}

func TestBuildEmpty(t *testing.T) {
	c, err := Build(nil, mesh.SelectFlags(format.FlagIndependent))
	require.NoError(t, err)
	require.Equal(t, 0, c.Len())
}
