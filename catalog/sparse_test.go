package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

func sparseField(label string, components int) *mesh.Field {
	return &mesh.Field{
		Label:      label,
		Components: components,
		Flags:      format.FlagIndependent | format.FlagSparse,
	}
}

func denseField(label string, components int) *mesh.Field {
	return &mesh.Field{
		Label:      label,
		Components: components,
		Flags:      format.FlagIndependent,
	}
}

func TestBuildSparseBitmap(t *testing.T) {
	blocks := []*mesh.Block{
		{GlobalID: 0, Fields: []*mesh.Field{denseField("rho", 1), sparseField("mag", 3)}},
		{GlobalID: 1, Fields: []*mesh.Field{denseField("rho", 1)}},
		{GlobalID: 2, Fields: []*mesh.Field{denseField("rho", 1), sparseField("ion", 1)}},
	}

	c, err := Build(blocks, mesh.SelectFlags(format.FlagIndependent))
	require.NoError(t, err)

	bm := BuildSparseBitmap(c, blocks, mesh.SelectFlags(format.FlagIndependent))
	require.Equal(t, []string{"ion", "mag"}, bm.Labels())
	require.Equal(t, 2, bm.NumSparse())
	require.Equal(t, 3, bm.Rows())

	// Rows are blocks in order, columns follow catalog label order.
	require.False(t, bm.Get(0, 0)) // ion absent on block 0
	require.True(t, bm.Get(0, 1))  // mag present on block 0
	require.False(t, bm.Get(1, 0))
	require.False(t, bm.Get(1, 1))
	require.True(t, bm.Get(2, 0))
	require.False(t, bm.Get(2, 1))

	require.Equal(t, []bool{
		false, true,
		false, false,
		true, false,
	}, bm.Bools())
}

func TestBuildSparseBitmapNoSparse(t *testing.T) {
	blocks := []*mesh.Block{
		{GlobalID: 0, Fields: []*mesh.Field{denseField("rho", 1)}},
		{GlobalID: 1, Fields: []*mesh.Field{denseField("rho", 1)}},
	}

	c, err := Build(blocks, mesh.SelectFlags(format.FlagIndependent))
	require.NoError(t, err)

	bm := BuildSparseBitmap(c, blocks, mesh.SelectFlags(format.FlagIndependent))
	require.Empty(t, bm.Labels())
	require.Zero(t, bm.NumSparse())
	require.Equal(t, 2, bm.Rows())
	require.Empty(t, bm.Bools())
}

func TestBuildSparseBitmapSelectorFilters(t *testing.T) {
	// A sparse field that the selector rejects does not count as present.
	restartOnly := sparseField("mag", 3)
	restartOnly.Flags = format.FlagRestart | format.FlagSparse

	blocks := []*mesh.Block{
		{GlobalID: 0, Fields: []*mesh.Field{sparseField("mag", 3)}},
		{GlobalID: 1, Fields: []*mesh.Field{restartOnly}},
	}

	c, err := Build(blocks, mesh.SelectFlags(format.FlagIndependent|format.FlagRestart))
	require.NoError(t, err)

	bm := BuildSparseBitmap(c, blocks, mesh.SelectFlags(format.FlagIndependent))
	require.Equal(t, []string{"mag"}, bm.Labels())
	require.True(t, bm.Get(0, 0))
	require.False(t, bm.Get(1, 0))
}

func TestCatalogSparseLabels(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(Descriptor{Label: "vel", Components: 3, Vector: true}))
	require.NoError(t, c.Add(Descriptor{Label: "ion", Components: 1, Sparse: true}))
	require.NoError(t, c.Add(Descriptor{Label: "mag", Components: 3, Sparse: true}))

	require.Equal(t, []string{"ion", "mag"}, c.SparseLabels())
}
