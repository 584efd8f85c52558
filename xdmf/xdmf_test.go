package xdmf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/catalog"
)

func TestWriteCompanion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.out0.00003.pbin.xdmf")

	entries := []catalog.Descriptor{
		{Label: "pressure", Components: 2},
		{Label: "rho", Components: 1},
		{Label: "vel", Components: 3, Vector: true},
	}
	require.NoError(t, Write(path, "/data/sim.out0.00003.pbin", 0.25, 2, 4, 4, 2, entries))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(raw)

	assert.True(t, strings.HasPrefix(doc, "<?xml version=\"1.0\" ?>"))
	assert.Contains(t, doc, "<Time Value=\"0.25\"/>")

	// One uniform grid per global block.
	assert.Equal(t, 2, strings.Count(doc, "<Grid GridType=\"Uniform\""))

	// Node-centered topology and per-axis coordinate slabs.
	assert.Contains(t, doc, "TopologyType=\"3DRectMesh\" NumberOfElements=\"3 5 5\"")
	assert.Contains(t, doc, "sim.out0.00003.pbin:/Locations/x")
	assert.Contains(t, doc, "sim.out0.00003.pbin:/Locations/y")
	assert.Contains(t, doc, "sim.out0.00003.pbin:/Locations/z")

	// Scalar variable keeps its plain name, multi-component scalars get a
	// component suffix, vectors stay one attribute.
	assert.Contains(t, doc, "<Attribute Name=\"rho\" Center=\"Cell\">")
	assert.Contains(t, doc, "<Attribute Name=\"pressure_0\" Center=\"Cell\">")
	assert.Contains(t, doc, "<Attribute Name=\"pressure_1\" Center=\"Cell\">")
	assert.NotContains(t, doc, "Name=\"pressure\"")
	assert.Contains(t, doc, "<Attribute Name=\"vel\" Center=\"Cell\" AttributeType=\"Vector\">")
	assert.Equal(t, 2, strings.Count(doc, "AttributeType=\"Vector\""))

	// Hyperslab start rows select the block and component.
	assert.Contains(t, doc, "> 1 0 0 0 0 1 1 1 1 1 1 2 4 4 1 <")
	assert.Contains(t, doc, "sim.out0.00003.pbin:/vel")
}
