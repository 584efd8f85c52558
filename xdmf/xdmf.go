// Package xdmf emits the visualization companion file: an XDMF XML
// document describing every block of a container file as a uniform
// rectilinear grid, with hyperslab references into the container's
// coordinate and variable datasets. Visualization tools read the XML and
// pull the heavy data from the container on demand.
//
// The companion covers one output event and is regenerated from scratch
// each time.
package xdmf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sfogerty/parthenon/catalog"
)

// Write generates the companion file at path describing the container
// dataFile. numBlocks, nx, ny and nz are the global block count and the
// per-block output window; entries is the reconciled variable catalog in
// dataset order.
func Write(path, dataFile string, time float64, numBlocks, nx, ny, nz int, entries []catalog.Descriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write companion: %w", err)
	}

	w := bufio.NewWriter(f)
	writeDocument(w, filepath.Base(dataFile), time, numBlocks, nx, ny, nz, entries)

	if err := w.Flush(); err != nil {
		f.Close()

		return fmt.Errorf("write companion: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write companion: %w", err)
	}

	return nil
}

func writeDocument(w *bufio.Writer, dataFile string, time float64, numBlocks, nx, ny, nz int, entries []catalog.Descriptor) {
	fmt.Fprintf(w, "<?xml version=\"1.0\" ?>\n")
	fmt.Fprintf(w, "<!DOCTYPE Xdmf SYSTEM \"Xdmf.dtd\">\n")
	fmt.Fprintf(w, "<Xdmf Version=\"3.0\">\n")
	fmt.Fprintf(w, "<Domain>\n")
	fmt.Fprintf(w, "<Grid Name=\"Mesh\" GridType=\"Collection\">\n")
	fmt.Fprintf(w, "  <Time Value=\"%g\"/>\n", time)

	for b := 0; b < numBlocks; b++ {
		writeBlockGrid(w, dataFile, b, numBlocks, nx, ny, nz, entries)
	}

	fmt.Fprintf(w, "</Grid>\n")
	fmt.Fprintf(w, "</Domain>\n")
	fmt.Fprintf(w, "</Xdmf>\n")
}

func writeBlockGrid(w *bufio.Writer, dataFile string, b, numBlocks, nx, ny, nz int, entries []catalog.Descriptor) {
	fmt.Fprintf(w, "  <Grid GridType=\"Uniform\" Name=\"%d\">\n", b)
	fmt.Fprintf(w, "    <Topology TopologyType=\"3DRectMesh\" NumberOfElements=\"%d %d %d\"/>\n",
		nz+1, ny+1, nx+1)
	fmt.Fprintf(w, "    <Geometry GeometryType=\"VXVYVZ\">\n")
	writeFaceSlab(w, dataFile, "x", b, numBlocks, nx)
	writeFaceSlab(w, dataFile, "y", b, numBlocks, ny)
	writeFaceSlab(w, dataFile, "z", b, numBlocks, nz)
	fmt.Fprintf(w, "    </Geometry>\n")

	for _, d := range entries {
		writeAttribute(w, dataFile, b, numBlocks, nx, ny, nz, d)
	}

	fmt.Fprintf(w, "  </Grid>\n")
}

// writeFaceSlab references one block's face coordinates along one axis:
// row b of the [numBlocks, n+1] dataset /Locations/<axis>.
func writeFaceSlab(w *bufio.Writer, dataFile, axis string, b, numBlocks, n int) {
	fmt.Fprintf(w, "      <DataItem ItemType=\"HyperSlab\" Dimensions=\"%d\">\n", n+1)
	fmt.Fprintf(w, "        <DataItem Dimensions=\"3 2\" NumberType=\"Int\" Format=\"XML\"> %d 0 1 1 1 %d </DataItem>\n",
		b, n+1)
	fmt.Fprintf(w, "        <DataItem Dimensions=\"%d %d\" Format=\"HDF\"> %s:/Locations/%s </DataItem>\n",
		numBlocks, n+1, dataFile, axis)
	fmt.Fprintf(w, "      </DataItem>\n")
}

// writeAttribute references one variable on one block. Vector fields map
// to a single vector attribute; other multi-component fields map to one
// scalar attribute per component, suffixed with the component index.
func writeAttribute(w *bufio.Writer, dataFile string, b, numBlocks, nx, ny, nz int, d catalog.Descriptor) {
	if d.Vector {
		fmt.Fprintf(w, "    <Attribute Name=\"%s\" Center=\"Cell\" AttributeType=\"Vector\">\n", d.Label)
		writeCellSlab(w, dataFile, d.Label, b, numBlocks, nx, ny, nz, d.Components, 0, d.Components)
		fmt.Fprintf(w, "    </Attribute>\n")

		return
	}

	for c := 0; c < d.Components; c++ {
		name := d.Label
		if d.Components > 1 {
			name = fmt.Sprintf("%s_%d", d.Label, c)
		}
		fmt.Fprintf(w, "    <Attribute Name=\"%s\" Center=\"Cell\">\n", name)
		writeCellSlab(w, dataFile, d.Label, b, numBlocks, nx, ny, nz, d.Components, c, 1)
		fmt.Fprintf(w, "    </Attribute>\n")
	}
}

// writeCellSlab references the cells of block b for components
// [comp, comp+span) of the [numBlocks, nz, ny, nx, nc] dataset.
func writeCellSlab(w *bufio.Writer, dataFile, label string, b, numBlocks, nx, ny, nz, nc, comp, span int) {
	if span > 1 {
		fmt.Fprintf(w, "      <DataItem ItemType=\"HyperSlab\" Dimensions=\"%d %d %d %d\">\n", nz, ny, nx, span)
	} else {
		fmt.Fprintf(w, "      <DataItem ItemType=\"HyperSlab\" Dimensions=\"%d %d %d\">\n", nz, ny, nx)
	}
	fmt.Fprintf(w, "        <DataItem Dimensions=\"3 5\" NumberType=\"Int\" Format=\"XML\"> %d 0 0 0 %d 1 1 1 1 1 1 %d %d %d %d </DataItem>\n",
		b, comp, nz, ny, nx, span)
	fmt.Fprintf(w, "        <DataItem Dimensions=\"%d %d %d %d %d\" Format=\"HDF\"> %s:/%s </DataItem>\n",
		numBlocks, nz, ny, nx, nc, dataFile, label)
	fmt.Fprintf(w, "      </DataItem>\n")
}
