package output

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sfogerty/parthenon/catalog"
	"github.com/sfogerty/parthenon/collective"
	"github.com/sfogerty/parthenon/config"
	"github.com/sfogerty/parthenon/container"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/internal/pool"
	"github.com/sfogerty/parthenon/logutil"
	"github.com/sfogerty/parthenon/mesh"
	"github.com/sfogerty/parthenon/xdmf"
)

// SimState is the simulation clock at the moment of the output event,
// identical on every rank.
type SimState struct {
	Cycle int64
	Time  float64
	Dt    float64
}

// Writer produces container files for the configured output streams.
// One Writer serves the whole run; each Write call is one collective
// output event.
type Writer struct {
	group  collective.Group
	domain *mesh.Domain
	params *config.Parameters
}

// NewWriter builds a writer over the given process group, domain geometry
// and run configuration. All three must be identical on every rank.
func NewWriter(group collective.Group, domain *mesh.Domain, params *config.Parameters) *Writer {
	return &Writer{group: group, domain: domain, params: params}
}

// WriteDue writes every stream whose scheduled time has arrived, in
// sorted stream-name order, and returns the produced filenames. The due
// decision uses only configuration and the shared clock, so every rank
// selects the same streams.
func (w *Writer) WriteDue(blocks []*mesh.Block, state SimState) ([]string, error) {
	var files []string
	for _, name := range w.params.StreamNames() {
		ob, err := w.params.Stream(name)
		if err != nil {
			return files, err
		}
		if state.Time < ob.NextTime {
			continue
		}

		file, err := w.Write(name, blocks, state)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}

	return files, nil
}

// Write runs one collective output event for the named stream and returns
// the container filename. Every rank must call Write with the same stream
// and state; blocks are the rank's locally owned blocks in global order.
// On success the stream's sequence state is advanced on every rank.
func (w *Writer) Write(stream string, blocks []*mesh.Block, state SimState) (string, error) {
	ob, err := w.params.Stream(stream)
	if err != nil {
		return "", fmt.Errorf("output %q: %w", stream, err)
	}
	compression, err := ob.CompressionType()
	if err != nil {
		return "", fmt.Errorf("output %q: %w", stream, err)
	}

	kind := ob.Kind()
	var selector mesh.Selector
	if kind == format.KindRestart {
		selector = mesh.SelectFlags(format.FlagIndependent | format.FlagRestart)
	} else {
		selector = mesh.SelectNames(ob.Variables)
	}

	ev := &event{
		w:           w,
		stream:      stream,
		ob:          ob,
		kind:        kind,
		compression: compression,
		precision:   ob.Precision(),
		selector:    selector,
		win:         newWindow(w.domain, ob.IncludeGhostZones),
		blocks:      blocks,
		state:       state,
		filename: fmt.Sprintf("%s.%s.%05d%s",
			ob.FileBasename, ob.FileID, ob.FileNumber, kind.Suffix()),
	}

	if err := ev.run(); err != nil {
		return "", fmt.Errorf("output %q: %w", stream, err)
	}

	ob.Advance()

	if w.group.Rank() == 0 {
		logutil.Logger().Info("output event complete",
			zap.String("stream", stream),
			zap.String("file", ev.filename),
			zap.Int64("cycle", state.Cycle),
			zap.Float64("time", state.Time),
			zap.Int("blocks", ev.layout.TotalBlocks()),
			zap.Int("variables", ev.cat.Len()),
			zap.Uint64("cell_bytes", ev.cellBytes),
		)
	}

	return ev.filename, nil
}

// event carries the per-call state of one collective output event.
type event struct {
	w           *Writer
	stream      string
	ob          *config.OutputBlock
	kind        format.OutputKind
	compression format.CompressionType
	precision   format.Precision
	selector    mesh.Selector
	win         window
	blocks      []*mesh.Block
	state       SimState
	filename    string

	layout *mesh.Layout
	cat    *catalog.Catalog
	bitmap *catalog.SparseBitmap

	// file is open on rank 0 only; every other rank keeps it nil.
	file      *container.File
	cellBytes uint64
}

func (ev *event) run() error {
	if err := ev.exchangeLayout(); err != nil {
		return err
	}
	if err := ev.reconcileCatalog(); err != nil {
		return err
	}

	if ev.w.group.Rank() == 0 {
		if err := ev.open(); err != nil {
			return err
		}
	}

	if ev.kind == format.KindRestart {
		if err := ev.writeInput(); err != nil {
			return err
		}
		if err := ev.writeMeshGroup(); err != nil {
			return err
		}
		if err := ev.writeBlocksGroup(); err != nil {
			return err
		}
	} else {
		if err := ev.writeLocations(); err != nil {
			return err
		}
	}

	if err := ev.writeVariables(); err != nil {
		return err
	}
	if err := ev.writeSparseInfo(); err != nil {
		return err
	}

	if ev.file != nil {
		if err := ev.file.Close(); err != nil {
			return err
		}
		if ev.kind != format.KindRestart {
			if err := ev.writeCompanion(); err != nil {
				return err
			}
		}
	}

	// All ranks leave the event together, after the file is sealed.
	return ev.w.group.Barrier()
}

// exchangeLayout agrees on the global block ordering: a fixed-size gather
// of every rank's local block count, prefix-summed identically everywhere.
func (ev *event) exchangeLayout() error {
	send := wireEngine.AppendUint32(nil, uint32(len(ev.blocks)))
	all, err := ev.w.group.AllGather(send)
	if err != nil {
		return err
	}

	counts := make([]int, ev.w.group.Size())
	for r := range counts {
		counts[r] = int(wireEngine.Uint32(all[4*r:]))
	}

	ev.layout, err = mesh.NewLayout(counts)

	return err
}

func (ev *event) reconcileCatalog() error {
	cat, err := catalog.Build(ev.blocks, ev.selector)
	if err != nil {
		return err
	}
	if err := catalog.Reconcile(ev.w.group, cat); err != nil {
		return err
	}
	cat.Freeze()

	ev.cat = cat
	ev.bitmap = catalog.BuildSparseBitmap(cat, ev.blocks, ev.selector)

	return nil
}

// open creates the container and writes the /Info group. Rank 0 only.
func (ev *event) open() error {
	f, err := container.Create(ev.filename,
		container.WithCompression(ev.compression, ev.ob.CompressionLevel),
		container.WithPrecision(ev.precision),
	)
	if err != nil {
		return err
	}
	ev.file = f

	d := ev.w.domain
	info, err := f.CreateGroup("/Info")
	if err != nil {
		return err
	}

	includesGhost := 0
	if ev.ob.IncludeGhostZones {
		includesGhost = 1
	}
	attrs := []struct {
		name  string
		value any
	}{
		{"Cycle", ev.state.Cycle},
		{"Time", ev.state.Time},
		{"dt", ev.state.Dt},
		{"NumDims", d.NDim},
		{"NumMeshBlocks", ev.layout.TotalBlocks()},
		{"MaxLevel", d.MaxLevel},
		{"IncludesGhost", includesGhost},
		{"NGhost", d.NGhost},
		{"Coordinates", d.Coordinates},
		{"BlocksPerPE", ev.layout.Counts()},
		{"MeshBlockSize", []int{ev.win.nx, ev.win.ny, ev.win.nz}},
	}
	for _, a := range attrs {
		if err := info.SetAttribute(a.name, a.value); err != nil {
			return err
		}
	}

	return nil
}

// writeInput embeds the full re-rendered configuration document, so a
// restarted run recovers its parameters from the file alone.
func (ev *event) writeInput() error {
	doc, err := ev.w.params.Dump()
	if err != nil {
		return err
	}
	if ev.file == nil {
		return nil
	}

	g, err := ev.file.CreateGroup("/Input")
	if err != nil {
		return err
	}

	return g.SetAttribute("File", doc)
}

func (ev *event) writeMeshGroup() error {
	if ev.file == nil {
		return nil
	}

	d := ev.w.domain
	g, err := ev.file.CreateGroup("/Mesh")
	if err != nil {
		return err
	}

	boolInt := func(b bool) int {
		if b {
			return 1
		}

		return 0
	}
	includesGhost := boolInt(ev.ob.IncludeGhostZones)
	attrs := []struct {
		name  string
		value any
	}{
		{"blockSize", []int{ev.win.nx, ev.win.ny, ev.win.nz}},
		{"includesGhost", includesGhost},
		{"nbtotal", ev.layout.TotalBlocks()},
		{"nbnew", d.NumNewBlocks},
		{"nbdel", d.NumDeletedBlocks},
		{"rootLevel", d.RootLevel},
		{"MaxLevel", d.MaxLevel},
		{"refine", boolInt(d.Adaptive)},
		{"multilevel", boolInt(d.Multilevel)},
		{"bounds", d.Bounds[:]},
		{"ratios", d.Ratios[:]},
		{"bc", d.BoundaryConditions[:]},
	}
	for _, a := range attrs {
		if err := g.SetAttribute(a.name, a.value); err != nil {
			return err
		}
	}

	return nil
}

// gatherWrite runs the collective write of one dataset: every rank
// contributes its local wire bytes, rank 0 concatenates in rank order and
// stores the dataset. group is nil on every rank but 0.
func (ev *event) gatherWrite(g *container.Group, name string, dtype container.DType,
	dims []uint64, send []byte, opts ...container.DatasetOption,
) error {
	parts, err := ev.w.group.Gatherv(0, send)
	if err != nil {
		return err
	}
	if ev.file == nil {
		return nil
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	raw := make([]byte, 0, total)
	for _, p := range parts {
		raw = append(raw, p...)
	}

	ds, err := g.CreateDataset(name, dtype, dims, opts...)
	if err != nil {
		return err
	}

	return ds.WriteBytes(raw)
}

// rootGroup returns the container root on rank 0 and nil elsewhere.
func (ev *event) rootGroup() *container.Group {
	if ev.file == nil {
		return nil
	}

	return ev.file.Root()
}

// createGroup creates a named group on rank 0 and returns nil elsewhere.
func (ev *event) createGroup(name string) (*container.Group, error) {
	if ev.file == nil {
		return nil, nil
	}

	return ev.file.CreateGroup(name)
}

func (ev *event) writeBlocksGroup() error {
	g, err := ev.createGroup("/Blocks")
	if err != nil {
		return err
	}

	d := ev.w.domain
	nb := uint64(ev.layout.TotalBlocks())

	err = ev.gatherWrite(g, "xmin", container.Float64,
		[]uint64{nb, uint64(d.NDim)},
		encodeFloat64s(blockXmin(ev.blocks, d.NDim)))
	if err != nil {
		return err
	}

	err = ev.gatherWrite(g, "loc.lx123", container.Int64,
		[]uint64{nb, 3},
		encodeInt64s(blockLogicalLocations(ev.blocks)))
	if err != nil {
		return err
	}

	return ev.gatherWrite(g, "loc.level-gid-lid-cnghost-gflag", container.Int64,
		[]uint64{nb, 5},
		encodeInt64s(blockStateTuples(ev.blocks)))
}

// writeLocations stores the per-block face coordinates of the output
// window, one dataset per axis.
func (ev *event) writeLocations() error {
	g, err := ev.createGroup("/Locations")
	if err != nil {
		return err
	}

	nb := uint64(ev.layout.TotalBlocks())
	axes := []struct {
		name         string
		start, count int
		faces        func(*mesh.Block) []float64
	}{
		{"x", ev.win.sx, ev.win.nx, func(b *mesh.Block) []float64 { return b.FaceX }},
		{"y", ev.win.sy, ev.win.ny, func(b *mesh.Block) []float64 { return b.FaceY }},
		{"z", ev.win.sz, ev.win.nz, func(b *mesh.Block) []float64 { return b.FaceZ }},
	}

	for _, ax := range axes {
		local := make([]float64, 0, len(ev.blocks)*(ax.count+1))
		for _, blk := range ev.blocks {
			local = append(local, faceSlice(ax.faces(blk), ax.start, ax.count)...)
		}

		err := ev.gatherWrite(g, ax.name, container.Float64,
			[]uint64{nb, uint64(ax.count + 1)},
			encodeFloat64s(local))
		if err != nil {
			return err
		}
	}

	return nil
}

// writeVariables stages and writes every catalog entry, in catalog order,
// each as one global five-dimensional dataset chunked per block. Every
// rank enters every gather unconditionally, including for variables absent
// from all of its blocks.
func (ev *event) writeVariables() error {
	dtype := container.Float64
	if ev.precision == format.PrecisionFloat32 {
		dtype = container.Float32
	}

	nb := uint64(ev.layout.TotalBlocks())
	cells := ev.win.cellCount()

	for i := 0; i < ev.cat.Len(); i++ {
		d := ev.cat.At(i)
		slab := cells * d.Components

		stage, releaseStage := pool.GetFloat64Slice(len(ev.blocks) * slab)
		if err := fillVariable(d, ev.blocks, ev.selector, ev.win, stage); err != nil {
			releaseStage()

			return err
		}

		wire, releaseWire := pool.GetByteSlice(len(stage) * ev.precision.Size())
		encodeStage(stage, ev.precision, wire)
		releaseStage()

		dims := []uint64{nb, uint64(ev.win.nz), uint64(ev.win.ny), uint64(ev.win.nx), uint64(d.Components)}
		err := ev.gatherWrite(ev.rootGroup(), d.Label, dtype, dims, wire,
			container.WithChunks(1))
		releaseWire()
		if err != nil {
			return err
		}

		ev.cellBytes += uint64(ev.layout.TotalBlocks()*slab) * uint64(ev.precision.Size())
		logutil.Logger().Debug("variable written",
			zap.String("stream", ev.stream),
			zap.String("variable", d.Label),
			zap.Int("components", d.Components),
			zap.Bool("sparse", d.Sparse),
		)
	}

	return nil
}

// writeSparseInfo stores the presence bitmap with its column labels. A
// catalog without sparse variables still produces the dataset, shaped
// [nbtotal, 0], so readers can rely on its presence.
func (ev *event) writeSparseInfo() error {
	labels := ev.bitmap.Labels()
	nb := uint64(ev.layout.TotalBlocks())

	return ev.gatherWrite(ev.rootGroup(), "SparseInfo", container.Bool,
		[]uint64{nb, uint64(len(labels))},
		encodeBools(ev.bitmap.Bools()),
		container.WithAttribute("SparseFields", labels))
}

// writeCompanion regenerates the visualization companion file next to the
// container. Rank 0, non-restart events only.
func (ev *event) writeCompanion() error {
	return xdmf.Write(ev.filename+".xdmf", ev.filename, ev.state.Time,
		ev.layout.TotalBlocks(), ev.win.nx, ev.win.ny, ev.win.nz,
		ev.cat.Entries())
}
