package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/collective"
	"github.com/sfogerty/parthenon/config"
	"github.com/sfogerty/parthenon/container"
	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

// The test domain is a 2-D mesh of 2x2-cell blocks with one ghost layer,
// so full block arrays are 4x4x1 and the output window starts at (1,1,0).
func testDomain() *mesh.Domain {
	return &mesh.Domain{
		NDim:        2,
		BlockNx:     2,
		BlockNy:     2,
		BlockNz:     1,
		NGhost:      1,
		Bounds:      [6]float64{0, 0, 0, 2, 1, 0},
		Ratios:      [3]float64{1, 1, 1},
		Coordinates: "cartesian",
		MaxLevel:    1,
	}
}

// testField fills a full 4x4 block array so that interior cell (i, j) of
// component c holds base + 100c + 10(j) + i, making staged values easy to
// predict.
func testField(label string, comps int, flags format.FieldFlag, base float64) *mesh.Field {
	const fx, fy = 4, 4
	data := make([]float64, comps*fx*fy)
	for c := 0; c < comps; c++ {
		for j := 0; j < fy; j++ {
			for i := 0; i < fx; i++ {
				data[c*fx*fy+j*fx+i] = base + 100*float64(c) + 10*float64(j) + float64(i)
			}
		}
	}

	return &mesh.Field{Label: label, Components: comps, Flags: flags, Data: data}
}

// expectedSlab is the output-window content of one testField block in
// write order (y, x, component innermost).
func expectedSlab(base float64, comps int) []float64 {
	var out []float64
	for j := 1; j <= 2; j++ {
		for i := 1; i <= 2; i++ {
			for c := 0; c < comps; c++ {
				out = append(out, base+100*float64(c)+10*float64(j)+float64(i))
			}
		}
	}

	return out
}

func testBlock(gid, lid int, fields ...*mesh.Field) *mesh.Block {
	faces := func(origin float64, n int) []float64 {
		out := make([]float64, n+1)
		for i := range out {
			out[i] = origin + 0.25*float64(i)
		}

		return out
	}

	return &mesh.Block{
		GlobalID: gid,
		LocalID:  lid,
		Loc:      [3]int64{int64(gid), 0, 0},
		Xmin:     [3]float64{float64(gid), 0, 0},
		FaceX:    faces(float64(gid), 4),
		FaceY:    faces(0, 4),
		FaceZ:    []float64{0, 1},
		Fields:   fields,
	}
}

func vizParams(dir string, variables ...string) *config.Parameters {
	return &config.Parameters{
		Job: config.JobBlock{ProblemID: "blast"},
		Outputs: map[string]*config.OutputBlock{
			"viz": {
				FileBasename: filepath.Join(dir, "blast"),
				FileID:       "out0",
				Dt:           0.1,
				Variables:    variables,
			},
		},
	}
}

// runWriters drives one Write call per rank as goroutines over an
// in-process group, each rank with its own identical Parameters copy.
func runWriters(t *testing.T, perRank [][]*mesh.Block, makeParams func() *config.Parameters,
	stream string, state SimState,
) ([]string, []error, []*config.Parameters) {
	t.Helper()

	size := len(perRank)
	groups := collective.NewLocalGroups(size)
	files := make([]string, size)
	errors := make([]error, size)
	params := make([]*config.Parameters, size)

	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		params[r] = makeParams()
		w := NewWriter(groups[r], testDomain(), params[r])

		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			files[r], errors[r] = w.Write(stream, perRank[r], state)
		}(r)
	}
	wg.Wait()

	return files, errors, params
}

func TestWriteSingleRank(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
		testBlock(1, 1, testField("rho", 1, format.FlagIndependent, 1000)),
	}

	w := NewWriter(collective.Single(), testDomain(), params)
	file, err := w.Write("viz", blocks, SimState{Cycle: 7, Time: 0.5, Dt: 0.01})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "blast.out0.00000.pbin"), file)

	r, err := container.Open(file)
	require.NoError(t, err)
	defer r.Close()

	cycle, err := r.Attribute("/Info", "Cycle")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cycle)

	nb, err := r.Attribute("/Info", "NumMeshBlocks")
	require.NoError(t, err)
	assert.Equal(t, int64(2), nb)

	blockSize, err := r.Attribute("/Info", "MeshBlockSize")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2, 1}, blockSize)

	rho, err := r.ReadFloat64("/rho")
	require.NoError(t, err)
	want := append(expectedSlab(0, 1), expectedSlab(1000, 1)...)
	assert.Equal(t, want, rho)

	info, err := r.Dataset("/rho")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1, 2, 2, 1}, info.Dims)

	// No sparse variables: the dataset still exists, with zero columns.
	sparse, err := r.Dataset("/SparseInfo")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 0}, sparse.Dims)
	fields, err := r.DatasetAttribute("/SparseInfo", "SparseFields")
	require.NoError(t, err)
	assert.Empty(t, fields)

	// Output window face coordinates, not the full ghost extent.
	x, err := r.ReadFloat64("/Locations/x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.25, 1.5, 1.75}, x)
	z, err := r.ReadFloat64("/Locations/z")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1}, z)

	// The companion file exists for visualization events.
	_, err = os.Stat(file + ".xdmf")
	require.NoError(t, err)

	// The stream state advanced.
	ob := params.Outputs["viz"]
	assert.Equal(t, 1, ob.FileNumber)
	assert.InDelta(t, 0.1, ob.NextTime, 1e-12)
}

func TestWriteTwoRanksSparse(t *testing.T) {
	dir := t.TempDir()

	// Block 0 on rank 0 carries the sparse variable; blocks 1 and 2 on
	// rank 1 do not.
	perRank := [][]*mesh.Block{
		{testBlock(0, 0,
			testField("rho", 1, format.FlagIndependent, 0),
			testField("mag", 2, format.FlagIndependent|format.FlagSparse, 5000))},
		{
			testBlock(1, 0, testField("rho", 1, format.FlagIndependent, 1000)),
			testBlock(2, 1, testField("rho", 1, format.FlagIndependent, 2000)),
		},
	}

	files, errors, _ := runWriters(t, perRank,
		func() *config.Parameters { return vizParams(dir, "rho", "mag") },
		"viz", SimState{Cycle: 1, Time: 0.1, Dt: 0.01})
	require.NoError(t, errors[0])
	require.NoError(t, errors[1])
	require.Equal(t, files[0], files[1])

	r, err := container.Open(files[0])
	require.NoError(t, err)
	defer r.Close()

	// Coordinate datasets first, then variables in byte-wise label order.
	assert.Equal(t, []string{
		"/Locations/x", "/Locations/y", "/Locations/z",
		"/mag", "/rho", "/SparseInfo",
	}, r.Datasets())

	bpe, err := r.Attribute("/Info", "BlocksPerPE")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, bpe)

	rho, err := r.ReadFloat64("/rho")
	require.NoError(t, err)
	want := expectedSlab(0, 1)
	want = append(want, expectedSlab(1000, 1)...)
	want = append(want, expectedSlab(2000, 1)...)
	assert.Equal(t, want, rho)

	// Blocks without the sparse variable hold zeros.
	mag, err := r.ReadFloat64("/mag")
	require.NoError(t, err)
	require.Len(t, mag, 3*4*2)
	assert.Equal(t, expectedSlab(5000, 2), mag[:8])
	for _, v := range mag[8:] {
		assert.Zero(t, v)
	}

	sparse, err := r.ReadBool("/SparseInfo")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, sparse)
	fields, err := r.DatasetAttribute("/SparseInfo", "SparseFields")
	require.NoError(t, err)
	assert.Equal(t, []string{"mag"}, fields)
}

func TestWriteDenseMissingFatal(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
		testBlock(1, 1),
	}

	w := NewWriter(collective.Single(), testDomain(), params)
	_, err := w.Write("viz", blocks, SimState{})
	require.ErrorIs(t, err, errs.ErrDenseMissing)
	assert.ErrorContains(t, err, "rho")
	assert.ErrorContains(t, err, "block 1")

	// A failed event does not advance the stream.
	assert.Equal(t, 0, params.Outputs["viz"].FileNumber)
}

func TestWriteRestart(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	params.Outputs["rst"] = &config.OutputBlock{
		FileBasename: filepath.Join(dir, "blast"),
		FileID:       "rst0",
		Dt:           1,
		Restart:      true,
	}

	// Restart selection is flag-driven: the derived field is excluded even
	// though no variable list exists.
	blocks := []*mesh.Block{
		testBlock(0, 0,
			testField("rho", 1, format.FlagIndependent, 0),
			testField("flux", 1, format.FlagRestart, 3000),
			testField("derived", 1, 0, 9000)),
	}

	w := NewWriter(collective.Single(), testDomain(), params)
	file, err := w.Write("rst", blocks, SimState{Cycle: 3, Time: 2.5, Dt: 0.5})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "blast.rst0.00000.rbin"), file)

	r, err := container.Open(file)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{
		"/Blocks/xmin", "/Blocks/loc.lx123", "/Blocks/loc.level-gid-lid-cnghost-gflag",
		"/flux", "/rho", "/SparseInfo",
	}, r.Datasets())

	// The embedded input document parses back to the same configuration.
	doc, err := r.Attribute("/Input", "File")
	require.NoError(t, err)
	reparsed, err := config.Parse(doc.(string))
	require.NoError(t, err)
	assert.Equal(t, "blast", reparsed.Job.ProblemID)
	assert.Equal(t, "rst0", reparsed.Outputs["rst"].FileID)

	nbtotal, err := r.Attribute("/Mesh", "nbtotal")
	require.NoError(t, err)
	assert.Equal(t, int64(1), nbtotal)
	bounds, err := r.Attribute("/Mesh", "bounds")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 2, 1, 0}, bounds)

	xmin, err := r.ReadFloat64("/Blocks/xmin")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, xmin)

	locs, err := r.Read("/Blocks/loc.lx123")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0}, locs)

	state, err := r.Read("/Blocks/loc.level-gid-lid-cnghost-gflag")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, state)

	// Restart files carry no coordinate group and no companion.
	_, err = r.Dataset("/Locations/x")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = os.Stat(file + ".xdmf")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteSinglePrecision(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	params.Outputs["viz"].SinglePrecision = true

	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
	}

	w := NewWriter(collective.Single(), testDomain(), params)
	file, err := w.Write("viz", blocks, SimState{})
	require.NoError(t, err)

	r, err := container.Open(file)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, format.PrecisionFloat32, r.Precision())

	info, err := r.Dataset("/rho")
	require.NoError(t, err)
	assert.Equal(t, container.Float32, info.DType)

	values, err := r.Read("/rho")
	require.NoError(t, err)
	want64 := expectedSlab(0, 1)
	got := values.([]float32)
	require.Len(t, got, len(want64))
	for i, v := range want64 {
		assert.Equal(t, float32(v), got[i])
	}
}

func TestWriteCompressed(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	params.Outputs["viz"].Compression = "zstd"

	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
	}

	w := NewWriter(collective.Single(), testDomain(), params)
	file, err := w.Write("viz", blocks, SimState{})
	require.NoError(t, err)

	r, err := container.Open(file)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, format.CompressionZstd, r.Compression())
	rho, err := r.ReadFloat64("/rho")
	require.NoError(t, err)
	assert.Equal(t, expectedSlab(0, 1), rho)
}

func TestWriteSequence(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
	}

	w := NewWriter(collective.Single(), testDomain(), params)

	first, err := w.Write("viz", blocks, SimState{Cycle: 1})
	require.NoError(t, err)
	second, err := w.Write("viz", blocks, SimState{Cycle: 2})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "blast.out0.00000.pbin"), first)
	assert.Equal(t, filepath.Join(dir, "blast.out0.00001.pbin"), second)
	assert.Equal(t, 2, params.Outputs["viz"].FileNumber)
}

func TestWriteDue(t *testing.T) {
	dir := t.TempDir()
	params := vizParams(dir, "rho")
	params.Outputs["viz"].NextTime = 0.3
	params.Outputs["rst"] = &config.OutputBlock{
		FileBasename: filepath.Join(dir, "blast"),
		FileID:       "rst0",
		Dt:           1,
		NextTime:     1.0,
		Restart:      true,
	}

	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent|format.FlagRestart, 0)),
	}
	w := NewWriter(collective.Single(), testDomain(), params)

	// Nothing due yet.
	files, err := w.WriteDue(blocks, SimState{Time: 0.2})
	require.NoError(t, err)
	assert.Empty(t, files)

	// Only the visualization stream is due.
	files, err = w.WriteDue(blocks, SimState{Time: 0.35})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "blast.out0.00000.pbin"), files[0])
	assert.InDelta(t, 0.4, params.Outputs["viz"].NextTime, 1e-12)

	// Both streams due; sorted stream-name order.
	files, err = w.WriteDue(blocks, SimState{Time: 1.5})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "blast.rst0.00000.rbin"), files[0])
	assert.Equal(t, filepath.Join(dir, "blast.out0.00001.pbin"), files[1])
}

func TestWriteUnknownStream(t *testing.T) {
	w := NewWriter(collective.Single(), testDomain(), vizParams(t.TempDir(), "rho"))
	_, err := w.Write("nope", nil, SimState{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "nope")
}

func TestWriteEmptyRankParticipates(t *testing.T) {
	dir := t.TempDir()

	perRank := [][]*mesh.Block{
		nil,
		{testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0))},
	}

	files, errors, _ := runWriters(t, perRank,
		func() *config.Parameters { return vizParams(dir, "rho") },
		"viz", SimState{})
	require.NoError(t, errors[0])
	require.NoError(t, errors[1])

	r, err := container.Open(files[1])
	require.NoError(t, err)
	defer r.Close()

	bpe, err := r.Attribute("/Info", "BlocksPerPE")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, bpe)

	rho, err := r.ReadFloat64("/rho")
	require.NoError(t, err)
	assert.Equal(t, expectedSlab(0, 1), rho)
}

func TestWriteDistributionIndependentContent(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	mkBlocks := func() []*mesh.Block {
		return []*mesh.Block{
			testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
			testBlock(1, 1, testField("rho", 1, format.FlagIndependent, 1000)),
		}
	}

	// All blocks on one rank.
	w := NewWriter(collective.Single(), testDomain(), vizParams(dir1, "rho"))
	single, err := w.Write("viz", mkBlocks(), SimState{Cycle: 1})
	require.NoError(t, err)

	// Split across two ranks.
	all := mkBlocks()
	files, errors, _ := runWriters(t, [][]*mesh.Block{{all[0]}, {all[1]}},
		func() *config.Parameters { return vizParams(dir2, "rho") },
		"viz", SimState{Cycle: 1})
	require.NoError(t, errors[0])
	require.NoError(t, errors[1])

	r1, err := container.Open(single)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := container.Open(files[0])
	require.NoError(t, err)
	defer r2.Close()

	rho1, err := r1.ReadFloat64("/rho")
	require.NoError(t, err)
	rho2, err := r2.ReadFloat64("/rho")
	require.NoError(t, err)
	assert.Equal(t, rho1, rho2)
}

func TestFillBlockVectorOrder(t *testing.T) {
	f := testField("vel", 3, format.FlagIndependent|format.FlagVector, 0)
	win := newWindow(testDomain(), false)

	dst := make([]float64, 4*3)
	fillBlock(f, win, dst)

	// Component must be the innermost index.
	assert.Equal(t, expectedSlab(0, 3), dst)
	assert.Equal(t, []float64{11, 111, 211}, dst[:3])
}

func TestWindowGhostInclusion(t *testing.T) {
	d := testDomain()

	win := newWindow(d, true)
	assert.Equal(t, 4, win.nx)
	assert.Equal(t, 4, win.ny)
	assert.Equal(t, 1, win.nz)
	assert.Equal(t, 0, win.sx)

	win = newWindow(d, false)
	assert.Equal(t, 2, win.nx)
	assert.Equal(t, 1, win.sx)
	assert.Equal(t, 1, win.sy)
	assert.Equal(t, 0, win.sz)
}

func ExampleWriter_Write() {
	dir, _ := os.MkdirTemp("", "output")
	defer os.RemoveAll(dir)

	params := &config.Parameters{
		Outputs: map[string]*config.OutputBlock{
			"viz": {
				FileBasename: filepath.Join(dir, "sim"),
				FileID:       "out0",
				Dt:           0.1,
				Variables:    []string{"rho"},
			},
		},
	}

	domain := &mesh.Domain{NDim: 2, BlockNx: 2, BlockNy: 2, BlockNz: 1, NGhost: 1}
	blocks := []*mesh.Block{
		testBlock(0, 0, testField("rho", 1, format.FlagIndependent, 0)),
	}

	w := NewWriter(collective.Single(), domain, params)
	file, err := w.Write("viz", blocks, SimState{Cycle: 10, Time: 0.5})
	if err != nil {
		fmt.Println("write failed:", err)
		return
	}
	fmt.Println(filepath.Base(file))
	// Output: sim.out0.00000.pbin
}
