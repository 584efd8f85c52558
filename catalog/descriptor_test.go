package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Descriptor{
		{Label: "rho", Components: 1},
		{Label: "vel", Components: 3, Vector: true},
		{Label: "mag", Components: 3, Sparse: true, Vector: true},
		{Label: "scalars", Components: 12, Sparse: true},
		{Label: "edge.min", Components: 1},
		{Label: "edge.max", Components: MaxComponents},
	}

	for _, d := range cases {
		t.Run(d.Label, func(t *testing.T) {
			code, err := d.Encode()
			require.NoError(t, err)
			require.Equal(t, d, Decode(d.Label, code))
		})
	}
}

func TestEncodeRangeSweep(t *testing.T) {
	// Exhaustive inverse check over the full valid component range.
	for n := 1; n <= MaxComponents; n++ {
		d := Descriptor{Label: "v", Components: n, Sparse: n%2 == 0, Vector: n%3 == 0}
		code, err := d.Encode()
		require.NoError(t, err)
		got := Decode("v", code)
		require.Equal(t, d, got, "components=%d", n)
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	for _, n := range []int{0, -1, MaxComponents + 1, 1 << 20} {
		_, err := Descriptor{Label: "v", Components: n}.Encode()
		require.ErrorIs(t, err, errs.ErrComponentRange, "components=%d", n)
	}
}

func TestValidateLabel(t *testing.T) {
	require.NoError(t, ValidateLabel("prim.density"))
	require.ErrorIs(t, ValidateLabel(""), errs.ErrEmptyLabel)
	require.ErrorIs(t, ValidateLabel("bad\tlabel"), errs.ErrReservedByte)
}

func TestNewDescriptor(t *testing.T) {
	f := &mesh.Field{
		Label:      "mag",
		Components: 3,
		Flags:      format.FlagSparse | format.FlagVector | format.FlagIndependent,
	}

	d, err := NewDescriptor(f)
	require.NoError(t, err)
	require.Equal(t, Descriptor{Label: "mag", Components: 3, Sparse: true, Vector: true}, d)

	_, err = NewDescriptor(&mesh.Field{Label: "x", Components: 0})
	require.ErrorIs(t, err, errs.ErrComponentRange)

	_, err = NewDescriptor(&mesh.Field{Label: "", Components: 1})
	require.ErrorIs(t, err, errs.ErrEmptyLabel)
}
