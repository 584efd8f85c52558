// Package catalog builds the globally agreed variable catalog for one
// output event: local discovery over owned blocks, the coordinator-free
// reconciliation round that merges every rank's partial view, and the
// per-block sparse presence bitmap derived from the frozen result.
package catalog

import (
	"fmt"
	"strings"

	"github.com/sfogerty/parthenon/errs"
	"github.com/sfogerty/parthenon/format"
	"github.com/sfogerty/parthenon/mesh"
)

// Wire encoding of one descriptor: the component count occupies the low 16
// bits, bits 20 and 21 carry the sparse and vector flags. The code travels
// as a fixed-width int32, which is why the component count is hard-capped.
const (
	// MaxComponents is the largest component count the wire code can carry.
	MaxComponents = (1 << 16) - 1

	sparseFlag = 1 << 20
	vectorFlag = 1 << 21

	// Delimiter separates labels in the reconciliation exchange buffer.
	// Labels are validated delimiter-free at construction, so the byte is
	// guaranteed absent from payload text.
	Delimiter = '\t'
)

// Descriptor is the canonical description of one variable's shape and
// flags. Within one distributed run a label maps to exactly one component
// count; the catalog enforces this on every insertion.
type Descriptor struct {
	Label      string
	Components int
	Sparse     bool
	Vector     bool
}

// NewDescriptor builds a descriptor from a field instance's metadata.
func NewDescriptor(f *mesh.Field) (Descriptor, error) {
	d := Descriptor{
		Label:      f.Label,
		Components: f.Components,
		Sparse:     f.Flags.Has(format.FlagSparse),
		Vector:     f.Flags.Has(format.FlagVector),
	}
	if err := ValidateLabel(d.Label); err != nil {
		return Descriptor{}, err
	}
	if d.Components < 1 || d.Components > MaxComponents {
		return Descriptor{}, fmt.Errorf("%w: variable %q has %d components, must be in [1, %d]",
			errs.ErrComponentRange, d.Label, d.Components, MaxComponents)
	}

	return d, nil
}

// ValidateLabel rejects empty labels and labels containing the reserved
// delimiter byte.
func ValidateLabel(label string) error {
	if label == "" {
		return errs.ErrEmptyLabel
	}
	if strings.IndexByte(label, Delimiter) >= 0 {
		return fmt.Errorf("%w: %q", errs.ErrReservedByte, label)
	}

	return nil
}

// Encode packs the descriptor's shape and flags into its wire code.
// It fails when the component count is outside [1, MaxComponents]; the
// limit is a hard protocol bound, not advisory, because the value travels
// in a fixed-width field.
func (d Descriptor) Encode() (int32, error) {
	if d.Components < 1 || d.Components > MaxComponents {
		return 0, fmt.Errorf("%w: variable %q has %d components, must be in [1, %d]",
			errs.ErrComponentRange, d.Label, d.Components, MaxComponents)
	}

	code := int32(d.Components)
	if d.Sparse {
		code |= sparseFlag
	}
	if d.Vector {
		code |= vectorFlag
	}

	return code, nil
}

// Decode is the exact inverse of Encode for any code Encode can produce.
func Decode(label string, code int32) Descriptor {
	return Descriptor{
		Label:      label,
		Components: int(code & MaxComponents),
		Sparse:     code&sparseFlag != 0,
		Vector:     code&vectorFlag != 0,
	}
}
