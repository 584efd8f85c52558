// Package errs defines the sentinel errors shared across the output
// subsystem. Callers wrap them with fmt.Errorf("%w: ...") to attach the
// failing variable, block, or rank context; tests match with errors.Is.
package errs

import "errors"

// Catalog and descriptor errors.
var (
	// ErrComponentRange indicates a component count outside [1, 65535],
	// which cannot be transmitted in the fixed-width descriptor code.
	ErrComponentRange = errors.New("component count out of encodable range")

	// ErrComponentMismatch indicates the same variable label was seen with
	// two different component counts.
	ErrComponentMismatch = errors.New("variable has multiple different component counts")

	// ErrEmptyLabel indicates a variable with an empty label.
	ErrEmptyLabel = errors.New("variable label is empty")

	// ErrReservedByte indicates a variable label containing the reserved
	// wire delimiter byte.
	ErrReservedByte = errors.New("variable label contains reserved delimiter byte")

	// ErrCatalogFrozen indicates an insertion into a catalog that has
	// already been frozen for the output event.
	ErrCatalogFrozen = errors.New("catalog is frozen")
)

// Reconciliation protocol errors.
var (
	// ErrProtocolCorrupt indicates malformed reconciliation buffers:
	// a label buffer without a trailing delimiter, an empty parsed label,
	// or a label/code count mismatch.
	ErrProtocolCorrupt = errors.New("catalog exchange buffer is corrupt")

	// ErrCollectiveMismatch indicates that cooperating ranks entered
	// different collective operations, or the same operation with
	// incompatible arguments.
	ErrCollectiveMismatch = errors.New("mismatched collective operation")

	// ErrInvalidRank indicates a rank argument outside [0, size).
	ErrInvalidRank = errors.New("rank out of range")
)

// Writer errors.
var (
	// ErrDenseMissing indicates that a non-sparse variable is absent from
	// a locally owned block. Dense variables must exist on every block.
	ErrDenseMissing = errors.New("dense variable missing from block")

	// ErrLayoutInvalid indicates a block layout whose per-rank ranges are
	// not disjoint, contiguous and complete.
	ErrLayoutInvalid = errors.New("invalid block layout")
)

// Container errors.
var (
	// ErrInvalidMagic indicates a file that is not a block container, or a
	// truncated/overwritten footer.
	ErrInvalidMagic = errors.New("invalid container magic")

	// ErrChecksumMismatch indicates stored bytes whose checksum does not
	// match the chunk index or metadata record.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrDatasetExists indicates a duplicate dataset name.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrGroupExists indicates a duplicate group name.
	ErrGroupExists = errors.New("group already exists")

	// ErrNotFound indicates a missing group, dataset or attribute.
	ErrNotFound = errors.New("not found")

	// ErrShapeMismatch indicates data whose length does not match the
	// dataset's declared shape, or chunk dims incompatible with the shape.
	ErrShapeMismatch = errors.New("data does not match dataset shape")

	// ErrInvalidAttribute indicates an attribute value of an unsupported type.
	ErrInvalidAttribute = errors.New("unsupported attribute value type")

	// ErrFileClosed indicates an operation on a closed container.
	ErrFileClosed = errors.New("container file is closed")
)
