// Package container implements the self-describing binary block container
// produced by output events.
//
// A container file holds a fixed 16-byte header, a body of independently
// compressed dataset chunks, a metadata section describing groups,
// attributes and datasets, and a fixed 24-byte footer locating the
// metadata. All multi-byte values are little-endian.
//
// Datasets are rectangular typed arrays chunked along their first
// dimension, so a single mesh block's slab can be stored and verified on
// its own. Every chunk carries an xxhash64 checksum of its uncompressed
// payload; the metadata section carries one of its serialized bytes.
//
// The write path (Create, Group, Dataset) is the production surface. The
// read path (Open, Reader) exists for tests and tooling.
package container
