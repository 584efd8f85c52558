// Package compress provides the chunk codecs used by the block container.
//
// Every dataset chunk (one block's slab of one variable) is passed through a
// Codec before it is written. Zero-filled slabs of absent sparse fields
// compress to almost nothing, which is why the writer can afford to store
// every block-variable pair instead of omitting absent ones.
//
// Available codecs:
//   - None: pass-through, for incompressible data or debugging
//   - Deflate: level-tunable, widest tooling compatibility
//   - Zstd: best ratio/speed trade-off for cell data
//   - S2: fastest, moderate ratio
//   - LZ4: fast with slightly better ratio than S2 on smooth fields
package compress
