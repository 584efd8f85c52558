// Package config holds the externally-owned run configuration.
//
// The writer consumes one OutputBlock per output stream and, after a
// successful event, advances the stream's sequence counter and next
// scheduled time back into the Parameters so the state survives restarts:
// restart outputs embed the full re-rendered document as the /Input blob.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/sfogerty/parthenon/format"
)

// Parameters is the parsed run configuration document.
type Parameters struct {
	Job     JobBlock                `toml:"job"`
	Time    TimeBlock               `toml:"time"`
	Outputs map[string]*OutputBlock `toml:"output"`
}

// JobBlock identifies the run.
type JobBlock struct {
	ProblemID string `toml:"problem_id"`
}

// TimeBlock carries the simulation clock limits.
type TimeBlock struct {
	TimeLimit  float64 `toml:"tlim"`
	CycleLimit int64   `toml:"nlim"`
}

// OutputBlock configures one output stream. A run may carry several, keyed
// by stream name under [output.<name>].
type OutputBlock struct {
	FileBasename      string   `toml:"file_basename"`
	FileID            string   `toml:"file_id"`
	FileNumber        int      `toml:"file_number"`
	Dt                float64  `toml:"dt"`
	NextTime          float64  `toml:"next_time"`
	Variables         []string `toml:"variables"`
	Restart           bool     `toml:"restart"`
	SinglePrecision   bool     `toml:"single_precision_output"`
	IncludeGhostZones bool     `toml:"include_ghost_zones"`
	Compression       string   `toml:"compression"`
	CompressionLevel  int      `toml:"compression_level"`
}

// Kind returns the output kind implied by the stream's restart flag.
func (b *OutputBlock) Kind() format.OutputKind {
	if b.Restart {
		return format.KindRestart
	}

	return format.KindVisualization
}

// Precision returns the storage precision for the stream.
func (b *OutputBlock) Precision() format.Precision {
	if b.SinglePrecision {
		return format.PrecisionFloat32
	}

	return format.PrecisionFloat64
}

// CompressionType maps the stream's compression name to a codec type.
// An empty name selects deflate when a positive level is configured,
// otherwise no compression.
func (b *OutputBlock) CompressionType() (format.CompressionType, error) {
	switch b.Compression {
	case "":
		if b.CompressionLevel > 0 {
			return format.CompressionDeflate, nil
		}
		return format.CompressionNone, nil
	case "none":
		return format.CompressionNone, nil
	case "deflate":
		return format.CompressionDeflate, nil
	case "zstd":
		return format.CompressionZstd, nil
	case "s2":
		return format.CompressionS2, nil
	case "lz4":
		return format.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("output block %q: unknown compression %q", b.FileID, b.Compression)
	}
}

// Advance records a completed output event: the sequence number increments
// and the next scheduled time moves forward by the stream cadence. Every
// rank applies the same advancement, keeping the state identical without
// communication.
func (b *OutputBlock) Advance() {
	b.FileNumber++
	b.NextTime += b.Dt
}

// Parse decodes a TOML document.
func Parse(data string) (*Parameters, error) {
	p := &Parameters{Outputs: map[string]*OutputBlock{}}
	if _, err := toml.Decode(data, p); err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}

	return p, nil
}

// Load reads and decodes a TOML parameter file.
func Load(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}

	return Parse(string(data))
}

// Dump renders the full document back to TOML. The rendering is
// deterministic (map keys sorted by the encoder) so that the /Input blob is
// bit-identical across ranks.
func (p *Parameters) Dump() (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("dump parameters: %w", err)
	}

	return buf.String(), nil
}

// StreamNames returns the configured output stream names in sorted order.
func (p *Parameters) StreamNames() []string {
	names := make([]string, 0, len(p.Outputs))
	for name := range p.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Stream returns the named output block.
func (p *Parameters) Stream(name string) (*OutputBlock, error) {
	b, ok := p.Outputs[name]
	if !ok {
		return nil, fmt.Errorf("no output block named %q", name)
	}

	return b, nil
}
