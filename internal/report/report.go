// Package report implements the compression report and benchmark hooks,
// the human-readable rendering format, and an optional reference-codec
// comparison.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/quiflern/filecompress/internal/codec"
)

// Report is the record populated by the dispatcher after every
// compression operation.
type Report struct {
	Algorithm      codec.Algorithm
	Level          codec.Level
	OriginalSize   int64
	CompressedSize int64
	Ratio          float64
	WallTime       time.Duration
}

// New computes Ratio from the two sizes; Ratio is zero when
// OriginalSize is zero (mirrors the C original's guard).
func New(algorithm codec.Algorithm, level codec.Level, originalSize, compressedSize int64, wall time.Duration) Report {
	var ratio float64
	if originalSize > 0 {
		ratio = float64(compressedSize) / float64(originalSize)
	}
	return Report{
		Algorithm:      algorithm,
		Level:          level,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Ratio:          ratio,
		WallTime:       wall,
	}
}

// Render writes the report in the same six-field layout as the
// original tool's compression_report.txt. The report file is never
// written on a failed operation.
func Render(w io.Writer, r Report) error {
	_, err := fmt.Fprintf(w,
		"Compression Report\n"+
			"------------------\n"+
			"Algorithm: %s\n"+
			"Compression Level: %s\n"+
			"Original Size: %d bytes\n"+
			"Compressed Size: %d bytes\n"+
			"Compression Ratio: %.2f\n"+
			"Compression Time: %.4f seconds\n",
		algorithmLabel(r.Algorithm), levelLabel(r.Level),
		r.OriginalSize, r.CompressedSize, r.Ratio, r.WallTime.Seconds())
	return err
}

func algorithmLabel(a codec.Algorithm) string {
	switch a {
	case codec.RLE:
		return "RLE"
	case codec.Huffman:
		return "Huffman"
	case codec.Hybrid:
		return "Hybrid"
	default:
		return "Unknown"
	}
}

func levelLabel(l codec.Level) string {
	switch l {
	case codec.Fast:
		return "Fast"
	case codec.Balanced:
		return "Balanced"
	case codec.Max:
		return "Max"
	default:
		return "Unknown"
	}
}

// Timer wraps start/stop wall-clock sampling around a compression call,
// matching start_compression_timing/end_compression_timing from the
// original C tool.
type Timer struct {
	start time.Time
}

func StartTimer() Timer { return Timer{start: time.Now()} }

func (t Timer) Elapsed() time.Duration { return time.Since(t.start) }
