// compare.go adds an optional reference point to benchmark output,
// showing how the RLE/Huffman/Hybrid stack compares against a real,
// general-purpose compressor on the same input. It never changes the
// RLE/Huffman/Hybrid wire formats.
package report

import (
	"github.com/DataDog/zstd"

	"github.com/quiflern/filecompress/internal/codec"
)

const component = "report"

// ReferencePoint is one third-party codec's result on the same input,
// for side-by-side display in `benchmark --compare`.
type ReferencePoint struct {
	Name           string
	CompressedSize int64
}

// Compare runs zstd over data and returns its result as a reference
// point. Failure here is never fatal to the benchmark itself — it's an
// optional, informational comparison point.
func Compare(data []byte) (ReferencePoint, error) {
	out, err := zstd.Compress(nil, data)
	if err != nil {
		return ReferencePoint{}, codec.New(component, codec.Io, "zstd reference compression: %w", err)
	}
	return ReferencePoint{Name: "zstd", CompressedSize: int64(len(out))}, nil
}
