// Package dispatch implements the routing layer: given a mode,
// algorithm, level, and an optional password, it composes the codec,
// optional container framing, and optional encryption envelope into a
// single pipeline. It owns the hybrid selector's run-scoped cache by
// living for exactly one CLI invocation and never persisting it across
// runs.
package dispatch

import (
	"bytes"
	"io"
	"os"

	"github.com/therootcompany/xz"

	"github.com/quiflern/filecompress/internal/codec"
	"github.com/quiflern/filecompress/internal/crypt"
	"github.com/quiflern/filecompress/internal/huffman"
	"github.com/quiflern/filecompress/internal/hybrid"
	"github.com/quiflern/filecompress/internal/report"
	"github.com/quiflern/filecompress/internal/rle"
)

const component = "dispatch"

// Progress mirrors the codec packages' callback shape so callers don't
// need to import rle/huffman just to build one.
type Progress func(bytesProcessed, totalBytes int64, cookie any)

// Options configures one dispatcher call. Password == "" means no
// encryption envelope. ImportXZ pre-decodes the source through the xz
// reader before compression — a one-way migration path for files
// already compressed with an external xz tool.
type Options struct {
	Algorithm codec.Algorithm
	Level     codec.Level
	Password  string
	ImportXZ  bool
	Progress  Progress
	Cookie    any
}

// Dispatcher holds the hybrid selector's dedup cache across however
// many Compress/CompressArchive calls make up one CLI invocation.
type Dispatcher struct {
	selector *hybrid.Selector
}

// New builds a Dispatcher. cacheCapacity bounds the hybrid selector's
// dedup cache; pass 0 for its default.
func New(cacheCapacity int) (*Dispatcher, error) {
	sel, err := hybrid.New(cacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{selector: sel}, nil
}

func (d *Dispatcher) Close() {
	if d != nil {
		d.selector.Close()
	}
}

// Compress reads all of src (optionally xz-importing it first), runs it
// through the requested algorithm, optionally encrypts the result, and
// writes the final bytes to dst. total is the known input size, or -1.
func (d *Dispatcher) Compress(src io.Reader, dst io.Writer, total int64, opt Options) (report.Report, error) {
	if opt.Algorithm != codec.RLE && opt.Algorithm != codec.Huffman && opt.Algorithm != codec.Hybrid {
		return report.Report{}, codec.New(component, codec.InvalidArgument, "unknown algorithm %v", opt.Algorithm)
	}

	timer := report.StartTimer()
	effectiveSrc := src
	if opt.ImportXZ {
		xr, err := xz.NewReader(src, xz.DefaultDictMax)
		if err != nil {
			return report.Report{}, codec.New(component, codec.Io, "open xz import stream: %w", err)
		}
		effectiveSrc = xr
		total = -1 // decompressed size isn't known up front
	}

	staged, origSize, err := materialize(effectiveSrc)
	if staged != nil {
		defer cleanupTemp(staged)
	}
	if err != nil {
		return report.Report{}, err
	}
	if total < 0 {
		total = origSize
	}

	var encryptStage *os.File
	var sink io.Writer = dst
	if opt.Password != "" {
		encryptStage, err = os.CreateTemp("", "filecompress-envelope-*")
		if err != nil {
			return report.Report{}, codec.New(component, codec.Io, "create encryption staging file: %w", err)
		}
		defer cleanupTemp(encryptStage)
		sink = encryptStage
	}

	counter := &countingWriter{w: sink}
	chosenAlg, err := d.encodeTo(counter, staged, origSize, opt)
	if err != nil {
		return report.Report{}, err
	}

	if opt.Password != "" {
		if _, err := encryptStage.Seek(0, io.SeekStart); err != nil {
			return report.Report{}, codec.New(component, codec.Io, "rewind encryption stage: %w", err)
		}
		finalCount := &countingWriter{w: dst}
		if err := crypt.Encrypt(finalCount, encryptStage, opt.Password); err != nil {
			return report.Report{}, err
		}
		return report.New(chosenAlg, opt.Level, origSize, finalCount.n, timer.Elapsed()), nil
	}

	return report.New(chosenAlg, opt.Level, origSize, counter.n, timer.Elapsed()), nil
}

func (d *Dispatcher) encodeTo(sink io.Writer, staged *os.File, origSize int64, opt Options) (codec.Algorithm, error) {
	switch opt.Algorithm {
	case codec.RLE:
		if _, err := staged.Seek(0, io.SeekStart); err != nil {
			return 0, codec.New(component, codec.Io, "rewind staged input: %w", err)
		}
		err := rle.Encode(sink, staged, opt.Level, origSize, rle.Progress(opt.Progress), opt.Cookie)
		return codec.RLE, err
	case codec.Huffman:
		if _, err := staged.Seek(0, io.SeekStart); err != nil {
			return 0, codec.New(component, codec.Io, "rewind staged input: %w", err)
		}
		err := huffman.Encode(sink, staged, origSize, huffman.Progress(opt.Progress), opt.Cookie)
		return codec.Huffman, err
	case codec.Hybrid:
		if _, err := staged.Seek(0, io.SeekStart); err != nil {
			return 0, codec.New(component, codec.Io, "rewind staged input: %w", err)
		}
		data, err := io.ReadAll(staged)
		if err != nil {
			return 0, codec.New(component, codec.Io, "read staged input for hybrid trial: %w", err)
		}
		result, err := d.selector.Select(sink, data, opt.Level)
		return result.Algorithm, err
	default:
		return 0, codec.New(component, codec.InvalidArgument, "unknown algorithm %v", opt.Algorithm)
	}
}

// Decompress is the inverse of Compress. Hybrid is rejected: the on-disk
// stream at this point is already resolved to RLE or Huffman, so the
// caller must supply the algorithm actually chosen.
func (d *Dispatcher) Decompress(src io.Reader, dst io.Writer, opt Options) error {
	if opt.Algorithm == codec.Hybrid {
		return codec.New(component, codec.InvalidArgument, "hybrid is not a valid decompression algorithm; supply the resolved algorithm")
	}

	effectiveSrc := src
	if opt.Password != "" {
		var plain bytes.Buffer
		if err := crypt.Decrypt(&plain, src, opt.Password); err != nil {
			return err
		}
		effectiveSrc = &plain
	}

	switch opt.Algorithm {
	case codec.RLE:
		return rle.Decode(dst, effectiveSrc, rle.Progress(opt.Progress), opt.Cookie)
	case codec.Huffman:
		return huffman.Decode(dst, effectiveSrc, huffman.Progress(opt.Progress), opt.Cookie)
	default:
		return codec.New(component, codec.InvalidArgument, "unsupported decompression algorithm %v", opt.Algorithm)
	}
}

// materialize copies r into a temporary file so Huffman/Hybrid can seek
// it for their two-pass/trial work, regardless of whether the original
// source supported seeking.
func materialize(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "filecompress-input-*")
	if err != nil {
		return nil, 0, codec.New(component, codec.Io, "create input staging file: %w", err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		return f, 0, codec.New(component, codec.Io, "stage input: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return f, 0, codec.New(component, codec.Io, "rewind staged input: %w", err)
	}
	return f, n, nil
}

func cleanupTemp(f *os.File) {
	name := f.Name()
	f.Close()
	os.Remove(name)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
