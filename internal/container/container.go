// Package container implements the multi-file archive format: a
// sequence of fixed-size metadata headers each followed by a
// variable-length compressed payload, with an explicit payload_length
// field so a reader can locate the next entry without parsing the
// payload (the original source's format lacked this field).
package container

import (
	"bufio"
	"encoding/binary"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/quiflern/filecompress/internal/codec"
)

const component = "container"

// PathCap is the fixed width of the NUL-padded path field.
const PathCap = 4096

// headerSize is the on-disk size of everything before the payload:
// path(4096) + original_size(8) + mode_bits(4) + mtime_seconds(8) +
// algorithm_tag(1) + level_tag(1) + payload_length(8).
const headerSize = PathCap + 8 + 4 + 8 + 1 + 1 + 8

// Header is one container entry's metadata.
type Header struct {
	Path          string
	OriginalSize  uint64
	ModeBits      uint32
	MtimeSeconds  uint64
	Algorithm     codec.Algorithm
	Level         codec.Level
	PayloadLength uint64
}

func (h Header) encode() ([headerSize]byte, error) {
	var buf [headerSize]byte
	pathBytes := []byte(h.Path)
	if len(pathBytes) >= PathCap {
		return buf, codec.New(component, codec.InvalidArgument, "path %q does not fit PATH_CAP %d with its NUL terminator", h.Path, PathCap)
	}
	copy(buf[:PathCap], pathBytes)
	// remainder of the path field is already zero (NUL-padded)

	off := PathCap
	binary.LittleEndian.PutUint64(buf[off:], h.OriginalSize)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], h.ModeBits)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.MtimeSeconds)
	off += 8
	buf[off] = byte(h.Algorithm)
	off++
	buf[off] = byte(h.Level)
	off++
	binary.LittleEndian.PutUint64(buf[off:], h.PayloadLength)
	return buf, nil
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) != headerSize {
		return Header{}, codec.New(component, codec.Truncated, "short header: got %d bytes want %d", len(buf), headerSize)
	}
	var h Header
	nameEnd := strings_IndexByte(buf[:PathCap])
	h.Path = string(buf[:nameEnd])

	off := PathCap
	h.OriginalSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.ModeBits = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	h.MtimeSeconds = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	h.Algorithm = codec.Algorithm(buf[off])
	off++
	h.Level = codec.Level(buf[off])
	off++
	h.PayloadLength = binary.LittleEndian.Uint64(buf[off:])

	if h.Algorithm != codec.RLE && h.Algorithm != codec.Huffman {
		return h, codec.New(component, codec.Unsupported, "unknown algorithm tag %d in entry %q", h.Algorithm, h.Path)
	}
	return h, nil
}

func strings_IndexByte(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// Writer appends entries to a single underlying stream. One Writer is
// held open across an entire directory walk; the original tool's habit
// of recursively reopening the output archive is not reproduced.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteEntry writes one header followed by payload. algorithm must
// already be resolved to RLE or Huffman; a hybrid selection is resolved
// by the caller before this is called.
func (cw *Writer) WriteEntry(h Header, payload io.Reader) error {
	if h.Algorithm != codec.RLE && h.Algorithm != codec.Huffman {
		return codec.New(component, codec.InvalidArgument, "container entries must record a resolved algorithm, got %v", h.Algorithm)
	}
	buf, err := h.encode()
	if err != nil {
		return err
	}
	if _, err := cw.w.Write(buf[:]); err != nil {
		return codec.New(component, codec.Io, "write entry header for %q: %w", h.Path, err)
	}
	n, err := io.Copy(cw.w, payload)
	if err != nil {
		return codec.New(component, codec.Io, "write entry payload for %q: %w", h.Path, err)
	}
	if uint64(n) != h.PayloadLength {
		return codec.New(component, codec.Io, "payload for %q wrote %d bytes, header declared %d", h.Path, n, h.PayloadLength)
	}
	return nil
}

// Reader reads entries sequentially from the underlying stream until EOF.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReaderSize(r, headerSize)} }

// Next returns the next entry's header and an io.Reader bounded to
// exactly PayloadLength bytes. It returns io.EOF when the stream is
// exhausted cleanly at an entry boundary.
func (cr *Reader) Next() (Header, io.Reader, error) {
	var buf [headerSize]byte
	n, err := io.ReadFull(cr.r, buf[:])
	if err == io.EOF && n == 0 {
		return Header{}, nil, io.EOF
	}
	if err != nil {
		return Header{}, nil, codec.New(component, codec.Truncated, "truncated entry header: %w", err)
	}
	h, err := decodeHeader(buf[:])
	if err != nil {
		return Header{}, nil, err
	}
	return h, io.LimitReader(cr.r, int64(h.PayloadLength)), nil
}

// Selection describes one file discovered by Walk, ready to be handed
// to the dispatcher for compression and then to Writer.WriteEntry.
type Selection struct {
	// ArchivePath is the path to record in the entry header: relative
	// to the walk root, using forward slashes, never "." or "..".
	ArchivePath string
	// SourcePath is the real filesystem path to open for reading.
	SourcePath string
	Info       fs.FileInfo
}

// WalkFunc is invoked once per regular file found by Walk, in
// depth-first order. Returning an error aborts the walk: a partial
// archive is forbidden, so any per-entry I/O error is fatal to the
// whole operation.
type WalkFunc func(sel Selection) error

// Walk depth-first traverses root, skipping "." and "..", archiving only
// regular files (other inode types are skipped with a warning the
// caller can observe via the onSkip hook), and optionally filtering by
// doublestar glob patterns matched against the entry's path relative to
// root.
func Walk(fsys fs.FS, root string, include []string, onSkip func(path string, reason string), fn WalkFunc) error {
	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return codec.New(component, codec.Io, "walk %q: %w", p, err)
		}
		base := path.Base(p)
		if base == "." || base == ".." {
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return codec.New(component, codec.Io, "stat %q: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			if onSkip != nil {
				onSkip(p, "not a regular file")
			}
			return nil
		}

		rel := p
		if root != "." {
			rel = strings.TrimPrefix(p, root)
			rel = strings.TrimPrefix(rel, "/")
		}
		if rel == "" {
			rel = base
		}
		if len(include) > 0 && !matchesAny(include, rel) {
			return nil
		}

		return fn(Selection{ArchivePath: rel, SourcePath: p, Info: info})
	})
}

func matchesAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}
