package dispatch

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/quiflern/filecompress/internal/codec"
	"github.com/quiflern/filecompress/internal/container"
	"github.com/quiflern/filecompress/internal/crypt"
	"github.com/quiflern/filecompress/internal/report"
)

// countingBuffer holds one archive entry's compressed payload in memory
// between compressing it and copying it into the container stream.
// Archive members are framed individually, each with its own
// payload_length field, so each entry's payload must be fully
// materialized before its header can be written.
type countingBuffer struct {
	bytes.Buffer
}

func (c *countingBuffer) Reader() io.Reader { return bytes.NewReader(c.Bytes()) }

// CompressArchive walks root within fsys, compresses every regular file
// with opt.Algorithm/opt.Level (hybrid resolves per file), and writes a
// container stream to dst. One container.Writer is held open across the
// whole walk, rather than reopened per entry, so no file descriptor is
// ever leaked across iterations. onSkip, if non-nil, is invoked once per
// non-regular entry Walk skips; files excluded by include patterns are
// not reported to it.
// osRoot is the real filesystem directory fsys was rooted at (typically
// the argument passed to os.DirFS), used only to resolve precise
// mode/mtime via container.StatEntry; pass "" if fsys isn't disk-backed
// and the io/fs.FileInfo fallback is acceptable.
// If opt.Password is set, the whole archive stream is wrapped in an
// AES-256-CBC envelope after it's built — archive entries are never
// individually encrypted.
func (d *Dispatcher) CompressArchive(fsys fs.FS, osRoot, root string, include []string, dst io.Writer, opt Options, onSkip func(path, reason string)) (report.Report, error) {
	timer := report.StartTimer()

	containerDst := dst
	var plainStage *os.File
	if opt.Password != "" {
		var err error
		plainStage, err = os.CreateTemp("", "filecompress-archive-*")
		if err != nil {
			return report.Report{}, codec.New(component, codec.Io, "create archive staging file: %w", err)
		}
		defer cleanupTemp(plainStage)
		containerDst = plainStage
	}

	cw := container.NewWriter(containerDst)

	var totalOriginal, totalCompressed int64
	err := container.Walk(fsys, root, include, onSkip, func(sel container.Selection) error {
		f, err := fsys.Open(sel.SourcePath)
		if err != nil {
			return codec.New(component, codec.Io, "open %q: %w", sel.SourcePath, err)
		}
		defer f.Close()

		var payload countingBuffer
		entryOpt := opt
		entryOpt.Progress = nil // per-entry progress isn't meaningful at archive granularity
		entryOpt.Password = "" // entries are never individually encrypted
		chosenAlg, encErr := d.encodeEntry(&payload, f, entryOpt)
		if encErr != nil {
			return encErr
		}

		statPath := sel.SourcePath
		if osRoot != "" {
			statPath = filepath.Join(osRoot, sel.SourcePath)
		}
		modeBits, mtimeSeconds := container.StatEntry(statPath, sel.Info)
		hdr := container.Header{
			Path:          filepath.ToSlash(sel.ArchivePath),
			OriginalSize:  uint64(sel.Info.Size()),
			ModeBits:      modeBits,
			MtimeSeconds:  mtimeSeconds,
			Algorithm:     chosenAlg,
			Level:         opt.Level,
			PayloadLength: uint64(payload.Len()),
		}
		if err := cw.WriteEntry(hdr, payload.Reader()); err != nil {
			return err
		}
		totalOriginal += int64(hdr.OriginalSize)
		totalCompressed += int64(hdr.PayloadLength)
		return nil
	})
	if err != nil {
		return report.Report{}, err
	}

	if opt.Password != "" {
		if _, err := plainStage.Seek(0, io.SeekStart); err != nil {
			return report.Report{}, codec.New(component, codec.Io, "rewind archive stage: %w", err)
		}
		if err := crypt.Encrypt(dst, plainStage, opt.Password); err != nil {
			return report.Report{}, err
		}
	}

	return report.New(opt.Algorithm, opt.Level, totalOriginal, totalCompressed, timer.Elapsed()), nil
}

// encodeEntry compresses one archive member's content into sink.
// Archive entries are never individually encrypted; encryption, if
// requested, wraps the whole archive stream instead.
func (d *Dispatcher) encodeEntry(sink io.Writer, r io.Reader, opt Options) (codec.Algorithm, error) {
	staged, origSize, err := materialize(r)
	if staged != nil {
		defer cleanupTemp(staged)
	}
	if err != nil {
		return 0, err
	}
	return d.encodeTo(sink, staged, origSize, opt)
}

// ExtractArchive reads a container stream from src and recreates its
// entries under destRoot, restoring mode_bits via container.RestoreMode.
// If opt.Password is set, the whole stream is decrypted first; archive
// entries are never individually encrypted.
func (d *Dispatcher) ExtractArchive(src io.Reader, destRoot string, opt Options) error {
	containerSrc := src
	if opt.Password != "" {
		var plain bytes.Buffer
		if err := crypt.Decrypt(&plain, src, opt.Password); err != nil {
			return err
		}
		containerSrc = &plain
	}

	cr := container.NewReader(containerSrc)
	for {
		hdr, payload, err := cr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		outPath := filepath.Join(destRoot, filepath.FromSlash(hdr.Path))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return codec.New(component, codec.Io, "create directory for %q: %w", hdr.Path, err)
		}
		out, err := os.Create(outPath)
		if err != nil {
			return codec.New(component, codec.Io, "create %q: %w", outPath, err)
		}

		entryOpt := opt
		entryOpt.Algorithm = hdr.Algorithm
		entryOpt.Level = hdr.Level
		entryOpt.Progress = nil
		entryOpt.Password = "" // the envelope, if any, was already unwrapped above
		decErr := d.Decompress(payload, out, entryOpt)
		closeErr := out.Close()
		if decErr != nil {
			return decErr
		}
		if closeErr != nil {
			return codec.New(component, codec.Io, "close %q: %w", outPath, closeErr)
		}

		if err := container.RestoreMode(outPath, hdr.ModeBits); err != nil {
			return codec.New(component, codec.Io, "restore mode for %q: %w", outPath, err)
		}
		mtime := time.Unix(int64(hdr.MtimeSeconds), 0)
		if err := os.Chtimes(outPath, mtime, mtime); err != nil {
			return codec.New(component, codec.Io, "restore mtime for %q: %w", outPath, err)
		}
	}
}
