// Package rle implements a bounded run-length codec: greedy (count,
// value) pairs over 4 KiB chunks, with a level-dependent cap on run
// length and no runs crossing a chunk boundary.
package rle

import (
	"bufio"
	"io"

	"github.com/quiflern/filecompress/internal/codec"
)

const chunkSize = 4096

const component = "rle"

// Progress is invoked once per 4 KiB input chunk during Encode and once
// per decoded run during Decode (with totalBytes == -1). It may
// not be thread-safe or fast; callers should treat it as a best-effort
// progress hint, never block on it.
type Progress func(bytesProcessed, totalBytes int64, cookie any)

// Encode reads all of r (which must report its total size in total,
// or -1 if unknown) and writes the RLE payload to w. level bounds the
// run length.
func Encode(w io.Writer, r io.Reader, level codec.Level, total int64, progress Progress, cookie any) error {
	maxRun := level.MaxRun()
	br := bufio.NewReaderSize(r, chunkSize)
	bw := bufio.NewWriter(w)

	var processed int64
	chunk := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(br, chunk)
		if n > 0 {
			if err := encodeChunk(bw, chunk[:n], maxRun); err != nil {
				return codec.New(component, codec.Io, "write run: %w", err)
			}
			processed += int64(n)
			if progress != nil {
				progress(processed, total, cookie)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return codec.New(component, codec.Io, "read input: %w", readErr)
		}
	}
	if err := bw.Flush(); err != nil {
		return codec.New(component, codec.Io, "flush output: %w", err)
	}
	return nil
}

// encodeChunk greedily extends runs within a single chunk; runs never
// cross the chunk boundary.
func encodeChunk(w io.Writer, chunk []byte, maxRun int) error {
	i := 0
	for i < len(chunk) {
		v := chunk[i]
		count := 1
		for i+count < len(chunk) && chunk[i+count] == v && count < maxRun {
			count++
		}
		if _, err := w.Write([]byte{byte(count), v}); err != nil {
			return err
		}
		i += count
	}
	return nil
}

// Decode reads an RLE payload from r until EOF and writes the expanded
// bytes to w. A count of zero is rejected as Malformed.
func Decode(w io.Writer, r io.Reader, progress Progress, cookie any) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	var pair [2]byte
	var processed int64
	for {
		_, err := io.ReadFull(br, pair[:1])
		if err == io.EOF {
			break
		}
		if err != nil {
			return codec.New(component, codec.Io, "read run count: %w", err)
		}
		if _, err := io.ReadFull(br, pair[1:2]); err != nil {
			return codec.New(component, codec.Truncated, "truncated run (missing value octet): %w", err)
		}

		count, value := pair[0], pair[1]
		if count == 0 {
			return codec.New(component, codec.Malformed, "run with count == 0")
		}

		run := make([]byte, count)
		for i := range run {
			run[i] = value
		}
		if _, err := bw.Write(run); err != nil {
			return codec.New(component, codec.Io, "write expanded run: %w", err)
		}
		processed += int64(len(run))
		if progress != nil {
			progress(processed, -1, cookie)
		}
	}
	if err := bw.Flush(); err != nil {
		return codec.New(component, codec.Io, "flush output: %w", err)
	}
	return nil
}
