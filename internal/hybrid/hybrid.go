// Package hybrid implements the hybrid selector: it trial-compresses an
// input with both RLE and Huffman, keeps the smaller result (ties favor
// Huffman), and reports which algorithm was chosen.
//
// Trial buffers are temporary files, not memory, and are removed on
// every exit path. A small in-process cache — tinylfu for admission,
// bigcache for the actual bytes — lets repeated compression of
// identical content (duplicate files inside one archive run) skip the
// trial entirely, as long as the chosen payload is no larger than
// cachedPayloadLimit.
package hybrid

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/quiflern/filecompress/internal/codec"
	"github.com/quiflern/filecompress/internal/huffman"
	"github.com/quiflern/filecompress/internal/rle"
)

const component = "hybrid"

// cachedPayloadLimit bounds which trial results get a bigcache entry;
// larger payloads are recorded by admission but not byte-cached, so a
// repeat of such content runs a fresh trial.
const cachedPayloadLimit = 256 * 1024

type cacheEntry struct {
	algorithm codec.Algorithm
	size      int
}

// Selector holds the run-scoped dedup cache. Zero value is usable; it
// simply runs with caching disabled until New populates the fields.
type Selector struct {
	admission *tinylfu.T[uint64, cacheEntry]
	store     *bigcache.BigCache
}

// New builds a Selector whose admission cache tracks up to capacity
// distinct content hashes. Intended for the lifetime of one archive or
// multi-file compression run; it is never persisted across runs.
func New(capacity int) (*Selector, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	store, err := bigcache.New(context.Background(), bigcache.DefaultConfig(10*time.Minute))
	if err != nil {
		return nil, codec.New(component, codec.Io, "create trial-result cache: %w", err)
	}
	identity := func(k uint64) uint64 { return k }
	return &Selector{
		admission: tinylfu.New[uint64, cacheEntry](capacity, capacity*10, identity),
		store:     store,
	}, nil
}

// Close releases cache resources. Safe to call on a zero-value Selector.
func (s *Selector) Close() {
	if s != nil && s.store != nil {
		s.store.Close()
	}
}

// Result describes the outcome of a Select call.
type Result struct {
	Algorithm codec.Algorithm
	Size      int64
}

// Select trial-compresses data with RLE (at level) and Huffman, writes
// the smaller payload to dst, and returns which algorithm won. Ties are
// broken in favor of Huffman.
func (s *Selector) Select(dst io.Writer, data []byte, level codec.Level) (Result, error) {
	key := cacheKey(data, level)

	if s != nil && s.store != nil {
		if cached, ok := s.lookup(key); ok {
			if err := s.emitCached(dst, key, cached); err == nil {
				return cached, nil
			}
			// Admitted but not byte-cached (payload exceeded
			// cachedPayloadLimit): fall through to a fresh trial.
		}
	}

	rleFile, rleSize, rleErr := trialEncode(data, func(w io.Writer, r io.Reader) error {
		return rle.Encode(w, r, level, int64(len(data)), nil, nil)
	})
	if rleFile != nil {
		defer cleanupTemp(rleFile)
	}

	hufFile, hufSize, hufErr := trialEncode(data, func(w io.Writer, r io.Reader) error {
		seeker, ok := r.(io.ReadSeeker)
		if !ok {
			seeker = bytes.NewReader(data)
		}
		return huffman.Encode(w, seeker, int64(len(data)), nil, nil)
	})
	if hufFile != nil {
		defer cleanupTemp(hufFile)
	}

	if rleErr != nil && hufErr != nil {
		return Result{}, codec.New(component, codec.Io, "both trial codecs failed: rle=%v huffman=%v", rleErr, hufErr)
	}

	var chosen *os.File
	var chosenAlg codec.Algorithm
	var chosenSize int64
	switch {
	case rleErr != nil:
		chosen, chosenAlg, chosenSize = hufFile, codec.Huffman, hufSize
	case hufErr != nil:
		chosen, chosenAlg, chosenSize = rleFile, codec.RLE, rleSize
	case rleSize < hufSize:
		chosen, chosenAlg, chosenSize = rleFile, codec.RLE, rleSize
	default:
		chosen, chosenAlg, chosenSize = hufFile, codec.Huffman, hufSize
	}

	if _, err := chosen.Seek(0, io.SeekStart); err != nil {
		return Result{}, codec.New(component, codec.Io, "seek chosen trial buffer: %w", err)
	}
	if _, err := io.Copy(dst, chosen); err != nil {
		return Result{}, codec.New(component, codec.Io, "copy chosen payload: %w", err)
	}

	result := Result{Algorithm: chosenAlg, Size: chosenSize}
	if s != nil && s.store != nil {
		s.remember(key, chosen, result)
	}
	return result, nil
}

// cacheKey hashes data together with level, since RLE's output depends
// on level (MAX_RUN): the same content trial-compressed at two
// different levels must not collide on one cache entry.
func cacheKey(data []byte, level codec.Level) uint64 {
	h := xxhash.New()
	h.Write(data)
	h.Write([]byte{byte(level)})
	return h.Sum64()
}

func trialEncode(data []byte, encode func(w io.Writer, r io.Reader) error) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "filecompress-trial-*")
	if err != nil {
		return nil, 0, codec.New(component, codec.Io, "create trial file: %w", err)
	}
	if err := encode(f, bytes.NewReader(data)); err != nil {
		return f, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return f, 0, codec.New(component, codec.Io, "stat trial file: %w", err)
	}
	return f, info.Size(), nil
}

func cleanupTemp(f *os.File) {
	name := f.Name()
	f.Close()
	os.Remove(name)
}

func (s *Selector) lookup(key uint64) (Result, bool) {
	entry, ok := s.admission.Get(key)
	if !ok {
		return Result{}, false
	}
	return Result{Algorithm: entry.algorithm, Size: int64(entry.size)}, true
}

func (s *Selector) emitCached(dst io.Writer, key uint64, result Result) error {
	payload, err := s.store.Get(cacheKeyString(key))
	if err != nil {
		// admitted but not byte-cached (too large): nothing to replay,
		// caller falls back to a fresh trial.
		return codec.New(component, codec.Io, "cached result has no stored payload: %w", err)
	}
	_, err = dst.Write(payload)
	return err
}

func (s *Selector) remember(key uint64, chosen *os.File, result Result) {
	s.admission.Add(key, cacheEntry{algorithm: result.Algorithm, size: int(result.Size)})
	if result.Size > cachedPayloadLimit {
		return
	}
	if _, err := chosen.Seek(0, io.SeekStart); err != nil {
		return
	}
	payload, err := io.ReadAll(chosen)
	if err != nil {
		return
	}
	_ = s.store.Set(cacheKeyString(key), payload)
}

func cacheKeyString(key uint64) string {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(key >> (8 * i))
	}
	return string(buf[:])
}
