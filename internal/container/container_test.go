package container

import (
	"bytes"
	"io"
	"testing"
	"testing/fstest"

	"github.com/quiflern/filecompress/internal/codec"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Path:          "dir/sub/file.txt",
		OriginalSize:  12345,
		ModeBits:      0o644,
		MtimeSeconds:  1700000000,
		Algorithm:     codec.Huffman,
		Level:         codec.Balanced,
		PayloadLength: 999,
	}
	buf, err := h.encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != headerSize {
		t.Fatalf("header size %d, want %d", len(buf), headerSize)
	}
	got, err := decodeHeader(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestPathTooLongRejected(t *testing.T) {
	longPath := make([]byte, PathCap)
	for i := range longPath {
		longPath[i] = 'a'
	}
	h := Header{Path: string(longPath), Algorithm: codec.RLE}
	if _, err := h.encode(); err == nil {
		t.Fatal("expected error for oversized path")
	}
}

func TestUnknownAlgorithmTagRejectedOnDecode(t *testing.T) {
	h := Header{Path: "x", Algorithm: codec.RLE}
	buf, err := h.encode()
	if err != nil {
		t.Fatal(err)
	}
	// corrupt the algorithm_tag byte to an unknown value
	buf[PathCap+8+4+8] = 0xFE
	if _, err := decodeHeader(buf[:]); err == nil {
		t.Fatal("expected Unsupported error for unknown algorithm tag")
	}
}

func TestMultiEntryArchiveRoundTrip(t *testing.T) {
	entries := []struct {
		header  Header
		payload []byte
	}{
		{Header{Path: "a.txt", OriginalSize: 5, ModeBits: 0o644, MtimeSeconds: 111, Algorithm: codec.RLE}, []byte{0x05, 0x41}},
		{Header{Path: "b/c.bin", OriginalSize: 0, ModeBits: 0o600, MtimeSeconds: 222, Algorithm: codec.Huffman}, []byte{}},
		{Header{Path: "d.txt", OriginalSize: 10, ModeBits: 0o755, MtimeSeconds: 333, Algorithm: codec.RLE}, []byte{0x0A, 0x42}},
	}

	var archive bytes.Buffer
	w := NewWriter(&archive)
	for i := range entries {
		entries[i].header.PayloadLength = uint64(len(entries[i].payload))
		if err := w.WriteEntry(entries[i].header, bytes.NewReader(entries[i].payload)); err != nil {
			t.Fatalf("write entry %d: %v", i, err)
		}
	}

	r := NewReader(&archive)
	for i, want := range entries {
		h, payloadR, err := r.Next()
		if err != nil {
			t.Fatalf("read entry %d: %v", i, err)
		}
		if h != want.header {
			t.Fatalf("entry %d header mismatch: got %+v want %+v", i, h, want.header)
		}
		got, err := io.ReadAll(payloadR)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want.payload) {
			t.Fatalf("entry %d payload mismatch: got % x want % x", i, got, want.payload)
		}
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at archive end, got %v", err)
	}
}

func TestWalkSkipsDotEntriesAndNonRegularAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"root/keep.txt":      &fstest.MapFile{Data: []byte("hi")},
		"root/skip.log":      &fstest.MapFile{Data: []byte("no")},
		"root/sub/keep2.txt": &fstest.MapFile{Data: []byte("hi2")},
	}

	var found []string
	err := Walk(fsys, "root", []string{"**/*.txt"}, nil, func(sel Selection) error {
		found = append(found, sel.ArchivePath)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"keep.txt": true, "sub/keep2.txt": true}
	if len(found) != len(want) {
		t.Fatalf("got %v, want keys of %v", found, want)
	}
	for _, f := range found {
		if !want[f] {
			t.Fatalf("unexpected entry %q", f)
		}
	}
}
