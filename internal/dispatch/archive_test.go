package dispatch

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/quiflern/filecompress/internal/codec"
)

func TestArchiveRoundTrip(t *testing.T) {
	fsys := fstest.MapFS{
		"docs/readme.txt": &fstest.MapFile{Data: bytes.Repeat([]byte("hello archive\n"), 50)},
		"docs/notes.txt":  &fstest.MapFile{Data: []byte("ABABABABABAB")},
		"bin/tool":        &fstest.MapFile{Data: bytes.Repeat([]byte{0x7F}, 2000)},
	}

	d := newDispatcher(t)
	var archive bytes.Buffer
	var skipped []string
	_, err := d.CompressArchive(fsys, "", ".", nil, &archive, Options{
		Algorithm: codec.Hybrid,
		Level:     codec.Balanced,
	}, func(path, reason string) { skipped = append(skipped, path) })
	if err != nil {
		t.Fatalf("CompressArchive: %v", err)
	}

	destRoot := t.TempDir()
	err = d.ExtractArchive(bytes.NewReader(archive.Bytes()), destRoot, Options{})
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}

	for path, file := range fsys {
		got, err := os.ReadFile(filepath.Join(destRoot, path))
		if err != nil {
			t.Fatalf("read extracted %q: %v", path, err)
		}
		if !bytes.Equal(got, file.Data) {
			t.Fatalf("extracted %q mismatch", path)
		}
	}
}

func TestArchiveEncryptedRoundTrip(t *testing.T) {
	fsys := fstest.MapFS{
		"docs/readme.txt": &fstest.MapFile{Data: bytes.Repeat([]byte("hello archive\n"), 50)},
		"bin/tool":        &fstest.MapFile{Data: bytes.Repeat([]byte{0x7F}, 2000)},
	}

	d := newDispatcher(t)
	var archive bytes.Buffer
	_, err := d.CompressArchive(fsys, "", ".", nil, &archive, Options{
		Algorithm: codec.Hybrid,
		Level:     codec.Balanced,
		Password:  "hunter2",
	}, nil)
	if err != nil {
		t.Fatalf("CompressArchive: %v", err)
	}

	// The archive on the wire must not contain the plaintext filename or
	// content; a plaintext container stream would start with the path.
	if bytes.Contains(archive.Bytes(), []byte("readme.txt")) {
		t.Fatal("archive stream is not encrypted")
	}

	destRoot := t.TempDir()
	err = d.ExtractArchive(bytes.NewReader(archive.Bytes()), destRoot, Options{Password: "hunter2"})
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	for path, file := range fsys {
		got, err := os.ReadFile(filepath.Join(destRoot, path))
		if err != nil {
			t.Fatalf("read extracted %q: %v", path, err)
		}
		if !bytes.Equal(got, file.Data) {
			t.Fatalf("extracted %q mismatch", path)
		}
	}

	err = d.ExtractArchive(bytes.NewReader(archive.Bytes()), t.TempDir(), Options{Password: "wrong"})
	if err == nil {
		t.Fatal("expected failure decrypting with wrong password")
	}
	var ce *codec.Error
	if !asCodecError(err, &ce) || ce.Kind != codec.CryptoFailure {
		t.Fatalf("expected CryptoFailure, got %v", err)
	}
}
