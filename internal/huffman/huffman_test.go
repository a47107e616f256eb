package huffman

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

type seekBuf struct{ *bytes.Reader }

func newSeekBuf(b []byte) *seekBuf { return &seekBuf{bytes.NewReader(b)} }

func roundTrip(t *testing.T, data []byte) []byte {
	t.Helper()
	var enc bytes.Buffer
	if err := Encode(&enc, newSeekBuf(data), int64(len(data)), nil, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var dec bytes.Buffer
	if err := Decode(&dec, bytes.NewReader(enc.Bytes()), nil, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(dec.Bytes(), data) {
		t.Fatalf("round trip mismatch: got %d bytes want %d", dec.Len(), len(data))
	}
	return enc.Bytes()
}

func TestRoundTripEmpty(t *testing.T) {
	enc := roundTrip(t, nil)
	if len(enc) != headerSize {
		t.Fatalf("empty payload should be header-only: got %d want %d", len(enc), headerSize)
	}
}

func TestRoundTripSingleByte(t *testing.T) {
	roundTrip(t, []byte{0x7F})
}

func TestRoundTripRandomMegabyte(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 1<<20)
	rng.Read(data)
	roundTrip(t, data)
}

// "AAAABBBCCD" -> freq['A']=4 'B'=3 'C'=2 'D'=1, payload <= 3 octets, decodes to original.
func TestSkewedFrequenciesProduceCompactPayload(t *testing.T) {
	data := []byte("AAAABBBCCD")
	enc := roundTrip(t, data)
	var freq [numSymbols]uint32
	for b := 0; b < numSymbols; b++ {
		freq[b] = binary.LittleEndian.Uint32(enc[8+4*b:])
	}
	if freq['A'] != 4 || freq['B'] != 3 || freq['C'] != 2 || freq['D'] != 1 {
		t.Fatalf("unexpected freq table: A=%d B=%d C=%d D=%d", freq['A'], freq['B'], freq['C'], freq['D'])
	}
	payload := enc[headerSize:]
	if len(payload) > 3 {
		t.Fatalf("payload too long: %d octets", len(payload))
	}
}

// empty file -> header written, zero-byte payload, decode yields empty.
func TestEmptyInputYieldsHeaderOnly(t *testing.T) {
	var enc bytes.Buffer
	if err := Encode(&enc, newSeekBuf(nil), 0, nil, nil); err != nil {
		t.Fatal(err)
	}
	if enc.Len() != headerSize {
		t.Fatalf("expected header-only output, got %d bytes", enc.Len())
	}
	var dec bytes.Buffer
	if err := Decode(&dec, bytes.NewReader(enc.Bytes()), nil, nil); err != nil {
		t.Fatal(err)
	}
	if dec.Len() != 0 {
		t.Fatalf("expected empty decode, got %d bytes", dec.Len())
	}
}

// Single distinct byte value -> payload is ceil(|x|/8) octets (plus header).
func TestSingleSymbolPayloadLength(t *testing.T) {
	for _, n := range []int{1, 2, 7, 8, 9, 100, 4097} {
		data := bytes.Repeat([]byte{'Z'}, n)
		var enc bytes.Buffer
		if err := Encode(&enc, newSeekBuf(data), int64(n), nil, nil); err != nil {
			t.Fatal(err)
		}
		wantPayload := (n + 7) / 8
		gotPayload := enc.Len() - headerSize
		if gotPayload != wantPayload {
			t.Fatalf("n=%d: payload %d octets, want %d", n, gotPayload, wantPayload)
		}
		var dec bytes.Buffer
		if err := Decode(&dec, bytes.NewReader(enc.Bytes()), nil, nil); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dec.Bytes(), data) {
			t.Fatalf("n=%d: round trip mismatch", n)
		}
	}
}

func TestTruncatedHeaderIsFatal(t *testing.T) {
	var dec bytes.Buffer
	err := Decode(&dec, bytes.NewReader(make([]byte, 10)), nil, nil)
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestTruncatedPayloadIsFatal(t *testing.T) {
	data := []byte("hello world, this has enough variety to need multiple bits")
	var enc bytes.Buffer
	if err := Encode(&enc, newSeekBuf(data), int64(len(data)), nil, nil); err != nil {
		t.Fatal(err)
	}
	truncated := enc.Bytes()[:enc.Len()-2]
	var dec bytes.Buffer
	if err := Decode(&dec, bytes.NewReader(truncated), nil, nil); err == nil {
		t.Fatal("expected truncation error decoding a short payload")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errWriteFailed }

var errWriteFailed = errors.New("simulated write failure")

func TestDecodeFlushErrorPropagates(t *testing.T) {
	data := []byte("hello world, this has enough variety to need multiple bits")
	var enc bytes.Buffer
	if err := Encode(&enc, newSeekBuf(data), int64(len(data)), nil, nil); err != nil {
		t.Fatal(err)
	}
	err := Decode(failingWriter{}, bytes.NewReader(enc.Bytes()), nil, nil)
	if err == nil {
		t.Fatal("expected the final flush's write error to propagate")
	}
}

func TestTieBreakDeterministic(t *testing.T) {
	// Every byte equally frequent: tie-breaking must be identical across
	// repeated builds so encoder and decoder trees never diverge.
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	enc1 := roundTrip(t, data)
	enc2 := roundTrip(t, data)
	if !bytes.Equal(enc1, enc2) {
		t.Fatal("tree construction is not deterministic across runs")
	}
}
