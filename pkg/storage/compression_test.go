package storage

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	for level := 1; level <= 4; level++ {
		comp, err := NewCompressor(level)
		if err != nil {
			t.Fatalf("Failed to create compressor at level %d: %v", level, err)
		}

		payload := bytes.Repeat([]byte(`{"country":"DE","amount":10}`), 100)
		compressed := comp.Compress(payload)
		if len(compressed) >= len(payload) {
			t.Errorf("Level %d: compression ineffective: original=%d, compressed=%d",
				level, len(payload), len(compressed))
		}

		decompressed, err := comp.Decompress(compressed)
		if err != nil {
			t.Fatalf("Level %d: decompression failed: %v", level, err)
		}
		if !bytes.Equal(payload, decompressed) {
			t.Errorf("Level %d: round trip mismatch", level)
		}
		comp.Close()
	}
}

func TestCompressEmpty(t *testing.T) {
	comp, err := NewCompressor(2)
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer comp.Close()

	if out := comp.Compress(nil); out != nil {
		t.Errorf("Expected nil for empty input, got %v", out)
	}
	out, err := comp.Decompress(nil)
	if err != nil || out != nil {
		t.Errorf("Expected nil, nil for empty payload, got %v, %v", out, err)
	}
}

func TestDecompressCorrupt(t *testing.T) {
	comp, err := NewCompressor(2)
	if err != nil {
		t.Fatalf("Failed to create compressor: %v", err)
	}
	defer comp.Close()

	if _, err := comp.Decompress([]byte("not zstd")); err == nil {
		t.Error("Expected error for corrupt payload")
	}
}
