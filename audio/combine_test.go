package audio

import (
	"bytes"
	"math/rand"
	"testing"
)

func testFormat() Format {
	return Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}
}

func makeChunk(t *testing.T, seq int, fill byte, samples int) Chunk {
	t.Helper()
	pcm := bytes.Repeat([]byte{fill, fill}, samples)
	return Chunk{Sequence: seq, Data: BuildWAV(pcm, testFormat())}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	raw := BuildWAV(pcm, testFormat())

	format, data, err := ParseWAV(raw)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if format != testFormat() {
		t.Fatalf("format mismatch: got %+v", format)
	}
	if !bytes.Equal(data, pcm) {
		t.Fatalf("data mismatch: got %v want %v", data, pcm)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, _, err := ParseWAV([]byte("definitely not a wav file, not even close")); err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}

// Combining must be keyed by sequence number, not arrival order.
func TestCombineOrderIndependent(t *testing.T) {
	var chunks []Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, makeChunk(t, i, byte(i+1), 100+i))
	}

	sorted, err := Combine(chunks)
	if err != nil {
		t.Fatalf("Combine(sorted): %v", err)
	}

	shuffled := make([]Chunk, len(chunks))
	copy(shuffled, chunks)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		combined, err := Combine(shuffled)
		if err != nil {
			t.Fatalf("Combine(shuffled): %v", err)
		}
		if !bytes.Equal(combined, sorted) {
			t.Fatalf("shuffle %d: combined audio differs from sequence-ordered combine", i)
		}
	}
}

func TestCombineNonContiguousSequences(t *testing.T) {
	chunks := []Chunk{
		makeChunk(t, 10, 3, 10),
		makeChunk(t, 0, 1, 10),
		makeChunk(t, 4, 2, 10),
	}
	combined, err := Combine(chunks)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}

	_, pcm, err := ParseWAV(combined)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	// Payloads must appear in sequence order: 1s, 2s, 3s.
	want := append(append(bytes.Repeat([]byte{1}, 20), bytes.Repeat([]byte{2}, 20)...), bytes.Repeat([]byte{3}, 20)...)
	if !bytes.Equal(pcm, want) {
		t.Fatal("combined PCM not ordered by sequence number")
	}
}

func TestCombineRejectsMixedFormats(t *testing.T) {
	a := makeChunk(t, 0, 1, 10)
	b := Chunk{Sequence: 1, Data: BuildWAV([]byte{1, 2}, Format{Channels: 2, SampleRate: 44100, BitsPerSample: 16})}
	if _, err := Combine([]Chunk{a, b}); err == nil {
		t.Fatal("expected error for mixed chunk formats")
	}
}

func TestCombineEmpty(t *testing.T) {
	if _, err := Combine(nil); err == nil {
		t.Fatal("expected error for empty chunk list")
	}
}
