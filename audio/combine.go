package audio

import (
	"fmt"
	"sort"
)

// Chunk is one uploaded audio segment. Sequence numbers are
// caller-supplied and determine final ordering regardless of arrival
// order; they need not be contiguous.
type Chunk struct {
	Sequence int
	Data     []byte
}

// Combine concatenates chunks ordered by ascending sequence number into a
// single playable WAV. Each chunk carries its own RIFF header; the
// headers are stripped, the PCM payloads joined, and one header rebuilt
// for the whole. All chunks must share the same PCM format.
func Combine(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to combine")
	}

	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	format, pcm, err := ParseWAV(sorted[0].Data)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", sorted[0].Sequence, err)
	}

	combined := make([]byte, 0, len(pcm))
	combined = append(combined, pcm...)
	for _, chunk := range sorted[1:] {
		f, data, err := ParseWAV(chunk.Data)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Sequence, err)
		}
		if f != format {
			return nil, fmt.Errorf("chunk %d: format %+v differs from first chunk %+v", chunk.Sequence, f, format)
		}
		combined = append(combined, data...)
	}

	return BuildWAV(combined, format), nil
}
