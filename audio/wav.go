package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Format describes the PCM layout of a WAV payload.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// ParseWAV splits a RIFF/WAVE container into its format and raw PCM data
// chunk. Only uncompressed PCM is accepted.
func ParseWAV(raw []byte) (Format, []byte, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var format Format
	var data []byte
	haveFmt := false

	pos := 12
	for pos+8 <= len(raw) {
		chunkID := string(raw[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := raw[pos+8:]
		if chunkLen > len(body) {
			chunkLen = len(body)
		}
		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return Format{}, nil, fmt.Errorf("truncated fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return Format{}, nil, fmt.Errorf("unsupported audio format %d, want PCM", audioFormat)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFmt = true
		case "data":
			data = body[:chunkLen]
		}
		pos += 8 + chunkLen
		if chunkLen%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return Format{}, nil, fmt.Errorf("missing fmt chunk")
	}
	if data == nil {
		return Format{}, nil, fmt.Errorf("missing data chunk")
	}
	return format, data, nil
}

// BuildWAV wraps raw PCM in a RIFF/WAVE header.
func BuildWAV(pcm []byte, format Format) []byte {
	byteRate := uint32(format.SampleRate * format.Channels * format.BitsPerSample / 8)
	blockAlign := uint16(format.Channels * format.BitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(format.BitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}
