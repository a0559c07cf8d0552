package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

func decodePCM(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}

// WAV is a decoded 16-bit PCM WAV file.
type WAV struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// DecodeWAV parses a canonical 16-bit PCM WAV container, the format
// SamplesToWAV produces and ffmpeg emits with `-acodec pcm_s16le`.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a WAV file")
	}

	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bitsPerSample := binary.LittleEndian.Uint16(data[34:36])
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}

	offset := 12
	var dataChunk []byte
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		chunkStart := offset + 8
		if chunkStart+chunkSize > len(data) {
			break
		}
		if chunkID == "data" {
			dataChunk = data[chunkStart : chunkStart+chunkSize]
			break
		}
		offset = chunkStart + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}
	if dataChunk == nil {
		return nil, fmt.Errorf("WAV file has no data chunk")
	}

	return &WAV{Samples: decodePCM(dataChunk), SampleRate: sampleRate, Channels: max(channels, 1)}, nil
}
