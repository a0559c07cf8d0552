package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSamplesToWAVHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	buf := SamplesToWAV(samples, 16000)

	require.Equal(t, "RIFF", string(buf[0:4]))
	require.Equal(t, "WAVE", string(buf[8:12]))
	require.Equal(t, "fmt ", string(buf[12:16]))
	require.Equal(t, "data", string(buf[36:40]))

	sampleRate := binary.LittleEndian.Uint32(buf[24:28])
	require.Equal(t, uint32(16000), sampleRate)

	dataLen := binary.LittleEndian.Uint32(buf[40:44])
	require.Equal(t, uint32(len(samples)*2), dataLen)
	require.Len(t, buf, 44+len(samples)*2)
}

func TestSamplesToWAVClampsOutOfRange(t *testing.T) {
	buf := SamplesToWAV([]float32{2.0, -2.0}, 8000)
	first := int16(binary.LittleEndian.Uint16(buf[44:46]))
	second := int16(binary.LittleEndian.Uint16(buf[46:48]))
	require.Equal(t, int16(32767), first)
	require.Equal(t, int16(-32767), second)
}

func TestSamplesToWAVEmpty(t *testing.T) {
	buf := SamplesToWAV(nil, 16000)
	require.Len(t, buf, 44)
}
