package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWAVSilence(t *testing.T) {
	const n = 16000 // one second
	samples := make([]float32, n)

	data, err := EncodeWAV(samples, 16000)
	require.NoError(t, err)

	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, "WAVE", string(data[8:12]))
	require.Equal(t, uint32(2*n), binary.LittleEndian.Uint32(data[40:44]))
	require.Len(t, data, 44+2*n)
}

func TestEncodeWAVEmptyRejected(t *testing.T) {
	_, err := EncodeWAV(nil, 16000)
	require.Error(t, err)

	_, err = EncodeWAV([]float32{0.1}, 0)
	require.Error(t, err)
}

func TestWAVRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 2, -2} // last two clamp
	data, err := EncodeWAV(in, 16000)
	require.NoError(t, err)

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Len(t, samples, len(in))

	require.Equal(t, int16(0), samples[0])
	require.Equal(t, int16(32767), samples[3])
	require.Equal(t, int16(-32767), samples[4])
	require.Equal(t, int16(32767), samples[5])
	require.Equal(t, int16(-32767), samples[6])
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV([]byte("not a wav"))
	require.Error(t, err)

	data, err := EncodeWAV([]float32{0.1, 0.2}, 8000)
	require.NoError(t, err)
	data[0] = 'X'
	_, _, err = DecodeWAV(data)
	require.Error(t, err)
}
