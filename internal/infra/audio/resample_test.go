package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResampleIdentity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	require.Equal(t, in, out)
}

func TestResampleOutputLength(t *testing.T) {
	cases := []struct {
		n, src, dst int
		want        int
	}{
		{48000, 48000, 16000, 16000},
		{44100, 44100, 16000, 16000},
		{100, 44100, 16000, 37},  // ceil(100*16000/44100)
		{1024, 48000, 16000, 342}, // ceil(1024/3)
		{16000, 8000, 16000, 32000},
	}
	for _, c := range cases {
		out := Resample(make([]float32, c.n), c.src, c.dst)
		require.Len(t, out, c.want, "%d samples %d->%d", c.n, c.src, c.dst)
	}
}

func TestResampleInterpolates(t *testing.T) {
	// Doubling the rate of a ramp keeps it a ramp with midpoints.
	in := []float32{0, 1}
	out := Resample(in, 8000, 16000)
	require.Len(t, out, 4)
	require.InDelta(t, 0, out[0], 1e-6)
	require.InDelta(t, 0.5, out[1], 1e-6)
	require.InDelta(t, 1, out[2], 1e-6)
}

func TestToMono(t *testing.T) {
	require.Equal(t, []float32{0.5, 0.5}, ToMono([]float32{0, 1, 1, 0}, 2))

	mono := []float32{0.1, 0.2}
	require.Equal(t, mono, ToMono(mono, 1))

	quad := ToMono([]float32{1, 1, 1, 1, 0, 0, 0, 0}, 4)
	require.Equal(t, []float32{1, 0}, quad)
}
