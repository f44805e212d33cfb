package audio

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kanweiwei/speekium/internal/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type fakeStream struct {
	started bool
	closed  bool
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOpener delivers the given samples once the stream starts.
func fakeOpener(samples []float32) (StreamOpener, *fakeStream) {
	stream := &fakeStream{}
	opener := func(_ int, _ *slog.Logger, fn func([]float32)) (Stream, error) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			fn(samples)
		}()
		return stream, nil
	}
	return opener, stream
}

func TestRecorderStartStop(t *testing.T) {
	opener, stream := fakeOpener(make([]float32, 1600))
	r := NewRecorderWithOpener(16000, opener, testMetrics(), testLogger())

	require.NoError(t, r.Start())
	require.True(t, r.Recording())
	require.ErrorIs(t, r.Start(), ErrAlreadyRecording)

	time.Sleep(50 * time.Millisecond)

	art, err := r.Stop()
	require.NoError(t, err)
	defer os.Remove(art.Path)

	require.True(t, stream.closed)
	require.Equal(t, 1600, art.SampleCount)
	require.Equal(t, 16000, art.SampleRate)
	require.InDelta(t, 0.1, art.Duration, 1e-6)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, 16000, rate)
	require.Len(t, samples, 1600)
}

func TestRecorderStopWithoutStart(t *testing.T) {
	r := NewRecorderWithOpener(16000, nil, testMetrics(), testLogger())
	_, err := r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderEmptySession(t *testing.T) {
	opener := func(_ int, _ *slog.Logger, _ func([]float32)) (Stream, error) {
		return &fakeStream{}, nil
	}
	r := NewRecorderWithOpener(16000, opener, testMetrics(), testLogger())

	require.NoError(t, r.Start())
	_, err := r.Stop()
	require.ErrorIs(t, err, ErrEmptyRecording)
}

func TestRecorderAbortTerminatesCapture(t *testing.T) {
	opener, stream := fakeOpener(make([]float32, 100))
	r := NewRecorderWithOpener(16000, opener, testMetrics(), testLogger())

	require.NoError(t, r.Start())
	r.Abort()
	require.False(t, r.Recording())

	// The capture loop polls the flag and closes the stream on its own.
	require.Eventually(t, func() bool { return stream.closed }, time.Second, 10*time.Millisecond)

	_, err := r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderRestartAfterAbortFencesOldSession(t *testing.T) {
	type capture struct {
		stream *fakeStream
		fn     func([]float32)
	}
	var (
		mu       sync.Mutex
		captures []*capture
	)
	opener := func(_ int, _ *slog.Logger, fn func([]float32)) (Stream, error) {
		mu.Lock()
		defer mu.Unlock()
		c := &capture{stream: &fakeStream{}, fn: fn}
		captures = append(captures, c)
		return c.stream, nil
	}
	r := NewRecorderWithOpener(16000, opener, testMetrics(), testLogger())

	require.NoError(t, r.Start())
	r.Abort()
	// Restart inside the old loop's poll window, before it has seen the
	// cleared flag.
	require.NoError(t, r.Start())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(captures) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	first, second := captures[0], captures[1]
	mu.Unlock()

	// Samples still arriving on the aborted stream stay out of the new
	// session's buffer.
	first.fn(make([]float32, 100))
	second.fn(make([]float32, 1600))

	// The old loop notices the session change and closes its own stream.
	require.Eventually(t, func() bool { return first.stream.closed }, time.Second, 10*time.Millisecond)

	art, err := r.Stop()
	require.NoError(t, err)
	defer os.Remove(art.Path)
	require.True(t, second.stream.closed)
	require.Equal(t, 1600, art.SampleCount)
}

func TestRecorderOpenFailure(t *testing.T) {
	opener := func(_ int, _ *slog.Logger, _ func([]float32)) (Stream, error) {
		return nil, os.ErrPermission
	}
	r := NewRecorderWithOpener(16000, opener, testMetrics(), testLogger())

	require.NoError(t, r.Start())
	time.Sleep(20 * time.Millisecond)

	_, err := r.Stop()
	require.ErrorIs(t, err, os.ErrPermission)
}
