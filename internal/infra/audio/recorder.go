package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrEmptyRecording   = errors.New("no audio data recorded")
)

// stopPollInterval bounds how long the capture goroutine runs after a stop
// signal or an externally cleared recording flag.
const stopPollInterval = 100 * time.Millisecond

// Stream is an open hardware input stream. All calls happen on the capture
// goroutine that opened it.
type Stream interface {
	Start() error
	Close() error
}

// StreamOpener opens an input stream that delivers mono samples at the given
// rate to fn. The portaudio implementation is selected by build tag; tests
// inject their own.
type StreamOpener func(sampleRate int, logger *slog.Logger, fn func([]float32)) (Stream, error)

// Recorder captures microphone audio on a dedicated goroutine. The hardware
// stream is not safe to move across threads, so the capture goroutine locks
// its OS thread and owns the stream from open to close.
type Recorder struct {
	sampleRate int
	open       StreamOpener
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu        sync.Mutex
	recording bool
	session   uint64
	buffer    []float32
	runErr    error
	stop      chan struct{}
	done      chan struct{}
}

func NewRecorder(sampleRate int, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		sampleRate: sampleRate,
		open:       openInputStream,
		metrics:    m,
		logger:     logger,
	}
}

// NewRecorderWithOpener is used by tests to substitute the hardware layer.
func NewRecorderWithOpener(sampleRate int, open StreamOpener, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	r := NewRecorder(sampleRate, m, logger)
	r.open = open
	return r
}

// Start begins a capture session. Fails with ErrAlreadyRecording if one is
// active.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	// A new session identity fences out the previous capture goroutine: an
	// aborted loop that has not yet observed the cleared flag sees the
	// session change, closes its stream, and can no longer append samples
	// into this session's buffer.
	r.session++
	r.buffer = r.buffer[:0]
	r.runErr = nil
	r.recording = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	r.metrics.RecordingsStarted.Inc()
	go r.captureLoop(r.session, r.stop, r.done)
	return nil
}

// Stop ends the session, joins the capture goroutine, and encodes the buffer
// to a uniquely named temp WAV file.
func (r *Recorder) Stop() (*domain.AudioArtifact, error) {
	r.mu.Lock()
	if !r.recording {
		runErr := r.runErr
		r.runErr = nil
		r.mu.Unlock()
		if runErr != nil {
			return nil, fmt.Errorf("capture failed: %w", runErr)
		}
		return nil, ErrNotRecording
	}
	r.recording = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done

	r.mu.Lock()
	samples := make([]float32, len(r.buffer))
	copy(samples, r.buffer)
	r.buffer = r.buffer[:0]
	runErr := r.runErr
	r.mu.Unlock()

	if runErr != nil {
		return nil, fmt.Errorf("capture failed: %w", runErr)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyRecording
	}

	data, err := EncodeWAV(samples, r.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("encoding recording: %w", err)
	}

	path := tempWAVPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing recording: %w", err)
	}

	art := &domain.AudioArtifact{
		Path:        path,
		SampleRate:  r.sampleRate,
		Duration:    float64(len(samples)) / float64(r.sampleRate),
		SampleCount: len(samples),
	}
	r.metrics.RecordingsFinished.Inc()
	r.metrics.RecordingDuration.Observe(art.Duration)
	r.logger.Info("recording saved",
		"path", art.Path,
		"duration", art.Duration,
		"samples", art.SampleCount,
	)
	return art, nil
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Abort clears the recording flag without joining; the capture goroutine
// notices on its next poll and shuts the stream down on its own.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
}

func (r *Recorder) captureLoop(session uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// The stream handle must never leave this thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stream, err := r.open(r.sampleRate, r.logger, func(samples []float32) {
		r.appendSamples(session, samples)
	})
	if err != nil {
		r.setRunErr(session, err)
		return
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		r.setRunErr(session, err)
		return
	}

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			live := r.recording && r.session == session
			r.mu.Unlock()
			if !live {
				return
			}
		}
	}
}

func (r *Recorder) appendSamples(session uint64, samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording && r.session == session {
		r.buffer = append(r.buffer, samples...)
	}
}

func (r *Recorder) setRunErr(session uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != session {
		return
	}
	r.runErr = err
	r.recording = false
}

func tempWAVPath() string {
	millis := time.Now().UnixMilli()
	return filepath.Join(os.TempDir(), fmt.Sprintf("speekium_ptt_%d.wav", millis))
}
