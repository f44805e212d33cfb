package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

var (
	// ErrNotRunning means no worker handle is live.
	ErrNotRunning = errors.New("worker not available")
	// ErrNotReady means the worker did not become ready within the wait
	// budget for a command.
	ErrNotReady = errors.New("voice service startup timeout")
)

const readyPollInterval = 100 * time.Millisecond

// Config controls worker spawning and timeouts.
type Config struct {
	// ExtraPaths are prepended to the inherited PATH for the worker.
	ExtraPaths []string
	// HandshakeTimeout bounds the initialization handshake. Zero waits
	// indefinitely (first-run model downloads).
	HandshakeTimeout time.Duration
	// ReadyTimeout bounds how long a command waits for the worker to become
	// ready before failing.
	ReadyTimeout time.Duration
}

// Supervisor owns the worker process: at most one handle is live at a time,
// and every request/response round trip holds the handle's lock so pairs
// never interleave across callers. The protocol has no request correlation
// ID; this serialization is the correctness mechanism, not an optimization.
type Supervisor struct {
	cfg     Config
	handler EventHandler
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	client *client

	ready     atomic.Bool
	streaming atomic.Bool
}

func NewSupervisor(cfg Config, handler EventHandler, m *metrics.Metrics, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		handler: handler,
		metrics: m,
		logger:  logger,
	}
}

// Start spawns the worker and performs the initialization handshake,
// reporting loading progress through the callback. Callers typically run it
// on its own goroutine so the UI shows immediately.
func (s *Supervisor) Start(progress func(domain.WorkerProgress)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	c, err := s.spawn(progress)
	if err != nil {
		return err
	}
	s.client = c
	s.ready.Store(true)
	return nil
}

func (s *Supervisor) spawn(progress func(domain.WorkerProgress)) (*client, error) {
	mode, err := DetectMode()
	if err != nil {
		// Keep going with the fallback path so the spawn attempt produces a
		// descriptive OS-level error instead of a silent no-op.
		s.logger.Warn("worker not found at any candidate location", "fallback", mode.Path)
	}
	s.logger.Info("starting worker", "mode", mode.String())

	c, err := startProcess(mode, s.cfg.ExtraPaths)
	if err != nil {
		return nil, fmt.Errorf("spawn failure: %w", err)
	}

	// The side-channel reader owns stderr for the process lifetime; it also
	// drains loading-phase diagnostics while the handshake runs.
	stderr := c.stderr
	c.stderr = nil
	go readSideChannel(stderr, s.handler, s.metrics, s.logger)

	started := time.Now()
	if err := c.awaitReady(s.cfg.HandshakeTimeout, progress); err != nil {
		c.kill()
		return nil, err
	}
	s.metrics.HandshakeDuration.Observe(time.Since(started).Seconds())
	s.logger.Info("worker ready", "elapsed", time.Since(started))

	if progress != nil {
		progress(domain.WorkerProgress{Status: "ready", Message: "Voice service ready"})
	}
	return c, nil
}

// EnsureRunning replaces a missing or unhealthy worker. While a streaming
// operation holds the handle, the check skips itself rather than contend
// for the lock.
func (s *Supervisor) EnsureRunning() error {
	if s.streaming.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if s.client.healthCheck() {
			return nil
		}
		s.logger.Warn("worker unhealthy, replacing process")
		s.metrics.WorkerRestarts.Inc()
		s.client.kill()
		s.client = nil
		s.ready.Store(false)
	}

	c, err := s.spawn(nil)
	if err != nil {
		return err
	}
	s.client = c
	s.ready.Store(true)
	return nil
}

// Ready reports whether the worker has completed its handshake.
func (s *Supervisor) Ready() bool { return s.ready.Load() }

// Streaming reports whether a streaming operation currently holds the
// handle.
func (s *Supervisor) Streaming() bool { return s.streaming.Load() }

// Call sends a command and blocks until its response, holding the handle
// exclusively for the full round trip.
func (s *Supervisor) Call(command string, args any) (json.RawMessage, error) {
	return s.CallWithCancel(command, args, nil)
}

// CallWithCancel is Call with a cancellation check polled between response
// lines; a fired cancel yields a "Recording cancelled" result.
func (s *Supervisor) CallWithCancel(command string, args any, cancel func() bool) (json.RawMessage, error) {
	if err := s.waitReady(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, ErrNotRunning
	}

	start := time.Now()
	resp, err := s.client.send(command, args, cancel)
	s.metrics.WorkerRequests.WithLabelValues(command).Inc()
	s.metrics.WorkerRequestDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, ErrProtocol) {
		s.metrics.WorkerProtocolErrors.Inc()
	}
	return resp, err
}

// CallNoWait sends a fire-and-forget notification. When the handle is held
// (typically by a streaming operation) the send is silently skipped; the
// worker briefly lagging the true mode state is an accepted consistency gap.
func (s *Supervisor) CallNoWait(command string, args any) error {
	if !s.mu.TryLock() {
		return nil
	}
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	s.metrics.WorkerRequests.WithLabelValues(command).Inc()
	return s.client.sendNoWait(command, args)
}

// Stream runs a multi-chunk operation, holding the handle for its entire
// duration on the caller's goroutine. Every chunk, including the final done
// or error, is delivered to sink in order.
func (s *Supervisor) Stream(command string, args any, sink func(domain.StreamChunk)) error {
	if err := s.waitReady(); err != nil {
		return err
	}

	s.streaming.Store(true)
	defer s.streaming.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return ErrNotRunning
	}
	s.metrics.WorkerRequests.WithLabelValues(command).Inc()

	if err := s.client.write(command, args); err != nil {
		return err
	}

	for {
		line, err := s.client.stdout.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("%w: reading stream: %v", ErrConnectionLost, err)
		}

		var raw struct {
			Event     *string `json:"event"`
			Type      string  `json:"type"`
			Content   string  `json:"content"`
			Text      string  `json:"text"`
			AudioPath string  `json:"audio_path"`
			Error     string  `json:"error"`
		}
		if json.Unmarshal(line, &raw) != nil {
			continue
		}
		if raw.Event != nil {
			continue
		}

		chunk := domain.StreamChunk{
			Type:      raw.Type,
			Content:   raw.Content,
			Text:      raw.Text,
			AudioPath: raw.AudioPath,
			Err:       raw.Error,
		}
		sink(chunk)

		switch chunk.Type {
		case "done", "error":
			return nil
		}
	}
}

// Shutdown asks the worker to exit and waits for the process.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}
	s.logger.Info("shutting down worker")
	s.client.shutdown()
	s.client = nil
	s.ready.Store(false)
}

func (s *Supervisor) waitReady() error {
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for !s.ready.Load() {
		if time.Now().After(deadline) {
			return ErrNotReady
		}
		time.Sleep(readyPollInterval)
	}
	return nil
}
