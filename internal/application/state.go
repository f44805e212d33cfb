package application

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

// Interrupter delivers a cancellation request to the worker process. Delivery
// is best-effort: the local state change happens whether or not it succeeds.
type Interrupter interface {
	CallNoWait(command string, args any) error
}

// StateMachine holds the process-wide operation status plus the recording and
// work mode flags. Status only changes through Transition, ForceIdle, or a
// permitted Interrupt.
type StateMachine struct {
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu            sync.Mutex
	status        domain.Status
	recordingMode domain.RecordingMode
	workMode      domain.WorkMode
	aborted       bool
}

func NewStateMachine(m *metrics.Metrics, logger *slog.Logger) *StateMachine {
	return &StateMachine{metrics: m, logger: logger}
}

func (m *StateMachine) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Transition moves to the requested status if the edge is legal. A
// self-transition is a no-op. On an illegal edge the status is unchanged and
// an InvalidTransitionError is returned.
func (m *StateMachine) Transition(to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.CanTransition(to) {
		return &domain.InvalidTransitionError{From: m.status, To: to}
	}
	if m.status != to {
		m.logger.Debug("status transition", "from", m.status, "to", to)
		m.status = to
	}
	return nil
}

// ForceIdle resets the status unconditionally. Reserved for interrupt and
// error-recovery paths; normal flow uses Transition.
func (m *StateMachine) ForceIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != domain.StatusIdle {
		m.logger.Debug("status forced to idle", "from", m.status)
		m.status = domain.StatusIdle
	}
}

// Interrupt preempts the current operation if the priority permits it.
// Recording and Listening are cancelled locally via the abort flag; the
// generation states forward an interrupt request to the worker without
// waiting for acknowledgement. Priorities 1 and 2 force the status back to
// Idle; priority 3 leaves it alone, it only unblocks waits.
func (m *StateMachine) Interrupt(priority int, worker Interrupter) error {
	m.mu.Lock()
	status := m.status
	if !status.CanBeInterrupted(priority) {
		m.mu.Unlock()
		m.metrics.Interrupts.WithLabelValues(strconv.Itoa(priority), "denied").Inc()
		return &domain.InterruptNotPermittedError{Status: status, Priority: priority}
	}

	if status == domain.StatusRecording || status == domain.StatusListening {
		m.aborted = true
	}
	if priority <= 2 {
		m.status = domain.StatusIdle
	}
	m.mu.Unlock()

	m.metrics.Interrupts.WithLabelValues(strconv.Itoa(priority), "granted").Inc()
	m.logger.Info("interrupt", "priority", priority, "status", status)

	switch status {
	case domain.StatusLlmProcessing, domain.StatusTtsProcessing, domain.StatusPlaying:
		if worker != nil {
			if err := worker.CallNoWait("interrupt", map[string]any{"priority": priority}); err != nil {
				m.logger.Warn("worker interrupt not delivered", "error", err)
			}
		}
	}
	return nil
}

// SetAborted raises the cancellation flag consumed by the recording loop.
func (m *StateMachine) SetAborted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
}

// ConsumeAborted returns the abort flag and clears it.
func (m *StateMachine) ConsumeAborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	aborted := m.aborted
	m.aborted = false
	return aborted
}

// Aborted reads the flag without clearing it. The recording loop polls this
// between response lines.
func (m *StateMachine) Aborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}

func (m *StateMachine) RecordingMode() domain.RecordingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordingMode
}

func (m *StateMachine) SetRecordingMode(mode domain.RecordingMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordingMode = mode
}

func (m *StateMachine) WorkMode() domain.WorkMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workMode
}

func (m *StateMachine) SetWorkMode(mode domain.WorkMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workMode = mode
}
