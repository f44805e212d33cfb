package application

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMachine() *StateMachine {
	return NewStateMachine(metrics.New(prometheus.NewRegistry()), testLogger())
}

func machineAt(t *testing.T, status domain.Status) *StateMachine {
	t.Helper()
	m := newTestMachine()
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return m
}

func TestTransitionLegalEdge(t *testing.T) {
	m := newTestMachine()
	require.NoError(t, m.Transition(domain.StatusRecording))
	require.Equal(t, domain.StatusRecording, m.Status())
	require.NoError(t, m.Transition(domain.StatusAsrProcessing))
	require.NoError(t, m.Transition(domain.StatusIdle))
}

func TestTransitionSelfIsNoOp(t *testing.T) {
	m := machineAt(t, domain.StatusPlaying)
	require.NoError(t, m.Transition(domain.StatusPlaying))
	require.Equal(t, domain.StatusPlaying, m.Status())
}

func TestTransitionIllegalEdgeLeavesStateUnchanged(t *testing.T) {
	m := newTestMachine()
	err := m.Transition(domain.StatusPlaying)

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, domain.StatusIdle, invalid.From)
	require.Equal(t, domain.StatusPlaying, invalid.To)
	require.Equal(t, domain.StatusIdle, m.Status())
}

type recordingInterrupter struct {
	commands []string
	args     []any
	err      error
}

func (r *recordingInterrupter) CallNoWait(command string, args any) error {
	r.commands = append(r.commands, command)
	r.args = append(r.args, args)
	return r.err
}

func TestInterruptRecordingSetsAbortAndForcesIdle(t *testing.T) {
	m := machineAt(t, domain.StatusRecording)
	w := &recordingInterrupter{}

	require.NoError(t, m.Interrupt(2, w))
	require.Equal(t, domain.StatusIdle, m.Status())
	require.True(t, m.ConsumeAborted())
	require.False(t, m.ConsumeAborted())
	require.Empty(t, w.commands, "local cancel must not call the worker")
}

func TestInterruptGenerationForwardsToWorker(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusLlmProcessing,
		domain.StatusTtsProcessing,
		domain.StatusPlaying,
	} {
		m := machineAt(t, status)
		w := &recordingInterrupter{}

		require.NoError(t, m.Interrupt(1, w))
		require.Equal(t, domain.StatusIdle, m.Status())
		require.Equal(t, []string{"interrupt"}, w.commands)
		require.Equal(t, map[string]any{"priority": 1}, w.args[0], "the worker reads the priority")
		require.False(t, m.ConsumeAborted())
	}
}

func TestInterruptWorkerDeliveryFailureIsIgnored(t *testing.T) {
	m := machineAt(t, domain.StatusPlaying)
	w := &recordingInterrupter{err: errors.New("pipe closed")}

	require.NoError(t, m.Interrupt(1, w))
	require.Equal(t, domain.StatusIdle, m.Status())
}

func TestInterruptPriorityTwoOnlyCoversCapture(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusAsrProcessing,
		domain.StatusLlmProcessing,
		domain.StatusTtsProcessing,
		domain.StatusPlaying,
	} {
		m := machineAt(t, status)
		err := m.Interrupt(2, nil)

		var denied *domain.InterruptNotPermittedError
		require.ErrorAs(t, err, &denied)
		require.Equal(t, status, m.Status(), "denied interrupt must not change state")
	}
}

func TestInterruptShutdownLeavesStatusAlone(t *testing.T) {
	m := machineAt(t, domain.StatusPlaying)
	w := &recordingInterrupter{}

	require.NoError(t, m.Interrupt(3, w))
	require.Equal(t, domain.StatusPlaying, m.Status())
	require.Equal(t, []string{"interrupt"}, w.commands)
}

func TestInterruptShutdownWaitsForRecording(t *testing.T) {
	m := machineAt(t, domain.StatusRecording)
	err := m.Interrupt(3, nil)

	var denied *domain.InterruptNotPermittedError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, domain.StatusRecording, m.Status())
}

func TestModeFlags(t *testing.T) {
	m := newTestMachine()
	require.Equal(t, domain.ModePushToTalk, m.RecordingMode())
	require.Equal(t, domain.WorkConversation, m.WorkMode())

	m.SetRecordingMode(domain.ModeContinuous)
	m.SetWorkMode(domain.WorkTextInput)
	require.Equal(t, domain.ModeContinuous, m.RecordingMode())
	require.Equal(t, domain.WorkTextInput, m.WorkMode())
}
