package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/kanweiwei/speekium/internal/domain"
)

// ErrStreamInProgress rejects operations that would contend with a streaming
// request holding the worker handle.
var ErrStreamInProgress = errors.New("a streaming operation is in progress")

const defaultRecordSeconds = 3.0

// Assistant orchestrates the worker process, the local recorder, and the
// operation state machine behind the UI-facing operations.
type Assistant struct {
	worker   WorkerClient
	recorder AudioRecorder
	state    *StateMachine
	notifier Notifier
	history  History
	logger   *slog.Logger

	mu         sync.Mutex
	processing bool
	reply      strings.Builder
}

func NewAssistant(
	worker WorkerClient,
	recorder AudioRecorder,
	state *StateMachine,
	notifier Notifier,
	history History,
	logger *slog.Logger,
) *Assistant {
	return &Assistant{
		worker:   worker,
		recorder: recorder,
		state:    state,
		notifier: notifier,
		history:  history,
		logger:   logger,
	}
}

// Start launches the worker and blocks until it is ready, forwarding loading
// progress to the notifier.
func (a *Assistant) Start() error {
	return a.worker.Start(a.notifier.NotifyWorkerProgress)
}

// Ready reports whether the worker has completed its handshake.
func (a *Assistant) Ready() bool { return a.worker.Ready() }

// Status returns the current operation state.
func (a *Assistant) Status() domain.Status { return a.state.Status() }

// RecordAudio asks the worker to capture and transcribe one utterance. A
// pending abort is consumed as a cancelled recording, and a continuous-mode
// request is rejected without touching the worker once the global mode has
// moved back to push-to-talk.
func (a *Assistant) RecordAudio(mode, duration string) (domain.RecordResult, error) {
	if a.worker.Streaming() {
		return domain.RecordResult{}, ErrStreamInProgress
	}
	if a.state.ConsumeAborted() {
		return domain.RecordResult{Success: false, Error: "Recording cancelled"}, nil
	}
	if mode == "continuous" && a.state.RecordingMode() != domain.ModeContinuous {
		return domain.RecordResult{Success: false, Error: "Recording mode changed"}, nil
	}

	seconds := defaultRecordSeconds
	if duration != "" && duration != "auto" {
		parsed, err := strconv.ParseFloat(duration, 64)
		if err != nil {
			return domain.RecordResult{}, fmt.Errorf("invalid duration %q: %w", duration, err)
		}
		seconds = parsed
	}

	if err := a.state.Transition(domain.StatusRecording); err != nil {
		return domain.RecordResult{}, err
	}
	a.notifier.NotifyStatus(domain.StatusRecording)

	raw, err := a.worker.CallWithCancel("record", map[string]any{
		"duration": seconds,
		"mode":     mode,
	}, a.state.Aborted)
	if err != nil {
		a.state.ForceIdle()
		a.notifier.NotifyStatus(domain.StatusIdle)
		return domain.RecordResult{}, fmt.Errorf("record: %w", err)
	}

	if err := a.state.Transition(domain.StatusAsrProcessing); err == nil {
		a.notifier.NotifyStatus(domain.StatusAsrProcessing)
	}

	var result domain.RecordResult
	if err := json.Unmarshal(raw, &result); err != nil {
		a.state.ForceIdle()
		a.notifier.NotifyStatus(domain.StatusIdle)
		return domain.RecordResult{}, fmt.Errorf("decoding record result: %w", err)
	}

	a.state.ForceIdle()
	a.notifier.NotifyStatus(domain.StatusIdle)
	a.state.ConsumeAborted()
	return result, nil
}

// PushToTalkPress starts a local microphone capture and notifies the worker.
func (a *Assistant) PushToTalkPress() error {
	if a.worker.Streaming() {
		return ErrStreamInProgress
	}
	if err := a.state.Transition(domain.StatusRecording); err != nil {
		return err
	}
	if err := a.recorder.Start(); err != nil {
		a.state.ForceIdle()
		return fmt.Errorf("starting recorder: %w", err)
	}

	if err := a.worker.CallNoWait("ptt_press", nil); err != nil {
		a.logger.Debug("ptt_press not delivered", "error", err)
	}
	a.notifier.NotifyStatus(domain.StatusRecording)
	a.notifier.NotifyPTTState("recording")
	return nil
}

// PushToTalkRelease stops the capture and hands the recorded file to the
// worker. The transcription result and any reply arrive over the side
// channel, so the worker commands here are all fire-and-forget.
func (a *Assistant) PushToTalkRelease() error {
	if err := a.worker.CallNoWait("ptt_release", nil); err != nil {
		a.logger.Debug("ptt_release not delivered", "error", err)
	}

	artifact, err := a.recorder.Stop()
	if err != nil {
		a.state.ForceIdle()
		a.notifier.NotifyStatus(domain.StatusIdle)
		a.notifier.NotifyPTTState("idle")
		return fmt.Errorf("stopping recorder: %w", err)
	}

	if err := a.state.Transition(domain.StatusAsrProcessing); err == nil {
		a.notifier.NotifyStatus(domain.StatusAsrProcessing)
	}
	a.notifier.NotifyPTTState("processing")

	autoChat := a.state.WorkMode() == domain.WorkConversation
	err = a.worker.CallNoWait("ptt_audio", map[string]any{
		"audio_path":  artifact.Path,
		"sample_rate": artifact.SampleRate,
		"duration":    artifact.Duration,
		"auto_chat":   autoChat,
		"use_tts":     true,
	})
	if err != nil {
		a.state.ForceIdle()
		a.notifier.NotifyStatus(domain.StatusIdle)
		return fmt.Errorf("submitting recording: %w", err)
	}
	return nil
}

// Chat sends one prompt and waits for the complete reply. Text chat runs
// outside the operation status table: serialization comes from the worker
// handle's lock, and the audio states never apply to a typed prompt.
func (a *Assistant) Chat(text string) (domain.ChatResult, error) {
	raw, err := a.worker.Call("chat", map[string]any{"text": text, "stream": false})
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("chat: %w", err)
	}

	var result domain.ChatResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.ChatResult{}, fmt.Errorf("decoding chat result: %w", err)
	}

	if result.Success {
		a.appendHistory("user", text)
		a.appendHistory("assistant", result.Content)
	}
	return result, nil
}

// ChatStream sends a prompt and delivers the reply chunk by chunk. The
// worker handle is held for the whole stream on the caller's goroutine.
func (a *Assistant) ChatStream(text string, sink func(domain.StreamChunk)) error {
	return a.stream("chat_stream", map[string]any{"text": text}, text, sink)
}

// ChatTTSStream is ChatStream with synthesized audio chunks interleaved.
func (a *Assistant) ChatTTSStream(text string, autoplay bool, sink func(domain.StreamChunk)) error {
	return a.stream("chat_tts_stream", map[string]any{
		"text":     text,
		"autoplay": autoplay,
	}, text, sink)
}

func (a *Assistant) stream(command string, args map[string]any, prompt string, sink func(domain.StreamChunk)) error {
	var reply strings.Builder
	err := a.worker.Stream(command, args, func(chunk domain.StreamChunk) {
		switch chunk.Type {
		case "chunk", "text_chunk":
			reply.WriteString(chunk.Content)
			a.notifier.NotifyAssistantChunk(chunk.Content)
		case "audio_chunk":
			a.notifier.NotifyAudioChunk(chunk.AudioPath)
		case "error":
			a.notifier.NotifyError(chunk.Err)
		}
		if sink != nil {
			sink(chunk)
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	if reply.Len() > 0 {
		a.appendHistory("user", prompt)
		a.appendHistory("assistant", reply.String())
		a.notifier.NotifyAssistantDone(reply.String())
	}
	return nil
}

// GenerateTTS synthesizes speech for the given text and returns the path of
// the rendered audio file. Like Chat, it does not enter the status table.
func (a *Assistant) GenerateTTS(text string) (domain.TTSResult, error) {
	raw, err := a.worker.Call("tts", map[string]any{"text": text})
	if err != nil {
		return domain.TTSResult{}, fmt.Errorf("tts: %w", err)
	}

	var result domain.TTSResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.TTSResult{}, fmt.Errorf("decoding tts result: %w", err)
	}
	return result, nil
}

// RecordingMode returns the current global recording mode.
func (a *Assistant) RecordingMode() domain.RecordingMode { return a.state.RecordingMode() }

// SetRecordingMode switches between push-to-talk and continuous capture. A
// mode switch preempts whatever is running, then syncs the worker without
// waiting: the worker may briefly lag the local flag.
func (a *Assistant) SetRecordingMode(mode domain.RecordingMode) error {
	if mode == a.state.RecordingMode() {
		return nil
	}

	if err := a.state.Interrupt(1, a.worker); err != nil {
		return err
	}
	if a.recorder.Recording() {
		a.recorder.Abort()
	}
	a.state.SetRecordingMode(mode)

	if err := a.worker.CallNoWait("set_recording_mode", map[string]any{"mode": mode.String()}); err != nil {
		a.logger.Debug("set_recording_mode not delivered", "error", err)
	}
	a.notifier.NotifyStatus(a.state.Status())
	return nil
}

// WorkMode returns the current work mode.
func (a *Assistant) WorkMode() domain.WorkMode { return a.state.WorkMode() }

// SetWorkMode switches what happens with finished replies.
func (a *Assistant) SetWorkMode(mode domain.WorkMode) {
	a.state.SetWorkMode(mode)
}

// Interrupt preempts the current operation at the given priority. If the
// local recorder is live it is aborted alongside the state change.
func (a *Assistant) Interrupt(priority int) error {
	wasCapture := a.state.Status() == domain.StatusRecording
	if err := a.state.Interrupt(priority, a.worker); err != nil {
		return err
	}
	if wasCapture && a.recorder.Recording() {
		a.recorder.Abort()
	}
	a.notifier.NotifyStatus(a.state.Status())
	return nil
}

// LoadConfig fetches the worker's active configuration document.
func (a *Assistant) LoadConfig() (json.RawMessage, error) {
	raw, err := a.worker.Call("config", nil)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var result domain.ConfigResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("loading config: %s", result.Error)
	}
	return result.Config, nil
}

// SaveConfig pushes a configuration document to the worker.
func (a *Assistant) SaveConfig(config json.RawMessage) error {
	raw, err := a.worker.Call("save_config", map[string]any{"config": config})
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	var result domain.ConfigResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decoding save result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("saving config: %s", result.Error)
	}
	return nil
}

// Health runs a worker health probe, replacing the process if it fails.
func (a *Assistant) Health() (domain.HealthResult, error) {
	if err := a.worker.EnsureRunning(); err != nil {
		return domain.HealthResult{}, fmt.Errorf("health: %w", err)
	}

	raw, err := a.worker.Call("health", nil)
	if err != nil {
		return domain.HealthResult{}, fmt.Errorf("health: %w", err)
	}

	var result domain.HealthResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.HealthResult{}, fmt.Errorf("decoding health result: %w", err)
	}
	return result, nil
}

// Shutdown interrupts what it may and stops the worker. An in-flight
// recording is stopped and its artifact saved rather than truncated,
// matching the priority-3 rules.
func (a *Assistant) Shutdown() {
	if a.recorder.Recording() {
		if art, err := a.recorder.Stop(); err != nil {
			a.logger.Warn("stopping recorder during shutdown", "error", err)
		} else {
			a.logger.Info("recording saved during shutdown", "path", art.Path)
		}
		a.state.ForceIdle()
	}
	if err := a.state.Interrupt(3, a.worker); err != nil {
		a.logger.Warn("shutdown interrupt rejected", "error", err)
	}
	a.worker.Shutdown()
}

// HandleWorkerEvent dispatches one side-channel event. Status events move
// the state machine best-effort; message events feed the notifier and the
// history store.
func (a *Assistant) HandleWorkerEvent(ev domain.SideChannelEvent) {
	switch ev.Kind {
	case "listening":
		a.transitionFromEvent(domain.StatusListening)
		a.notifier.NotifyPTTState("listening")
	case "detected", "recording":
		a.transitionFromEvent(domain.StatusRecording)
		a.notifier.NotifyPTTState("recording")
	case "processing":
		a.transitionFromEvent(domain.StatusAsrProcessing)
		a.notifier.NotifyPTTState("processing")
	case "idle":
		a.state.ForceIdle()
		a.notifier.NotifyStatus(domain.StatusIdle)
		a.notifier.NotifyPTTState("idle")
	case "user_message":
		a.beginReply()
		a.appendHistory("user", ev.Text)
		a.notifier.NotifyUserMessage(ev.Text)
	case "assistant_chunk":
		a.appendReply(ev.Content)
		a.notifier.NotifyAssistantChunk(ev.Content)
	case "assistant_done":
		content := a.finishReply(ev.Content)
		if content != "" {
			a.appendHistory("assistant", content)
		}
		a.notifier.NotifyAssistantDone(content)
	case "audio_chunk":
		a.notifier.NotifyAudioChunk(ev.AudioPath)
	case "error":
		a.finishReply("")
		a.state.ForceIdle()
		a.notifier.NotifyError(ev.Err)
		a.notifier.NotifyStatus(domain.StatusIdle)
	default:
		a.logger.Debug("unhandled side-channel event", "kind", ev.Kind)
	}
}

// Processing reports whether a worker-driven conversation turn is between
// its user_message and assistant_done events.
func (a *Assistant) Processing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

func (a *Assistant) transitionFromEvent(to domain.Status) {
	if err := a.state.Transition(to); err != nil {
		a.logger.Debug("side-channel transition skipped", "to", to, "error", err)
		return
	}
	a.notifier.NotifyStatus(to)
}

func (a *Assistant) beginReply() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processing = true
	a.reply.Reset()
}

func (a *Assistant) appendReply(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reply.WriteString(content)
}

// finishReply clears the processing flag and returns the final reply text,
// preferring the content carried by the terminating event over the
// accumulated chunks.
func (a *Assistant) finishReply(content string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processing = false
	if content == "" {
		content = a.reply.String()
	}
	a.reply.Reset()
	return content
}

func (a *Assistant) appendHistory(role, content string) {
	if content == "" {
		return
	}
	if err := a.history.Append(role, content); err != nil {
		a.logger.Warn("history append failed", "role", role, "error", err)
	}
}
