package application

import (
	"log/slog"

	"github.com/kanweiwei/speekium/internal/domain"
)

// Notifier receives state changes and worker output destined for the UI
// layer. Implementations must not block: calls happen on protocol and
// interrupt paths.
type Notifier interface {
	NotifyStatus(status domain.Status)
	NotifyPTTState(state string)
	NotifyUserMessage(text string)
	NotifyAssistantChunk(content string)
	NotifyAssistantDone(content string)
	NotifyAudioChunk(path string)
	NotifyError(message string)
	NotifyWorkerProgress(progress domain.WorkerProgress)
}

type NoopNotifier struct{}

func (NoopNotifier) NotifyStatus(domain.Status)                 {}
func (NoopNotifier) NotifyPTTState(string)                      {}
func (NoopNotifier) NotifyUserMessage(string)                   {}
func (NoopNotifier) NotifyAssistantChunk(string)                {}
func (NoopNotifier) NotifyAssistantDone(string)                 {}
func (NoopNotifier) NotifyAudioChunk(string)                    {}
func (NoopNotifier) NotifyError(string)                         {}
func (NoopNotifier) NotifyWorkerProgress(domain.WorkerProgress) {}

// LogNotifier writes every notification to the logger. Used by the headless
// binary where no UI is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) NotifyStatus(status domain.Status) {
	n.Logger.Info("status", "status", status)
}

func (n *LogNotifier) NotifyPTTState(state string) {
	n.Logger.Info("ptt state", "state", state)
}

func (n *LogNotifier) NotifyUserMessage(text string) {
	n.Logger.Info("user message", "text", text)
}

func (n *LogNotifier) NotifyAssistantChunk(content string) {
	n.Logger.Debug("assistant chunk", "content", content)
}

func (n *LogNotifier) NotifyAssistantDone(content string) {
	n.Logger.Info("assistant done", "content", content)
}

func (n *LogNotifier) NotifyAudioChunk(path string) {
	n.Logger.Debug("audio chunk", "path", path)
}

func (n *LogNotifier) NotifyError(message string) {
	n.Logger.Error("worker error", "message", message)
}

func (n *LogNotifier) NotifyWorkerProgress(progress domain.WorkerProgress) {
	n.Logger.Info("worker progress", "status", progress.Status, "message", progress.Message)
}
