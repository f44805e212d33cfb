package worker

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

// EventHandler consumes side-channel events. Events are delivered in the
// order the worker emitted them, from a single reader goroutine.
type EventHandler interface {
	HandleWorkerEvent(domain.SideChannelEvent)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(domain.SideChannelEvent)

func (f EventHandlerFunc) HandleWorkerEvent(ev domain.SideChannelEvent) { f(ev) }

// readSideChannel drains the worker's stderr for the lifetime of the
// process. Lines that fail to parse or lack the discriminant are dropped;
// the side channel is best-effort telemetry, not correctness-critical.
func readSideChannel(r io.Reader, handler EventHandler, m *metrics.Metrics, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw struct {
			PTTEvent  string `json:"ptt_event"`
			Text      string `json:"text"`
			Content   string `json:"content"`
			AudioPath string `json:"audio_path"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(line, &raw); err != nil || raw.PTTEvent == "" {
			m.SideChannelDropped.Inc()
			continue
		}

		m.SideChannelEvents.WithLabelValues(raw.PTTEvent).Inc()
		handler.HandleWorkerEvent(domain.SideChannelEvent{
			Kind:      raw.PTTEvent,
			Text:      raw.Text,
			Content:   raw.Content,
			AudioPath: raw.AudioPath,
			Err:       raw.Error,
		})
	}

	logger.Debug("side channel closed")
}
