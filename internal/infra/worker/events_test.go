package worker

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/metrics"
)

func TestReadSideChannel(t *testing.T) {
	lines := strings.Join([]string{
		`{"ptt_event":"listening"}`,
		`garbage line`,
		`{"no_discriminant":true}`,
		`{"ptt_event":"user_message","text":"turn on the lights"}`,
		`{"ptt_event":"assistant_chunk","content":"Sure"}`,
		`{"ptt_event":"audio_chunk","audio_path":"/tmp/x.wav","text":"Sure"}`,
		`{"ptt_event":"error","error":"asr failed"}`,
	}, "\n") + "\n"

	var got []domain.SideChannelEvent
	readSideChannel(strings.NewReader(lines), EventHandlerFunc(func(ev domain.SideChannelEvent) {
		got = append(got, ev)
	}), metrics.New(prometheus.NewRegistry()), slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Unparseable lines are dropped; the rest arrive in emission order.
	require.Len(t, got, 5)
	require.Equal(t, "listening", got[0].Kind)
	require.Equal(t, "turn on the lights", got[1].Text)
	require.Equal(t, "Sure", got[2].Content)
	require.Equal(t, "/tmp/x.wav", got[3].AudioPath)
	require.Equal(t, "asr failed", got[4].Err)
}
