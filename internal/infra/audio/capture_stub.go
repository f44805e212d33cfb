//go:build !portaudio
// +build !portaudio

package audio

import (
	"fmt"
	"log/slog"
)

// openInputStream stub when portaudio is not available.
func openInputStream(_ int, _ *slog.Logger, _ func([]float32)) (Stream, error) {
	return nil, fmt.Errorf("microphone capture not available: rebuild with -tags portaudio")
}
