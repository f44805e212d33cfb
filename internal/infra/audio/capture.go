//go:build portaudio
// +build portaudio

package audio

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

type paStream struct {
	stream *portaudio.Stream
}

func (s *paStream) Start() error { return s.stream.Start() }

func (s *paStream) Close() error {
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}

// openInputStream opens the default input device, preferring an exact match
// for the target rate at mono, then the target rate at the device's channel
// count, then the device defaults. The callback downmixes and resamples each
// buffer to mono at the target rate before handing it on.
func openInputStream(sampleRate int, logger *slog.Logger, fn func([]float32)) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no input device available: %w", err)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = framesPerBuffer

	if err := portaudio.IsFormatSupported(params, func([]float32) {}); err != nil {
		params.Input.Channels = dev.MaxInputChannels
		if err := portaudio.IsFormatSupported(params, func([]float32) {}); err != nil {
			params.SampleRate = dev.DefaultSampleRate
		}
	}

	channels := params.Input.Channels
	deviceRate := int(params.SampleRate)

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		mono := ToMono(in, channels)
		fn(Resample(mono, deviceRate, sampleRate))
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	logger.Info("input stream opened",
		"device", dev.Name,
		"deviceRate", deviceRate,
		"channels", channels,
		"targetRate", sampleRate,
	)
	return &paStream{stream: stream}, nil
}
