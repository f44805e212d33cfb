package application

import "github.com/kanweiwei/speekium/internal/domain"

// AudioRecorder captures microphone audio between an explicit start and stop.
type AudioRecorder interface {
	Start() error
	Stop() (*domain.AudioArtifact, error)
	Abort()
	Recording() bool
}
