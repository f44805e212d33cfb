package domain

// SideChannelEvent is one tagged value from the worker's secondary output
// stream. Kind is one of listening, detected, recording, processing, idle,
// user_message, assistant_chunk, assistant_done, audio_chunk, error.
type SideChannelEvent struct {
	Kind      string
	Text      string
	Content   string
	AudioPath string
	Err       string
}

// StreamChunk is one line of a streaming operation's response.
type StreamChunk struct {
	Type      string // chunk, text_chunk, audio_chunk, done, error
	Content   string
	Text      string
	AudioPath string
	Err       string
}

// AudioArtifact describes one finished recording on disk.
type AudioArtifact struct {
	Path        string
	SampleRate  int
	Duration    float64
	SampleCount int
}
