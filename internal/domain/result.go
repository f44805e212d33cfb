package domain

import "encoding/json"

// Worker command results. The wire convention is a flat JSON object with a
// "success" flag plus command-specific fields; "error" carries a string on
// failure.

type RecordResult struct {
	Success  bool   `json:"success"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ChatResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TTSResult struct {
	Success   bool   `json:"success"`
	AudioPath string `json:"audio_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ConfigResult struct {
	Success bool            `json:"success"`
	Config  json.RawMessage `json:"config,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type HealthResult struct {
	Success      bool            `json:"success"`
	Status       string          `json:"status,omitempty"`
	CommandCount int             `json:"command_count,omitempty"`
	ModelsLoaded json.RawMessage `json:"models_loaded,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// WorkerProgress describes worker startup progress for the UI layer.
type WorkerProgress struct {
	Status  string `json:"status"` // "loading" | "ready" | "error"
	Message string `json:"message"`
}
