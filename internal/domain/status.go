package domain

import "fmt"

// Status is the process-wide operation state. Exactly one operation class
// (recording, transcribing, generating, speaking) is active at a time.
type Status int

const (
	StatusIdle Status = iota
	StatusListening
	StatusRecording
	StatusAsrProcessing
	StatusLlmProcessing
	StatusTtsProcessing
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusRecording:
		return "recording"
	case StatusAsrProcessing:
		return "asr"
	case StatusLlmProcessing:
		return "llm"
	case StatusTtsProcessing:
		return "tts"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, bool) {
	switch s {
	case "idle":
		return StatusIdle, true
	case "listening":
		return StatusListening, true
	case "recording":
		return StatusRecording, true
	case "asr":
		return StatusAsrProcessing, true
	case "llm":
		return StatusLlmProcessing, true
	case "tts":
		return StatusTtsProcessing, true
	case "playing":
		return StatusPlaying, true
	default:
		return StatusIdle, false
	}
}

// successors holds the legal transition table. A self-transition is always
// legal as a no-op and is not listed.
var successors = map[Status][]Status{
	StatusIdle:          {StatusListening, StatusRecording},
	StatusListening:     {StatusRecording, StatusIdle},
	StatusRecording:     {StatusAsrProcessing, StatusIdle},
	StatusAsrProcessing: {StatusIdle, StatusLlmProcessing},
	StatusLlmProcessing: {StatusTtsProcessing, StatusIdle},
	StatusTtsProcessing: {StatusPlaying, StatusIdle},
	StatusPlaying:       {StatusIdle, StatusListening},
}

// CanTransition reports whether s -> to is a legal edge.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	for _, next := range successors[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CanBeInterrupted reports whether an interrupt of the given priority may
// preempt this state. Priority 1 is a mode switch (preempts everything),
// 2 an explicit user stop (only Recording/Listening), 3 application
// shutdown (everything except an in-flight Recording).
func (s Status) CanBeInterrupted(priority int) bool {
	switch priority {
	case 1:
		return true
	case 2:
		return s == StatusRecording || s == StatusListening
	case 3:
		return s != StatusRecording
	default:
		return false
	}
}

// InvalidTransitionError reports a transition not present in the table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// InterruptNotPermittedError reports an interrupt whose priority does not
// cover the current state.
type InterruptNotPermittedError struct {
	Status   Status
	Priority int
}

func (e *InterruptNotPermittedError) Error() string {
	return fmt.Sprintf("cannot interrupt status %s with priority %d", e.Status, e.Priority)
}
