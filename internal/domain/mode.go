package domain

// RecordingMode selects between explicit push-to-talk capture and the
// worker-driven continuous listening loop. The canonical strings are shared
// with the worker's config, so changes must be synced to it.
type RecordingMode int

const (
	ModePushToTalk RecordingMode = iota
	ModeContinuous
)

func (m RecordingMode) String() string {
	if m == ModeContinuous {
		return "continuous"
	}
	return "push-to-talk"
}

func ParseRecordingMode(s string) (RecordingMode, bool) {
	switch s {
	case "continuous":
		return ModeContinuous, true
	case "push-to-talk":
		return ModePushToTalk, true
	default:
		return ModePushToTalk, false
	}
}

// WorkMode selects what happens with a finished reply: conversation renders
// it in the chat view, text-input types it into the focused application.
type WorkMode int

const (
	WorkConversation WorkMode = iota
	WorkTextInput
)

func (m WorkMode) String() string {
	if m == WorkTextInput {
		return "text-input"
	}
	return "conversation"
}

func ParseWorkMode(s string) (WorkMode, bool) {
	switch s {
	case "conversation":
		return WorkConversation, true
	case "text-input":
		return WorkTextInput, true
	default:
		return WorkConversation, false
	}
}
