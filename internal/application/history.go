package application

// History persists finished conversation turns. Append failures are logged
// and otherwise ignored: losing a history row must never break a live
// conversation.
type History interface {
	Append(role, content string) error
}

type NoopHistory struct{}

func (NoopHistory) Append(string, string) error { return nil }
