// Package llm provides the completion-service collaborator.
package llm

import "context"

// Message is one role-tagged entry of the model input.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model input roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces a reply from an ordered message list. The streamed
// form yields a finite, forward-only, non-restartable fragment sequence;
// fn is called once per fragment in arrival order and a non-nil return
// aborts the stream.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteStream(ctx context.Context, messages []Message, fn func(fragment string) error) error
}
