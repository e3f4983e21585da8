package llm

import (
	"context"
	"strings"
)

// Mock is an offline Completer for tests and local development without
// an API key. Replies echo the last user message; streaming splits the
// reply into small fragments.
type Mock struct {
	// Fragments, when set, are streamed verbatim instead of the
	// generated reply.
	Fragments []string

	// Err, when set, is returned from both completion modes.
	Err error
}

// NewMock creates a mock completer.
func NewMock() *Mock { return &Mock{} }

func (m *Mock) Complete(ctx context.Context, messages []Message) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Fragments) > 0 {
		return strings.Join(m.Fragments, ""), nil
	}
	return m.reply(messages), nil
}

func (m *Mock) CompleteStream(ctx context.Context, messages []Message, fn func(fragment string) error) error {
	if m.Err != nil {
		return m.Err
	}
	fragments := m.Fragments
	if len(fragments) == 0 {
		fragments = splitFragments(m.reply(messages), 10)
	}
	for _, f := range fragments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mock) reply(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "Thanks for sharing. You said: " + messages[i].Content
		}
	}
	return "How are you feeling today?"
}

func splitFragments(s string, size int) []string {
	var fragments []string
	for len(s) > size {
		fragments = append(fragments, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		fragments = append(fragments, s)
	}
	return fragments
}

var _ Completer = (*Mock)(nil)
